package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zhusq20/APIFarm/internal/client/client"
	"github.com/zhusq20/APIFarm/internal/common"
)

const (
	defaultBaseURL    = common.DefaultUpstreamURL
	defaultChatModel  = "meta/llama-3.1-8b-instruct"
	defaultEmbedModel = "baai/bge-m3"

	defaultTemperature = 1.0
	defaultTopP        = 0.95
	defaultMaxTokens   = 1024
	defaultConcurrency = 8

	keyPreviewLen = 20
)

const usage = `Usage: apifarm [-s server-url] [-token-file path] [-timeout d] <command> [args]

Commands:
  register [username] [password]     register a new user (prompts for what is missing)
  login [username] [password]        login and save the session token
  logout                             revoke the saved session token
  add-key [key] [--base-url url] [-f keys.json]
  list-keys                          list your API keys
  remove-key <key>                   remove an API key
  chat [message] [-f messages.json] [--system s] [-m model] [-t temp] [--top-p p] [--max-tokens n]
  batch-chat -f batches.json [-c n] [-o json|text] [-m model] [-t temp] [--top-p p] [--max-tokens n]
  embed <text> [-m model] [--input-type t] [--encoding-format f] [--truncate t]
  health                             check the server`

var errUsage = errors.New("invalid usage")

// Test seams for the interactive prompts.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
)

func (a *App) execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no command given", errUsage)
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "register":
		return a.register(ctx, rest)
	case "login":
		return a.login(ctx, rest)
	case "logout":
		return a.logout(ctx)
	case "add-key":
		return a.addKey(ctx, rest)
	case "list-keys":
		return a.listKeys(ctx)
	case "remove-key":
		return a.removeKey(ctx, rest)
	case "chat":
		return a.chat(ctx, rest)
	case "batch-chat":
		return a.batchChat(ctx, rest)
	case "embed":
		return a.embed(ctx, rest)
	case "health":
		return a.health(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

// parseInterspersed parses args with fs, allowing positional arguments to
// appear before, between or after flags. It returns the positionals.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("%w: %v", errUsage, err)
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// credentials takes username and password from args, prompting for
// whichever is missing.
func (a *App) credentials(name string, args []string) (string, string, error) {
	if len(args) > 2 {
		return "", "", fmt.Errorf("%w: %s [username] [password]", errUsage, name)
	}
	if len(args) == 2 {
		return args[0], args[1], nil
	}

	var username string
	if len(args) == 1 {
		username = args[0]
	} else {
		u, err := getSimpleText(a.reader, "Username:", a.out)
		if err != nil {
			return "", "", fmt.Errorf("reading username: %w", err)
		}
		username = u
	}
	if username == "" {
		return "", "", fmt.Errorf("%w: username is required", errUsage)
	}

	pw, err := getPassword(a.out)
	if err != nil {
		return "", "", fmt.Errorf("reading password: %w", err)
	}
	return username, string(pw), nil
}

func (a *App) register(ctx context.Context, args []string) error {
	username, password, err := a.credentials("register", args)
	if err != nil {
		return err
	}
	res, err := a.authService.Register(ctx, username, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s User ID: %s\n", res.Message, res.UserID)
	return nil
}

func (a *App) login(ctx context.Context, args []string) error {
	if a.isLoggedIn() {
		fmt.Fprintln(a.out, "Already logged in. Please logout first.")
		return nil
	}
	username, password, err := a.credentials("login", args)
	if err != nil {
		return err
	}
	if _, err := a.authService.Login(ctx, username, password); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged in successfully. Token saved.")
	return nil
}

func (a *App) logout(ctx context.Context) error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Not logged in.")
		return nil
	}
	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out successfully.")
	return nil
}

func (a *App) addKey(ctx context.Context, args []string) error {
	fs := newFlagSet("add-key")
	baseURL := fs.String("base-url", defaultBaseURL, "upstream base URL")
	var file string
	fs.StringVar(&file, "file", "", "JSON file with an api_keys array")
	fs.StringVar(&file, "f", "", "JSON file with an api_keys array")

	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(pos) > 1 {
		return fmt.Errorf("%w: add-key takes at most one key", errUsage)
	}
	if len(pos) == 0 && file == "" {
		return errors.New("either provide a key or use --file to specify a JSON file with keys")
	}
	if len(pos) == 1 && file != "" {
		return errors.New("cannot use both key argument and --file option")
	}

	if file == "" {
		if _, err := a.api.AddKey(ctx, pos[0], *baseURL); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Key added successfully.")
		return nil
	}

	keys, err := client.ReadKeysFile(file)
	if err != nil {
		return err
	}
	added := 0
	for _, k := range keys {
		if _, err := a.api.AddKey(ctx, k, *baseURL); err != nil {
			fmt.Fprintf(a.out, "✗ Failed to add key %s...: %v\n", keyPreview(k), err)
			continue
		}
		added++
		fmt.Fprintf(a.out, "✓ Added key: %s...\n", keyPreview(k))
	}
	fmt.Fprintf(a.out, "\nImport complete: %d/%d keys added successfully.\n", added, len(keys))
	return nil
}

func keyPreview(k string) string {
	if len(k) <= keyPreviewLen {
		return k
	}
	return k[:keyPreviewLen]
}

func (a *App) listKeys(ctx context.Context) error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Warning: You are not logged in.")
		return nil
	}
	keys, err := a.api.ListKeys(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Your Keys:")
	for _, k := range keys {
		fmt.Fprintf(a.out, "- %s\n", k)
	}
	return nil
}

func (a *App) removeKey(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: remove-key <key>", errUsage)
	}
	if _, err := a.api.RemoveKey(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Key removed successfully.")
	return nil
}

// samplingFlags are shared by chat and batch-chat.
type samplingFlags struct {
	model       string
	temperature float64
	topP        float64
	maxTokens   int
}

func (s *samplingFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&s.model, "model", defaultChatModel, "model name")
	fs.StringVar(&s.model, "m", defaultChatModel, "model name")
	fs.Float64Var(&s.temperature, "temperature", defaultTemperature, "sampling temperature")
	fs.Float64Var(&s.temperature, "t", defaultTemperature, "sampling temperature")
	fs.Float64Var(&s.topP, "top-p", defaultTopP, "top-p sampling")
	fs.IntVar(&s.maxTokens, "max-tokens", defaultMaxTokens, "maximum tokens")
}

func (a *App) chat(ctx context.Context, args []string) error {
	fs := newFlagSet("chat")
	var sf samplingFlags
	sf.register(fs)
	var file string
	fs.StringVar(&file, "file", "", "JSON file with a messages array")
	fs.StringVar(&file, "f", "", "JSON file with a messages array")
	system := fs.String("system", "", "system message")

	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	message := strings.Join(pos, " ")
	if message == "" && file == "" {
		return errors.New("either provide a message or use --file to specify a messages file")
	}
	if message != "" && file != "" {
		return errors.New("cannot use both message argument and --file option")
	}

	var messages []client.Message
	if file != "" {
		if err := readJSONFile(file, &messages); err != nil {
			return fmt.Errorf("%w (JSON file must contain an array of message objects)", err)
		}
	} else {
		if *system != "" {
			messages = append(messages, client.Message{"role": "system", "content": *system})
		}
		messages = append(messages, client.Message{"role": "user", "content": message})
	}

	resp, err := a.api.ChatCompletions(ctx, client.ChatRequest{
		Model:       sf.model,
		Messages:    messages,
		Temperature: sf.temperature,
		TopP:        sf.topP,
		MaxTokens:   sf.maxTokens,
	})
	if err != nil {
		return fmt.Errorf("chat completion error: %w", err)
	}

	fmt.Fprintln(a.out, resp.Content())
	if resp.Usage != nil {
		fmt.Fprintf(a.out, "\n[Model: %s, Tokens: %d]\n", sf.model, resp.Usage.TotalTokens)
	}
	return nil
}

func (a *App) batchChat(ctx context.Context, args []string) error {
	fs := newFlagSet("batch-chat")
	var sf samplingFlags
	sf.register(fs)
	var file, output string
	var concurrency int
	fs.StringVar(&file, "file", "", "JSON file with an array of message arrays")
	fs.StringVar(&file, "f", "", "JSON file with an array of message arrays")
	fs.IntVar(&concurrency, "concurrency", defaultConcurrency, "max concurrent requests")
	fs.IntVar(&concurrency, "c", defaultConcurrency, "max concurrent requests")
	fs.StringVar(&output, "output", "text", "output format: json or text")
	fs.StringVar(&output, "o", "text", "output format: json or text")

	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(pos) > 0 || file == "" {
		return fmt.Errorf("%w: batch-chat -f <file>", errUsage)
	}
	if output != "json" && output != "text" {
		return fmt.Errorf("%w: output must be json or text", errUsage)
	}

	batch, err := readBatchFile(file)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Processing %d requests with concurrency=%d...\n", len(batch), concurrency)
	responses, err := a.api.BatchChatCompletions(ctx, client.BatchChatRequest{
		Model:         sf.model,
		BatchMessages: batch,
		Temperature:   sf.temperature,
		TopP:          sf.topP,
		MaxTokens:     sf.maxTokens,
		Concurrency:   concurrency,
	})
	if err != nil {
		return fmt.Errorf("batch chat completion error: %w", err)
	}

	if output == "json" {
		raw := make([]json.RawMessage, len(responses))
		for i, r := range responses {
			raw[i] = r.Raw
		}
		data, err := json.MarshalIndent(raw, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, string(data))
		return nil
	}

	a.printBatchText(responses)
	return nil
}

func (a *App) printBatchText(responses []*client.ChatCompletion) {
	rule := strings.Repeat("=", 60)
	sep := strings.Repeat("-", 60)
	n := len(responses)

	fmt.Fprintf(a.out, "\n%s\nBatch Results (%d responses)\n%s\n\n", rule, n, rule)
	for i, r := range responses {
		fmt.Fprintf(a.out, "[%d/%d]\n", i+1, n)
		fmt.Fprintln(a.out, r.Content())
		if r.Usage != nil {
			fmt.Fprintf(a.out, "\n[Tokens: %d]\n", r.Usage.TotalTokens)
		}
		if i < n-1 {
			fmt.Fprintf(a.out, "\n%s\n\n", sep)
		}
	}
	fmt.Fprintf(a.out, "\n%s\nCompleted %d requests\n%s\n", rule, n, rule)
}

func readBatchFile(path string) ([][]client.Message, error) {
	var items []json.RawMessage
	if err := readJSONFile(path, &items); err != nil {
		return nil, fmt.Errorf("%w (JSON file must contain an array of message arrays)", err)
	}
	batch := make([][]client.Message, len(items))
	for i, item := range items {
		if err := json.Unmarshal(item, &batch[i]); err != nil {
			return nil, fmt.Errorf("item %d is not a message array", i)
		}
	}
	return batch, nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("file not found: %s", path)
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid JSON in file: %w", err)
	}
	return nil
}

func (a *App) embed(ctx context.Context, args []string) error {
	fs := newFlagSet("embed")
	var model string
	fs.StringVar(&model, "model", defaultEmbedModel, "embedding model")
	fs.StringVar(&model, "m", defaultEmbedModel, "embedding model")
	inputType := fs.String("input-type", "", "input type (query or passage)")
	encoding := fs.String("encoding-format", "", "encoding format")
	truncate := fs.String("truncate", "", "truncation mode")

	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	text := strings.Join(pos, " ")
	if text == "" {
		return fmt.Errorf("%w: embed <text>", errUsage)
	}

	raw, err := a.api.Embeddings(ctx, client.EmbeddingsRequest{
		Model:          model,
		Input:          text,
		EncodingFormat: *encoding,
		InputType:      *inputType,
		Truncate:       *truncate,
	})
	if err != nil {
		return fmt.Errorf("embeddings error: %w", err)
	}
	fmt.Fprintln(a.out, string(raw))
	return nil
}

func (a *App) health(ctx context.Context) error {
	keys, err := a.api.Health(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Server OK. Keys in pool: %d\n", keys)
	return nil
}
