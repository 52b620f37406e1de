package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zhusq20/APIFarm/internal/client/client"
	"github.com/zhusq20/APIFarm/internal/client/config"
	"github.com/zhusq20/APIFarm/internal/client/services"
)

// API is the part of *client.Client used by the key and chat commands.
type API interface {
	Health(ctx context.Context) (int, error)
	AddKey(ctx context.Context, apiKey, baseURL string) (string, error)
	ListKeys(ctx context.Context) ([]string, error)
	RemoveKey(ctx context.Context, apiKey string) (*client.RemoveResult, error)
	ChatCompletions(ctx context.Context, req client.ChatRequest) (*client.ChatCompletion, error)
	BatchChatCompletions(ctx context.Context, req client.BatchChatRequest) ([]*client.ChatCompletion, error)
	Embeddings(ctx context.Context, req client.EmbeddingsRequest) (json.RawMessage, error)
}

type App struct {
	config      *config.Config
	api         API
	authService services.AuthService
	reader      *bufio.Reader
	out         io.Writer
}

// NewApp builds the HTTP client and the token-file backed auth service.
// It fails with client.ErrServerURLNotConfigured when no server URL is set.
func NewApp(c *config.Config) (*App, error) {
	apiClient, err := client.New(c.ServerURL, "", c.RequestTimeout)
	if err != nil {
		return nil, err
	}

	as, err := services.NewAuthService(apiClient, c.TokenFile)
	if err != nil {
		return nil, err
	}

	return &App{
		config:      c,
		api:         apiClient,
		authService: as,
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
	}, nil
}

func (a *App) isLoggedIn() bool {
	return a.authService.LoggedIn()
}

// Run executes args as one command, or starts the interactive prompt when
// args is empty. It returns the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "APIFarm CLI (type 'help' for commands)")
		runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
		return 0
	}

	if err := a.execute(ctx, args); err != nil {
		a.reportError(err)
		return 1
	}
	return 0
}

func (a *App) getStatus() string {
	if a.isLoggedIn() {
		return "(logged in)"
	}
	return ""
}

func (a *App) reportError(err error) {
	switch {
	case errors.Is(err, services.ErrAlreadyLoggedIn):
		fmt.Fprintln(a.out, "Already logged in. Please logout first.")
	case errors.Is(err, services.ErrNotLoggedIn):
		fmt.Fprintln(a.out, "Not logged in.")
	case errors.Is(err, errUsage):
		fmt.Fprintf(a.out, "Error: %v\n", err)
		fmt.Fprintln(a.out, usage)
	default:
		fmt.Fprintf(a.out, "Error: %v\n", err)
	}
}
