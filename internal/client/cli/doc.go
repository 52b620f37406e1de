// Package cli provides the APIFarm command-line client.
//
// Every command can be run once from the shell:
//
//	apifarm login alice
//	apifarm add-key nvapi-... --base-url https://integrate.api.nvidia.com/v1
//	apifarm chat "hello" -m meta/llama-3.1-8b-instruct
//	apifarm batch-chat -f batch.json -c 4 -o json
//
// or, with no command, from an interactive prompt (see runREPL). The
// session token is kept in a file (default .auth_token) so a login carries
// over between invocations.
package cli
