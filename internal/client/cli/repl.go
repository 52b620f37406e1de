package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	execute(ctx context.Context, args []string) error
	reportError(err error)
}

// runREPL starts a read-eval-print loop over the same commands the CLI
// accepts as arguments.
//
// Each line is split on whitespace; the first field is the command and the
// rest are its arguments. The loop exits on scanner EOF or when the user
// types "exit" or "quit". Command errors are reported and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("apifarm %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: add-key, list-keys, remove-key, chat, batch-chat, embed, health, logout, exit")
			} else {
				printlnFn("Available commands: register, login, chat, batch-chat, embed, health, exit")
			}

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			if err := a.execute(ctx, parts); err != nil {
				a.reportError(err)
			}
		}
	}
}
