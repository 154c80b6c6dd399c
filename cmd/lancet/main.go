// File: cmd/lancet/main.go
/*
Copyright © 2025 Kyle McAllister (xkilldash9x@proton.me)
*/

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/xkilldash9x/lancet-cli/cmd"
	"github.com/xkilldash9x/lancet-cli/internal/observability"
)

const panicLogFile = "panic.log"

const asciiArt = `
   /|		"Cut along the flow,
  / |		 not across it."
 /  |
 \  |	      [ lancet v0.1.0 ]
  \ |	+------------------------+
   \|	| PHP taint-flow analyzer |
	+------------------------+

`

// Function variables for dependency injection in tests.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
)

func main() {
	defer handlePanic()

	// Listen for interrupt signals (SIGINT, SIGTERM) for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// If arguments are passed, execute the command directly and exit.
	if len(os.Args) > 1 {
		if err := cmd.Execute(ctx); err != nil {
			// cmd.Execute handles the logging; only the exit code is
			// decided here. A cancelled run is a graceful shutdown.
			if errors.Is(err, context.Canceled) {
				osExit(0)
			} else {
				osExit(1)
			}
		}
		return
	}

	// -- Interactive Mode --
	fmt.Print(asciiArt)
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("lancet > ")
		if !scanner.Scan() {
			break // Exit on EOF (Ctrl+D)
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		executeInteractiveCommand(ctx, line)
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "Error reading from stdin:", err)
		osExit(1)
	}

	fmt.Println("Exiting lancet.")
}

// executeInteractiveCommand parses and runs one line from the interactive
// shell. Each line gets a clean command instance so flags from one command
// never leak into the next.
func executeInteractiveCommand(ctx context.Context, line string) {
	rootCmd := cmd.NewRootCommand()
	rootCmd.SetArgs(strings.Fields(line))

	func() {
		defer func() {
			if r := recover(); r != nil {
				fmt.Fprintf(os.Stderr, "Error: Command panicked: %v\n", r)
			}
		}()
		// Errors are logged by the command itself; the shell stays open.
		_ = rootCmd.ExecuteContext(ctx)
	}()
}

// handlePanic writes crash details to the panic log before exiting, so a
// non-interactive crash leaves evidence behind.
func handlePanic() {
	if r := recover(); r != nil {
		// Flush whatever the logger still holds.
		observability.Sync()

		stackTrace := debug.Stack()
		panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, stackTrace)

		if err := osWriteFile(panicLogFile, []byte(panicMessage), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
			fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
			osExit(1)
			return // Return facilitates testing when osExit is mocked.
		}

		fmt.Fprintf(os.Stderr, "\nCRASH DETECTED. Details logged to %s\n", panicLogFile)
		osExit(1)
	}
}
