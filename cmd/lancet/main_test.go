// File: cmd/lancet/main_test.go
package main

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetMocks restores the original function implementations.
func resetMocks() {
	osWriteFile = os.WriteFile
	osExit = os.Exit
}

// withPanicHandler runs fn under the global crash handler, the way main
// wires it.
func withPanicHandler(fn func()) {
	defer handlePanic()
	fn()
}

func TestHandlePanic(t *testing.T) {
	t.Run("Writes Crash Log And Exits", func(t *testing.T) {
		defer resetMocks()

		var writtenPath string
		var written []byte
		osWriteFile = func(name string, data []byte, perm os.FileMode) error {
			writtenPath = name
			written = data
			return nil
		}
		exitCode := -1
		osExit = func(code int) { exitCode = code }

		withPanicHandler(func() { panic("engine exploded") })

		assert.Equal(t, panicLogFile, writtenPath)
		require.NotEmpty(t, written)
		content := string(written)
		assert.Contains(t, content, "panic: engine exploded")
		// The log must carry the stack trace, not just the panic value.
		assert.Contains(t, content, "goroutine")
		assert.Equal(t, 1, exitCode)
	})

	t.Run("Falls Back To Stderr When Log Write Fails", func(t *testing.T) {
		defer resetMocks()

		osWriteFile = func(name string, data []byte, perm os.FileMode) error {
			return errors.New("disk full")
		}
		exitCode := -1
		osExit = func(code int) { exitCode = code }

		withPanicHandler(func() { panic("engine exploded") })

		assert.Equal(t, 1, exitCode)
	})

	t.Run("No Panic Is A No Op", func(t *testing.T) {
		defer resetMocks()

		exitCalled := false
		osExit = func(code int) { exitCalled = true }
		writeCalled := false
		osWriteFile = func(name string, data []byte, perm os.FileMode) error {
			writeCalled = true
			return nil
		}

		withPanicHandler(func() {})

		assert.False(t, exitCalled, "a clean run must not exit through the crash handler")
		assert.False(t, writeCalled, "a clean run must not write a panic log")
	})
}

func TestExecuteInteractiveCommand_SurvivesBadInput(t *testing.T) {
	defer resetMocks()
	// Keep any default log file out of the package directory.
	t.Chdir(t.TempDir())

	// Unknown commands and bad flags must not terminate the shell loop.
	// Reaching the end of the test proves neither line panicked or exited.
	executeInteractiveCommand(context.Background(), "definitely-not-a-command --bogus")
	executeInteractiveCommand(context.Background(), "--version")
}
