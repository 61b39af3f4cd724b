// File: cmd/shopbridge/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/avasilev/shopbridge/cmd"
	"github.com/avasilev/shopbridge/internal/observability"
)

const panicLogFile = "shopbridge-panic.log"

// Exit codes.
const (
	exitOK          = 0
	exitFailed      = 1
	exitInterrupted = 130
)

// Function variables so tests can observe process exits.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
)

func main() {
	defer handlePanic()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := exitCode(cmd.Execute(ctx))
	stop()
	osExit(code)
}

// exitCode maps the command result to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "Interrupted.")
		return exitInterrupted
	case errors.Is(err, cmd.ErrScenariosFailed):
		return exitFailed
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitFailed
	}
}

// handlePanic writes the panic and its stack to a file before exiting.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	msg := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(msg), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", msg)
		osExit(exitFailed)
		return
	}
	fmt.Fprintf(os.Stderr, "shopbridge crashed. Details logged to %s\n", panicLogFile)
	osExit(exitFailed)
}
