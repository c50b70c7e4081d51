package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Process exit codes.
const (
	exitOK      = 0
	exitInvalid = 1
	exitUsage   = 2
)

// errVerificationFailed is returned by commands whose verification ran to
// completion but did not pass.
var errVerificationFailed = errors.New("verification failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// execute runs the command line and maps its outcome to an exit code.
func execute(ctx context.Context, args []string) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	closeStore()

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errVerificationFailed):
		return exitInvalid
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitUsage
	}
}
