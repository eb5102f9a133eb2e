package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// A closed downstream pipe surfaces as EPIPE from Write instead of
	// killing the process.
	signal.Ignore(syscall.SIGPIPE)

	err := NewRootCmd().Execute()
	os.Exit(exitCode(err, os.Stderr))
}

// exitCode reports err on stderr and maps it to the process exit status.
// A broken output pipe counts as a clean exit.
func exitCode(err error, stderr io.Writer) int {
	if err == nil || errors.Is(err, syscall.EPIPE) {
		return 0
	}

	_, _ = fmt.Fprintln(stderr, err)

	return 1
}
