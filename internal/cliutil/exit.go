// Package cliutil provides the exit-code plumbing shared by ovlsh's command
// line entry point.
package cliutil

import (
	"errors"
	"fmt"
	"log"
	"os"
)

// ExitCode is an error value that instructs the program to exit with a
// specific exit code. The program must call Exit in main to handle it.
type ExitCode int

func (e ExitCode) Error() string {
	return fmt.Sprintf("exit code %d", int(e))
}

// Exit terminates the program via os.Exit. If err wraps an ExitCode, that
// code is used; otherwise a non-nil err is logged as FATAL and the process
// exits 1, and a nil err exits 0. The function never returns; deferred calls
// do not run.
func Exit(err error) {
	var code ExitCode
	if errors.As(err, &code) {
		os.Exit(int(code))
	}
	if err != nil {
		log.Printf("FATAL: %v", err)
		os.Exit(1)
	}
	os.Exit(0)
}
