// Command ovlsh runs an interactive shell inside a copy-on-write overlay
// sandbox: every filesystem modification a command makes can be inspected,
// accepted, or discarded when the session ends.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"ovlsh.local/sandboxsh/internal/cliutil"
	"ovlsh.local/sandboxsh/internal/sandbox"
	"ovlsh.local/sandboxsh/internal/shell"
)

var flagConceal = &cli.StringSliceFlag{
	Name:  "conceal",
	Usage: "extra sensitive path or glob pattern to hide from the sandbox (repeatable)",
}

var flagBroad = &cli.BoolFlag{
	Name:  "broad",
	Usage: "conceal the full sensitive-path list (ssh keys, credentials, histories) instead of just auth files",
}

var app = &cli.App{
	Name:      "ovlsh",
	Usage:     "sandboxed shell backed by a copy-on-write overlay of the real filesystem",
	ArgsUsage: "[directory]",
	Flags:     []cli.Flag{flagConceal, flagBroad},
	Action: func(c *cli.Context) error {
		dir := c.Args().First()
		if dir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return cliutil.ExitCode(1)
			}
			dir = wd
		}

		var opts []sandbox.Option
		if patterns := c.StringSlice(flagConceal.Name); len(patterns) > 0 {
			opts = append(opts, sandbox.WithExtraSensitivePatterns(patterns...))
		}
		if c.Bool(flagBroad.Name) {
			opts = append(opts, sandbox.WithBroadConcealment())
		}

		session, err := sandbox.Open(dir, opts...)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			if err == sandbox.ErrPermissionDenied {
				fmt.Fprintln(os.Stderr, "try running ovlsh as root")
			}
			return cliutil.ExitCode(1)
		}

		prompter := shell.NewPrompter(session)
		prompter.RunInteractiveSession()
		return nil
	},
}

func main() {
	// The binary re-execs itself with sandbox.InternalExecFlag to enter the
	// per-command mount namespace/chroot helper phase (see
	// internal/sandbox/exec.go). This must be checked before any cli.App
	// flag parsing, since the helper invocation's argv isn't a normal ovlsh
	// command line.
	if len(os.Args) >= 2 && os.Args[1] == sandbox.InternalExecFlag {
		if len(os.Args) != 4 {
			fmt.Fprintln(os.Stderr, "ovlsh: malformed internal exec invocation")
			os.Exit(1)
		}
		if err := sandbox.RunHelperPhase(os.Args[2], os.Args[3]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		// RunHelperPhase only returns on error; unix.Exec replaces the
		// process image on success.
		os.Exit(1)
	}

	cliutil.Exit(app.Run(os.Args))
}
