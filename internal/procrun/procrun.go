// Package procrun runs a single foreground subprocess, forwarding SIGTERM
// and leaving SIGINT to the terminal's process group.
package procrun

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"

	"golang.org/x/sys/unix"
)

func sendSignal(cmd *exec.Cmd, s os.Signal) {
	if err := cmd.Process.Signal(s); err != nil {
		// The process may have already exited.
		log.Printf("failed to send %s to pid %d: %v", s, cmd.Process.Pid, err)
	}
}

func handleSignal(cmd *exec.Cmd, s os.Signal) error {
	switch s {
	case unix.SIGTERM:
		sendSignal(cmd, s)
		return nil
	default:
		return fmt.Errorf("unexpected signal received: %s", s)
	}
}

// Run starts cmd and blocks until it exits, forwarding SIGTERM to the child
// and ignoring SIGINT (the terminal already delivers it to the foreground
// process group, which includes the child). cmd must not have been created
// with CommandContext, since ctx cancellation here sends SIGTERM rather than
// killing the process outright.
func Run(ctx context.Context, cmd *exec.Cmd) error {
	signal.Ignore(unix.SIGINT)
	defer signal.Reset(unix.SIGINT)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGTERM)
	defer signal.Stop(sigs)

	if err := cmd.Start(); err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() {
		errc <- cmd.Wait()
	}()

	for {
		select {
		case s := <-sigs:
			if err := handleSignal(cmd, s); err != nil {
				log.Println(err)
			}
		case <-ctx.Done():
			sendSignal(cmd, unix.SIGTERM)
			return <-errc
		case err := <-errc:
			return err
		}
	}
}
