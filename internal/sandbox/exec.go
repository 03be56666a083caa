package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"ovlsh.local/sandboxsh/internal/execwrap"
	"ovlsh.local/sandboxsh/internal/procrun"
)

// InternalExecFlag is the hidden flag the ovlsh binary recognizes to enter
// its helper phase: a freshly cloned mount namespace that chroots into the
// merged view and execs a shell script. cmd/ovlsh must check for this flag
// before doing any other argument parsing.
const InternalExecFlag = "--ovlsh-internal-exec"

// RunHelperPhase implements the child side of Run: it's invoked by
// cmd/ovlsh when the process was re-exec'd with InternalExecFlag. It
// chroots into mergedDir and execs /bin/sh -c script, replacing the current
// process image. It never returns on success.
func RunHelperPhase(mergedDir, script string) error {
	if err := unix.Chroot(mergedDir); err != nil {
		return fmt.Errorf("sandbox: chroot: %w", err)
	}
	if err := unix.Chdir("/"); err != nil {
		return fmt.Errorf("sandbox: chdir after chroot: %w", err)
	}

	exe, err := exec.LookPath("/bin/sh")
	if err != nil {
		return fmt.Errorf("sandbox: locating /bin/sh inside chroot: %w", err)
	}
	argv := []string{"/bin/sh", "-c", script}
	return unix.Exec(exe, argv, os.Environ())
}

// Run executes argv inside the sandbox: a fresh mount namespace (so any
// umount the command performs cannot affect the parent or sibling
// sessions), chrooted into the merged view, starting from the session's
// current logical directory. Whatever the command's exit status, the
// session's current directory is then advanced to the directory the command
// ended up in (as reported by the script's sentinel line), as long as that
// directory is still a descendant of BaseDir (invariant: current_dir never
// leaves the real filesystem tree rooted at BaseDir).
//
// The subprocess's exit code is returned as Result.ReturnCode, never as an
// error: only an empty argv, failure to invoke the helper at all, or
// calling Run on a closed session, is an error. Cancelling ctx forwards SIGTERM to the
// subprocess (see internal/procrun).
func (s *Session) Run(ctx context.Context, argv []string) (Result, error) {
	if len(argv) == 0 {
		return Result{}, fmt.Errorf("sandbox: empty command")
	}

	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return Result{}, ErrNotMounted
	}
	mergedDir := s.mergedDir()
	curDir := s.currentDir
	execPath := s.execPath
	s.mu.Unlock()

	script := execwrap.BuildScript(curDir, argv)

	cmd := exec.Command(execPath, InternalExecFlag, mergedDir, script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: unix.CLONE_NEWNS,
	}

	runErr := procrun.Run(ctx, cmd)

	out, pwd, found := execwrap.ExtractFinalPWD(stdout.Bytes())
	if found {
		s.maybeAdvanceCurrentDir(pwd)
	}

	result := Result{Stdout: out, Stderr: stderr.Bytes()}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if ws.Signaled() {
				result.ReturnCode = -int(ws.Signal())
			} else {
				result.ReturnCode = ws.ExitStatus()
			}
		} else {
			result.ReturnCode = -1
		}
		return result, nil
	}
	if runErr != nil {
		return Result{}, fmt.Errorf("sandbox: invoking helper: %w", runErr)
	}
	return result, nil
}

// maybeAdvanceCurrentDir applies invariant I3: a reported directory is
// only adopted if it's a normalized descendant of BaseDir. Any other
// reported path (e.g. `cd /` past BaseDir) is silently ignored.
func (s *Session) maybeAdvanceCurrentDir(reportedPWD string) {
	if reportedPWD == "" {
		return
	}
	norm := normalizePath(reportedPWD)
	if norm != s.BaseDir && !isStrictlyUnder(norm, s.BaseDir) {
		return
	}
	s.mu.Lock()
	s.currentDir = norm
	s.mu.Unlock()
}
