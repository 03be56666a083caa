// Package execwrap builds the shell scripts the Executor runs inside the
// chroot. It never concatenates raw strings into a command line: every
// interpolated value goes through shellescape.Quote, following the pack's
// REDESIGN warning against string-interpolated shell commands.
package execwrap

import (
	"fmt"
	"strings"

	"github.com/alessio/shellescape"
)

// FinalPWDSentinel prefixes the line the Executor scans for on stdout to
// recover the post-command working directory. It must not plausibly appear
// in ordinary command output.
const FinalPWDSentinel = "__OVLSH_FINAL_PWD__:"

// BuildScript assembles a /bin/sh -c script that cds into dir, runs argv,
// and echoes the sentinel line with the resulting working directory
// regardless of the command's exit status.
func BuildScript(dir string, argv []string) string {
	quotedArgv := make([]string, len(argv))
	for i, a := range argv {
		quotedArgv[i] = shellescape.Quote(a)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "cd %s && ", shellescape.Quote(dir))
	b.WriteString(strings.Join(quotedArgv, " "))
	fmt.Fprintf(&b, "; __ovlsh_rc=$?; printf '%%s%%s\\n' %s \"$(pwd)\"; exit \"$__ovlsh_rc\"",
		shellescape.Quote(FinalPWDSentinel))
	return b.String()
}

// ExtractFinalPWD scans stdout for the sentinel line, returning the
// remaining stdout with that line stripped and the reported directory (if
// any line matched).
func ExtractFinalPWD(stdout []byte) (remaining []byte, pwd string, found bool) {
	lines := strings.Split(string(stdout), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !found && strings.HasPrefix(line, FinalPWDSentinel) {
			pwd = strings.TrimPrefix(line, FinalPWDSentinel)
			found = true
			continue
		}
		kept = append(kept, line)
	}
	return []byte(strings.Join(kept, "\n")), pwd, found
}
