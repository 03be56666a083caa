// Package diffview renders a sandbox session's change set as a colored
// unified diff on the terminal.
package diffview

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/pmezard/go-difflib/difflib"

	"ovlsh.local/sandboxsh/internal/sandbox"
)

var (
	addedColor    = color.New(color.FgGreen)
	deletedColor  = color.New(color.FgRed)
	modifiedColor = color.New(color.FgYellow)
	hunkColor     = color.New(color.FgCyan)
	dimColor      = color.New(color.Faint)
	boldColor     = color.New(color.Bold)
)

// Display writes a summary and a per-file colored unified diff for changes
// to w. An empty change set prints a single dimmed line, not a blank diff.
func Display(w io.Writer, changes []sandbox.ChangedFile) {
	if len(changes) == 0 {
		dimColor.Fprintln(w, "no files were changed during this session")
		return
	}

	var added, modified, deleted int
	for _, c := range changes {
		switch c.Kind {
		case sandbox.Added:
			added++
		case sandbox.Modified:
			modified++
		case sandbox.Deleted:
			deleted++
		}
	}

	fmt.Fprintln(w)
	boldColor.Fprintln(w, "changes summary")
	if added > 0 {
		addedColor.Fprintf(w, "  %d file(s) added\n", added)
	}
	if modified > 0 {
		modifiedColor.Fprintf(w, "  %d file(s) modified\n", modified)
	}
	if deleted > 0 {
		deletedColor.Fprintf(w, "  %d file(s) deleted\n", deleted)
	}
	fmt.Fprintln(w)

	for _, c := range changes {
		displayFile(w, c)
	}
}

func displayFile(w io.Writer, c sandbox.ChangedFile) {
	switch c.Kind {
	case sandbox.Added:
		addedColor.Fprintf(w, "+ %s\n", c.Path)
	case sandbox.Deleted:
		deletedColor.Fprintf(w, "- %s\n", c.Path)
	case sandbox.Modified:
		modifiedColor.Fprintf(w, "~ %s\n", c.Path)
	}

	lines, err := fileDiffLines(c)
	if err != nil {
		dimColor.Fprintf(w, "  (could not generate diff: %v)\n", err)
		fmt.Fprintln(w)
		return
	}
	if len(lines) == 0 {
		switch c.Kind {
		case sandbox.Deleted:
			dimColor.Fprintln(w, "  (file deleted)")
		case sandbox.Added:
			dimColor.Fprintln(w, "  (new file)")
		default:
			dimColor.Fprintln(w, "  (binary or unreadable file)")
		}
		fmt.Fprintln(w)
		return
	}

	printColoredDiff(w, lines)
	fmt.Fprintln(w)
}

func fileDiffLines(c sandbox.ChangedFile) ([]string, error) {
	var original, updated []string

	if c.Kind == sandbox.Modified || c.Kind == sandbox.Deleted {
		lines, err := readLines(c.LowerPath)
		if err != nil {
			return nil, nil
		}
		original = lines
	}
	if c.Kind == sandbox.Modified || c.Kind == sandbox.Added {
		lines, err := readLines(c.UpperPath)
		if err != nil {
			return nil, nil
		}
		updated = lines
	}

	diff := difflib.UnifiedDiff{
		A:        original,
		B:        updated,
		FromFile: "a/" + c.Path,
		ToFile:   "b/" + c.Path,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	// Drop the --- / +++ header difflib emits; displayFile already printed
	// its own header line for the file.
	if len(lines) >= 2 && strings.HasPrefix(lines[0], "---") && strings.HasPrefix(lines[1], "+++") {
		lines = lines[2:]
	}
	return lines, nil
}

func readLines(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text()+"\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func printColoredDiff(w io.Writer, lines []string) {
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "@@"):
			hunkColor.Fprintln(w, line)
		case strings.HasPrefix(line, "+"):
			addedColor.Fprintln(w, line)
		case strings.HasPrefix(line, "-"):
			deletedColor.Fprintln(w, line)
		default:
			dimColor.Fprintln(w, line)
		}
	}
}
