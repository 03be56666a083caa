// Package shell drives an interactive line-oriented session against a
// sandbox.Engine: plain commands run directly, "/"-prefixed input is routed
// through an llm.Translator, and the session ends by asking whether to
// keep or discard the accumulated changes.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"ovlsh.local/sandboxsh/internal/diffview"
	"ovlsh.local/sandboxsh/internal/llm"
	"ovlsh.local/sandboxsh/internal/sandbox"
)

const exitSequence = "/exit"

const banner = `
    ovlsh - copy-on-write sandboxed shell

    Commands run in an overlay of the real filesystem; nothing touches the
    real tree until you choose to keep the changes.

      * type commands as you would in a normal shell
      * start a line with '/' to describe what you want in plain language
      * type '/exit' to end the session
`

// Prompter is the interactive front end. It has no dependency on *sandbox.Session
// directly, only on the narrow sandbox.Engine interface, so it can drive any
// engine implementation.
type Prompter struct {
	engine     sandbox.Engine
	translator llm.Translator
	in         *bufio.Scanner
	out        io.Writer
	errOut     io.Writer

	// history is the running natural-language conversation context handed
	// back to the translator after each AI-routed command, so later
	// requests can refer to earlier ones.
	history []string
}

// NewPrompter builds a Prompter reading from stdin and writing to
// stdout/stderr. The translator is resolved lazily on first "/" use, so a
// session with no OPENAI_API_KEY configured can still run plain commands.
func NewPrompter(engine sandbox.Engine) *Prompter {
	return &Prompter{
		engine: engine,
		in:     bufio.NewScanner(os.Stdin),
		out:    os.Stdout,
		errOut: os.Stderr,
	}
}

// SetTranslator overrides the lazily constructed translator, mainly for tests.
func (p *Prompter) SetTranslator(t llm.Translator) {
	p.translator = t
}

func (p *Prompter) ensureTranslator() (llm.Translator, error) {
	if p.translator != nil {
		return p.translator, nil
	}
	cfg, err := llm.LoadDotenvConfig(".env")
	if err != nil {
		return nil, err
	}
	p.translator = llm.NewOpenAITranslator(cfg)
	return p.translator, nil
}

// RunInteractiveSession runs the read-eval-print loop until the user exits
// or stdin closes, then closes the engine after asking whether to keep
// changes. Engine close errors are reported but don't change the process's
// success/failure outcome beyond what the caller already decided.
func (p *Prompter) RunInteractiveSession() {
	fmt.Fprintln(p.out, banner)

	for {
		fmt.Fprint(p.out, p.prompt())
		if !p.in.Scan() {
			break
		}
		line := strings.TrimSpace(p.in.Text())
		if line == "" {
			continue
		}
		if line == exitSequence {
			break
		}

		if strings.HasPrefix(line, "/") {
			p.handleAIPrompt(strings.TrimPrefix(line, "/"))
			continue
		}

		p.runLiteral(line)
	}

	keep := p.promptKeepChanges()

	changes, err := p.engine.ChangedFiles()
	if err == nil {
		diffview.Display(p.out, changes)
	}

	if err := p.engine.Close(keep); err != nil {
		fmt.Fprintf(p.errOut, "warning: cleanup: %v\n", err)
	}
	if keep {
		fmt.Fprintln(p.out, "changes kept")
	} else {
		fmt.Fprintln(p.out, "changes discarded")
	}
}

func (p *Prompter) prompt() string {
	return fmt.Sprintf("ovlsh:%s> ", p.engine.Pwd())
}

func (p *Prompter) runLiteral(line string) {
	argv, err := tokenize(line)
	if err != nil {
		fmt.Fprintf(p.errOut, "error: %v\n", err)
		return
	}
	if len(argv) == 0 {
		return
	}
	p.execute(argv)
}

func (p *Prompter) execute(argv []string) sandbox.Result {
	result, err := p.engine.Run(context.Background(), argv)
	if err != nil {
		fmt.Fprintf(p.errOut, "error: %v\n", err)
		return result
	}
	if len(result.Stdout) > 0 {
		p.out.Write(result.Stdout)
	}
	if len(result.Stderr) > 0 {
		p.errOut.Write(result.Stderr)
	}
	return result
}

func (p *Prompter) handleAIPrompt(request string) {
	translator, err := p.ensureTranslator()
	if err != nil {
		fmt.Fprintf(p.errOut, "AI translation unavailable: %v\n", err)
		return
	}

	extra := map[string]string{"cwd": p.engine.Pwd()}
	if len(p.history) > 0 {
		extra["history"] = strings.Join(p.history, "\n")
	}

	plan, err := translator.Translate(context.Background(), request, extra)
	if err != nil {
		msg := fmt.Sprintf("AI translation error: %v", err)
		fmt.Fprintln(p.errOut, msg)
		p.history = append(p.history, msg)
		return
	}

	fmt.Fprintf(p.out, "\nexplanation: %s\n", orDefault(plan.Explain, "no explanation provided"))

	if plan.NeedsClarification {
		question := orDefault(plan.Question, "additional clarification needed")
		fmt.Fprintf(p.out, "\nclarification needed: %s\n", question)
		p.history = append(p.history, "clarification needed: "+question)
		return
	}

	if len(plan.Command) == 0 {
		fmt.Fprintln(p.out, "no command generated")
		p.history = append(p.history, "no command was generated from the request")
		return
	}

	fmt.Fprintf(p.out, "executing: %s\n", strings.Join(plan.Command, " "))
	result := p.execute(plan.Command)
	p.history = append(p.history, fmt.Sprintf("command executed: %s (exit code: %d)", strings.Join(plan.Command, " "), result.ReturnCode))
}

func (p *Prompter) promptKeepChanges() bool {
	for {
		fmt.Fprint(p.out, "keep changes? (y/n): ")
		if !p.in.Scan() {
			fmt.Fprintln(p.out, "\nchanges discarded")
			return false
		}
		switch strings.ToLower(strings.TrimSpace(p.in.Text())) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		default:
			fmt.Fprintln(p.out, "please enter 'y' or 'n'")
		}
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
