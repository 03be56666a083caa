package shell

import (
	"fmt"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

// tokenize splits a literal shell command line into argv, expanding
// quoting and simple parameter expansion via the host environment but
// never invoking a subshell (no command substitution, no globbing against
// the host filesystem; the chrooted /bin/sh on the far side does that itself
// once the command reaches Engine.Run).
func tokenize(line string) ([]string, error) {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(line), "")
	if err != nil {
		return nil, fmt.Errorf("parsing command: %w", err)
	}
	if len(file.Stmts) == 0 {
		return nil, nil
	}
	if len(file.Stmts) > 1 {
		return nil, fmt.Errorf("only a single statement is supported")
	}

	call, ok := file.Stmts[0].Cmd.(*syntax.CallExpr)
	if !ok {
		return nil, fmt.Errorf("unsupported shell construct")
	}

	cfg := &expand.Config{Env: expand.ListEnviron(os.Environ()...)}
	var argv []string
	for _, word := range call.Args {
		field, err := expand.Literal(cfg, word)
		if err != nil {
			return nil, fmt.Errorf("expanding %q: %w", word, err)
		}
		argv = append(argv, field)
	}
	return argv, nil
}
