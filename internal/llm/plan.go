// Package llm translates a natural-language request into a Plan the shell
// can execute, by forcing a chat completion model to call a single function
// with a fixed argument schema.
package llm

import "context"

// PlanVersion is the schema version this package knows how to produce and
// consume. OpenAITranslator.Translate rejects a Plan reporting any other
// version; the sandbox engine never looks at it.
const PlanVersion = "1.0"

// planFunctionName is the tool/function name the model is forced to call.
const planFunctionName = "emit_plan_v1"

// Plan is the boundary type between a natural-language request and the
// sandbox engine. Only Command is authoritative for execution; every other
// field is explanatory or routing metadata for the Prompter.
type Plan struct {
	Version            string   `json:"version"`
	Intent             string   `json:"intent"`
	Command            []string `json:"command"`
	Cwd                string   `json:"cwd"`
	Inputs             []string `json:"inputs"`
	Outputs            []string `json:"outputs"`
	Explain            string   `json:"explain"`
	NeedsClarification bool     `json:"needs_clarification"`
	Question           string   `json:"question"`
}

// Translator turns a natural-language request into a Plan.
type Translator interface {
	Translate(ctx context.Context, request string, extraContext map[string]string) (Plan, error)
}

// planJSONSchema is the JSON Schema enforced on the model's function-call
// arguments. Kept minimal and hand-maintained rather than generated, since
// it mirrors a single fixed Go struct.
var planJSONSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"version":             map[string]any{"type": "string"},
		"intent":              map[string]any{"type": "string"},
		"command":             map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"cwd":                 map[string]any{"type": "string"},
		"inputs":              map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"outputs":             map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"explain":             map[string]any{"type": "string"},
		"needs_clarification": map[string]any{"type": "boolean"},
		"question":            map[string]any{"type": "string"},
	},
	"required": []string{
		"version", "intent", "command", "cwd", "inputs", "outputs", "explain",
		"needs_clarification", "question",
	},
}
