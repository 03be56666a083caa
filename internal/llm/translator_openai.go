package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sashabaranov/go-openai"
)

// Config holds everything an OpenAITranslator needs to talk to the API. It
// is built once by the caller, not read ambiently from the environment
// mid-request.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// LoadDotenvConfig populates a Config from OPENAI_API_KEY, OPENAI_BASE_URL,
// and OVLSH_OPENAI_MODEL, loading a local .env file first if one is present.
// It's a convenience for local development, not a requirement: callers can
// build a Config directly instead.
func LoadDotenvConfig(envFile string) (Config, error) {
	_ = godotenv.Load(envFile)
	cfg := Config{Model: "gpt-4.1-mini"}
	cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	cfg.BaseURL = os.Getenv("OPENAI_BASE_URL")
	if m := os.Getenv("OVLSH_OPENAI_MODEL"); m != "" {
		cfg.Model = m
	}
	if cfg.APIKey == "" {
		return cfg, fmt.Errorf("llm: OPENAI_API_KEY not set")
	}
	return cfg, nil
}

// OpenAITranslator is a Translator backed by an OpenAI-compatible chat
// completions API, forcing the model to answer via a single tool call that
// matches the Plan schema.
type OpenAITranslator struct {
	client *openai.Client
	model  string
}

// NewOpenAITranslator builds a Translator from an explicit Config.
func NewOpenAITranslator(cfg Config) *OpenAITranslator {
	oaiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaiCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4.1-mini"
	}
	return &OpenAITranslator{
		client: openai.NewClientWithConfig(oaiCfg),
		model:  model,
	}
}

func (t *OpenAITranslator) Translate(ctx context.Context, request string, extraContext map[string]string) (Plan, error) {
	messages := append([]openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}, fewShots...)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: formatUserMessage(request, extraContext),
	})

	fn := openai.FunctionDefinition{
		Name:        planFunctionName,
		Description: fmt.Sprintf("Emit a shell plan, schema version %s.", PlanVersion),
		Parameters:  planJSONSchema,
	}

	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    t.model,
		Messages: messages,
		Tools: []openai.Tool{{
			Type:     openai.ToolTypeFunction,
			Function: &fn,
		}},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: planFunctionName},
		},
		Temperature: 0,
	})
	if err != nil {
		return Plan{}, fmt.Errorf("llm: chat completion: %w", err)
	}

	args, err := extractPlanArguments(resp)
	if err != nil {
		return Plan{}, err
	}

	var plan Plan
	if err := json.Unmarshal([]byte(args), &plan); err != nil {
		return Plan{}, fmt.Errorf("llm: decoding plan arguments: %w", err)
	}
	if plan.Version != PlanVersion {
		return Plan{}, fmt.Errorf("llm: unsupported plan version %q", plan.Version)
	}
	return plan, nil
}

func formatUserMessage(request string, extra map[string]string) string {
	if len(extra) == 0 {
		return request
	}
	var b strings.Builder
	b.WriteString(request)
	b.WriteString("\n\n[context]\n")
	for k, v := range extra {
		fmt.Fprintf(&b, "%s: %s\n", k, v)
	}
	return b.String()
}

func extractPlanArguments(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: empty response")
	}
	for _, call := range resp.Choices[0].Message.ToolCalls {
		if call.Function.Name == planFunctionName {
			return call.Function.Arguments, nil
		}
	}
	return "", fmt.Errorf("llm: model did not call %s", planFunctionName)
}
