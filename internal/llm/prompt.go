package llm

import "github.com/sashabaranov/go-openai"

const systemPrompt = `You are a shell command planner. Given a natural-language
request, respond only by calling emit_plan_v1 with a single concrete shell
command (as an argv list, never a shell string), the working directory it
should run from, and a short explanation. If the request is ambiguous or
destructive enough to need confirmation, set needs_clarification and ask a
specific question instead of guessing.`

// fewShots seeds the model with one direct example and one
// needs-clarification example, matching the two-shot pattern the original
// prompt builder shipped.
var fewShots = []openai.ChatCompletionMessage{
	{
		Role:    openai.ChatMessageRoleUser,
		Content: "list python files larger than 10 MB modified this week",
	},
	{
		Role: openai.ChatMessageRoleAssistant,
		ToolCalls: []openai.ToolCall{{
			ID:   "shot_1",
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name: planFunctionName,
				Arguments: `{"version":"1.0","intent":"file_search","command":["find",".","-type","f","-name","*.py","-mtime","-7","-size","+10M","-print"],"cwd":".","inputs":[],"outputs":[],"explain":"Find *.py changed in 7 days and larger than 10MB.","needs_clarification":false,"question":""}`,
			},
		}},
	},
	{
		Role:       openai.ChatMessageRoleTool,
		ToolCallID: "shot_1",
		Content:    "plan executed",
	},
	{
		Role:    openai.ChatMessageRoleUser,
		Content: "delete the big logs",
	},
	{
		Role: openai.ChatMessageRoleAssistant,
		ToolCalls: []openai.ToolCall{{
			ID:   "shot_2",
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      planFunctionName,
				Arguments: `{"version":"1.0","intent":"file_delete","command":["echo","awaiting confirmation"],"cwd":".","inputs":[],"outputs":[],"explain":"Deletion is destructive; scope needs confirmation first.","needs_clarification":true,"question":"Which directory and size threshold? Preview first?"}`,
			},
		}},
	},
	{
		Role:       openai.ChatMessageRoleTool,
		ToolCallID: "shot_2",
		Content:    "plan executed",
	},
}
