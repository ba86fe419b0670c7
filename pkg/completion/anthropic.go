package completion

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/bottylabs/botty/pkg/history"
	"github.com/bottylabs/botty/pkg/logger"
	"github.com/bottylabs/botty/pkg/tools"
)

const anthropicDefaultMaxTokens = 4096

// Anthropic implements Completer on the Anthropic messages API. Reasoning
// effort is not part of this API, so the request field is ignored here; the
// policy layer never attaches it for models outside the capability family.
type Anthropic struct {
	client *anthropic.Client
}

func NewAnthropic(apiKey string) *Anthropic {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Anthropic{client: &client}
}

func (a *Anthropic) Complete(ctx context.Context, req *Request) (*Response, error) {
	maxTokens := int64(anthropicDefaultMaxTokens)
	if req.MaxOutputTokens > 0 {
		maxTokens = int64(req.MaxOutputTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  buildAnthropicMessages(req.History),
		MaxTokens: maxTokens,
	}
	if req.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
	}
	if len(req.Tools) > 0 {
		params.Tools = buildAnthropicTools(req.Tools)
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("Anthropic API request failed: %w", err)
	}

	out := &Response{}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			tb := block.AsText()
			out.OutputText += tb.Text
			out.Items = append(out.Items, OutputItem{Kind: ItemMessage, Text: tb.Text})
		case "tool_use":
			tu := block.AsToolUse()
			out.Items = append(out.Items, OutputItem{
				Kind:      ItemFunctionCall,
				CallID:    tu.ID,
				ToolName:  tu.Name,
				Arguments: string(tu.Input),
			})
		}
	}
	return out, nil
}

// buildAnthropicMessages replays the transcript in the messages-API shape.
// All tool_result blocks for an assistant tool_use turn must land in a single
// user message immediately after it; consecutive results are merged and a
// placeholder result is synthesized for calls the transcript lost.
func buildAnthropicMessages(msgs []history.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for i := 0; i < len(msgs); i++ {
		msg := msgs[i]
		switch msg.Kind {
		case history.KindUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(framedUserText(msg))))

		case history.KindAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))

		case history.KindToolCall:
			var calls []history.Message
			for i < len(msgs) && msgs[i].Kind == history.KindToolCall {
				calls = append(calls, msgs[i])
				i++
			}
			outputs := map[string]string{}
			for i < len(msgs) && msgs[i].Kind == history.KindToolResult {
				outputs[msgs[i].CallID] = msgs[i].Output
				i++
			}
			i--

			useBlocks := make([]anthropic.ContentBlockParamUnion, 0, len(calls))
			resultBlocks := make([]anthropic.ContentBlockParamUnion, 0, len(calls))
			for _, call := range calls {
				var args map[string]any
				if call.Arguments != "" {
					_ = json.Unmarshal([]byte(call.Arguments), &args)
				}
				if args == nil {
					args = map[string]any{}
				}
				useBlocks = append(useBlocks, anthropic.NewToolUseBlock(call.CallID, args, call.ToolName))
				resultBlocks = append(resultBlocks, anthropic.NewToolResultBlock(call.CallID, outputs[call.CallID], false))
			}
			out = append(out, anthropic.NewAssistantMessage(useBlocks...))
			out = append(out, anthropic.NewUserMessage(resultBlocks...))

		case history.KindToolResult:
			logger.DebugCF("completion", "Dropping orphaned tool result from replay",
				map[string]any{"call_id": msg.CallID})

		case history.KindSystemNote, history.KindDeveloperNote:
			// The messages API has no system role mid-conversation; steering
			// notes ride along as bracketed user text.
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewTextBlock(fmt.Sprintf("[system note] %s", msg.Content))))

		case history.KindReasoning:
			// Never replayed.
		}
	}
	return out
}

func buildAnthropicTools(defs []tools.Definition) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		tool := anthropic.ToolParam{
			Name: def.Name,
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: def.Parameters["properties"],
			},
		}
		if def.Description != "" {
			tool.Description = anthropic.String(def.Description)
		}
		if req, ok := def.Parameters["required"].([]any); ok {
			required := make([]string, 0, len(req))
			for _, r := range req {
				if s, ok := r.(string); ok {
					required = append(required, s)
				}
			}
			tool.InputSchema.Required = required
		} else if req, ok := def.Parameters["required"].([]string); ok {
			tool.InputSchema.Required = req
		}
		result = append(result, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return result
}
