package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/bottylabs/botty/pkg/history"
	"github.com/bottylabs/botty/pkg/logger"
)

// OpenAI implements Completer on the OpenAI chat completions API.
type OpenAI struct {
	client *openai.Client
}

func NewOpenAI(apiKey, apiBase string) *OpenAI {
	reqOpts := []option.RequestOption{}
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	if apiBase != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimRight(apiBase, "/")))
	}
	client := openai.NewClient(reqOpts...)
	return &OpenAI{client: &client}
}

func (o *OpenAI) Complete(ctx context.Context, req *Request) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: buildOpenAIMessages(req),
	}
	if len(req.Tools) > 0 {
		params.Tools = buildOpenAITools(req)
		params.ToolChoice.OfAuto = openai.String(string(openai.ChatCompletionToolChoiceOptionAutoAuto))
	}
	if req.ReasoningEffort != "" {
		params.ReasoningEffort = shared.ReasoningEffort(req.ReasoningEffort)
	}
	if req.EnableWebSearch {
		params.WebSearchOptions = openai.ChatCompletionNewParamsWebSearchOptions{}
	}
	if req.MaxOutputTokens > 0 {
		params.MaxCompletionTokens = openai.Opt(int64(req.MaxOutputTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("OpenAI API request failed (status=%d): %w", apiErr.StatusCode, err)
		}
		return nil, fmt.Errorf("OpenAI API request failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI API returned no choices")
	}

	choice := resp.Choices[0]
	out := &Response{OutputText: choice.Message.Content}
	for _, call := range choice.Message.ToolCalls {
		switch v := call.AsAny().(type) {
		case openai.ChatCompletionMessageFunctionToolCall:
			out.Items = append(out.Items, OutputItem{
				Kind:      ItemFunctionCall,
				CallID:    v.ID,
				ToolName:  v.Function.Name,
				Arguments: v.Function.Arguments,
			})
		}
	}
	if choice.Message.Content != "" {
		out.Items = append(out.Items, OutputItem{Kind: ItemMessage, Text: choice.Message.Content})
	}
	return out, nil
}

// buildOpenAIMessages replays the transcript in the chat-completions shape.
// Tool calls and their outputs must appear strictly paired; because trimming
// and persistence failures can leave unpaired records in the transcript, an
// empty output is synthesized for any call without one and results without a
// preceding call are dropped.
func buildOpenAIMessages(req *Request) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+1)
	if req.Instructions != "" {
		out = append(out, openai.SystemMessage(req.Instructions))
	}

	msgs := req.History
	for i := 0; i < len(msgs); i++ {
		msg := msgs[i]
		switch msg.Kind {
		case history.KindUser:
			out = append(out, buildUserMessage(framedUserText(msg), msg.MediaURLs))

		case history.KindAssistant:
			assistant := openai.ChatCompletionAssistantMessageParam{}
			assistant.Content.OfString = openai.String(msg.Content)
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})

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

			assistant := openai.ChatCompletionAssistantMessageParam{}
			for _, call := range calls {
				args := call.Arguments
				if args == "" {
					args = "{}"
				}
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: call.CallID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      call.ToolName,
							Arguments: args,
						},
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
			for _, call := range calls {
				out = append(out, openai.ToolMessage(outputs[call.CallID], call.CallID))
			}

		case history.KindToolResult:
			// Orphaned result with no preceding call.
			logger.DebugCF("completion", "Dropping orphaned tool result from replay",
				map[string]any{"call_id": msg.CallID})

		case history.KindSystemNote:
			if len(msg.MediaURLs) > 0 {
				out = append(out, buildUserMessage(msg.Content, msg.MediaURLs))
			} else {
				out = append(out, openai.SystemMessage(msg.Content))
			}

		case history.KindDeveloperNote:
			out = append(out, openai.DeveloperMessage(msg.Content))

		case history.KindReasoning:
			// Reasoning traces are persisted for the record but never replayed.
		}
	}
	return out
}

func buildUserMessage(text string, mediaURLs []string) openai.ChatCompletionMessageParamUnion {
	if len(mediaURLs) == 0 {
		return openai.UserMessage(text)
	}
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(mediaURLs)+1)
	parts = append(parts, openai.TextContentPart(text))
	for _, u := range mediaURLs {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: u}))
	}
	return openai.UserMessage(parts)
}

// framedUserText prefixes the sender's display name so the model can tell
// speakers apart in multi-user channels.
func framedUserText(msg history.Message) string {
	if msg.Username == "" {
		return msg.Content
	}
	return fmt.Sprintf("%s: %s", msg.Username, msg.Content)
}

func buildOpenAITools(req *Request) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(req.Tools))
	for _, def := range req.Tools {
		fn := shared.FunctionDefinitionParam{
			Name:        def.Name,
			Description: openai.String(def.Description),
			Parameters:  shared.FunctionParameters(def.Parameters),
		}
		out = append(out, openai.ChatCompletionFunctionTool(fn))
	}
	return out
}
