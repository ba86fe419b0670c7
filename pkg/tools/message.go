package tools

import "context"

// QuickMessageTool sends a short standalone text message, optionally to a
// different channel than the one the conversation is happening in.
type QuickMessageTool struct{}

func NewQuickMessageTool() *QuickMessageTool { return &QuickMessageTool{} }

func (t *QuickMessageTool) Name() string {
	return "quick_message"
}

func (t *QuickMessageTool) Description() string {
	return "Send a short message immediately, before the rest of your reply. Can target a different channel for cross-channel delivery."
}

func (t *QuickMessageTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{
				"type":        "string",
				"description": "The message text to send",
			},
			"channel_id": map[string]any{
				"type":        "string",
				"description": "Channel to deliver the message to",
			},
		},
		"required": []string{"content"},
	}
}

func (t *QuickMessageTool) Execute(ctx context.Context, args map[string]any) *Result {
	content := stringArg(args, "content", "")
	if content == "" {
		return ErrorResult("content is required")
	}
	return &Result{
		Kind:      KindText,
		ChannelID: stringArg(args, "channel_id", ""),
		ForLLM:    "Message sent.",
		ForUser:   content,
	}
}
