package tools

import (
	"context"
	"fmt"
)

const (
	maxPollOptions       = 10
	maxPollDurationHours = 32 * 24 // Discord's poll duration ceiling
)

// CreatePollTool creates a native poll in the target channel.
type CreatePollTool struct{}

func NewCreatePollTool() *CreatePollTool { return &CreatePollTool{} }

func (t *CreatePollTool) Name() string {
	return "create_poll"
}

func (t *CreatePollTool) Description() string {
	return "Create a native poll with a question and up to 10 answer options."
}

func (t *CreatePollTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{
				"type":        "string",
				"description": "The poll question",
			},
			"options": map[string]any{
				"type":        "array",
				"description": "Answer options, between 2 and 10",
				"items":       map[string]any{"type": "string"},
			},
			"duration_hours": map[string]any{
				"type":        "integer",
				"description": "How long the poll stays open, in hours",
				"default":     24,
			},
			"allow_multiple": map[string]any{
				"type":        "boolean",
				"description": "Whether voters can pick more than one option",
				"default":     false,
			},
			"channel_id": map[string]any{
				"type":        "string",
				"description": "Channel to post the poll in",
			},
		},
		"required": []string{"question", "options"},
	}
}

func (t *CreatePollTool) Execute(ctx context.Context, args map[string]any) *Result {
	question := stringArg(args, "question", "")
	if question == "" {
		return ErrorResult("question is required")
	}
	options := stringSliceArg(args, "options")
	if len(options) < 2 {
		return ErrorResult("a poll needs at least 2 options")
	}
	if len(options) > maxPollOptions {
		return ErrorResult(fmt.Sprintf("a poll supports at most %d options", maxPollOptions))
	}
	duration := intArg(args, "duration_hours", 24)
	if duration < 1 {
		duration = 1
	}
	if duration > maxPollDurationHours {
		duration = maxPollDurationHours
	}

	return &Result{
		Kind:      KindPoll,
		ChannelID: stringArg(args, "channel_id", ""),
		ForLLM:    fmt.Sprintf("Poll %q created with %d options.", question, len(options)),
		Poll: &Poll{
			Question:      question,
			Options:       options,
			DurationHours: duration,
			AllowMultiple: boolArg(args, "allow_multiple", false),
		},
	}
}
