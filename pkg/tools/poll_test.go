package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePoll(t *testing.T) {
	tool := NewCreatePollTool()

	res := tool.Execute(context.Background(), map[string]any{
		"question":       "Pizza night?",
		"options":        []any{"Friday", "Saturday"},
		"duration_hours": float64(48),
		"allow_multiple": true,
		"channel_id":     "conv",
	})

	require.False(t, res.IsError)
	assert.Equal(t, KindPoll, res.Kind)
	assert.Equal(t, "conv", res.ChannelID)
	require.NotNil(t, res.Poll)
	assert.Equal(t, "Pizza night?", res.Poll.Question)
	assert.Equal(t, []string{"Friday", "Saturday"}, res.Poll.Options)
	assert.Equal(t, 48, res.Poll.DurationHours)
	assert.True(t, res.Poll.AllowMultiple)
}

func TestCreatePollValidation(t *testing.T) {
	tool := NewCreatePollTool()
	ctx := context.Background()

	res := tool.Execute(ctx, map[string]any{"options": []any{"a", "b"}})
	assert.True(t, res.IsError, "missing question")

	res = tool.Execute(ctx, map[string]any{"question": "q", "options": []any{"only one"}})
	assert.True(t, res.IsError, "too few options")

	many := make([]any, 11)
	for i := range many {
		many[i] = "option"
	}
	res = tool.Execute(ctx, map[string]any{"question": "q", "options": many})
	assert.True(t, res.IsError, "too many options")
}

func TestCreatePollClampsDuration(t *testing.T) {
	tool := NewCreatePollTool()

	res := tool.Execute(context.Background(), map[string]any{
		"question":       "q",
		"options":        []any{"a", "b"},
		"duration_hours": float64(100000),
	})
	require.False(t, res.IsError)
	assert.Equal(t, maxPollDurationHours, res.Poll.DurationHours)
}
