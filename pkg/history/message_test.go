package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeForModelStripsStatus(t *testing.T) {
	msgs := []Message{
		UserMessage("alice", "hello", []string{"https://example.com/a.jpg"}),
		{Kind: KindToolCall, CallID: "call_1", ToolName: "roll", Arguments: `{"spec":"1d6"}`, Status: "completed"},
		{Kind: KindReasoning, Content: "thinking", Status: "in_progress"},
	}

	clean := SanitizeForModel(msgs)

	for i, m := range clean {
		assert.Empty(t, m.Status, "message %d", i)
	}

	// Everything else survives untouched.
	assert.Equal(t, "hello", clean[0].Content)
	assert.Equal(t, []string{"https://example.com/a.jpg"}, clean[0].MediaURLs)
	assert.Equal(t, "roll", clean[1].ToolName)
	assert.Equal(t, `{"spec":"1d6"}`, clean[1].Arguments)
	assert.Equal(t, "thinking", clean[2].Content)

	// The input slice is not mutated.
	assert.Equal(t, "completed", msgs[1].Status)
}

func TestSerializedSizeGrowsWithContent(t *testing.T) {
	small := serializedSize(AssistantMessage("hi"))
	large := serializedSize(AssistantMessage("a considerably longer reply with much more text"))
	assert.Greater(t, large, small)
	assert.Greater(t, small, 0)
}
