package completion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bottylabs/botty/pkg/history"
)

func TestBuildOpenAIMessagesPairsToolCalls(t *testing.T) {
	req := &Request{
		Instructions: "be helpful",
		History: []history.Message{
			history.UserMessage("alice", "roll for me", nil),
			history.ToolCallMessage("call_1", "roll", `{"dice_value":6}`),
			history.ToolResultMessage("call_1", "you got 4"),
			history.AssistantMessage("You rolled a 4."),
		},
	}

	msgs := buildOpenAIMessages(req)
	require.Len(t, msgs, 5)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	require.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "call_1", msgs[3].OfTool.ToolCallID)
	assert.NotNil(t, msgs[4].OfAssistant)
}

func TestBuildOpenAIMessagesSynthesizesMissingOutput(t *testing.T) {
	req := &Request{
		History: []history.Message{
			history.ToolCallMessage("call_a", "ping", "{}"),
			history.ToolCallMessage("call_b", "roll", `{"dice_value":6}`),
			history.ToolResultMessage("call_b", "3"),
		},
	}

	msgs := buildOpenAIMessages(req)
	// One assistant message carrying both calls, then one tool message per
	// call, the missing output replaced with an empty one.
	require.Len(t, msgs, 3)
	require.NotNil(t, msgs[0].OfAssistant)
	assert.Len(t, msgs[0].OfAssistant.ToolCalls, 2)
	require.NotNil(t, msgs[1].OfTool)
	assert.Equal(t, "call_a", msgs[1].OfTool.ToolCallID)
	require.NotNil(t, msgs[2].OfTool)
	assert.Equal(t, "call_b", msgs[2].OfTool.ToolCallID)
}

func TestBuildOpenAIMessagesDropsOrphansAndReasoning(t *testing.T) {
	req := &Request{
		History: []history.Message{
			history.ToolResultMessage("call_lost", "stale output"),
			history.ReasoningTrace("pondering"),
			history.UserMessage("bob", "hi", nil),
		},
	}

	msgs := buildOpenAIMessages(req)
	require.Len(t, msgs, 1)
	assert.NotNil(t, msgs[0].OfUser)
}

func TestBuildOpenAIMessagesNotesAndMedia(t *testing.T) {
	req := &Request{
		History: []history.Message{
			history.DeveloperNote("the poll already went out"),
			history.SystemNote("plain note"),
			{Kind: history.KindSystemNote, Content: "Generated image available.", MediaURLs: []string{"https://cdn.example/img.jpg"}},
			history.UserMessage("alice", "nice", []string{"https://cdn.example/photo.jpg"}),
		},
	}

	msgs := buildOpenAIMessages(req)
	require.Len(t, msgs, 4)
	assert.NotNil(t, msgs[0].OfDeveloper)
	assert.NotNil(t, msgs[1].OfSystem)
	// Media-bearing notes and user turns become multipart user messages.
	require.NotNil(t, msgs[2].OfUser)
	assert.NotNil(t, msgs[2].OfUser.Content.OfArrayOfContentParts)
	require.NotNil(t, msgs[3].OfUser)
	assert.NotNil(t, msgs[3].OfUser.Content.OfArrayOfContentParts)
}

func TestFramedUserText(t *testing.T) {
	assert.Equal(t, "alice: hi", framedUserText(history.UserMessage("alice", "hi", nil)))
	assert.Equal(t, "hi", framedUserText(history.Message{Kind: history.KindUser, Content: "hi"}))
}
