package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, budget int) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state.db"), budget)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAppendPreservesOrder(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	_, err := store.Append(ctx, "conv", UserMessage("alice", "first", nil), false)
	require.NoError(t, err)
	_, err = store.Append(ctx, "conv", AssistantMessage("second"), false)
	require.NoError(t, err)
	msgs, err := store.Append(ctx, "conv", UserMessage("bob", "third", nil), false)
	require.NoError(t, err)

	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
	assert.Equal(t, "third", msgs[2].Content)
	assert.Equal(t, KindAssistant, msgs[1].Kind)
}

func TestLoadUnknownConversation(t *testing.T) {
	store := newTestStore(t, 0)

	msgs, err := store.Load(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestResetIdempotent(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	_, err := store.Append(ctx, "conv", UserMessage("alice", "hello", nil), false)
	require.NoError(t, err)

	msgs, err := store.Reset(ctx, "conv")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	// Resetting again must succeed with the same result.
	msgs, err = store.Reset(ctx, "conv")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	msgs, err = store.Load(ctx, "conv")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestConversationIsolation(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	_, err := store.Append(ctx, "a", UserMessage("alice", "for a", nil), false)
	require.NoError(t, err)
	_, err = store.Append(ctx, "b", UserMessage("bob", "for b", nil), false)
	require.NoError(t, err)

	_, err = store.Reset(ctx, "a")
	require.NoError(t, err)

	msgs, err := store.Load(ctx, "b")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "for b", msgs[0].Content)
}

func TestTrimRespectsBudget(t *testing.T) {
	one := serializedSize(UserMessage("u", "padding-0", nil))
	budget := one * 3
	store := newTestStore(t, budget)
	ctx := context.Background()

	var msgs []Message
	var err error
	for i := 0; i < 10; i++ {
		msgs, err = store.Append(ctx, "conv", UserMessage("u", "padding-0", nil), true)
		require.NoError(t, err)
	}

	total := 0
	for _, m := range msgs {
		total += serializedSize(m)
	}
	assert.LessOrEqual(t, total, budget)
	assert.Less(t, len(msgs), 10)
	assert.NotEmpty(t, msgs)
}

func TestTrimCutsAtUserBoundary(t *testing.T) {
	seq := []Message{
		UserMessage("alice", "old question", nil),
		AssistantMessage("old answer"),
		UserMessage("bob", "new question", nil),
		AssistantMessage("partial"),
		AssistantMessage("more"),
	}
	size := func(ms ...Message) int {
		total := 0
		for _, m := range ms {
			total += serializedSize(m)
		}
		return total
	}

	// Budget admits the last four messages, which would split bob's exchange
	// from alice's answer mid-turn. The kept window must instead start at the
	// newest user message inside the affordable window.
	budget := size(seq[1], seq[2], seq[3], seq[4])
	keepFrom := trimBoundary(seq, budget, func(m Message) (Message, bool) { return m, true })
	assert.Equal(t, 2, keepFrom)
	assert.Equal(t, KindUser, seq[keepFrom].Kind)
}

func TestTrimNeverLeadsWithToolResult(t *testing.T) {
	seq := []Message{
		ToolCallMessage("call_1", "roll", `{"spec":"1d20"}`),
		ToolResultMessage("call_1", "17"),
		AssistantMessage("you rolled 17"),
		AssistantMessage("anything else?"),
	}
	size := 0
	for _, m := range seq[1:] {
		size += serializedSize(m)
	}

	// The raw cutoff lands on the tool result, which would orphan it from its
	// call. It must be dropped along with everything older.
	keepFrom := trimBoundary(seq, size, func(m Message) (Message, bool) { return m, true })
	assert.Equal(t, 2, keepFrom)
	assert.Equal(t, KindAssistant, seq[keepFrom].Kind)
}

func TestTrimKeepsAtLeastOneMessage(t *testing.T) {
	store := newTestStore(t, 10)
	ctx := context.Background()

	big := UserMessage("alice", "a message far larger than the whole budget allows", nil)
	require.Greater(t, serializedSize(big), 10)

	msgs, err := store.Append(ctx, "conv", big, true)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, big.Content, msgs[0].Content)
}

func TestTrimDisabledWithoutBudget(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	var msgs []Message
	var err error
	for i := 0; i < 50; i++ {
		msgs, err = store.Append(ctx, "conv", AssistantMessage("kept forever"), true)
		require.NoError(t, err)
	}
	assert.Len(t, msgs, 50)
}
