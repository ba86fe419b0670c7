package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name    string
	params  map[string]any
	execute func(ctx context.Context, args map[string]any) *Result
	gotArgs map[string]any
}

func (t *stubTool) Name() string        { return t.name }
func (t *stubTool) Description() string { return "stub" }

func (t *stubTool) Parameters() map[string]any {
	if t.params != nil {
		return t.params
	}
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (t *stubTool) Execute(ctx context.Context, args map[string]any) *Result {
	t.gotArgs = args
	if t.execute != nil {
		return t.execute(ctx, args)
	}
	return TextResult("ok")
}

func channelAwareParams() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content":    map[string]any{"type": "string"},
			"channel_id": map[string]any{"type": "string"},
		},
		"required": []string{"content"},
	}
}

func TestDefinitionsSortedAndDefaulted(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubTool{name: "zeta", params: channelAwareParams()})
	reg.Register(&stubTool{name: "alpha"})
	reg.Register(&stubTool{name: "mid", params: channelAwareParams()})

	defs := reg.DefinitionsFor("conv-42")
	require.Len(t, defs, 3)
	assert.Equal(t, "alpha", defs[0].Name)
	assert.Equal(t, "mid", defs[1].Name)
	assert.Equal(t, "zeta", defs[2].Name)

	props := defs[2].Parameters["properties"].(map[string]any)
	channel := props["channel_id"].(map[string]any)
	assert.Equal(t, "conv-42", channel["default"])
}

func TestDefinitionsDoNotMutateToolSchema(t *testing.T) {
	tool := &stubTool{name: "msg", params: channelAwareParams()}
	reg := NewRegistry()
	reg.Register(tool)

	reg.DefinitionsFor("conv-1")
	reg.DefinitionsFor("conv-2")

	props := tool.Parameters()["properties"].(map[string]any)
	channel := props["channel_id"].(map[string]any)
	_, has := channel["default"]
	assert.False(t, has, "registry must copy schemas, not write defaults into them")
}

func TestExecuteInjectsChannelDefault(t *testing.T) {
	tool := &stubTool{name: "msg", params: channelAwareParams()}
	reg := NewRegistry()
	reg.Register(tool)

	res := reg.Execute(context.Background(), "conv-7", "msg", `{"content":"hi"}`)
	require.NotNil(t, res)
	assert.Equal(t, "conv-7", tool.gotArgs["channel_id"])

	// An explicit target wins over the injected default.
	reg.Execute(context.Background(), "conv-7", "msg", `{"content":"hi","channel_id":"other"}`)
	assert.Equal(t, "other", tool.gotArgs["channel_id"])
}

func TestExecuteMalformedArgs(t *testing.T) {
	tool := &stubTool{name: "noop"}
	reg := NewRegistry()
	reg.Register(tool)

	res := reg.Execute(context.Background(), "conv", "noop", `{not json`)
	require.NotNil(t, res)
	assert.False(t, res.IsError)
	assert.Empty(t, tool.gotArgs)
}

func TestExecuteUnknownTool(t *testing.T) {
	reg := NewRegistry()
	res := reg.Execute(context.Background(), "conv", "no_such_tool", `{}`)
	assert.Nil(t, res)
}

func TestExecuteContainsPanic(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubTool{
		name: "boom",
		execute: func(ctx context.Context, args map[string]any) *Result {
			panic("kaput")
		},
	})

	res := reg.Execute(context.Background(), "conv", "boom", `{}`)
	require.NotNil(t, res)
	assert.True(t, res.IsError)
	assert.Contains(t, res.ForLLM, "kaput")
}

func TestExecuteNilResult(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubTool{
		name: "silent",
		execute: func(ctx context.Context, args map[string]any) *Result {
			return nil
		},
	})

	res := reg.Execute(context.Background(), "conv", "silent", `{}`)
	require.NotNil(t, res)
	assert.True(t, res.IsError)
}
