package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bottylabs/botty/pkg/history"
)

// MemoryStore is the slice of the history store the memory tools need.
type MemoryStore interface {
	AddMemory(ctx context.Context, conversationID, content string) (history.Memory, error)
	UpdateMemory(ctx context.Context, conversationID, idPrefix, content string) (history.Memory, error)
	DeleteMemory(ctx context.Context, conversationID, idPrefix string) (history.Memory, error)
	LoadMemories(ctx context.Context, conversationID string) ([]history.Memory, error)
}

func memoryChannelProperty() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "Conversation whose memories to operate on",
	}
}

func memoryError(op string, err error) *Result {
	switch {
	case errors.Is(err, history.ErrMemoryNotFound):
		return ErrorResult("No memory matches that id.")
	case errors.Is(err, history.ErrMemoryAmbiguous):
		return ErrorResult("That memory id prefix matches more than one memory; use a longer prefix.")
	default:
		return ErrorResult(fmt.Sprintf("Failed to %s memory: %v", op, err)).WithError(err)
	}
}

// SaveMemoryTool records a durable note about the conversation.
type SaveMemoryTool struct {
	store MemoryStore
}

func NewSaveMemoryTool(store MemoryStore) *SaveMemoryTool {
	return &SaveMemoryTool{store: store}
}

func (t *SaveMemoryTool) Name() string {
	return "save_memory"
}

func (t *SaveMemoryTool) Description() string {
	return "Save a long-term memory about this conversation. Use for durable facts worth recalling in future sessions."
}

func (t *SaveMemoryTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{
				"type":        "string",
				"description": "The fact to remember",
			},
			"channel_id": memoryChannelProperty(),
		},
		"required": []string{"content"},
	}
}

func (t *SaveMemoryTool) Execute(ctx context.Context, args map[string]any) *Result {
	content := stringArg(args, "content", "")
	if content == "" {
		return ErrorResult("content is required")
	}
	conversationID := stringArg(args, "channel_id", "")

	mem, err := t.store.AddMemory(ctx, conversationID, content)
	if err != nil {
		return memoryError("save", err)
	}
	return &Result{
		Kind:      KindMemorySave,
		ChannelID: conversationID,
		ForLLM:    fmt.Sprintf("Memory saved with id %s.", mem.ID),
		ForUser:   "*A new memory was created.*",
	}
}

// UpdateMemoryTool rewrites an existing memory, addressed by id or prefix.
type UpdateMemoryTool struct {
	store MemoryStore
}

func NewUpdateMemoryTool(store MemoryStore) *UpdateMemoryTool {
	return &UpdateMemoryTool{store: store}
}

func (t *UpdateMemoryTool) Name() string {
	return "update_memory"
}

func (t *UpdateMemoryTool) Description() string {
	return "Replace the content of an existing memory. The id may be a unique prefix of the full memory id."
}

func (t *UpdateMemoryTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"memory_id": map[string]any{
				"type":        "string",
				"description": "Id (or unique prefix) of the memory to update",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "The new content",
			},
			"channel_id": memoryChannelProperty(),
		},
		"required": []string{"memory_id", "content"},
	}
}

func (t *UpdateMemoryTool) Execute(ctx context.Context, args map[string]any) *Result {
	id := stringArg(args, "memory_id", "")
	content := stringArg(args, "content", "")
	if id == "" || content == "" {
		return ErrorResult("memory_id and content are required")
	}
	conversationID := stringArg(args, "channel_id", "")

	mem, err := t.store.UpdateMemory(ctx, conversationID, id, content)
	if err != nil {
		return memoryError("update", err)
	}
	return &Result{
		Kind:      KindMemoryUpdate,
		ChannelID: conversationID,
		ForLLM:    fmt.Sprintf("Memory %s updated.", mem.ID),
		ForUser:   "*A memory was updated.*",
	}
}

// DeleteMemoryTool removes a memory, addressed by id or prefix.
type DeleteMemoryTool struct {
	store MemoryStore
}

func NewDeleteMemoryTool(store MemoryStore) *DeleteMemoryTool {
	return &DeleteMemoryTool{store: store}
}

func (t *DeleteMemoryTool) Name() string {
	return "delete_memory"
}

func (t *DeleteMemoryTool) Description() string {
	return "Delete a memory that is no longer true or relevant. The id may be a unique prefix of the full memory id."
}

func (t *DeleteMemoryTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"memory_id": map[string]any{
				"type":        "string",
				"description": "Id (or unique prefix) of the memory to delete",
			},
			"channel_id": memoryChannelProperty(),
		},
		"required": []string{"memory_id"},
	}
}

func (t *DeleteMemoryTool) Execute(ctx context.Context, args map[string]any) *Result {
	id := stringArg(args, "memory_id", "")
	if id == "" {
		return ErrorResult("memory_id is required")
	}
	conversationID := stringArg(args, "channel_id", "")

	mem, err := t.store.DeleteMemory(ctx, conversationID, id)
	if err != nil {
		return memoryError("delete", err)
	}
	return &Result{
		Kind:      KindMemoryDelete,
		ChannelID: conversationID,
		ForLLM:    fmt.Sprintf("Memory %s deleted.", mem.ID),
		ForUser:   "*A memory was deleted.*",
	}
}

// ListMemoriesTool returns the stored memories to the model. Its output is
// never shown to the user.
type ListMemoriesTool struct {
	store MemoryStore
}

func NewListMemoriesTool(store MemoryStore) *ListMemoriesTool {
	return &ListMemoriesTool{store: store}
}

func (t *ListMemoriesTool) Name() string {
	return "list_memories"
}

func (t *ListMemoriesTool) Description() string {
	return "List all memories stored for this conversation, with their ids."
}

func (t *ListMemoriesTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"channel_id": memoryChannelProperty(),
		},
		"required": []string{},
	}
}

func (t *ListMemoriesTool) Execute(ctx context.Context, args map[string]any) *Result {
	conversationID := stringArg(args, "channel_id", "")

	mems, err := t.store.LoadMemories(ctx, conversationID)
	if err != nil {
		return memoryError("list", err)
	}
	if len(mems) == 0 {
		return &Result{Kind: KindMemoryList, ChannelID: conversationID, ForLLM: "No memories stored."}
	}

	var b strings.Builder
	for _, m := range mems {
		fmt.Fprintf(&b, "- [%s] %s\n", m.ID, m.Content)
	}
	return &Result{
		Kind:      KindMemoryList,
		ChannelID: conversationID,
		ForLLM:    strings.TrimRight(b.String(), "\n"),
	}
}
