package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrMemoryNotFound is returned when an id prefix matches no memory.
	ErrMemoryNotFound = errors.New("memory not found")
	// ErrMemoryAmbiguous is returned when an id prefix matches more than one memory.
	ErrMemoryAmbiguous = errors.New("memory id prefix is ambiguous")
)

// Memory is a durable free-text note curated per conversation. Memories live
// outside the transcript and are never touched by the trimming policy.
type Memory struct {
	ID             string
	ConversationID string
	Content        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (s *Store) AddMemory(ctx context.Context, conversationID, content string) (Memory, error) {
	now := time.Now().UTC()
	mem := Memory{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Content:        content,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (id, conversation_id, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		mem.ID, mem.ConversationID, mem.Content, mem.CreatedAt, mem.UpdatedAt)
	if err != nil {
		return Memory{}, &PersistenceError{Op: "add memory", Err: err}
	}
	return mem, nil
}

// LoadMemories returns all memories for a conversation, oldest first.
func (s *Store) LoadMemories(ctx context.Context, conversationID string) ([]Memory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, content, created_at, updated_at
		 FROM memories WHERE conversation_id = ? ORDER BY created_at, id`,
		conversationID)
	if err != nil {
		return nil, &PersistenceError{Op: "load memories", Err: err}
	}
	defer rows.Close()

	mems := []Memory{}
	for rows.Next() {
		var m Memory
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Content, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, &PersistenceError{Op: "load memories", Err: err}
		}
		mems = append(mems, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "load memories", Err: err}
	}
	return mems, nil
}

// ResolveMemory resolves an id or unambiguous id prefix to a memory.
func (s *Store) ResolveMemory(ctx context.Context, conversationID, idPrefix string) (Memory, error) {
	if idPrefix == "" {
		return Memory{}, ErrMemoryNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, content, created_at, updated_at
		 FROM memories WHERE conversation_id = ? AND id LIKE ? || '%' LIMIT 2`,
		conversationID, idPrefix)
	if err != nil {
		return Memory{}, &PersistenceError{Op: "resolve memory", Err: err}
	}
	defer rows.Close()

	var matches []Memory
	for rows.Next() {
		var m Memory
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Content, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return Memory{}, &PersistenceError{Op: "resolve memory", Err: err}
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return Memory{}, &PersistenceError{Op: "resolve memory", Err: err}
	}

	switch len(matches) {
	case 0:
		return Memory{}, ErrMemoryNotFound
	case 1:
		return matches[0], nil
	default:
		return Memory{}, ErrMemoryAmbiguous
	}
}

// UpdateMemory resolves the id prefix and replaces the memory's content.
func (s *Store) UpdateMemory(ctx context.Context, conversationID, idPrefix, content string) (Memory, error) {
	mem, err := s.ResolveMemory(ctx, conversationID, idPrefix)
	if err != nil {
		return Memory{}, err
	}
	mem.Content = content
	mem.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`UPDATE memories SET content = ?, updated_at = ? WHERE id = ?`,
		mem.Content, mem.UpdatedAt, mem.ID)
	if err != nil {
		return Memory{}, &PersistenceError{Op: "update memory", Err: err}
	}
	return mem, nil
}

// DeleteMemory resolves the id prefix and removes the memory.
func (s *Store) DeleteMemory(ctx context.Context, conversationID, idPrefix string) (Memory, error) {
	mem, err := s.ResolveMemory(ctx, conversationID, idPrefix)
	if err != nil {
		return Memory{}, err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, mem.ID)
	if err != nil {
		return Memory{}, &PersistenceError{Op: "delete memory", Err: err}
	}
	return mem, nil
}

// ClearMemories removes every memory for a conversation. Idempotent.
func (s *Store) ClearMemories(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM memories WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return &PersistenceError{Op: "clear memories", Err: err}
	}
	return nil
}
