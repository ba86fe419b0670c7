package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/bottylabs/botty/pkg/logger"
)

// PersistenceError wraps a durable-store I/O failure. Callers log it and keep
// going on their in-memory view; it never aborts the user-visible interaction.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("history %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store persists conversation transcripts and long-term memories in SQLite.
// Transcript growth is bounded by a character budget; memories are exempt.
type Store struct {
	db     *sql.DB
	budget int
}

// Open opens (creating if needed) the SQLite database at path. charBudget is
// the maximum cumulative serialized size kept per conversation; <= 0 disables
// trimming.
func Open(path string, charBudget int) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}

	s := &Store{db: db, budget: charBudget}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			payload TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id)`,
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_conversation ON memories(conversation_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns all messages for a conversation, oldest first. An unknown
// conversation id yields an empty slice, never an error. Rows whose payload
// fails to decode are skipped.
func (s *Store) Load(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM messages WHERE conversation_id = ? ORDER BY seq`,
		conversationID)
	if err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, &PersistenceError{Op: "load", Err: err}
		}
		var m Message
		if err := json.Unmarshal([]byte(payload), &m); err != nil {
			logger.WarnCF("history", "Skipping undecodable message payload",
				map[string]any{"conversation_id": conversationID, "error": err.Error()})
			continue
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	return msgs, nil
}

// Append persists one message, applies the trimming policy when autoTrim is
// set, and returns the reloaded post-trim history.
func (s *Store) Append(ctx context.Context, conversationID string, msg Message, autoTrim bool) ([]Message, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, &PersistenceError{Op: "append", Err: err}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, payload) VALUES (?, ?, ?)`,
		uuid.NewString(), conversationID, string(payload))
	if err != nil {
		return nil, &PersistenceError{Op: "append", Err: err}
	}

	if autoTrim && s.budget > 0 {
		if err := s.trim(ctx, conversationID); err != nil {
			return nil, err
		}
	}
	return s.Load(ctx, conversationID)
}

// Reset deletes all messages for a conversation. Idempotent: resetting an
// already-empty conversation succeeds and returns an empty history.
func (s *Store) Reset(ctx context.Context, conversationID string) ([]Message, error) {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return nil, &PersistenceError{Op: "reset", Err: err}
	}
	return []Message{}, nil
}

// trim applies the character-budget policy: walk newest to oldest accumulating
// serialized size, stop at the first message whose inclusion would exceed the
// budget, then prefer cutting back to the last user-role boundary seen during
// the walk so an exchange is never split mid-turn. Messages outside the kept
// window are deleted from durable storage.
func (s *Store) trim(ctx context.Context, conversationID string) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, payload FROM messages WHERE conversation_id = ? ORDER BY seq`,
		conversationID)
	if err != nil {
		return &PersistenceError{Op: "trim", Err: err}
	}

	type row struct {
		seq     int64
		msg     Message
		decoded bool
	}
	var all []row
	for rows.Next() {
		var r row
		var payload string
		if err := rows.Scan(&r.seq, &payload); err != nil {
			rows.Close()
			return &PersistenceError{Op: "trim", Err: err}
		}
		if err := json.Unmarshal([]byte(payload), &r.msg); err == nil {
			r.decoded = true
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return &PersistenceError{Op: "trim", Err: err}
	}
	rows.Close()

	keepFrom := trimBoundary(all, s.budget, func(r row) (Message, bool) { return r.msg, r.decoded })
	if keepFrom <= 0 {
		return nil
	}

	dropped := keepFrom
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id = ? AND seq < ?`,
		conversationID, all[keepFrom].seq)
	if err != nil {
		return &PersistenceError{Op: "trim", Err: err}
	}

	logger.DebugCF("history", "Trimmed conversation history",
		map[string]any{"conversation_id": conversationID, "dropped": dropped, "kept": len(all) - dropped})
	return nil
}

// trimBoundary returns the chronological index of the first message to keep.
func trimBoundary[T any](all []T, budget int, get func(T) (Message, bool)) int {
	n := len(all)
	total := 0
	keepFrom := 0
	lastUserKept := -1

	for i := n - 1; i >= 0; i-- {
		msg, ok := get(all[i])
		size := 0
		if ok {
			size = serializedSize(msg)
		}
		if total+size > budget {
			keepFrom = i + 1
			if lastUserKept >= 0 {
				// Cut at the conversational boundary instead of mid-exchange.
				keepFrom = lastUserKept
			}
			break
		}
		total += size
		if ok && msg.Kind == KindUser {
			lastUserKept = i
		}
	}

	// Never leave a tool result as the oldest survivor without its call.
	for keepFrom < n {
		msg, ok := get(all[keepFrom])
		if !ok || msg.Kind != KindToolResult {
			break
		}
		keepFrom++
	}

	// At least one message always survives, even when it alone exceeds the budget.
	if keepFrom >= n && n > 0 {
		keepFrom = n - 1
	}
	return keepFrom
}
