package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bottylabs/botty/pkg/completion"
	"github.com/bottylabs/botty/pkg/history"
	"github.com/bottylabs/botty/pkg/logger"
	"github.com/bottylabs/botty/pkg/tools"
)

const (
	// Stringified tool outputs above this size are truncated before
	// persistence to bound storage growth.
	maxToolOutputChars = 4000

	wrapUpNote = "This is the final allowed turn for this response. Wrap up now with a plain text answer; no further tool calls are possible."
)

// Uploader is the blob-store capability the engine needs for image results.
type Uploader interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

// Request is one inbound user message handed to the engine.
type Request struct {
	ConversationID string
	Text           string
	Username       string
	MediaURLs      []string
	SideContext    string
}

// Options configures an Engine.
type Options struct {
	Model           string
	Instructions    string
	MaxTurns        int
	ReasoningLevel  ReasoningLevel
	EnableWebSearch bool
	MaxOutputTokens int
}

// Engine drives the conversation loop: model calls interleaved with tool
// executions until a plain text answer is produced or the turn budget runs
// out.
type Engine struct {
	store     *history.Store
	registry  *tools.Registry
	completer completion.Completer
	uploader  Uploader
	gate      *Gate
	reasoning *ReasoningPolicy
	opts      Options

	// Disposable per-conversation view, rebuilt from the store at every model
	// call. pending holds messages whose durable write failed so the current
	// run still sees them.
	mu      sync.Mutex
	cache   map[string][]history.Message
	pending map[string][]history.Message
}

func NewEngine(store *history.Store, registry *tools.Registry, completer completion.Completer, uploader Uploader, opts Options) *Engine {
	if opts.MaxTurns < 1 {
		opts.MaxTurns = 10
	}
	if opts.ReasoningLevel == "" {
		opts.ReasoningLevel = DefaultReasoningLevel
	}
	return &Engine{
		store:     store,
		registry:  registry,
		completer: completer,
		uploader:  uploader,
		gate:      NewGate(),
		reasoning: NewReasoningPolicy(opts.ReasoningLevel),
		opts:      opts,
		cache:     make(map[string][]history.Message),
		pending:   make(map[string][]history.Message),
	}
}

// Respond appends the inbound message, attempts admission, and returns a lazy
// event stream. A non-admitted call (another run is active) contributes no
// events: the message is queued and picked up by the active run. The stream
// is closed on every exit path; abandoning consumption is done by cancelling
// ctx, which still runs the gate cleanup.
func (e *Engine) Respond(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)

		e.appendRecord(ctx, req.ConversationID,
			history.UserMessage(req.Username, req.Text, req.MediaURLs))

		if !e.gate.Acquire(req.ConversationID) {
			logger.DebugCF("agent", "Run already active, message queued",
				map[string]any{"conversation_id": req.ConversationID})
			return
		}
		defer e.gate.Release(req.ConversationID)

		e.run(ctx, req, events)
	}()
	return events
}

// Reset wipes the conversation's transcript and evicts its runtime state.
func (e *Engine) Reset(ctx context.Context, conversationID string) error {
	_, err := e.store.Reset(ctx, conversationID)
	if clearErr := e.store.ClearMemories(ctx, conversationID); err == nil {
		err = clearErr
	}

	e.mu.Lock()
	delete(e.cache, conversationID)
	delete(e.pending, conversationID)
	e.mu.Unlock()
	e.gate.Forget(conversationID)

	return err
}

func (e *Engine) run(ctx context.Context, req Request, events chan<- Event) {
	convID := req.ConversationID

	for turn := 0; turn < e.opts.MaxTurns; turn++ {
		final := turn == e.opts.MaxTurns-1

		msgs := history.SanitizeForModel(e.historyView(ctx, convID))

		var defs []tools.Definition
		if final {
			// Force a terminal text answer: no tools, explicit wrap-up note.
			// The note is part of this call only, never persisted.
			msgs = append(msgs, history.SystemNote(wrapUpNote))
		} else {
			defs = e.registry.DefinitionsFor(convID)
		}

		creq := &completion.Request{
			Model:           e.opts.Model,
			History:         msgs,
			Tools:           defs,
			Instructions:    e.buildInstructions(ctx, convID, req.SideContext),
			ReasoningEffort: e.reasoning.PayloadFor(e.opts.Model),
			EnableWebSearch: e.opts.EnableWebSearch,
			MaxOutputTokens: e.opts.MaxOutputTokens,
		}

		resp, err := e.completer.Complete(ctx, creq)
		if err != nil {
			logger.ErrorCF("agent", "Completion failed, aborting run",
				map[string]any{"conversation_id": convID, "turn": turn, "error": err.Error()})
			return
		}

		var calls []completion.OutputItem
		for _, item := range resp.Items {
			switch item.Kind {
			case completion.ItemReasoning:
				e.appendRecord(ctx, convID, history.ReasoningTrace(item.Text))
			case completion.ItemFunctionCall:
				e.appendRecord(ctx, convID,
					history.ToolCallMessage(item.CallID, item.ToolName, item.Arguments))
				calls = append(calls, item)
			case completion.ItemMessage:
				e.appendRecord(ctx, convID, history.AssistantMessage(item.Text))
			}
		}

		if len(calls) == 0 {
			if resp.OutputText != "" {
				if !emit(ctx, events, Event{Type: EventText, ChannelID: convID, Text: resp.OutputText}) {
					return
				}
			}
			if e.gate.TakeQueued(convID) {
				// A message arrived mid-run; treat it as arriving now.
				continue
			}
			return
		}

		// Tool calls run strictly sequentially so history stays a linear
		// causal record the next model call can trust.
		for _, call := range calls {
			if !e.executeCall(ctx, convID, call, events) {
				return
			}
		}
	}

	logger.WarnCF("agent", "Turn limit reached",
		map[string]any{"conversation_id": convID, "max_turns": e.opts.MaxTurns})
}

// executeCall dispatches one tool call, persists its output, and translates a
// successful tagged result into zero or one output events. Returns false only
// when the consumer has gone away.
func (e *Engine) executeCall(ctx context.Context, convID string, call completion.OutputItem, events chan<- Event) bool {
	result := e.registry.Execute(ctx, convID, call.ToolName, call.Arguments)
	if result == nil {
		// Unknown tool: skipped. The replay mapper synthesizes the missing
		// output so the transcript stays pair-consistent.
		return true
	}

	e.appendRecord(ctx, convID,
		history.ToolResultMessage(call.CallID, truncateOutput(result.ForLLM)))

	if result.IsError {
		// The error text feeds the next model call; nothing reaches the user.
		return true
	}

	target := result.ChannelID
	if target == "" {
		target = convID
	}

	switch result.Kind {
	case tools.KindText:
		if target != convID {
			e.appendRecord(ctx, convID, history.DeveloperNote(fmt.Sprintf(
				"The message was delivered to channel %s. Do not repeat its content here.", target)))
		}
		return emit(ctx, events, Event{Type: EventText, ChannelID: target, Text: result.ForUser})

	case tools.KindPoll:
		e.appendRecord(ctx, convID, history.DeveloperNote(
			"The poll was already posted to the channel. Do not repeat the question or list the options again."))
		return emit(ctx, events, Event{Type: EventPoll, ChannelID: target, Poll: result.Poll})

	case tools.KindImage:
		contentType := result.ImageContentType
		if contentType == "" {
			contentType = "image/jpeg"
		}
		url, err := e.uploader.Upload(ctx, result.Image, contentType)
		if err != nil {
			logger.ErrorCF("agent", "Image upload failed",
				map[string]any{"conversation_id": convID, "error": err.Error()})
			return emit(ctx, events, Event{Type: EventText, ChannelID: target,
				Text: "Failed to deliver the generated image."})
		}
		e.appendRecord(ctx, convID, history.DeveloperNote(fmt.Sprintf(
			"The image was generated and posted to the channel. It is hosted at %s.", url)))
		e.appendRecord(ctx, convID, history.Message{
			Kind:      history.KindSystemNote,
			Content:   "System-provided context: the image just generated, for later reference. Not a user message.",
			MediaURLs: []string{url},
		})
		return emit(ctx, events, Event{
			Type: EventImage, ChannelID: target,
			Image: result.Image, ImageContentType: contentType,
		})

	case tools.KindMemorySave, tools.KindMemoryUpdate, tools.KindMemoryDelete:
		e.appendRecord(ctx, convID, history.DeveloperNote(result.ForLLM))
		return emit(ctx, events, Event{Type: EventText, ChannelID: target, Text: result.ForUser})

	default:
		// KindNone and memory listings are visible only to the model.
		return true
	}
}

// historyView reloads the conversation from the store, merges writes that
// failed to persist, and refreshes the disposable cache. On a read failure
// the cache is the fallback so the run keeps going.
func (e *Engine) historyView(ctx context.Context, convID string) []history.Message {
	msgs, err := e.store.Load(ctx, convID)
	if err != nil {
		logger.ErrorCF("agent", "History reload failed, using cached view",
			map[string]any{"conversation_id": convID, "error": err.Error()})
		e.mu.Lock()
		cached := append([]history.Message(nil), e.cache[convID]...)
		cached = append(cached, e.pending[convID]...)
		e.mu.Unlock()
		return cached
	}

	e.mu.Lock()
	e.cache[convID] = append([]history.Message(nil), msgs...)
	msgs = append(msgs, e.pending[convID]...)
	e.mu.Unlock()
	return msgs
}

// appendRecord persists one message. A storage failure is logged and the
// message is kept in the in-memory pending set: the user-visible interaction
// proceeds with best-effort consistency. Any pending backlog is flushed
// before the new message so the durable log and the merged view both keep
// chronological order; pending is always a contiguous tail of the history.
func (e *Engine) appendRecord(ctx context.Context, convID string, msg history.Message) {
	e.mu.Lock()
	backlog := e.pending[convID]
	delete(e.pending, convID)
	e.mu.Unlock()

	backlog = append(backlog, msg)
	for i, m := range backlog {
		if _, err := e.store.Append(ctx, convID, m, true); err != nil {
			logger.ErrorCF("agent", "Persisting message failed, keeping in-memory copy",
				map[string]any{"conversation_id": convID, "kind": string(m.Kind), "error": err.Error()})
			e.mu.Lock()
			e.pending[convID] = append(e.pending[convID], backlog[i:]...)
			e.mu.Unlock()
			return
		}
	}
}

// buildInstructions merges the static persona, the conversation's long-term
// memories, and any per-request side context into one instruction blob.
func (e *Engine) buildInstructions(ctx context.Context, convID, sideContext string) string {
	parts := []string{e.opts.Instructions}

	if mems, err := e.store.LoadMemories(ctx, convID); err == nil && len(mems) > 0 {
		var b strings.Builder
		b.WriteString("Long-term memories for this conversation:")
		for _, m := range mems {
			fmt.Fprintf(&b, "\n- [%s] %s", m.ID, m.Content)
		}
		parts = append(parts, b.String())
	}

	if sideContext != "" {
		parts = append(parts, sideContext)
	}
	return strings.Join(parts, "\n\n")
}

func truncateOutput(s string) string {
	if len(s) <= maxToolOutputChars {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxToolOutputChars {
		return s
	}
	return string(runes[:maxToolOutputChars]) + "… (truncated)"
}

// emit delivers one event, honoring consumer abandonment via ctx.
func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
