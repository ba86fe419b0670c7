package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bottylabs/botty/pkg/logger"
)

// Registry maps tool names to handlers and builds the per-turn definitions
// advertised to the model.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all registered tool names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedToolNames()
}

// sortedToolNames returns tool names in sorted order for deterministic
// iteration. Definition order feeds the model's prefix cache, so it must not
// vary between calls when the tool set has not changed.
func (r *Registry) sortedToolNames() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefinitionsFor builds the definitions advertised for one turn. Definitions
// are rebuilt per call because tools that accept an optional channel_id
// parameter default it to the current conversation, which only exists at call
// time.
func (r *Registry) DefinitionsFor(conversationID string) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sorted := r.sortedToolNames()
	defs := make([]Definition, 0, len(sorted))
	for _, name := range sorted {
		tool := r.tools[name]
		params := deepCopyParams(tool.Parameters())
		if props, ok := params["properties"].(map[string]any); ok {
			if channel, ok := props["channel_id"].(map[string]any); ok {
				channel["default"] = conversationID
			}
		}
		defs = append(defs, Definition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  params,
		})
	}
	return defs
}

// Execute parses the model's raw argument string and dispatches one tool call.
// Malformed JSON becomes an empty argument set. An unknown tool name returns
// nil: the caller skips the call entirely. A handler panic is contained as an
// error result so one bad invocation never aborts the conversation.
func (r *Registry) Execute(ctx context.Context, conversationID, name, rawArgs string) *Result {
	tool, ok := r.Get(name)
	if !ok {
		logger.WarnCF("tool", "Model requested unknown tool",
			map[string]any{"tool": name, "conversation_id": conversationID})
		return nil
	}

	args := map[string]any{}
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			logger.WarnCF("tool", "Malformed tool arguments, treating as empty",
				map[string]any{"tool": name, "error": err.Error()})
			args = map[string]any{}
		}
	}

	// Tools addressing a channel default to the conversation they run in.
	if _, has := args["channel_id"]; !has {
		if props, ok := tool.Parameters()["properties"].(map[string]any); ok {
			if _, accepts := props["channel_id"]; accepts {
				args["channel_id"] = conversationID
			}
		}
	}

	logger.InfoCF("tool", "Tool execution started",
		map[string]any{"tool": name, "conversation_id": conversationID})

	start := time.Now()
	result := r.executeSafely(ctx, tool, args)
	duration := time.Since(start)

	if result.IsError {
		logger.ErrorCF("tool", "Tool execution failed",
			map[string]any{"tool": name, "duration_ms": duration.Milliseconds(), "error": result.ForLLM})
	} else {
		logger.InfoCF("tool", "Tool execution completed",
			map[string]any{"tool": name, "duration_ms": duration.Milliseconds(), "kind": string(result.Kind)})
	}
	return result
}

func (r *Registry) executeSafely(ctx context.Context, tool Tool, args map[string]any) (result *Result) {
	defer func() {
		if rec := recover(); rec != nil {
			result = ErrorResult(fmt.Sprintf("tool %s panicked: %v", tool.Name(), rec)).
				WithError(fmt.Errorf("panic: %v", rec))
		}
	}()
	result = tool.Execute(ctx, args)
	if result == nil {
		result = ErrorResult(fmt.Sprintf("tool %s returned no result", tool.Name()))
	}
	return result
}

func deepCopyParams(src map[string]any) map[string]any {
	data, err := json.Marshal(src)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}
