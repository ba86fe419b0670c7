package history

import "encoding/json"

// Kind tags a transcript entry. Each kind carries only the fields it needs;
// the zero values of the rest stay out of the serialized form.
type Kind string

const (
	KindUser          Kind = "user"
	KindAssistant     Kind = "assistant"
	KindToolCall      Kind = "tool_call"
	KindToolResult    Kind = "tool_result"
	KindSystemNote    Kind = "system_note"
	KindDeveloperNote Kind = "developer_note"
	KindReasoning     Kind = "reasoning"
)

// Message is one transcript entry. It is immutable once appended; the store
// serializes it to JSON at the persistence boundary.
type Message struct {
	Kind      Kind     `json:"kind"`
	Content   string   `json:"content,omitempty"`
	Username  string   `json:"username,omitempty"`
	MediaURLs []string `json:"media_urls,omitempty"`
	CallID    string   `json:"call_id,omitempty"`
	ToolName  string   `json:"tool_name,omitempty"`
	Arguments string   `json:"arguments,omitempty"`
	Output    string   `json:"output,omitempty"`
	Status    string   `json:"status,omitempty"`
}

func UserMessage(username, content string, mediaURLs []string) Message {
	return Message{Kind: KindUser, Username: username, Content: content, MediaURLs: mediaURLs}
}

func AssistantMessage(content string) Message {
	return Message{Kind: KindAssistant, Content: content}
}

func ToolCallMessage(callID, toolName, arguments string) Message {
	return Message{Kind: KindToolCall, CallID: callID, ToolName: toolName, Arguments: arguments}
}

func ToolResultMessage(callID, output string) Message {
	return Message{Kind: KindToolResult, CallID: callID, Output: output}
}

func SystemNote(content string) Message {
	return Message{Kind: KindSystemNote, Content: content}
}

func DeveloperNote(content string) Message {
	return Message{Kind: KindDeveloperNote, Content: content}
}

func ReasoningTrace(summary string) Message {
	return Message{Kind: KindReasoning, Content: summary}
}

// serializedSize is the message's size under the trimming budget: the length
// of its JSON form. Character-exact, deliberately not token-exact.
func serializedSize(m Message) int {
	data, err := json.Marshal(m)
	if err != nil {
		return 0
	}
	return len(data)
}

// SanitizeForModel returns a copy of the history with the volatile "status"
// field stripped recursively from every entry, including any nested structures
// inside serialized payloads. Status is a cross-call artifact that must not be
// replayed back to the model.
func SanitizeForModel(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = sanitizeMessage(m)
	}
	return out
}

func sanitizeMessage(m Message) Message {
	m.Status = ""
	data, err := json.Marshal(m)
	if err != nil {
		return m
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return m
	}
	cleaned, err := json.Marshal(stripStatus(raw))
	if err != nil {
		return m
	}
	var out Message
	if err := json.Unmarshal(cleaned, &out); err != nil {
		return m
	}
	return out
}

func stripStatus(v any) any {
	switch val := v.(type) {
	case map[string]any:
		delete(val, "status")
		for k, item := range val {
			val[k] = stripStatus(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = stripStatus(item)
		}
		return val
	default:
		return v
	}
}
