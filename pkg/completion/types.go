package completion

import (
	"context"

	"github.com/bottylabs/botty/pkg/history"
	"github.com/bottylabs/botty/pkg/tools"
)

// ItemKind tags one output item of a completion response.
type ItemKind string

const (
	ItemReasoning    ItemKind = "reasoning"
	ItemFunctionCall ItemKind = "function_call"
	ItemMessage      ItemKind = "message"
)

// OutputItem is one element of the model's output, in emission order.
type OutputItem struct {
	Kind      ItemKind
	Text      string // message text or reasoning summary
	CallID    string
	ToolName  string
	Arguments string // raw JSON argument string as emitted by the model
}

// Request is one completion call. History is the sanitized transcript;
// Tools are the per-turn definitions; Instructions is the merged system blob.
type Request struct {
	Model           string
	History         []history.Message
	Tools           []tools.Definition
	Instructions    string
	ReasoningEffort string // empty omits the parameter
	EnableWebSearch bool
	MaxOutputTokens int
}

// Response is the provider-neutral completion result.
type Response struct {
	Items      []OutputItem
	OutputText string
}

// Completer is the single RPC the turn engine needs from a model provider.
type Completer interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
}
