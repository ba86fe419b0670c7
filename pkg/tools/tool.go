package tools

import "context"

// Kind classifies a successful tool result so the turn engine knows what to
// emit and to whom. KindNone results are visible only to the model.
type Kind string

const (
	KindNone         Kind = "none"
	KindText         Kind = "text"
	KindPoll         Kind = "poll"
	KindImage        Kind = "image"
	KindMemorySave   Kind = "memory:save"
	KindMemoryUpdate Kind = "memory:update"
	KindMemoryDelete Kind = "memory:delete"
	KindMemoryList   Kind = "memory:list"
)

// Tool is a capability the model can invoke by name.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) *Result
}

// Poll carries the payload of a poll-creating tool result.
type Poll struct {
	Question      string
	Options       []string
	DurationHours int
	AllowMultiple bool
}

// Result is the outcome of one tool invocation. ForLLM always feeds the next
// model call; ForUser, Poll and Image are translated into output events by the
// turn engine according to Kind. ChannelID is the delivery target, which may
// differ from the conversation the tool ran in.
type Result struct {
	Kind      Kind
	ChannelID string
	ForLLM    string
	ForUser   string
	Poll      *Poll
	Image     []byte
	// ImageContentType is the MIME type of Image, sniffed from the bytes,
	// so storage keys and chat attachments agree on the format.
	ImageContentType string
	IsError          bool
	Err              error
}

func TextResult(forLLM string) *Result {
	return &Result{Kind: KindNone, ForLLM: forLLM}
}

func ErrorResult(msg string) *Result {
	return &Result{Kind: KindNone, ForLLM: msg, IsError: true}
}

func (r *Result) WithError(err error) *Result {
	r.Err = err
	return r
}

// Definition is the per-turn, schema-shaped form of a tool advertised to the
// completion API.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
}
