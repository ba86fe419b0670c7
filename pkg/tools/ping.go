package tools

import "context"

// PingTool is a health check the model can call to verify tool plumbing.
type PingTool struct{}

func NewPingTool() *PingTool { return &PingTool{} }

func (t *PingTool) Name() string {
	return "ping"
}

func (t *PingTool) Description() string {
	return "Simple health-check that replies with Pong! 🏓"
}

func (t *PingTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
		"required":   []string{},
	}
}

func (t *PingTool) Execute(ctx context.Context, args map[string]any) *Result {
	return TextResult("Pong! 🏓")
}
