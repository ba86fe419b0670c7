package agent

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bottylabs/botty/pkg/logger"
)

// ReasoningLevel is a canonical reasoning-effort setting.
type ReasoningLevel string

const (
	ReasoningNone    ReasoningLevel = "none"
	ReasoningMinimal ReasoningLevel = "minimal"
	ReasoningLow     ReasoningLevel = "low"
	ReasoningMedium  ReasoningLevel = "medium"
	ReasoningHigh    ReasoningLevel = "high"
)

// DefaultReasoningLevel applies when the setting is absent.
const DefaultReasoningLevel = ReasoningMinimal

var reasoningSynonyms = map[string]ReasoningLevel{
	"none":     ReasoningNone,
	"off":      ReasoningNone,
	"disabled": ReasoningNone,
	"minimal":  ReasoningMinimal,
	"low":      ReasoningLow,
	"medium":   ReasoningMedium,
	"high":     ReasoningHigh,
	"deep":     ReasoningHigh,
	"max":      ReasoningHigh,
	"intense":  ReasoningHigh,
}

// ParseReasoningLevel canonicalizes a user-facing setting. An empty value
// yields the default; an unrecognized value is a configuration error listing
// the accepted spellings.
func ParseReasoningLevel(value string) (ReasoningLevel, error) {
	if strings.TrimSpace(value) == "" {
		return DefaultReasoningLevel, nil
	}
	if level, ok := reasoningSynonyms[strings.ToLower(strings.TrimSpace(value))]; ok {
		return level, nil
	}

	accepted := make([]string, 0, len(reasoningSynonyms))
	for k := range reasoningSynonyms {
		accepted = append(accepted, k)
	}
	sort.Strings(accepted)
	return "", fmt.Errorf("invalid reasoning level %q: valid options are %s",
		value, strings.Join(accepted, ", "))
}

// supportsReasoning reports whether the model family accepts a
// reasoning-effort request parameter.
func supportsReasoning(model string) bool {
	m := strings.ToLower(model)
	for _, prefix := range []string{"gpt-5", "o1", "o3", "o4"} {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}

// ReasoningPolicy computes the reasoning-effort payload for completion calls.
type ReasoningPolicy struct {
	level ReasoningLevel

	mu         sync.Mutex
	lastLogged ReasoningLevel
	logged     bool
}

func NewReasoningPolicy(level ReasoningLevel) *ReasoningPolicy {
	return &ReasoningPolicy{level: level}
}

// PayloadFor returns the reasoning-effort string to attach for the model, or
// empty when the level is none or the model does not accept the parameter.
// When a configured level is being ignored, one informational line is logged
// per level change rather than per call.
func (p *ReasoningPolicy) PayloadFor(model string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.level == ReasoningNone {
		return ""
	}
	if supportsReasoning(model) {
		return string(p.level)
	}
	if !p.logged || p.lastLogged != p.level {
		logger.InfoCF("agent", "Reasoning level ignored for model without reasoning support",
			map[string]any{"level": string(p.level), "model": model})
		p.lastLogged = p.level
		p.logged = true
	}
	return ""
}

// SetLevel changes the configured level at runtime.
func (p *ReasoningPolicy) SetLevel(level ReasoningLevel) {
	p.mu.Lock()
	p.level = level
	p.mu.Unlock()
}
