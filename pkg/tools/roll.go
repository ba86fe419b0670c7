package tools

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"
)

// RandSource yields die faces. Satisfied by *rand.Rand; tests substitute a
// fixed sequence.
type RandSource interface {
	Intn(n int) int
}

// RollTool rolls dice with drop-lowest/highest and a flat modifier, posting
// the result to the target channel.
type RollTool struct {
	src RandSource
}

func NewRollTool(src RandSource) *RollTool {
	if src == nil {
		src = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RollTool{src: src}
}

func (t *RollTool) Name() string {
	return "roll"
}

func (t *RollTool) Description() string {
	return "Roll dice with advanced options: number of dice, die size, a flat modifier, and dropping the N lowest or highest rolls."
}

func (t *RollTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"dice_value": map[string]any{
				"type":        "integer",
				"description": "Number of faces per die, e.g. 6 for a d6",
			},
			"dice_count": map[string]any{
				"type":        "integer",
				"description": "How many dice to roll",
				"default":     1,
			},
			"dice_modifier": map[string]any{
				"type":        "integer",
				"description": "Flat modifier added to the total",
				"default":     0,
			},
			"drop_n_lowest": map[string]any{
				"type":        "integer",
				"description": "Drop this many of the lowest rolls before summing",
				"default":     0,
			},
			"drop_n_highest": map[string]any{
				"type":        "integer",
				"description": "Drop this many of the highest rolls before summing",
				"default":     0,
			},
			"channel_id": map[string]any{
				"type":        "string",
				"description": "Channel to post the roll result to",
			},
		},
		"required": []string{"dice_value"},
	}
}

func (t *RollTool) Execute(ctx context.Context, args map[string]any) *Result {
	diceValue := intArg(args, "dice_value", 0)
	if diceValue < 2 {
		return ErrorResult("dice_value must be at least 2")
	}
	diceCount := intArg(args, "dice_count", 1)
	if diceCount < 1 || diceCount > 100 {
		return ErrorResult("dice_count must be between 1 and 100")
	}
	modifier := intArg(args, "dice_modifier", 0)
	dropLowest := intArg(args, "drop_n_lowest", 0)
	dropHighest := intArg(args, "drop_n_highest", 0)
	if dropLowest < 0 || dropHighest < 0 || dropLowest+dropHighest >= diceCount {
		return ErrorResult("cannot drop that many dice")
	}

	rolls := make([]int, diceCount)
	for i := range rolls {
		rolls[i] = t.src.Intn(diceValue) + 1
	}

	dropped := dropIndices(rolls, dropLowest, dropHighest)

	total := modifier
	parts := make([]string, diceCount)
	for i, roll := range rolls {
		if dropped[i] {
			parts[i] = fmt.Sprintf("~~%d~~", roll)
		} else {
			parts[i] = fmt.Sprintf("%d", roll)
			total += roll
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎲 Rolled %dd%d", diceCount, diceValue)
	if dropLowest > 0 {
		fmt.Fprintf(&b, " drop %d lowest", dropLowest)
	}
	if dropHighest > 0 {
		fmt.Fprintf(&b, " drop %d highest", dropHighest)
	}
	if modifier > 0 {
		fmt.Fprintf(&b, " +%d", modifier)
	} else if modifier < 0 {
		fmt.Fprintf(&b, " %d", modifier)
	}
	fmt.Fprintf(&b, ": [%s] = **%d**", strings.Join(parts, ", "), total)

	text := b.String()
	return &Result{
		Kind:      KindText,
		ChannelID: stringArg(args, "channel_id", ""),
		ForLLM:    text,
		ForUser:   text,
	}
}

// dropIndices marks which positions are discarded, resolving ties by position
// so the marked dice are stable for a given roll sequence.
func dropIndices(rolls []int, dropLowest, dropHighest int) []bool {
	order := make([]int, len(rolls))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return rolls[order[a]] < rolls[order[b]]
	})

	dropped := make([]bool, len(rolls))
	for i := 0; i < dropLowest; i++ {
		dropped[order[i]] = true
	}
	for i := 0; i < dropHighest; i++ {
		dropped[order[len(order)-1-i]] = true
	}
	return dropped
}
