package matching

import (
	"context"
	"fmt"
	"strings"

	"github.com/MincaAI/MVP-underwriting-sub000/pkg/llm"
)

// Arbiter decides between two near-tied candidates. Given the query
// description and two candidate labels it returns 0 to keep the first, 1 to
// prefer the second. It never introduces a third candidate.
type Arbiter interface {
	Prefer(ctx context.Context, queryDescription, labelA, labelB string) (int, error)
}

const arbitrationSystemPrompt = `You compare a vehicle description against two catalog entries.
Reply with exactly one character: "A" if the first entry is the better match, "B" if the second is.`

// llmArbiter implements Arbiter with one additional chat completion call.
type llmArbiter struct {
	client llm.Client
}

// NewLLMArbiter creates the LLM-backed arbitration port.
func NewLLMArbiter(client llm.Client) Arbiter {
	return &llmArbiter{client: client}
}

// Prefer presents both candidate labels and the query description and
// returns the model's pick.
func (a *llmArbiter) Prefer(ctx context.Context, queryDescription, labelA, labelB string) (int, error) {
	prompt := fmt.Sprintf("Vehicle: %s\n\nA: %s\nB: %s", queryDescription, labelA, labelB)
	messages := []llm.Message{
		{Role: "system", Content: arbitrationSystemPrompt},
		{Role: "user", Content: prompt},
	}
	reply, err := a.client.Complete(ctx, messages, nil)
	if err != nil {
		return 0, fmt.Errorf("arbitration call failed: %w", err)
	}

	switch strings.ToUpper(strings.TrimSpace(reply)) {
	case "A":
		return 0, nil
	case "B":
		return 1, nil
	default:
		return 0, fmt.Errorf("arbitration returned unexpected reply %q", reply)
	}
}
