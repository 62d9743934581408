package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MincaAI/MVP-underwriting-sub000/pkg/llm"
)

const extractionSystemPrompt = `You extract vehicle attributes from Mexican fleet insurance descriptions.
Reply with a single JSON object and nothing else, using this exact schema:
{"brand":{"value":"","confidence":0.0},"model":{"value":"","confidence":0.0},"year":{"value":"","confidence":0.0},"fuel_type":{"value":"","confidence":0.0},"body_style":{"value":"","confidence":0.0}}
Leave "value" empty when the description does not state the attribute. Confidence is in [0,1].
"year" is the model year as a 4-digit string. Do not guess attributes that are not present.`

// llmAttributeParser implements AttributeParser on top of the chat
// completion client.
type llmAttributeParser struct {
	client llm.Client
}

// NewLLMAttributeParser creates the LLM-backed attribute parser.
func NewLLMAttributeParser(client llm.Client) AttributeParser {
	return &llmAttributeParser{client: client}
}

// ParseAttributes asks the model for the fixed attribute schema and decodes
// its JSON reply.
func (p *llmAttributeParser) ParseAttributes(ctx context.Context, description string) (*ParsedAttributes, error) {
	messages := []llm.Message{
		{Role: "system", Content: extractionSystemPrompt},
		{Role: "user", Content: description},
	}
	reply, err := p.client.Complete(ctx, messages, nil)
	if err != nil {
		return nil, fmt.Errorf("attribute extraction call failed: %w", err)
	}

	var parsed ParsedAttributes
	if err := json.Unmarshal([]byte(stripCodeFence(reply)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode attribute extraction reply: %w", err)
	}
	return &parsed, nil
}

// stripCodeFence removes a markdown code fence some models wrap JSON in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
