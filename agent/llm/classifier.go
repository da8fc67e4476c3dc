package llm

import (
	"context"
	"strings"

	"github.com/google/uuid"

	contractx "github.com/cloudcraft-labs/archadvisor/agent/contract"
)

// IntentClassifier recognizes the intent batch carried by one message.
type IntentClassifier struct {
	c *Client
}

func NewIntentClassifier(c *Client) *IntentClassifier {
	return &IntentClassifier{c: c}
}

type classifiedIntent struct {
	IntentType string         `json:"intent_type"`
	Confidence float64        `json:"confidence"`
	Entities   map[string]any `json:"extracted_entities"`
}

type classifierReply struct {
	Intents []classifiedIntent `json:"intents"`
}

func (cl *IntentClassifier) Classify(ctx context.Context, req contractx.ClassifyRequest) ([]*contractx.Intent, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, errEmptyMessage
	}

	var b strings.Builder
	if req.Summary != "" {
		b.WriteString("Conversation so far: ")
		b.WriteString(req.Summary)
		b.WriteString("\n\n")
	}
	if lines := historyLines(req.History, 5); lines != "" {
		b.WriteString("Recent turns:\n")
		b.WriteString(lines)
		b.WriteString("\n")
	}
	b.WriteString("User message: ")
	b.WriteString(message)

	var reply classifierReply
	if err := cl.c.completeJSON(ctx, cl.c.prompts.Classifier, b.String(), &reply); err != nil {
		return nil, err
	}

	intents := make([]*contractx.Intent, 0, len(reply.Intents))
	for _, item := range reply.Intents {
		intentType := contractx.IntentType(strings.TrimSpace(item.IntentType))
		if !intentType.Valid() {
			continue
		}
		confidence := item.Confidence
		if confidence <= 0 || confidence > 1 {
			confidence = 0.8
		}
		intents = append(intents, &contractx.Intent{
			ID:         uuid.NewString(),
			MessageID:  req.MessageID,
			Type:       intentType,
			Confidence: confidence,
			Entities:   item.Entities,
			Status:     contractx.IntentPending,
		})
	}
	return intents, nil
}

var _ contractx.Classifier = (*IntentClassifier)(nil)
