package orchestratornode

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/cloudcraft-labs/archadvisor/agent/contract"
)

const classifierHistoryWindow = 5

// ClassifyIntents asks the classifier for this message's intent batch.
// A classifier failure aborts the message. An empty batch does not: a
// single clarification intent is synthesized so the pipeline always has
// work to do.
func ClassifyIntents(ctx context.Context, in *GraphState, classifier contractx.Classifier) (*GraphState, error) {
	if in == nil || in.Context == nil {
		return nil, fmt.Errorf("%w: graph context is nil", contractx.ErrValidation)
	}

	intents, err := classifier.Classify(ctx, contractx.ClassifyRequest{
		MessageID: in.MessageID,
		Message:   in.Text,
		History:   in.Context.RecentHistory(classifierHistoryWindow),
		Summary:   in.Context.Summary,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrClassification, err)
	}

	if len(intents) == 0 {
		log.Debug().Str("session_id", in.SessionID).Msg("classifier returned zero intents, synthesizing clarification")
		intents = []*contractx.Intent{synthesizeClarification(in.MessageID)}
	}

	in.Intents = intents
	return in, nil
}

func synthesizeClarification(messageID string) *contractx.Intent {
	return &contractx.Intent{
		ID:         uuid.NewString(),
		MessageID:  messageID,
		Type:       contractx.IntentClarification,
		Confidence: 0,
		Status:     contractx.IntentPending,
	}
}
