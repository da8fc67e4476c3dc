package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/cloudcraft-labs/archadvisor/agent/contract"
	statex "github.com/cloudcraft-labs/archadvisor/agent/state"
)

// MergeRequirements records the inbound message in history and, when the
// batch carries an architecture_request or modification, extracts and
// merges requirements. Extraction failure is absorbed: the handlers run
// against the requirements already known rather than aborting the batch.
func MergeRequirements(
	ctx context.Context,
	in *GraphState,
	extractor contractx.RequirementExtractor,
	manager *statex.Manager,
) (*GraphState, error) {
	if in == nil || in.Context == nil {
		return nil, fmt.Errorf("%w: graph context is nil", contractx.ErrValidation)
	}

	in.Context.AppendHistory(contractx.HistoryMessage{
		ID:      in.MessageID,
		Role:    contractx.RoleUser,
		Content: in.Text,
		At:      in.Now,
	})

	if !batchNeedsExtraction(in.Intents) {
		return in, nil
	}

	requirements, err := extractor.Extract(ctx, contractx.ExtractRequest{
		MessageID: in.MessageID,
		Message:   in.Text,
		Existing:  in.Context.Requirements,
	})
	if err != nil {
		log.Warn().Err(err).Str("session_id", in.SessionID).
			Msg("requirement extraction failed, proceeding with known requirements")
		return in, nil
	}

	if err := manager.Merge(in.Context, requirements, nil, nil); err != nil {
		return nil, err
	}
	return in, nil
}

func batchNeedsExtraction(intents []*contractx.Intent) bool {
	for _, it := range intents {
		if it.Type == contractx.IntentArchitectureRequest || it.Type == contractx.IntentModification {
			return true
		}
	}
	return false
}
