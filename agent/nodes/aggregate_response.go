package orchestratornode

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	contractx "github.com/cloudcraft-labs/archadvisor/agent/contract"
)

// AggregateResponse folds the ordered outcomes into a single reply and
// records both the processed batch and the assistant turn on the context.
func AggregateResponse(ctx context.Context, in *GraphState, responseFormatter contractx.ResponseFormatter) (*GraphState, error) {
	if in == nil || in.Context == nil {
		return nil, fmt.Errorf("%w: graph context is nil", contractx.ErrValidation)
	}

	response, err := responseFormatter.Format(in.Outcomes)
	if err != nil {
		return nil, err
	}
	in.Response = response

	in.Context.SetLastIntents(in.Intents)
	in.Context.AppendHistory(contractx.HistoryMessage{
		ID:      uuid.NewString(),
		Role:    contractx.RoleAssistant,
		Content: response.Content,
		At:      in.Now,
	})
	return in, nil
}
