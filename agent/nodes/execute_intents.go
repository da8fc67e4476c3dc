package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/cloudcraft-labs/archadvisor/agent/contract"
	intentx "github.com/cloudcraft-labs/archadvisor/agent/intent"
)

// ExecuteIntents hands the batch to the scheduler. Individual handler
// failures surface as per-intent error outcomes, never as a node error.
func ExecuteIntents(ctx context.Context, in *GraphState, scheduler *intentx.Scheduler) (*GraphState, error) {
	if in == nil || in.Context == nil {
		return nil, fmt.Errorf("%w: graph context is nil", contractx.ErrValidation)
	}

	in.Outcomes = scheduler.Schedule(ctx, in.Intents, &intentx.Execution{
		Context:   in.Context,
		MessageID: in.MessageID,
		Message:   in.Text,
	})
	return in, nil
}
