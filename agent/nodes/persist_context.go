package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/cloudcraft-labs/archadvisor/agent/contract"
	statex "github.com/cloudcraft-labs/archadvisor/agent/state"
)

// PersistContext is the single context write for the message. It marks the
// state persisted so the failure-salvage path in the orchestrator does not
// write a second time.
func PersistContext(ctx context.Context, in *GraphState, manager *statex.Manager) (*GraphState, error) {
	if in == nil || in.Context == nil {
		return nil, fmt.Errorf("%w: graph context is nil", contractx.ErrValidation)
	}

	if err := manager.Persist(ctx, in.Context); err != nil {
		return nil, err
	}
	in.Persisted = true
	return in, nil
}
