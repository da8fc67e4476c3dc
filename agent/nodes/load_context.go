package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/cloudcraft-labs/archadvisor/agent/contract"
	statex "github.com/cloudcraft-labs/archadvisor/agent/state"
)

// LoadContext fetches the session context through the manager, which
// treats expiry as absence and hands back a fresh context in that case.
func LoadContext(ctx context.Context, in *GraphState, manager *statex.Manager) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	sc, err := manager.Load(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	in.Context = sc
	return in, nil
}
