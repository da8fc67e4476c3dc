// Package intent orders and executes the intent batch classified from one
// message.
package intent

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog/log"

	contractx "github.com/cloudcraft-labs/archadvisor/agent/contract"
	statex "github.com/cloudcraft-labs/archadvisor/agent/state"
)

// Execution is the shared mutable state a batch is executed against. Each
// handler sees the context as mutated by the handlers before it; a
// pricing_query after an architecture_request prices that same batch's
// recommendation.
type Execution struct {
	Context   *statex.SessionContext
	MessageID string
	Message   string
}

// Handler processes one intent against the batch's execution state.
// A returned error marks that intent's outcome as failed; it never aborts
// the batch.
type Handler interface {
	Handle(ctx context.Context, it *contractx.Intent, exec *Execution) (contractx.IntentOutcome, error)
}

// Handlers maps each intent type to its handler at compile time.
type Handlers struct {
	Architecture  Handler
	Pricing       Handler
	Clarification Handler
	Modification  Handler
}

func (h Handlers) forType(t contractx.IntentType) Handler {
	switch t {
	case contractx.IntentArchitectureRequest:
		return h.Architecture
	case contractx.IntentPricingQuery:
		return h.Pricing
	case contractx.IntentModification:
		return h.Modification
	case contractx.IntentClarification:
		return h.Clarification
	}
	return nil
}

func (h Handlers) validate() error {
	if h.Architecture == nil || h.Pricing == nil || h.Clarification == nil || h.Modification == nil {
		return errors.New("intent: all four handlers are required")
	}
	return nil
}

// Scheduler executes a batch sequentially in (priority, arrival) order.
type Scheduler struct {
	handlers Handlers
}

func NewScheduler(handlers Handlers) (*Scheduler, error) {
	if err := handlers.validate(); err != nil {
		return nil, err
	}
	return &Scheduler{handlers: handlers}, nil
}

// Schedule stable-sorts the batch by (priority ascending, original index)
// and runs handlers one at a time. Duplicate types both run; an empty
// batch yields an empty result with no side effects. Outcome order mirrors
// execution order.
func (s *Scheduler) Schedule(ctx context.Context, intents []*contractx.Intent, exec *Execution) []contractx.IntentOutcome {
	if len(intents) == 0 {
		return nil
	}

	ordered := make([]*contractx.Intent, len(intents))
	copy(ordered, intents)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Type.Priority() < ordered[j].Type.Priority()
	})

	outcomes := make([]contractx.IntentOutcome, 0, len(ordered))
	for _, it := range ordered {
		outcomes = append(outcomes, s.executeOne(ctx, it, exec))
	}
	return outcomes
}

func (s *Scheduler) executeOne(ctx context.Context, it *contractx.Intent, exec *Execution) contractx.IntentOutcome {
	handler := s.handlers.forType(it.Type)
	if handler == nil {
		_ = it.Transition(contractx.IntentProcessing)
		_ = it.Transition(contractx.IntentFailed)
		return contractx.IntentOutcome{
			Intent: it,
			Error:  "no handler for intent type " + string(it.Type),
		}
	}

	if err := it.Transition(contractx.IntentProcessing); err != nil {
		return contractx.IntentOutcome{Intent: it, Error: err.Error()}
	}

	outcome, err := handler.Handle(ctx, it, exec)
	outcome.Intent = it
	if err != nil {
		_ = it.Transition(contractx.IntentFailed)
		if outcome.Error == "" {
			outcome.Error = err.Error()
		}
		log.Warn().Err(err).Str("intent_type", string(it.Type)).Str("message_id", it.MessageID).
			Msg("intent handler failed, continuing batch")
		return outcome
	}

	_ = it.Transition(contractx.IntentCompleted)
	return outcome
}
