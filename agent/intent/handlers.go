package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	contractx "github.com/cloudcraft-labs/archadvisor/agent/contract"
	pricingx "github.com/cloudcraft-labs/archadvisor/pricing"
)

// ArchitectureHandler produces a fresh recommendation from the merged
// requirements. The new recommendation supersedes the context's current
// one so later intents in the batch see it.
type ArchitectureHandler struct {
	recommender contractx.Recommender
}

func NewArchitectureHandler(recommender contractx.Recommender) (*ArchitectureHandler, error) {
	if recommender == nil {
		return nil, errors.New("intent: recommender is required")
	}
	return &ArchitectureHandler{recommender: recommender}, nil
}

func (h *ArchitectureHandler) Handle(ctx context.Context, it *contractx.Intent, exec *Execution) (contractx.IntentOutcome, error) {
	rec, err := h.recommender.Recommend(ctx, contractx.RecommendRequest{
		Requirements: exec.Context.Requirements,
		Instruction:  exec.Message,
	})
	if err != nil {
		return contractx.IntentOutcome{}, fmt.Errorf("%w: %v", contractx.ErrRecommendation, err)
	}

	exec.Context.SetRecommendation(rec)
	return contractx.IntentOutcome{Recommendation: rec}, nil
}

// ModificationHandler alters the current recommendation. "This
// architecture" resolves to the context's current recommendation; with
// nothing to modify it behaves like a fresh request.
type ModificationHandler struct {
	recommender contractx.Recommender
}

func NewModificationHandler(recommender contractx.Recommender) (*ModificationHandler, error) {
	if recommender == nil {
		return nil, errors.New("intent: recommender is required")
	}
	return &ModificationHandler{recommender: recommender}, nil
}

func (h *ModificationHandler) Handle(ctx context.Context, it *contractx.Intent, exec *Execution) (contractx.IntentOutcome, error) {
	rec, err := h.recommender.Recommend(ctx, contractx.RecommendRequest{
		Requirements: exec.Context.Requirements,
		Current:      exec.Context.CurrentRecommendation,
		Instruction:  exec.Message,
	})
	if err != nil {
		return contractx.IntentOutcome{}, fmt.Errorf("%w: %v", contractx.ErrRecommendation, err)
	}

	exec.Context.SetRecommendation(rec)
	return contractx.IntentOutcome{Recommendation: rec}, nil
}

// PricingHandler prices the recommendation active at its position in the
// batch, which an earlier architecture_request may have just produced.
type PricingHandler struct {
	calculator *pricingx.Calculator
}

func NewPricingHandler(calculator *pricingx.Calculator) (*PricingHandler, error) {
	if calculator == nil {
		return nil, errors.New("intent: calculator is required")
	}
	return &PricingHandler{calculator: calculator}, nil
}

func (h *PricingHandler) Handle(ctx context.Context, it *contractx.Intent, exec *Execution) (contractx.IntentOutcome, error) {
	rec := exec.Context.CurrentRecommendation
	if rec == nil {
		return contractx.IntentOutcome{
			Message: "There is no architecture to price yet. Describe what you want to build first.",
		}, fmt.Errorf("%w: no active recommendation", contractx.ErrValidation)
	}

	region := regionFromEntities(it.Entities)
	estimate, err := h.calculator.Estimate(ctx, rec, region)
	if err != nil {
		return contractx.IntentOutcome{}, err
	}
	return contractx.IntentOutcome{Cost: estimate}, nil
}

func regionFromEntities(entities map[string]any) string {
	if entities == nil {
		return ""
	}
	if region, ok := entities["region"].(string); ok {
		return strings.TrimSpace(region)
	}
	return ""
}

// ClarificationHandler asks for whichever core requirement is still
// missing. Deterministic on purpose: clarification must work even when
// every model collaborator is down.
type ClarificationHandler struct{}

func NewClarificationHandler() *ClarificationHandler {
	return &ClarificationHandler{}
}

func (h *ClarificationHandler) Handle(_ context.Context, it *contractx.Intent, exec *Execution) (contractx.IntentOutcome, error) {
	if question, ok := it.Entities["question"].(string); ok && strings.TrimSpace(question) != "" {
		return contractx.IntentOutcome{Message: strings.TrimSpace(question)}, nil
	}

	missing := missingRequirementTypes(exec.Context.Requirements)
	if len(missing) == 0 {
		return contractx.IntentOutcome{
			Message: "Could you share more detail about what you would like to adjust?",
		}, nil
	}
	return contractx.IntentOutcome{
		Message: "To recommend an architecture I still need your " + strings.Join(missing, " and ") + ".",
	}, nil
}

func missingRequirementTypes(reqs []contractx.Requirement) []string {
	have := make(map[contractx.RequirementType]bool, len(reqs))
	for _, req := range reqs {
		have[req.Type] = true
	}

	var missing []string
	if !have[contractx.RequirementApplicationType] {
		missing = append(missing, "application type")
	}
	if !have[contractx.RequirementScale] {
		missing = append(missing, "expected scale")
	}
	return missing
}
