package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	contractx "github.com/cloudcraft-labs/archadvisor/agent/contract"
)

// ArchitectureRecommender proposes (or modifies) an architecture from the
// merged requirement set.
type ArchitectureRecommender struct {
	c   *Client
	now func() time.Time
}

func NewArchitectureRecommender(c *Client) *ArchitectureRecommender {
	return &ArchitectureRecommender{c: c, now: time.Now}
}

type recommendedService struct {
	Name          string         `json:"name"`
	Role          string         `json:"role"`
	Configuration map[string]any `json:"configuration"`
}

type recommenderReply struct {
	Services    []recommendedService `json:"services"`
	Explanation string               `json:"explanation"`
}

func (r *ArchitectureRecommender) Recommend(ctx context.Context, req contractx.RecommendRequest) (*contractx.Recommendation, error) {
	if len(req.Requirements) == 0 && req.Current == nil {
		return nil, fmt.Errorf("%w: no requirements to recommend from", contractx.ErrValidation)
	}

	var b strings.Builder
	if len(req.Requirements) > 0 {
		known, err := json.Marshal(req.Requirements)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal requirements: %v", contractx.ErrValidation, err)
		}
		b.WriteString("Requirements: ")
		b.Write(known)
		b.WriteString("\n\n")
	}
	if req.Current != nil {
		current, err := json.Marshal(req.Current)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal current recommendation: %v", contractx.ErrValidation, err)
		}
		b.WriteString("Architecture under discussion: ")
		b.Write(current)
		b.WriteString("\n\n")
	}
	if instruction := strings.TrimSpace(req.Instruction); instruction != "" {
		b.WriteString("User instruction: ")
		b.WriteString(instruction)
	}

	var reply recommenderReply
	if err := r.c.completeJSON(ctx, r.c.prompts.Recommender, b.String(), &reply); err != nil {
		return nil, err
	}
	if len(reply.Services) == 0 {
		return nil, fmt.Errorf("%w: recommendation has no services", contractx.ErrSchemaViolation)
	}

	services := make([]contractx.RecommendedService, 0, len(reply.Services))
	for _, svc := range reply.Services {
		name := strings.TrimSpace(svc.Name)
		if name == "" {
			continue
		}
		services = append(services, contractx.RecommendedService{
			Name:          name,
			Role:          strings.TrimSpace(svc.Role),
			Configuration: svc.Configuration,
		})
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("%w: recommendation services are all unnamed", contractx.ErrSchemaViolation)
	}

	return &contractx.Recommendation{
		ID:          uuid.NewString(),
		Services:    services,
		Explanation: strings.TrimSpace(reply.Explanation),
		CreatedAt:   r.now().UTC(),
	}, nil
}

var _ contractx.Recommender = (*ArchitectureRecommender)(nil)
