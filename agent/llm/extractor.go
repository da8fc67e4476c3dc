package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	contractx "github.com/cloudcraft-labs/archadvisor/agent/contract"
)

// RequirementExtractor pulls structured requirements out of one message,
// aware of what is already known so references resolve correctly.
type RequirementExtractor struct {
	c *Client
}

func NewRequirementExtractor(c *Client) *RequirementExtractor {
	return &RequirementExtractor{c: c}
}

type extractedRequirement struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

type extractorReply struct {
	Requirements []extractedRequirement `json:"requirements"`
}

func (ex *RequirementExtractor) Extract(ctx context.Context, req contractx.ExtractRequest) ([]contractx.Requirement, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, errEmptyMessage
	}

	var b strings.Builder
	if len(req.Existing) > 0 {
		known, err := json.Marshal(req.Existing)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal existing requirements: %v", contractx.ErrValidation, err)
		}
		b.WriteString("Known requirements: ")
		b.Write(known)
		b.WriteString("\n\n")
	}
	b.WriteString("User message: ")
	b.WriteString(message)

	var reply extractorReply
	if err := ex.c.completeJSON(ctx, ex.c.prompts.Extractor, b.String(), &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrExtraction, err)
	}

	requirements := make([]contractx.Requirement, 0, len(reply.Requirements))
	for _, item := range reply.Requirements {
		reqType := contractx.RequirementType(strings.TrimSpace(item.Type))
		value := strings.TrimSpace(item.Value)
		if !reqType.Valid() || value == "" {
			continue
		}
		confidence := item.Confidence
		if confidence <= 0 || confidence > 1 {
			confidence = 0.8
		}
		requirements = append(requirements, contractx.Requirement{
			Type:            reqType,
			Value:           value,
			Confidence:      confidence,
			SourceMessageID: req.MessageID,
		})
	}
	return requirements, nil
}

var _ contractx.RequirementExtractor = (*RequirementExtractor)(nil)
