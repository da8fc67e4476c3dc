// Package formatter builds the aggregated reply from ordered per-intent
// outcomes.
package formatter

import (
	"errors"
	"fmt"
	"strings"

	contractx "github.com/cloudcraft-labs/archadvisor/agent/contract"
)

const fallbackReply = "I could not produce a recommendation from that. Could you share more detail about what you want to build?"

// Formatter renders one section per outcome, preserving execution order,
// so partial failures stay visible next to the results that did succeed.
type Formatter struct{}

func New() *Formatter {
	return &Formatter{}
}

func (f *Formatter) Format(outcomes []contractx.IntentOutcome) (*contractx.Response, error) {
	if len(outcomes) == 0 {
		return nil, errors.New("formatter: no outcomes to format")
	}

	var sections []string
	metadata := map[string]string{}

	for _, outcome := range outcomes {
		section := f.formatOutcome(outcome, metadata)
		if section != "" {
			sections = append(sections, section)
		}
	}

	content := strings.Join(sections, "\n\n")
	if strings.TrimSpace(content) == "" {
		content = fallbackReply
	}
	return &contractx.Response{
		Content:  content,
		Metadata: metadata,
	}, nil
}

func (f *Formatter) formatOutcome(outcome contractx.IntentOutcome, metadata map[string]string) string {
	if outcome.Intent == nil {
		return ""
	}

	switch outcome.Intent.Type {
	case contractx.IntentArchitectureRequest, contractx.IntentModification:
		if outcome.Failed() {
			return "## Architecture\n\nI could not generate a recommendation for this request."
		}
		return formatRecommendation(outcome.Recommendation, metadata)
	case contractx.IntentPricingQuery:
		if outcome.Failed() {
			if outcome.Message != "" {
				return "## Estimated Cost\n\n" + outcome.Message
			}
			return "## Estimated Cost\n\nPricing is unavailable right now; no cached price exists for these services."
		}
		return formatCost(outcome.Cost)
	case contractx.IntentClarification:
		if outcome.Message == "" {
			return ""
		}
		return outcome.Message
	}
	return ""
}

func formatRecommendation(rec *contractx.Recommendation, metadata map[string]string) string {
	if rec == nil {
		return ""
	}
	metadata["recommendation_id"] = rec.ID

	var b strings.Builder
	b.WriteString("## Architecture\n\n")
	if rec.Explanation != "" {
		b.WriteString(rec.Explanation)
		b.WriteString("\n\n")
	}
	b.WriteString("**Recommended services:**\n")
	for _, svc := range rec.Services {
		b.WriteString("- **")
		b.WriteString(svc.Name)
		b.WriteString("**")
		if svc.Role != "" {
			b.WriteString(": ")
			b.WriteString(svc.Role)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatCost(cost *contractx.CostEstimate) string {
	if cost == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Estimated Cost\n\n")
	fmt.Fprintf(&b, "**Estimated monthly cost**: %.2f %s\n", cost.TotalMonthly, cost.Currency)
	if len(cost.Breakdown) > 0 {
		b.WriteString("\n**Breakdown:**\n")
		for _, item := range cost.Breakdown {
			fmt.Fprintf(&b, "- %s: %.2f %s\n", item.ServiceName, item.MonthlyCost, item.Unit)
		}
	}
	if cost.Stale {
		fmt.Fprintf(&b, "\nPrices shown are from a cached copy last updated %s.\n",
			cost.OldestFetch.Format("2006-01-02 15:04 MST"))
	}
	return strings.TrimRight(b.String(), "\n")
}

var _ contractx.ResponseFormatter = (*Formatter)(nil)
