package contract

import (
	"time"
)

// IntentType is the closed set of sub-request kinds recognized in a user
// message. Priorities are fixed per type; modification shares priority 1
// with architecture_request because both produce or alter a recommendation.
type IntentType string

const (
	IntentArchitectureRequest IntentType = "architecture_request"
	IntentPricingQuery        IntentType = "pricing_query"
	IntentClarification       IntentType = "clarification"
	IntentModification        IntentType = "modification"
)

func (t IntentType) Valid() bool {
	switch t {
	case IntentArchitectureRequest, IntentPricingQuery, IntentClarification, IntentModification:
		return true
	}
	return false
}

// Priority returns the execution priority for the intent type.
// Lower value runs first.
func (t IntentType) Priority() int {
	switch t {
	case IntentArchitectureRequest, IntentModification:
		return 1
	case IntentPricingQuery:
		return 2
	default:
		return 3
	}
}

// IntentStatus transitions are forward-only:
// pending -> processing -> completed|failed.
type IntentStatus string

const (
	IntentPending    IntentStatus = "pending"
	IntentProcessing IntentStatus = "processing"
	IntentCompleted  IntentStatus = "completed"
	IntentFailed     IntentStatus = "failed"
)

func (s IntentStatus) canTransition(next IntentStatus) bool {
	switch s {
	case IntentPending:
		return next == IntentProcessing
	case IntentProcessing:
		return next == IntentCompleted || next == IntentFailed
	}
	return false
}

// Intent is one classified sub-request within a single message. Intents are
// created per message and never reused across messages.
type Intent struct {
	ID         string         `json:"id"`
	MessageID  string         `json:"message_id"`
	Type       IntentType     `json:"type"`
	Confidence float64        `json:"confidence"`
	Entities   map[string]any `json:"entities,omitempty"`
	Status     IntentStatus   `json:"status"`
}

// Transition moves the intent to the next status, rejecting any backward
// or skipped transition.
func (i *Intent) Transition(next IntentStatus) error {
	if !i.Status.canTransition(next) {
		return ErrInvalidTransition
	}
	i.Status = next
	return nil
}

// RequirementType partitions requirements into single-valued types, where a
// later entry replaces the earlier one, and multi-valued types, where
// distinct values accumulate.
type RequirementType string

const (
	RequirementApplicationType RequirementType = "application_type"
	RequirementScale           RequirementType = "scale"
	RequirementConstraint      RequirementType = "constraint"
	RequirementPreference      RequirementType = "preference"
)

func (t RequirementType) Valid() bool {
	switch t {
	case RequirementApplicationType, RequirementScale, RequirementConstraint, RequirementPreference:
		return true
	}
	return false
}

func (t RequirementType) MultiValued() bool {
	return t == RequirementConstraint || t == RequirementPreference
}

// Requirement is one extracted user requirement attributable to the message
// it came from.
type Requirement struct {
	Type            RequirementType `json:"type"`
	Value           string          `json:"value"`
	Confidence      float64         `json:"confidence"`
	SourceMessageID string          `json:"source_message_id,omitempty"`
}

// RecommendedService is one AWS service held by a recommendation, with the
// role it plays and its proposed configuration.
type RecommendedService struct {
	Name          string         `json:"name"`
	Role          string         `json:"role"`
	Configuration map[string]any `json:"configuration,omitempty"`
}

// Recommendation is an architecture proposal. A newer recommendation
// supersedes the prior one; it is never mutated in place.
type Recommendation struct {
	ID          string               `json:"id"`
	Services    []RecommendedService `json:"services"`
	Explanation string               `json:"explanation"`
	CreatedAt   time.Time            `json:"created_at"`
}

// CostSource labels where a price figure came from.
const (
	CostSourceAPI   = "api"
	CostSourceCache = "cache"
)

// CostBreakdownItem is the monthly cost attributed to one service.
type CostBreakdownItem struct {
	ServiceName string    `json:"service_name"`
	ServiceKey  string    `json:"service_key"`
	Region      string    `json:"region"`
	MonthlyCost float64   `json:"monthly_cost"`
	Unit        string    `json:"unit"`
	Source      string    `json:"source"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// CostEstimate aggregates per-service costs for a recommendation. Stale is
// set when any figure came from the cache past its freshness window, so the
// caller can disclose the age of the data.
type CostEstimate struct {
	TotalMonthly float64             `json:"total_monthly_cost"`
	Currency     string              `json:"currency"`
	Breakdown    []CostBreakdownItem `json:"cost_breakdown"`
	Source       string              `json:"source"`
	Stale        bool                `json:"stale"`
	OldestFetch  time.Time           `json:"oldest_fetch"`
}

// IntentOutcome pairs an intent with the result (or error) of its handler.
// Outcome order mirrors execution order.
type IntentOutcome struct {
	Intent         *Intent         `json:"intent"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
	Cost           *CostEstimate   `json:"cost,omitempty"`
	Message        string          `json:"message,omitempty"`
	Error          string          `json:"error,omitempty"`
}

func (o IntentOutcome) Failed() bool {
	return o.Error != ""
}

// HistoryMessage is one turn of raw conversation history retained for
// active processing.
type HistoryMessage struct {
	ID      string    `json:"id,omitempty"`
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Response is the aggregated reply for one processed message.
type Response struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
