package contract

import "context"

// ClassifyRequest carries one inbound message plus context-derived hints
// for the classifier.
type ClassifyRequest struct {
	MessageID string           `json:"message_id"`
	Message   string           `json:"message"`
	History   []HistoryMessage `json:"history,omitempty"`
	Summary   string           `json:"summary,omitempty"`
}

// Classifier turns one message into a batch of intents. It may fail or
// return an empty batch; the caller decides what to do with zero intents.
type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) ([]*Intent, error)
}

// ExtractRequest asks for requirements carried by one message, given what
// is already known so the extractor can resolve references.
type ExtractRequest struct {
	MessageID string        `json:"message_id"`
	Message   string        `json:"message"`
	Existing  []Requirement `json:"existing,omitempty"`
}

type RequirementExtractor interface {
	Extract(ctx context.Context, req ExtractRequest) ([]Requirement, error)
}

// RecommendRequest asks for an architecture proposal. Current is the
// recommendation being modified, if any; a nil Current means a fresh
// proposal.
type RecommendRequest struct {
	Requirements []Requirement   `json:"requirements"`
	Current      *Recommendation `json:"current,omitempty"`
	Instruction  string          `json:"instruction,omitempty"`
}

type Recommender interface {
	Recommend(ctx context.Context, req RecommendRequest) (*Recommendation, error)
}

// Summarizer compresses history into a bounded summary. Best-effort: the
// caller keeps the prior summary on failure.
type Summarizer interface {
	Summarize(ctx context.Context, history []HistoryMessage) (string, error)
}

// ResponseFormatter combines ordered per-intent outcomes into one reply.
type ResponseFormatter interface {
	Format(outcomes []IntentOutcome) (*Response, error)
}
