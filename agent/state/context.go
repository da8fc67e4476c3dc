package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/cloudcraft-labs/archadvisor/agent/contract"
)

// SessionContext is the durable per-session state: merged requirements,
// the active recommendation, the rolling summary, and the raw history kept
// for active processing. Exactly one SessionContext exists per live
// session; callers must not read and write it concurrently for the same
// session without serialization.
type SessionContext struct {
	SessionID string `json:"session_id"`

	Requirements          []contractx.Requirement    `json:"requirements,omitempty"`
	CurrentRecommendation *contractx.Recommendation  `json:"current_recommendation,omitempty"`
	Summary               string                     `json:"summary,omitempty"`
	LastIntents           []*contractx.Intent        `json:"last_intents,omitempty"`
	History               []contractx.HistoryMessage `json:"history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// ExpiresAt is fixed at creation. Writes refresh UpdatedAt only; the
	// retention window never slides.
	ExpiresAt time.Time `json:"expires_at"`
}

var (
	ErrNilContext      = errors.New("session context is nil")
	ErrInvalidSession  = errors.New("session id is empty")
	ErrContextNotFound = errors.New("session context not found")
)

// NewSessionContext creates an empty context whose expiry is fixed at
// now+retention.
func NewSessionContext(sessionID string, now time.Time, retention time.Duration) *SessionContext {
	now = now.UTC()
	return &SessionContext{
		SessionID: sessionID,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(retention),
	}
}

func (c *SessionContext) Touch(now time.Time) {
	c.UpdatedAt = now.UTC()
}

func (c *SessionContext) Expired(now time.Time) bool {
	return c != nil && !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// MergeRequirements folds incoming requirements into the context.
// Single-valued types (application_type, scale) are replaced in place so
// merging the same type twice keeps exactly one entry with the latest
// value. Multi-valued types (constraint, preference) append unless the
// exact (type, value) pair already exists.
func (c *SessionContext) MergeRequirements(incoming []contractx.Requirement) {
	for _, req := range incoming {
		if !req.Type.Valid() || strings.TrimSpace(req.Value) == "" {
			continue
		}
		c.mergeOne(req)
	}
}

func (c *SessionContext) mergeOne(req contractx.Requirement) {
	if req.Type.MultiValued() {
		for _, existing := range c.Requirements {
			if existing.Type == req.Type && existing.Value == req.Value {
				return
			}
		}
		c.Requirements = append(c.Requirements, req)
		return
	}
	for i, existing := range c.Requirements {
		if existing.Type == req.Type {
			c.Requirements[i] = req
			return
		}
	}
	c.Requirements = append(c.Requirements, req)
}

// SetRecommendation replaces the active recommendation. The prior one is
// not kept here; history ownership belongs to the conversation log.
func (c *SessionContext) SetRecommendation(rec *contractx.Recommendation) {
	if rec == nil {
		return
	}
	c.CurrentRecommendation = rec
}

func (c *SessionContext) SetLastIntents(intents []*contractx.Intent) {
	c.LastIntents = intents
}

func (c *SessionContext) AppendHistory(msgs ...contractx.HistoryMessage) {
	c.History = append(c.History, msgs...)
}

// RecentHistory returns up to n of the newest history messages in
// chronological order.
func (c *SessionContext) RecentHistory(n int) []contractx.HistoryMessage {
	if n <= 0 || len(c.History) <= n {
		return c.History
	}
	return c.History[len(c.History)-n:]
}

// TruncateHistory keeps only the newest keep messages.
func (c *SessionContext) TruncateHistory(keep int) {
	if keep < 0 || len(c.History) <= keep {
		return
	}
	kept := make([]contractx.HistoryMessage, keep)
	copy(kept, c.History[len(c.History)-keep:])
	c.History = kept
}

func (c *SessionContext) Validate() error {
	if c == nil {
		return ErrNilContext
	}
	if strings.TrimSpace(c.SessionID) == "" {
		return ErrInvalidSession
	}
	if c.ExpiresAt.Before(c.CreatedAt) {
		return fmt.Errorf("expires_at precedes created_at for session %s", c.SessionID)
	}
	for _, req := range c.Requirements {
		if !req.Type.Valid() {
			return fmt.Errorf("invalid requirement type %q in session %s", req.Type, c.SessionID)
		}
	}
	return nil
}
