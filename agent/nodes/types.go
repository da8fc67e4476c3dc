// Package orchestratornode holds the pipeline steps the conversation
// orchestrator composes into its message-handling graph. Each step is a
// plain function over *GraphState so it can be tested without the graph.
package orchestratornode

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	contractx "github.com/cloudcraft-labs/archadvisor/agent/contract"
	statex "github.com/cloudcraft-labs/archadvisor/agent/state"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidSession = errors.New("session id is empty")
)

type GraphInput struct {
	SessionID string
	Text      string

	// Trace, when set, receives the in-flight GraphState so the caller can
	// salvage context mutations after a mid-pipeline failure.
	Trace *Trace
}

type GraphOutput struct {
	Response *contractx.Response
}

// Trace exposes the pipeline's working state to the orchestrator for
// best-effort partial persistence. Valid only for the single invocation
// it was passed to.
type Trace struct {
	State *GraphState
}

type GraphState struct {
	SessionID string
	MessageID string
	Text      string
	Now       time.Time

	Context  *statex.SessionContext
	Intents  []*contractx.Intent
	Outcomes []contractx.IntentOutcome
	Response *contractx.Response

	// Persisted marks that the single context write for this message has
	// happened, so failure salvage does not write twice.
	Persisted bool
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	gs := &GraphState{
		SessionID: sessionID,
		MessageID: uuid.NewString(),
		Text:      text,
		Now:       nowFn().UTC(),
	}
	if in.Trace != nil {
		in.Trace.State = gs
	}
	return gs, nil
}
