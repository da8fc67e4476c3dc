// Package orchestrator wires the conversation pipeline and exposes the
// single entry point for handling a user message.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/cloudcraft-labs/archadvisor/agent/contract"
	intentx "github.com/cloudcraft-labs/archadvisor/agent/intent"
	nodex "github.com/cloudcraft-labs/archadvisor/agent/nodes"
	statex "github.com/cloudcraft-labs/archadvisor/agent/state"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidSession = nodex.ErrInvalidSession
	ErrSessionBusy    = contractx.ErrSessionBusy
)

type Config struct {
	// QueueDepth is how many messages may wait behind the one being
	// processed for the same session before new arrivals are rejected.
	QueueDepth int `envconfig:"QUEUE_DEPTH" split_words:"true" default:"4"`

	// SalvageTimeout bounds the best-effort context write attempted after
	// a mid-pipeline failure.
	SalvageTimeout time.Duration `envconfig:"SALVAGE_TIMEOUT" split_words:"true" default:"5s"`
}

type Orchestrator struct {
	manager    *statex.Manager
	classifier contractx.Classifier
	extractor  contractx.RequirementExtractor
	scheduler  *intentx.Scheduler
	formatter  contractx.ResponseFormatter

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]
	gate        *sessionGate

	salvageTimeout time.Duration
	now            func() time.Time
}

func New(
	manager *statex.Manager,
	classifier contractx.Classifier,
	extractor contractx.RequirementExtractor,
	scheduler *intentx.Scheduler,
	formatter contractx.ResponseFormatter,
	cfg Config,
) (*Orchestrator, error) {
	if manager == nil {
		return nil, errors.New("context manager is required")
	}
	if classifier == nil {
		return nil, errors.New("intent classifier is required")
	}
	if extractor == nil {
		return nil, errors.New("requirement extractor is required")
	}
	if scheduler == nil {
		return nil, errors.New("intent scheduler is required")
	}
	if formatter == nil {
		return nil, errors.New("response formatter is required")
	}
	if cfg.QueueDepth < 0 {
		cfg.QueueDepth = 0
	}
	if cfg.SalvageTimeout <= 0 {
		cfg.SalvageTimeout = 5 * time.Second
	}

	o := &Orchestrator{
		manager:        manager,
		classifier:     classifier,
		extractor:      extractor,
		scheduler:      scheduler,
		formatter:      formatter,
		gate:           newSessionGate(cfg.QueueDepth),
		salvageTimeout: cfg.SalvageTimeout,
		now:            time.Now,
	}

	graphRunner, err := o.compileHandleMessageGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleMessage runs one user message through the pipeline. Messages for
// the same session are serialized; concurrent sessions proceed
// independently.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID string, text string) (*contractx.Response, error) {
	release, err := o.gate.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	trace := &nodex.Trace{}
	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		SessionID: sessionID,
		Text:      text,
		Trace:     trace,
	})
	if err != nil {
		o.salvageContext(sessionID, trace, err)
		return nil, err
	}
	return out.Response, nil
}

// salvageContext makes a best-effort write of whatever context mutations
// the pipeline accumulated before failing, so a partial turn is not lost.
// Skipped when the failure was the persist itself or the write already
// happened.
func (o *Orchestrator) salvageContext(sessionID string, trace *nodex.Trace, cause error) {
	gs := trace.State
	if gs == nil || gs.Context == nil || gs.Persisted {
		return
	}
	if errors.Is(cause, contractx.ErrStorePersist) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.salvageTimeout)
	defer cancel()

	if err := o.manager.Persist(ctx, gs.Context); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).
			Msg("failed to salvage partial context after pipeline error")
		return
	}
	log.Debug().Str("session_id", sessionID).Msg("salvaged partial context after pipeline error")
}
