package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/cloudcraft-labs/archadvisor/agent/contract"
)

// ManagerConfig tunes context lifecycle. Defaults mirror the retention and
// summarization behavior of the production system: 30-day sessions,
// summarize once raw history passes 50 messages, keep a 10-message window
// for active processing, cap summaries at 500 characters.
type ManagerConfig struct {
	RetentionDays    int           `envconfig:"RETENTION_DAYS" split_words:"true" default:"30"`
	SummaryThreshold int           `envconfig:"SUMMARY_THRESHOLD" split_words:"true" default:"50"`
	HistoryWindow    int           `envconfig:"HISTORY_WINDOW" split_words:"true" default:"10"`
	SummaryMaxChars  int           `envconfig:"SUMMARY_MAX_CHARS" split_words:"true" default:"500"`
	SummarizeTimeout time.Duration `envconfig:"SUMMARIZE_TIMEOUT" split_words:"true" default:"20s"`
}

// Manager owns the context lifecycle: load with expiry-as-absence, staged
// in-memory merges, and a single atomic write per message through Persist.
type Manager struct {
	store      Store
	summarizer contractx.Summarizer
	cfg        ManagerConfig
	now        func() time.Time
}

func NewManager(store Store, summarizer contractx.Summarizer, cfg ManagerConfig) (*Manager, error) {
	if store == nil {
		return nil, errors.New("state: store is required")
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if cfg.SummaryThreshold <= 0 {
		cfg.SummaryThreshold = 50
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 10
	}
	if cfg.SummaryMaxChars <= 0 {
		cfg.SummaryMaxChars = 500
	}
	if cfg.SummarizeTimeout <= 0 {
		cfg.SummarizeTimeout = 20 * time.Second
	}
	return &Manager{
		store:      store,
		summarizer: summarizer,
		cfg:        cfg,
		now:        time.Now,
	}, nil
}

// WithClock overrides the manager's time source. Test hook.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	if now != nil {
		m.now = now
	}
	return m
}

func (m *Manager) Retention() time.Duration {
	return time.Duration(m.cfg.RetentionDays) * 24 * time.Hour
}

// Load returns the stored context for the session, or a fresh empty one
// when no context exists or the stored one has expired. Expiry is treated
// as absence, never surfaced as an error.
func (m *Manager) Load(ctx context.Context, sessionID string) (*SessionContext, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}

	now := m.now().UTC()
	sc, err := m.store.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrContextNotFound) {
			return NewSessionContext(sessionID, now, m.Retention()), nil
		}
		return nil, err
	}
	if sc.Expired(now) {
		log.Debug().Str("session_id", sessionID).Time("expired_at", sc.ExpiresAt).
			Msg("session context expired, starting fresh")
		return NewSessionContext(sessionID, now, m.Retention()), nil
	}
	return sc, nil
}

// Merge stages new requirements, an optional superseding recommendation,
// and the processed intent batch into the context in memory. Nothing is
// written to the store until Persist.
func (m *Manager) Merge(
	sc *SessionContext,
	newRequirements []contractx.Requirement,
	newRecommendation *contractx.Recommendation,
	processedIntents []*contractx.Intent,
) error {
	if sc == nil {
		return ErrNilContext
	}
	sc.MergeRequirements(newRequirements)
	if newRecommendation != nil {
		sc.SetRecommendation(newRecommendation)
	}
	if len(processedIntents) > 0 {
		sc.SetLastIntents(processedIntents)
	}
	sc.Touch(m.now())
	return nil
}

// Persist is the single write path. It runs the summarization check first
// so the stored context never exceeds the history cap, then writes the
// whole context in one store call.
func (m *Manager) Persist(ctx context.Context, sc *SessionContext) error {
	if sc == nil {
		return ErrNilContext
	}
	m.maybeSummarize(ctx, sc)
	sc.Touch(m.now())
	if err := m.store.Save(ctx, sc); err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrStorePersist, err)
	}
	return nil
}

// maybeSummarize compresses history into the summary once it passes the
// threshold. Best-effort: on any failure the prior summary is kept and the
// raw history is retained (size-capped) instead of losing data.
func (m *Manager) maybeSummarize(ctx context.Context, sc *SessionContext) {
	if len(sc.History) <= m.cfg.SummaryThreshold {
		return
	}
	if m.summarizer == nil {
		m.capHistory(sc)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, m.cfg.SummarizeTimeout)
	defer cancel()

	summary, err := m.summarizer.Summarize(callCtx, sc.History)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sc.SessionID).Int("history_len", len(sc.History)).
			Msg("summarization failed, keeping prior summary")
		m.capHistory(sc)
		return
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		m.capHistory(sc)
		return
	}
	sc.Summary = clipSummary(summary, m.cfg.SummaryMaxChars)
	sc.TruncateHistory(m.cfg.HistoryWindow)
}

// clipSummary bounds the summary to max characters, cutting on a rune
// boundary so multi-byte text is never split mid-character.
func clipSummary(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// capHistory bounds history growth when summarization is unavailable. The
// cap is deliberately looser than the summarization window so no recent
// turns are dropped on a transient summarizer failure.
func (m *Manager) capHistory(sc *SessionContext) {
	hardCap := m.cfg.SummaryThreshold * 2
	sc.TruncateHistory(hardCap)
}
