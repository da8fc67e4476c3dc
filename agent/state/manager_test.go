package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	contractx "github.com/cloudcraft-labs/archadvisor/agent/contract"
)

type stubStore struct {
	contexts map[string]*SessionContext
	loadErr  error
	saveErr  error
	saves    int
}

func newStubStore() *stubStore {
	return &stubStore{contexts: make(map[string]*SessionContext)}
}

func (s *stubStore) Load(ctx context.Context, sessionID string) (*SessionContext, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	sc, ok := s.contexts[sessionID]
	if !ok {
		return nil, ErrContextNotFound
	}
	return sc, nil
}

func (s *stubStore) Save(ctx context.Context, sc *SessionContext) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.contexts[sc.SessionID] = sc
	return nil
}

func (s *stubStore) Delete(ctx context.Context, sessionID string) error {
	delete(s.contexts, sessionID)
	return nil
}

type stubSummarizer struct {
	summary string
	err     error
	calls   int
}

func (s *stubSummarizer) Summarize(ctx context.Context, history []contractx.HistoryMessage) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.summary, nil
}

func TestManagerLoadMissingReturnsFreshContext(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m, err := NewManager(newStubStore(), nil, ManagerConfig{})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	m.WithClock(func() time.Time { return now })

	sc, err := m.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if sc.SessionID != "s1" || len(sc.History) != 0 {
		t.Fatalf("expected fresh context, got %+v", sc)
	}
	if !sc.ExpiresAt.Equal(now.Add(30 * 24 * time.Hour)) {
		t.Fatalf("expected 30-day retention, got %v", sc.ExpiresAt)
	}
}

func TestManagerLoadExpiredReturnsFreshContext(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	now := created.Add(31 * 24 * time.Hour)

	store := newStubStore()
	old := NewSessionContext("s1", created, 30*24*time.Hour)
	old.Summary = "old summary"
	store.contexts["s1"] = old

	m, err := NewManager(store, nil, ManagerConfig{})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	m.WithClock(func() time.Time { return now })

	sc, err := m.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if sc.Summary != "" {
		t.Fatal("expected expired context replaced with a fresh one")
	}
	if !sc.CreatedAt.Equal(now) {
		t.Fatalf("fresh context CreatedAt = %v, want %v", sc.CreatedAt, now)
	}
}

func TestManagerLoadOtherErrorsPropagate(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.loadErr = errors.New("redis down")

	m, err := NewManager(store, nil, ManagerConfig{})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	if _, err := m.Load(context.Background(), "s1"); !errors.Is(err, store.loadErr) {
		t.Fatalf("Load() error = %v, want store error", err)
	}
}

func TestManagerPersistSummarizesOverThreshold(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := newStubStore()
	summarizer := &stubSummarizer{summary: "they are building a web shop on EC2"}

	m, err := NewManager(store, summarizer, ManagerConfig{
		SummaryThreshold: 10,
		HistoryWindow:    4,
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	m.WithClock(func() time.Time { return now })

	sc := NewSessionContext("s1", now, 30*24*time.Hour)
	for i := 0; i < 15; i++ {
		sc.AppendHistory(contractx.HistoryMessage{Role: contractx.RoleUser, Content: fmt.Sprintf("msg %d", i), At: now})
	}

	if err := m.Persist(context.Background(), sc); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if summarizer.calls != 1 {
		t.Fatalf("expected one summarization, got %d", summarizer.calls)
	}
	if sc.Summary != summarizer.summary {
		t.Fatalf("Summary = %q", sc.Summary)
	}
	if len(sc.History) != 4 {
		t.Fatalf("expected history truncated to window, got %d", len(sc.History))
	}
	if sc.History[3].Content != "msg 14" {
		t.Fatalf("expected newest messages kept, got %q", sc.History[3].Content)
	}
	if store.saves != 1 {
		t.Fatalf("expected one save, got %d", store.saves)
	}
}

func TestManagerPersistCapsSummaryLength(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	summarizer := &stubSummarizer{summary: strings.Repeat("x", 900)}

	m, err := NewManager(newStubStore(), summarizer, ManagerConfig{
		SummaryThreshold: 5,
		HistoryWindow:    2,
		SummaryMaxChars:  500,
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	m.WithClock(func() time.Time { return now })

	sc := NewSessionContext("s1", now, 30*24*time.Hour)
	for i := 0; i < 8; i++ {
		sc.AppendHistory(contractx.HistoryMessage{Role: contractx.RoleUser, Content: "m", At: now})
	}

	if err := m.Persist(context.Background(), sc); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if len(sc.Summary) != 500 {
		t.Fatalf("summary length = %d, want 500", len(sc.Summary))
	}
	if !strings.HasSuffix(sc.Summary, "...") {
		t.Fatal("expected truncation marker")
	}
}

func TestManagerPersistTruncatesSummaryOnRuneBoundary(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	summarizer := &stubSummarizer{summary: strings.Repeat("需", 40)}

	m, err := NewManager(newStubStore(), summarizer, ManagerConfig{
		SummaryThreshold: 5,
		HistoryWindow:    2,
		SummaryMaxChars:  10,
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	m.WithClock(func() time.Time { return now })

	sc := NewSessionContext("s1", now, 30*24*time.Hour)
	for i := 0; i < 8; i++ {
		sc.AppendHistory(contractx.HistoryMessage{Role: contractx.RoleUser, Content: "m", At: now})
	}

	if err := m.Persist(context.Background(), sc); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if !utf8.ValidString(sc.Summary) {
		t.Fatalf("summary is not valid UTF-8: %q", sc.Summary)
	}
	if got := utf8.RuneCountInString(sc.Summary); got != 10 {
		t.Fatalf("summary rune count = %d, want 10", got)
	}
	if sc.Summary != strings.Repeat("需", 7)+"..." {
		t.Fatalf("summary = %q", sc.Summary)
	}
}

func TestClipSummaryTinyBound(t *testing.T) {
	t.Parallel()

	// Bounds at or below the marker length keep a plain rune-safe prefix.
	if got := clipSummary("需要更多信息", 2); got != "需要" {
		t.Fatalf("clipSummary(2) = %q", got)
	}
	if got := clipSummary("abcdef", 3); got != "abc" {
		t.Fatalf("clipSummary(3) = %q", got)
	}
	if got := clipSummary("short", 10); got != "short" {
		t.Fatalf("clipSummary(10) = %q", got)
	}
}

func TestManagerPersistSummarizerFailureKeepsHistory(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	summarizer := &stubSummarizer{err: errors.New("model down")}
	store := newStubStore()

	m, err := NewManager(store, summarizer, ManagerConfig{
		SummaryThreshold: 5,
		HistoryWindow:    2,
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	m.WithClock(func() time.Time { return now })

	sc := NewSessionContext("s1", now, 30*24*time.Hour)
	sc.Summary = "prior summary"
	for i := 0; i < 20; i++ {
		sc.AppendHistory(contractx.HistoryMessage{Role: contractx.RoleUser, Content: "m", At: now})
	}

	if err := m.Persist(context.Background(), sc); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if sc.Summary != "prior summary" {
		t.Fatalf("prior summary lost: %q", sc.Summary)
	}
	// History is kept under the hard cap instead of the summarized window.
	if len(sc.History) != 10 {
		t.Fatalf("expected history capped at twice the threshold, got %d", len(sc.History))
	}
	if store.saves != 1 {
		t.Fatalf("persist must still happen, got %d saves", store.saves)
	}
}

func TestManagerPersistWrapsStoreError(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.saveErr = errors.New("save failed")

	m, err := NewManager(store, nil, ManagerConfig{})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sc := NewSessionContext("s1", now, time.Hour)
	if err := m.Persist(context.Background(), sc); !errors.Is(err, contractx.ErrStorePersist) {
		t.Fatalf("Persist() error = %v, want ErrStorePersist", err)
	}
}
