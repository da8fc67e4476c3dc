package llm

import (
	"context"
	"fmt"

	contractx "github.com/cloudcraft-labs/archadvisor/agent/contract"
)

const summaryMaxChars = 500

// ConversationSummarizer compresses history into a bounded plain-text
// summary.
type ConversationSummarizer struct {
	c *Client
}

func NewConversationSummarizer(c *Client) *ConversationSummarizer {
	return &ConversationSummarizer{c: c}
}

func (s *ConversationSummarizer) Summarize(ctx context.Context, history []contractx.HistoryMessage) (string, error) {
	if len(history) == 0 {
		return "", nil
	}

	user := "Conversation:\n" + historyLines(history, 20)
	summary, err := s.c.completeText(ctx, s.c.prompts.Summarizer, user)
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrSummarization, err)
	}
	return clipSummary(summary), nil
}

// clipSummary enforces the character bound on a rune boundary so
// multi-byte text is never split mid-character.
func clipSummary(s string) string {
	runes := []rune(s)
	if len(runes) <= summaryMaxChars {
		return s
	}
	return string(runes[:summaryMaxChars-3]) + "..."
}

var _ contractx.Summarizer = (*ConversationSummarizer)(nil)
