// Package llm implements the model-backed collaborators (classifier,
// extractor, recommender, summarizer) on top of the OpenAI chat
// completions API.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"

	contractx "github.com/cloudcraft-labs/archadvisor/agent/contract"
	promptx "github.com/cloudcraft-labs/archadvisor/agent/prompt"
	openaix "github.com/cloudcraft-labs/archadvisor/pkg/openaix"
)

// Client wraps the SDK with the prompt set and JSON-mode helpers the
// collaborators share.
type Client struct {
	api     *openaisdk.Client
	cfg     openaix.Config
	prompts promptx.PromptSet
}

func NewClient(cfg openaix.Config) (*Client, error) {
	api := openaix.NewClient(cfg)
	if api == nil {
		return nil, fmt.Errorf("%w: openai api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("%w: model is required", contractx.ErrValidation)
	}
	return &Client{
		api:     api,
		cfg:     cfg,
		prompts: promptx.LoadPromptSet(),
	}, nil
}

// completeJSON runs one JSON-mode completion and decodes the reply into
// out.
func (c *Client) completeJSON(ctx context.Context, system, user string, out any) error {
	content, err := c.complete(ctx, system, user, true)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(stripFences(content)), out); err != nil {
		return fmt.Errorf("%w: decode model reply: %v", contractx.ErrSchemaViolation, err)
	}
	return nil
}

func (c *Client) completeText(ctx context.Context, system, user string) (string, error) {
	content, err := c.complete(ctx, system, user, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (c *Client) complete(ctx context.Context, system, user string, jsonMode bool) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	params := openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(c.cfg.Model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(system),
			openaisdk.UserMessage(user),
		},
		Temperature: openaisdk.Float(c.cfg.Temperature),
		MaxTokens:   openaisdk.Int(int64(c.cfg.MaxCompletionToken)),
	}
	if jsonMode {
		params.ResponseFormat = openaisdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openaisdk.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := c.api.Chat.Completions.New(callCtx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: model returned no choices", contractx.ErrModelInvoke)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: model returned empty content", contractx.ErrSchemaViolation)
	}
	return content, nil
}

// stripFences removes a markdown code fence if the model wrapped its JSON
// in one despite JSON mode.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	if idx := strings.LastIndex(content, "```"); idx >= 0 {
		content = content[:idx]
	}
	return strings.TrimSpace(content)
}

var errEmptyMessage = errors.New("llm: message is empty")

// historyLines renders the newest n turns for inclusion in a prompt.
func historyLines(history []contractx.HistoryMessage, n int) string {
	if len(history) == 0 {
		return ""
	}
	if n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	var b strings.Builder
	for _, msg := range history {
		b.WriteString(msg.Role)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}
