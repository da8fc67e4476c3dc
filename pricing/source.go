package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SourceConfig configures the external pricing API client.
type SourceConfig struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// HTTPSource fetches on-demand prices from the pricing API over REST.
type HTTPSource struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type priceResponse struct {
	Amount *float64 `json:"amount"`
	Unit   string   `json:"unit"`
	Error  string   `json:"error"`
}

func NewHTTPSource(cfg SourceConfig) (*HTTPSource, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("pricing: source url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("pricing: invalid source url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTPSource{
		baseURL: baseURL,
		token:   strings.TrimSpace(cfg.Token),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// WithHTTPClient replaces the underlying client. Test hook.
func (s *HTTPSource) WithHTTPClient(client *http.Client) *HTTPSource {
	if client != nil {
		s.httpClient = client
	}
	return s
}

func (s *HTTPSource) FetchPrice(ctx context.Context, serviceKey, region string) (float64, string, error) {
	if strings.TrimSpace(serviceKey) == "" || strings.TrimSpace(region) == "" {
		return 0, "", ErrInvalidKey
	}

	endpoint := fmt.Sprintf("%s/v1/price?service=%s&region=%s",
		s.baseURL, url.QueryEscape(serviceKey), url.QueryEscape(region))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, "", fmt.Errorf("pricing: build source request: %w", err)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("pricing: execute source request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, "", fmt.Errorf("pricing: read source response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return 0, "", fmt.Errorf("pricing: source http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed priceResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return 0, "", fmt.Errorf("pricing: decode source response: %w", err)
	}
	if parsed.Error != "" {
		return 0, "", errors.New(parsed.Error)
	}
	if parsed.Amount == nil {
		return 0, "", errors.New("pricing: source response has no amount")
	}

	unit := parsed.Unit
	if unit == "" {
		unit = "USD/month"
	}
	return *parsed.Amount, unit, nil
}
