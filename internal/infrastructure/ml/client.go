package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mjf789/spam-news/internal/domain"
	"github.com/mjf789/spam-news/internal/ports"
)

// Client talks to an external inference service that scores texts against
// frame labels.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.FrameOracle = (*Client)(nil)

// NewClient creates a reusable HTTP client. Timeouts are applied per call
// by the caller's context; the client timeout is only a backstop.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 2 * time.Minute},
	}
}

type classifyRequest struct {
	Texts  []string `json:"texts"`
	Labels []string `json:"labels"`
}

type classifyResponse struct {
	Scores []map[string]float64 `json:"scores"`
}

// Score sends one batch to /classify.
func (c *Client) Score(ctx context.Context, texts []string, labels []domain.FrameLabel) ([]map[domain.FrameLabel]float64, error) {
	payload := classifyRequest{Texts: texts, Labels: make([]string, len(labels))}
	for i, l := range labels {
		payload.Labels[i] = string(l)
	}

	var resp classifyResponse
	if err := c.post(ctx, "/classify", payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.Scores) != len(texts) {
		return nil, fmt.Errorf("classify returned %d score sets for %d texts", len(resp.Scores), len(texts))
	}

	out := make([]map[domain.FrameLabel]float64, len(resp.Scores))
	for i, set := range resp.Scores {
		out[i] = make(map[domain.FrameLabel]float64, len(set))
		for name, v := range set {
			frame, err := domain.ParseFrame(name)
			if err != nil {
				continue
			}
			out[i][frame] = v
		}
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
