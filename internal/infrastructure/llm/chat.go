package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mjf789/spam-news/internal/config"
	"github.com/mjf789/spam-news/internal/domain"
	"github.com/mjf789/spam-news/internal/ports"
)

// ChatOracle implements ports.FrameOracle on top of an OpenAI-compatible
// chat completions API. One request scores a whole batch.
type ChatOracle struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
}

var _ ports.FrameOracle = (*ChatOracle)(nil)

// NewChatOracle builds a client from configuration.
func NewChatOracle(cfg config.OracleConfig) *ChatOracle {
	return &ChatOracle{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type batchScores struct {
	Scores []map[string]float64 `json:"scores"`
}

// Score asks the model for one probability per label and text.
func (c *ChatOracle) Score(ctx context.Context, texts []string, labels []domain.FrameLabel) ([]map[domain.FrameLabel]float64, error) {
	if c == nil {
		return nil, fmt.Errorf("chat oracle is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return nil, fmt.Errorf("chat oracle misconfigured")
	}

	prompt, err := userPrompt(texts, labels)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: safePrompt(c.systemPrompt)},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("chat error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("chat response has no choices")
	}
	return parseScores(decoded.Choices[0].Message.Content, len(texts))
}

func userPrompt(texts []string, labels []domain.FrameLabel) (string, error) {
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = string(l)
	}
	payload, err := json.Marshal(map[string]any{"labels": names, "texts": texts})
	if err != nil {
		return "", fmt.Errorf("marshal prompt: %w", err)
	}
	return "Score every text against every label with a probability between 0 and 1. " +
		`Answer with a JSON object {"scores": [{"<label>": <probability>}]} holding one entry per text, in input order.` +
		"\n\n" + string(payload), nil
}

// parseScores tolerates a fenced code block around the JSON object.
func parseScores(content string, want int) ([]map[domain.FrameLabel]float64, error) {
	content = strings.TrimSpace(content)
	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		content = content[start : end+1]
	}

	var parsed batchScores
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("parse model answer: %w", err)
	}
	if len(parsed.Scores) != want {
		return nil, fmt.Errorf("model returned %d score sets for %d texts", len(parsed.Scores), want)
	}

	out := make([]map[domain.FrameLabel]float64, len(parsed.Scores))
	for i, set := range parsed.Scores {
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

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You label news text with narrative frames about leadership and demographic groups. " +
			"underrepresentation: a group is described as scarce or missing. " +
			"overrepresentation: a group is described as dominating. " +
			"obstacles: barriers or discrimination a group faces. " +
			"successes: achievements or advancement of a group."
	}
	return prompt
}
