package source

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/mjf789/spam-news/internal/domain"
	"github.com/mjf789/spam-news/internal/ports"
)

// HTTPSource implements ArticleSource by fetching records from an article
// store endpoint that serves a JSON array or JSONL.
type HTTPSource struct {
	url    string
	apiKey string
	client *http.Client
	logger *slog.Logger
}

var _ ports.ArticleSource = (*HTTPSource)(nil)

// NewHTTPSource wires an HTTP client; a nil client gets a 60s timeout.
func NewHTTPSource(url, apiKey string, client *http.Client, logger *slog.Logger) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPSource{url: url, apiKey: apiKey, client: client, logger: logger}
}

// Load implements ArticleSource.
func (s *HTTPSource) Load(ctx context.Context) ([]domain.RawArticle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/x-ndjson")
	req.Header.Set("User-Agent", "framecount/1.0")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request articles: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("article store returned %s", resp.Status)
	}

	var dec Decoder = JSONDecoder{}
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil {
		switch mt {
		case "application/x-ndjson", "application/jsonl", "application/x-jsonlines":
			dec = JSONLDecoder{}
		}
	}

	recs, err := dec.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", dec.Name(), err)
	}
	s.logger.Debug("articles fetched", "url", s.url, "records", len(recs))
	return cleanRecords(recs, s.logger), nil
}
