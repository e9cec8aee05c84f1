package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mjf789/spam-news/internal/config"
	"github.com/mjf789/spam-news/internal/domain"
)

func chatServer(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Model != "test-model" || len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if !strings.Contains(req.Messages[1].Content, `"obstacles"`) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": answer}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func oracle(url string) *ChatOracle {
	return NewChatOracle(config.OracleConfig{Endpoint: url, Model: "test-model", APIKey: "key"})
}

func TestChatOracleScore(t *testing.T) {
	t.Parallel()

	answer := "```json\n{\"scores\": [{\"obstacles\": 0.9, \"successes\": 0.2}, {\"Obstacles\": 0.1, \"other\": 1}]}\n```"
	srv := chatServer(t, answer)

	got, err := oracle(srv.URL).Score(context.Background(),
		[]string{"A glass ceiling remains.", "Nothing here."},
		[]domain.FrameLabel{domain.FrameObstacles, domain.FrameSuccesses})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	want := []map[domain.FrameLabel]float64{
		{domain.FrameObstacles: 0.9, domain.FrameSuccesses: 0.2},
		{domain.FrameObstacles: 0.1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("scores mismatch (-want +got):\n%s", diff)
	}
}

func TestChatOracleWrongCount(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, `{"scores": [{"obstacles": 0.9}]}`)
	_, err := oracle(srv.URL).Score(context.Background(), []string{"a", "b"}, []domain.FrameLabel{domain.FrameObstacles})
	if err == nil || !strings.Contains(err.Error(), "1 score sets for 2 texts") {
		t.Fatalf("expected count error, got %v", err)
	}
}

func TestChatOracleErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	_, err := oracle(srv.URL).Score(context.Background(), []string{"a"}, []domain.FrameLabel{domain.FrameObstacles})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected status error, got %v", err)
	}

	_, err = NewChatOracle(config.OracleConfig{Endpoint: srv.URL}).Score(context.Background(), []string{"a"}, nil)
	if err == nil || !strings.Contains(err.Error(), "misconfigured") {
		t.Fatalf("expected misconfiguration error, got %v", err)
	}
}
