package ml

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mjf789/spam-news/internal/domain"
)

func TestScore(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classify" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req classifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		resp := classifyResponse{}
		for range req.Texts {
			resp.Scores = append(resp.Scores, map[string]float64{"obstacles": 0.8, "Successes": 0.1, "noise": 1})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL+"/", "secret")
	got, err := c.Score(context.Background(), []string{"a", "b"}, domain.AllFrames)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	want := []map[domain.FrameLabel]float64{
		{domain.FrameObstacles: 0.8, domain.FrameSuccesses: 0.1},
		{domain.FrameObstacles: 0.8, domain.FrameSuccesses: 0.1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("scores mismatch (-want +got):\n%s", diff)
	}
}

func TestScoreErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	if _, err := NewClient(srv.URL, "").Score(context.Background(), []string{"a"}, domain.AllFrames); err == nil {
		t.Fatal("expected status error")
	}

	short := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"scores":[]}`))
	}))
	t.Cleanup(short.Close)

	if _, err := NewClient(short.URL, "").Score(context.Background(), []string{"a"}, domain.AllFrames); err == nil {
		t.Fatal("expected length mismatch error")
	}
}
