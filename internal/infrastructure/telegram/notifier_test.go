package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestPublishDigest(t *testing.T) {
	t.Parallel()

	var gotPath, gotChat, gotText, gotMode string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gotPath = r.URL.Path
		gotChat = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		gotMode = r.PostForm.Get("parse_mode")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	n := NewNotifier(srv.URL+"/", "tok", "42")
	if err := n.PublishDigest(context.Background(), "women_of_color: 3"); err != nil {
		t.Fatalf("PublishDigest: %v", err)
	}
	if gotPath != "/bottok/sendMessage" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotChat != "42" || gotText != "women_of_color: 3" || gotMode != "" {
		t.Fatalf("unexpected form chat=%q text=%q mode=%q", gotChat, gotText, gotMode)
	}
}

func TestPublishDigestErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	if err := NewNotifier(srv.URL, "tok", "42").PublishDigest(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected status error, got %v", err)
	}
	if err := NewNotifier(srv.URL, "", "42").PublishDigest(context.Background(), "x"); err == nil {
		t.Fatal("expected misconfiguration error")
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate changed short text: %q", got)
	}
	long := strings.Repeat("é", 5000)
	got := truncate(long, maxMessageRunes)
	if n := utf8.RuneCountInString(got); n != maxMessageRunes {
		t.Fatalf("truncated length %d", n)
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("missing marker")
	}
}
