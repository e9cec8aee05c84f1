package source

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mjf789/spam-news/internal/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func ids(recs []domain.RawArticle) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func TestFileSourceLoadsDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "b.jsonl", `{"article_id":"b1","source":"s","date":"2020-01-01","title":"t","content":"c"}

{"article_id":"b2","source":"s","date":"2020-01-02","title":"t","content":"c","human_coding":{"obstacles":{"women":2}}}
`)
	writeFile(t, dir, "a.json", `[{"article_id":"a1","source":"s","date":"2020-01-01","title":"t","content":"c"}]`)
	writeFile(t, dir, "notes.txt", "ignored")

	src := NewFileSource([]string{dir}, nil, quietLogger())
	recs, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]string{"a1", "b1", "b2"}, ids(recs)); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
	if got := recs[2].HumanCoding["obstacles"]["women"]; got != 2 {
		t.Fatalf("human coding = %v", got)
	}
}

func TestFileSourceSingleObject(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "one.json", `{"article_id":"x","content":"plain"}`)
	recs, err := NewFileSource([]string{path}, nil, quietLogger()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "x" {
		t.Fatalf("unexpected records %+v", recs)
	}
}

func TestFileSourceReportsLine(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "bad.jsonl", "{\"article_id\":\"ok\"}\n{broken\n")
	_, err := NewFileSource([]string{path}, nil, quietLogger()).Load(context.Background())
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected line 2 error, got %v", err)
	}
}

func TestCleanHTML(t *testing.T) {
	t.Parallel()

	html := `<html><head><style>p{}</style></head><body>
	<nav><p>Home | About</p></nav>
	<h1>Boards   still lag</h1>
	<p>Only 1% of Fortune 500 CEOs are <b>Black women</b>.</p>
	<script>track()</script>
	<div><p>Women of color face a
	concrete ceiling.</p></div>
	</body></html>`
	if !LooksLikeHTML(html) {
		t.Fatal("expected html detection")
	}
	got, err := CleanHTML(html)
	if err != nil {
		t.Fatalf("CleanHTML: %v", err)
	}
	want := "Boards still lag\n\nOnly 1% of Fortune 500 CEOs are Black women.\n\nWomen of color face a concrete ceiling."
	if got != want {
		t.Fatalf("CleanHTML =\n%q\nwant\n%q", got, want)
	}
	if LooksLikeHTML("Revenue grew 5% while costs < budget.") {
		t.Fatal("plain text detected as html")
	}
}

func TestHTTPSource(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = io.WriteString(w, `{"article_id":"h1","content":"<p>Hello <i>there</i></p>"}`+"\n")
	}))
	t.Cleanup(srv.Close)

	recs, err := NewHTTPSource(srv.URL, "key", srv.Client(), quietLogger()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(recs) != 1 || recs[0].Content != "Hello there" {
		t.Fatalf("unexpected records %+v", recs)
	}

	_, err = NewHTTPSource(srv.URL, "", srv.Client(), quietLogger()).Load(context.Background())
	if err == nil {
		t.Fatal("expected status error")
	}
}
