package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/mjf789/spam-news/internal/domain"
)

// Decoder turns one input stream into raw article records.
type Decoder interface {
	Name() string
	Decode(r io.Reader) ([]domain.RawArticle, error)
}

// JSONDecoder reads a JSON array of records, or a single record object.
type JSONDecoder struct{}

// Name identifies the decoder.
func (JSONDecoder) Name() string { return "json" }

// Decode implements Decoder.
func (JSONDecoder) Decode(r io.Reader) ([]domain.RawArticle, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '{' {
		var one domain.RawArticle
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, fmt.Errorf("decode json object: %w", err)
		}
		return []domain.RawArticle{one}, nil
	}
	var many []domain.RawArticle
	if err := json.Unmarshal(data, &many); err != nil {
		return nil, fmt.Errorf("decode json array: %w", err)
	}
	return many, nil
}

// JSONLDecoder reads one record per line. Blank lines are ignored.
type JSONLDecoder struct{}

// Name identifies the decoder.
func (JSONLDecoder) Name() string { return "jsonl" }

// maxLineBytes bounds a single JSONL record.
const maxLineBytes = 16 << 20

// Decode implements Decoder.
func (JSONLDecoder) Decode(r io.Reader) ([]domain.RawArticle, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var out []domain.RawArticle
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var rec domain.RawArticle
		if err := json.Unmarshal(text, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan jsonl: %w", err)
	}
	return out, nil
}

// Registry maps file extensions to decoders.
type Registry struct {
	byExt map[string]Decoder
}

// NewRegistry returns the default registry for .json, .jsonl and .ndjson.
func NewRegistry() *Registry {
	r := &Registry{byExt: map[string]Decoder{}}
	r.Register(".json", JSONDecoder{})
	r.Register(".jsonl", JSONLDecoder{})
	r.Register(".ndjson", JSONLDecoder{})
	return r
}

// Register adds or replaces the decoder of an extension.
func (r *Registry) Register(ext string, d Decoder) {
	r.byExt[strings.ToLower(ext)] = d
}

// Resolve returns the decoder of a path by extension.
func (r *Registry) Resolve(path string) (Decoder, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if d, ok := r.byExt[ext]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("no decoder for %q files", ext)
}

// Supports reports whether path has a registered extension.
func (r *Registry) Supports(path string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}
