package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/mjf789/spam-news/internal/domain"
	"github.com/mjf789/spam-news/internal/ports"
)

// FileSource implements ArticleSource over JSON and JSONL files. Directory
// paths are walked for files with a registered extension.
type FileSource struct {
	paths    []string
	registry *Registry
	logger   *slog.Logger
}

var _ ports.ArticleSource = (*FileSource)(nil)

// NewFileSource wires paths with the decoder registry.
func NewFileSource(paths []string, registry *Registry, logger *slog.Logger) *FileSource {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{paths: paths, registry: registry, logger: logger}
}

// Load reads every file in path order. HTML content is reduced to text.
func (s *FileSource) Load(ctx context.Context) ([]domain.RawArticle, error) {
	if len(s.paths) == 0 {
		return nil, fmt.Errorf("no input paths configured")
	}

	files, err := s.expand()
	if err != nil {
		return nil, err
	}
	s.logger.Debug("load articles", "files", len(files))

	var out []domain.RawArticle
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs, err := s.loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		s.logger.Debug("file decoded", "path", path, "records", len(recs))
		out = append(out, recs...)
	}
	return out, nil
}

func (s *FileSource) expand() ([]string, error) {
	var files []string
	for _, p := range s.paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && s.registry.Supports(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

func (s *FileSource) loadFile(path string) ([]domain.RawArticle, error) {
	dec, err := s.registry.Resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	recs, err := dec.Decode(f)
	if err != nil {
		return nil, err
	}
	return cleanRecords(recs, s.logger), nil
}

// cleanRecords strips HTML from content. A record whose markup cannot be
// parsed keeps its original content.
func cleanRecords(recs []domain.RawArticle, logger *slog.Logger) []domain.RawArticle {
	for i := range recs {
		if !LooksLikeHTML(recs[i].Content) {
			continue
		}
		text, err := CleanHTML(recs[i].Content)
		if err != nil {
			logger.Warn("html cleanup failed", "article", recs[i].ID, "error", err)
			continue
		}
		recs[i].Content = text
	}
	return recs
}
