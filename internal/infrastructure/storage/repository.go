package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/mjf789/spam-news/internal/domain"
	"github.com/mjf789/spam-news/internal/ports"
)

var _ ports.ResultRepository = (*Store)(nil)

// CreateRun inserts the run header.
func (s *Store) CreateRun(ctx context.Context, run domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	insert := s.builder.Insert("runs").
		Columns("id", "strategy", "status", "started_at").
		Values(run.ID, run.Strategy, string(run.Status), formatTime(run.StartedAt))
	if _, err := exec(ctx, s.db, insert); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// SaveArticle writes one article's tally and exemplars atomically.
func (s *Store) SaveArticle(ctx context.Context, runID string, result domain.ArticleResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		header := s.builder.Insert("article_results").
			Columns("run_id", "article_id", "units", "undetermined", "suppressed", "off_context").
			Values(runID, result.ArticleID, result.Units, len(result.Undetermined), result.Suppressed, result.OffContext)
		if _, err := exec(ctx, tx, header); err != nil {
			return fmt.Errorf("insert article result: %w", err)
		}

		if rows := domain.TallyRows(result.Tally); len(rows) > 0 {
			tallies := s.builder.Insert("article_tallies").
				Columns("run_id", "article_id", "frame", "demographic", "exemplar_count")
			for _, r := range rows {
				tallies = tallies.Values(runID, r.ArticleID, string(r.Frame), string(r.Target), r.Count)
			}
			if _, err := exec(ctx, tx, tallies); err != nil {
				return fmt.Errorf("insert tallies: %w", err)
			}
		}

		if len(result.Exemplars) > 0 {
			exemplars := s.builder.Insert("exemplars").
				Columns("run_id", "article_id", "unit_index", "frame", "demographic",
					"subgroups", "confidence", "method", "start_offset", "end_offset", "quoted")
			for _, e := range result.Exemplars {
				exemplars = exemplars.Values(runID, e.ArticleID, e.UnitIndex, string(e.Frame), string(e.Target),
					joinSubgroups(e.Subgroups), e.Confidence, e.Method, e.Start, e.End, boolInt(e.Quoted))
			}
			if _, err := exec(ctx, tx, exemplars); err != nil {
				return fmt.Errorf("insert exemplars: %w", err)
			}
		}
		return nil
	})
}

// SaveSkipped appends skipped articles to a run.
func (s *Store) SaveSkipped(ctx context.Context, runID string, skipped []domain.SkippedArticle) error {
	if len(skipped) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	insert := s.builder.Insert("skipped_articles").Columns("run_id", "article_id", "kind", "reason")
	for _, sk := range skipped {
		insert = insert.Values(runID, sk.ArticleID, string(sk.Kind), sk.Reason)
	}
	if _, err := exec(ctx, s.db, insert); err != nil {
		return fmt.Errorf("insert skipped: %w", err)
	}
	return nil
}

// SaveAgreement replaces the agreement statistics of a run.
func (s *Store) SaveAgreement(ctx context.Context, runID string, cells []domain.CellAgreement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := exec(ctx, tx, s.builder.Delete("agreement").Where(sq.Eq{"run_id": runID})); err != nil {
			return fmt.Errorf("clear agreement: %w", err)
		}
		if len(cells) == 0 {
			return nil
		}
		insert := s.builder.Insert("agreement").
			Columns("run_id", "frame", "demographic", "n", "defined", "icc", "lower_bound", "upper_bound",
				"icc_k", "lower_k", "upper_k", "mean_abs_diff", "note")
		for _, c := range cells {
			insert = insert.Values(runID, string(c.Frame), string(c.Target), c.N, boolInt(c.Defined),
				c.ICC, c.Lower, c.Upper, c.ICCk, c.LowerK, c.UpperK, c.MeanAbsDiff, c.Note)
		}
		if _, err := exec(ctx, tx, insert); err != nil {
			return fmt.Errorf("insert agreement: %w", err)
		}
		return nil
	})
}

// FinishRun stores the final status and counters of a run.
func (s *Store) FinishRun(ctx context.Context, run domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	finished := sql.NullString{}
	if run.FinishedAt != nil {
		finished = sql.NullString{String: formatTime(*run.FinishedAt), Valid: true}
	}
	meanICC := sql.NullFloat64{}
	if run.MeanICC != nil {
		meanICC = sql.NullFloat64{Float64: *run.MeanICC, Valid: true}
	}

	update := s.builder.Update("runs").
		SetMap(map[string]any{
			"status":       string(run.Status),
			"finished_at":  finished,
			"articles":     run.Articles,
			"tallied":      run.Tallied,
			"skipped":      run.Skipped,
			"undetermined": run.Undetermined,
			"suppressed":   run.Suppressed,
			"mean_icc":     meanICC,
		}).
		Where(sq.Eq{"id": run.ID})
	res, err := exec(ctx, s.db, update)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", run.ID, domain.ErrRunNotFound)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// timeLayout is fixed-width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func joinSubgroups(subgroups []domain.Subgroup) string {
	parts := make([]string, len(subgroups))
	for i, sg := range subgroups {
		parts[i] = string(sg)
	}
	return strings.Join(parts, ",")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
