package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/mjf789/spam-news/internal/domain"
	"github.com/mjf789/spam-news/internal/ports"
)

var _ ports.ResultReader = (*Store)(nil)

const defaultListLimit = 50

var runColumns = []string{
	"id", "strategy", "status", "started_at", "finished_at",
	"articles", "tallied", "skipped", "undetermined", "suppressed", "mean_icc",
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (domain.Run, error) {
	var (
		run      domain.Run
		status   string
		started  string
		finished sql.NullString
		meanICC  sql.NullFloat64
	)
	if err := row.Scan(&run.ID, &run.Strategy, &status, &started, &finished,
		&run.Articles, &run.Tallied, &run.Skipped, &run.Undetermined, &run.Suppressed, &meanICC); err != nil {
		return domain.Run{}, err
	}
	run.Status = domain.RunStatus(status)

	var err error
	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return domain.Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	if finished.Valid {
		t, err := time.Parse(timeLayout, finished.String)
		if err != nil {
			return domain.Run{}, fmt.Errorf("parse finished_at: %w", err)
		}
		run.FinishedAt = &t
	}
	if meanICC.Valid {
		v := meanICC.Float64
		run.MeanICC = &v
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A non-positive limit uses
// the default page size.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query, args, err := s.builder.Select(runColumns...).From("runs").
		OrderBy("started_at DESC", "id").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return runs, nil
}

// GetRun returns one run or domain.ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (domain.Run, error) {
	query, args, err := s.builder.Select(runColumns...).From("runs").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Run{}, fmt.Errorf("build query: %w", err)
	}
	run, err := scanRun(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Run{}, fmt.Errorf("run %s: %w", id, domain.ErrRunNotFound)
	}
	if err != nil {
		return domain.Run{}, fmt.Errorf("scan run: %w", err)
	}
	return run, nil
}

func (s *Store) requireRun(ctx context.Context, id string) error {
	query, args, err := s.builder.Select("1").From("runs").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("run %s: %w", id, domain.ErrRunNotFound)
	}
	if err != nil {
		return fmt.Errorf("lookup run: %w", err)
	}
	return nil
}

// Tallies returns the non-zero cells of every article of a run, ordered
// by article and then by reporting order.
func (s *Store) Tallies(ctx context.Context, runID string) ([]domain.TallyRow, error) {
	if err := s.requireRun(ctx, runID); err != nil {
		return nil, err
	}
	query, args, err := s.builder.Select("article_id", "frame", "demographic", "exemplar_count").
		From("article_tallies").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("article_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tallies: %w", err)
	}
	defer rows.Close()

	out := make([]domain.TallyRow, 0)
	for rows.Next() {
		var r domain.TallyRow
		var frame, target string
		if err := rows.Scan(&r.ArticleID, &frame, &target, &r.Count); err != nil {
			return nil, fmt.Errorf("scan tally: %w", err)
		}
		r.Frame, r.Target = domain.FrameLabel(frame), domain.Target(target)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	rank := cellRanks()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ArticleID != out[j].ArticleID {
			return out[i].ArticleID < out[j].ArticleID
		}
		return rank[domain.Cell{Frame: out[i].Frame, Target: out[i].Target}] <
			rank[domain.Cell{Frame: out[j].Frame, Target: out[j].Target}]
	})
	return out, nil
}

// Agreement returns the stored per-cell statistics in reporting order.
func (s *Store) Agreement(ctx context.Context, runID string) ([]domain.CellAgreement, error) {
	if err := s.requireRun(ctx, runID); err != nil {
		return nil, err
	}
	query, args, err := s.builder.Select("frame", "demographic", "n", "defined", "icc", "lower_bound", "upper_bound",
		"icc_k", "lower_k", "upper_k", "mean_abs_diff", "note").
		From("agreement").
		Where(sq.Eq{"run_id": runID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query agreement: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CellAgreement, 0)
	for rows.Next() {
		var c domain.CellAgreement
		var frame, target string
		var defined int
		if err := rows.Scan(&frame, &target, &c.N, &defined, &c.ICC, &c.Lower, &c.Upper,
			&c.ICCk, &c.LowerK, &c.UpperK, &c.MeanAbsDiff, &c.Note); err != nil {
			return nil, fmt.Errorf("scan agreement: %w", err)
		}
		c.Frame, c.Target, c.Defined = domain.FrameLabel(frame), domain.Target(target), defined != 0
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	rank := cellRanks()
	sort.SliceStable(out, func(i, j int) bool { return rank[out[i].Cell()] < rank[out[j].Cell()] })
	return out, nil
}

// Skipped returns the skipped articles of a run ordered by article id.
func (s *Store) Skipped(ctx context.Context, runID string) ([]domain.SkippedArticle, error) {
	if err := s.requireRun(ctx, runID); err != nil {
		return nil, err
	}
	query, args, err := s.builder.Select("article_id", "kind", "reason").
		From("skipped_articles").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("article_id", "kind").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query skipped: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SkippedArticle, 0)
	for rows.Next() {
		var sk domain.SkippedArticle
		var kind string
		if err := rows.Scan(&sk.ArticleID, &kind, &sk.Reason); err != nil {
			return nil, fmt.Errorf("scan skipped: %w", err)
		}
		sk.Kind = domain.SkipKind(kind)
		out = append(out, sk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// Exemplars returns the stored exemplars of one article of a run.
func (s *Store) Exemplars(ctx context.Context, runID, articleID string) ([]domain.Exemplar, error) {
	if err := s.requireRun(ctx, runID); err != nil {
		return nil, err
	}

	query, args, err := s.builder.Select("unit_index", "frame", "demographic", "subgroups",
		"confidence", "method", "start_offset", "end_offset", "quoted").
		From("exemplars").
		Where(sq.Eq{"run_id": runID, "article_id": articleID}).
		OrderBy("unit_index", "start_offset").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exemplars: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Exemplar, 0)
	for rows.Next() {
		e := domain.Exemplar{ArticleID: articleID}
		var frame, target, subgroups string
		var quoted int
		if err := rows.Scan(&e.UnitIndex, &frame, &target, &subgroups,
			&e.Confidence, &e.Method, &e.Start, &e.End, &quoted); err != nil {
			return nil, fmt.Errorf("scan exemplar: %w", err)
		}
		e.Frame, e.Target, e.Quoted = domain.FrameLabel(frame), domain.Target(target), quoted != 0
		e.Subgroups = splitSubgroups(subgroups)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func cellRanks() map[domain.Cell]int {
	cells := domain.AllCells()
	rank := make(map[domain.Cell]int, len(cells))
	for i, c := range cells {
		rank[c] = i
	}
	return rank
}

func splitSubgroups(joined string) []domain.Subgroup {
	if joined == "" {
		return nil
	}
	var out []domain.Subgroup
	for _, part := range strings.Split(joined, ",") {
		out = append(out, domain.Subgroup(part))
	}
	return out
}
