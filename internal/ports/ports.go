package ports

import (
	"context"
	"time"

	"github.com/mjf789/spam-news/internal/domain"
)

// ArticleSource yields raw article records for a corpus run.
type ArticleSource interface {
	Load(ctx context.Context) ([]domain.RawArticle, error)
}

// FrameOracle scores texts against frame labels. The result holds one map
// per text, in input order. Labels missing from a map are treated as
// undetermined by the caller.
type FrameOracle interface {
	Score(ctx context.Context, texts []string, labels []domain.FrameLabel) ([]map[domain.FrameLabel]float64, error)
}

// ResultRepository persists run results.
type ResultRepository interface {
	CreateRun(ctx context.Context, run domain.Run) error
	SaveArticle(ctx context.Context, runID string, result domain.ArticleResult) error
	SaveSkipped(ctx context.Context, runID string, skipped []domain.SkippedArticle) error
	SaveAgreement(ctx context.Context, runID string, cells []domain.CellAgreement) error
	FinishRun(ctx context.Context, run domain.Run) error
}

// ResultReader serves stored results to the HTTP API.
type ResultReader interface {
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)
	GetRun(ctx context.Context, id string) (domain.Run, error)
	Tallies(ctx context.Context, runID string) ([]domain.TallyRow, error)
	Agreement(ctx context.Context, runID string) ([]domain.CellAgreement, error)
	Skipped(ctx context.Context, runID string) ([]domain.SkippedArticle, error)
	Exemplars(ctx context.Context, runID, articleID string) ([]domain.Exemplar, error)
}

// Notifier delivers the plain-text digest rendered at the end of a
// counting run.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when recurring runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
