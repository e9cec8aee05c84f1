package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mjf789/spam-news/internal/agreement"
	"github.com/mjf789/spam-news/internal/classifier"
	"github.com/mjf789/spam-news/internal/counter"
	"github.com/mjf789/spam-news/internal/demographic"
	"github.com/mjf789/spam-news/internal/domain"
	"github.com/mjf789/spam-news/internal/ports"
	"github.com/mjf789/spam-news/internal/report"
	"github.com/mjf789/spam-news/internal/segment"
)

// PipelineDeps wires the processing stages and driven adapters. Source,
// Repository, Notifier, Evaluator and Writer are optional.
type PipelineDeps struct {
	Source     ports.ArticleSource
	Repository ports.ResultRepository
	Notifier   ports.Notifier
	Segmenter  *segment.Segmenter
	Resolver   *demographic.Resolver
	Classifier classifier.Classifier
	Counter    *counter.Counter
	Evaluator  *agreement.Evaluator
	Writer     *report.Writer
	Workers    int
	Logger     *slog.Logger
}

// RunReport is the outcome of one corpus run. Results hold tallied
// articles in input order.
type RunReport struct {
	Run       domain.Run
	Results   []domain.ArticleResult
	Skipped   []domain.SkippedArticle
	Summary   report.CorpusSummary
	Agreement *agreement.Report
	Outputs   []string
}

// Canceled reports whether the run stopped before every article finished.
func (r RunReport) Canceled() bool { return r.Run.Status == domain.RunCanceled }

// Pipeline implements the corpus counting workflow.
type Pipeline struct {
	source     ports.ArticleSource
	repository ports.ResultRepository
	notifier   ports.Notifier
	segmenter  *segment.Segmenter
	resolver   *demographic.Resolver
	classifier classifier.Classifier
	counter    *counter.Counter
	evaluator  *agreement.Evaluator
	writer     *report.Writer
	workers    int
	logger     *slog.Logger
	now        func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) (*Pipeline, error) {
	if deps.Segmenter == nil || deps.Resolver == nil || deps.Classifier == nil || deps.Counter == nil {
		return nil, errors.New("pipeline requires segmenter, resolver, classifier and counter")
	}
	workers := deps.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:     deps.Source,
		repository: deps.Repository,
		notifier:   deps.Notifier,
		segmenter:  deps.Segmenter,
		resolver:   deps.Resolver,
		classifier: deps.Classifier,
		counter:    deps.Counter,
		evaluator:  deps.Evaluator,
		writer:     deps.Writer,
		workers:    workers,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Run loads the corpus from the configured source and processes it.
func (p *Pipeline) Run(ctx context.Context) (RunReport, error) {
	if p.source == nil {
		return RunReport{}, errors.New("no article source configured")
	}
	raws, err := p.source.Load(ctx)
	if err != nil {
		return RunReport{}, fmt.Errorf("load articles: %w", err)
	}
	return p.Process(ctx, raws)
}

type outcome struct {
	result  *domain.ArticleResult
	coding  *domain.HumanCoding
	skipped *domain.SkippedArticle
}

// Process runs every record through the stages on a bounded worker pool.
// Invalid or failing articles are skipped and reported; only cancellation
// ends the run early, in which case unfinished articles are discarded and
// the context error is returned with the partial report.
func (p *Pipeline) Process(ctx context.Context, raws []domain.RawArticle) (RunReport, error) {
	run := domain.Run{
		ID:        uuid.NewString(),
		Strategy:  p.classifier.Name(),
		Status:    domain.RunRunning,
		StartedAt: p.now().UTC(),
		Articles:  len(raws),
	}
	logger := p.logger.With("run", run.ID)
	logger.Info("run started", "articles", len(raws), "strategy", run.Strategy, "workers", p.workers)

	if p.repository != nil {
		if err := p.repository.CreateRun(ctx, run); err != nil {
			return RunReport{Run: run}, fmt.Errorf("create run: %w", err)
		}
	}

	outcomes := make([]outcome, len(raws))
	seen := make(map[string]bool, len(raws))

	g := new(errgroup.Group)
	g.SetLimit(p.workers)
	for i, raw := range raws {
		if ctx.Err() != nil {
			break
		}
		article, err := domain.NewArticle(raw)
		if err == nil && seen[article.ID] {
			err = &domain.ValidationError{ArticleID: article.ID, Reason: "duplicate article_id"}
		}
		if err != nil {
			outcomes[i].skipped = skip(raw.ID, err)
			logger.Warn("article skipped", "article", raw.ID, "error", err)
			continue
		}
		seen[article.ID] = true

		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			outcomes[i] = p.processOne(ctx, run.ID, article, logger)
			return nil
		})
	}
	_ = g.Wait()

	rep := RunReport{Run: run}
	var tallies []domain.ArticleTally
	var pairs []agreement.Pair
	for _, o := range outcomes {
		switch {
		case o.skipped != nil:
			rep.Skipped = append(rep.Skipped, *o.skipped)
		case o.result != nil:
			rep.Results = append(rep.Results, *o.result)
			tallies = append(tallies, o.result.Tally)
			pairs = append(pairs, agreement.Pair{ArticleID: o.result.ArticleID, Tally: o.result.Tally, Coding: o.coding})
			rep.Run.Undetermined += len(o.result.Undetermined)
			rep.Run.Suppressed += o.result.Suppressed
		}
	}
	rep.Run.Tallied = len(rep.Results)
	rep.Run.Skipped = len(rep.Skipped)
	rep.Summary = report.Aggregate(tallies)

	canceled := ctx.Err() != nil
	if canceled {
		rep.Run.Status = domain.RunCanceled
	} else {
		rep.Run.Status = domain.RunCompleted
		if p.evaluator != nil {
			agr := p.evaluator.Evaluate(pairs)
			rep.Agreement = &agr
			rep.Run.MeanICC = agr.MeanICC
		}
	}
	finished := p.now().UTC()
	rep.Run.FinishedAt = &finished

	// Bookkeeping of what did complete survives cancellation.
	persistCtx := context.WithoutCancel(ctx)
	if err := p.persist(persistCtx, rep); err != nil {
		logger.Error("persist run", "error", err)
		if !canceled {
			return rep, err
		}
	}

	if !canceled {
		p.export(&rep, logger)
		p.notify(ctx, rep, logger)
	}

	logger.Info("run finished",
		"status", rep.Run.Status,
		"tallied", rep.Run.Tallied,
		"skipped", rep.Run.Skipped,
		"exemplars", rep.Summary.Exemplars,
		"undetermined", rep.Run.Undetermined,
	)
	if canceled {
		return rep, ctx.Err()
	}
	return rep, nil
}

func (p *Pipeline) processOne(ctx context.Context, runID string, article domain.Article, logger *slog.Logger) outcome {
	started := time.Now()
	result, err := p.ProcessArticle(ctx, article)
	if ctx.Err() != nil {
		return outcome{}
	}
	if err != nil {
		logger.Warn("article skipped", "article", article.ID, "error", err)
		return outcome{skipped: skip(article.ID, err)}
	}

	if p.repository != nil {
		// A counted article is complete; keep it even if the run is
		// canceled while it is being saved.
		if err := p.repository.SaveArticle(context.WithoutCancel(ctx), runID, result); err != nil {
			logger.Error("persist article", "article", article.ID, "error", err)
			return outcome{skipped: skip(article.ID, fmt.Errorf("persist: %w", err))}
		}
	}

	logger.Debug("article counted",
		"article", article.ID,
		"units", result.Units,
		"exemplars", len(result.Exemplars),
		"elapsed", time.Since(started),
	)
	return outcome{result: &result, coding: article.Coding}
}

// ProcessArticle segments, resolves, classifies and counts one article.
func (p *Pipeline) ProcessArticle(ctx context.Context, article domain.Article) (domain.ArticleResult, error) {
	seg, err := p.segmenter.Segment(article)
	if err != nil {
		return domain.ArticleResult{}, err
	}
	units := seg.Slice()
	if len(units) == 0 {
		return domain.ArticleResult{}, &domain.ValidationError{ArticleID: article.ID, Reason: "no text units"}
	}

	mentions := make([][]domain.Mention, len(units))
	for i, u := range units {
		mentions[i] = p.resolver.Resolve(u)
	}

	scores, err := p.classifier.Classify(ctx, units)
	if err != nil {
		return domain.ArticleResult{}, fmt.Errorf("classify: %w", err)
	}

	result, err := p.counter.Count(article.ID, units, scores, mentions)
	if err != nil {
		return domain.ArticleResult{}, fmt.Errorf("count: %w", err)
	}
	return result, nil
}

func (p *Pipeline) persist(ctx context.Context, rep RunReport) error {
	if p.repository == nil {
		return nil
	}
	if len(rep.Skipped) > 0 {
		if err := p.repository.SaveSkipped(ctx, rep.Run.ID, rep.Skipped); err != nil {
			return fmt.Errorf("save skipped: %w", err)
		}
	}
	if rep.Agreement != nil && len(rep.Agreement.Cells) > 0 {
		if err := p.repository.SaveAgreement(ctx, rep.Run.ID, rep.Agreement.Cells); err != nil {
			return fmt.Errorf("save agreement: %w", err)
		}
	}
	if err := p.repository.FinishRun(ctx, rep.Run); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func (p *Pipeline) export(rep *RunReport, logger *slog.Logger) {
	if p.writer == nil {
		return
	}
	out := report.Output{
		Run:       rep.Run,
		Summary:   rep.Summary,
		Agreement: rep.Agreement,
		Skipped:   rep.Skipped,
	}
	for _, r := range rep.Results {
		out.Tallies = append(out.Tallies, domain.TallyRows(r.Tally)...)
		out.Exemplars = append(out.Exemplars, r.Exemplars...)
	}
	paths, err := p.writer.Write(out)
	rep.Outputs = paths
	if err != nil {
		logger.Error("write outputs", "error", err)
		return
	}
	logger.Info("outputs written", "files", len(paths))
}

func (p *Pipeline) notify(ctx context.Context, rep RunReport, logger *slog.Logger) {
	if p.notifier == nil {
		return
	}
	digest := report.Digest(rep.Run, rep.Summary, rep.Skipped, rep.Agreement)
	if err := p.notifier.PublishDigest(ctx, digest); err != nil {
		logger.Warn("publish digest", "error", err)
	}
}

func skip(articleID string, err error) *domain.SkippedArticle {
	kind := domain.SkipProcessing
	if domain.IsValidation(err) {
		kind = domain.SkipValidation
	}
	return &domain.SkippedArticle{ArticleID: articleID, Kind: kind, Reason: err.Error()}
}
