package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/mjf789/spam-news/internal/agreement"
	"github.com/mjf789/spam-news/internal/classifier"
	"github.com/mjf789/spam-news/internal/config"
	"github.com/mjf789/spam-news/internal/counter"
	"github.com/mjf789/spam-news/internal/demographic"
	"github.com/mjf789/spam-news/internal/domain"
	"github.com/mjf789/spam-news/internal/infrastructure/httpapi"
	"github.com/mjf789/spam-news/internal/infrastructure/llm"
	"github.com/mjf789/spam-news/internal/infrastructure/ml"
	"github.com/mjf789/spam-news/internal/infrastructure/scheduler"
	"github.com/mjf789/spam-news/internal/infrastructure/source"
	"github.com/mjf789/spam-news/internal/infrastructure/storage"
	"github.com/mjf789/spam-news/internal/infrastructure/telegram"
	"github.com/mjf789/spam-news/internal/logging"
	"github.com/mjf789/spam-news/internal/ports"
	"github.com/mjf789/spam-news/internal/report"
	"github.com/mjf789/spam-news/internal/segment"
	"github.com/mjf789/spam-news/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *usecase.Pipeline
	store    *storage.Store
}

// New builds every component from cfg. Any ConfigurationError is fatal
// and returned before a single article is read.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	stages, err := BuildStages(cfg, baseLogger)
	if err != nil {
		return nil, err
	}

	deps := usecase.PipelineDeps{
		Source:     buildSource(cfg.Input, baseLogger),
		Segmenter:  stages.Segmenter,
		Resolver:   stages.Resolver,
		Classifier: stages.Classifier,
		Counter:    stages.Counter,
		Evaluator:  stages.Evaluator,
		Writer:     stages.Writer,
		Workers:    cfg.Pipeline.Workers,
		Logger:     baseLogger.With("component", "pipeline"),
	}

	if cfg.Notifications.Telegram.Enabled() {
		tg := cfg.Notifications.Telegram
		deps.Notifier = telegram.NewNotifier(tg.BaseURL, tg.BotToken, tg.ChatID)
	}

	var store *storage.Store
	if cfg.Database.DSN != "" {
		store, err = storage.Open(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open result store: %w", err)
		}
		deps.Repository = store
	}

	pipeline, err := usecase.NewPipeline(deps)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}

	return &Application{cfg: cfg, logger: baseLogger, pipeline: pipeline, store: store}, nil
}

// Pipeline exposes the configured pipeline.
func (a *Application) Pipeline() *usecase.Pipeline { return a.pipeline }

// RunOnce loads the corpus and processes it a single time.
func (a *Application) RunOnce(ctx context.Context) (usecase.RunReport, error) {
	return a.pipeline.Run(ctx)
}

// Serve re-runs the pipeline on the configured interval and serves stored
// results over HTTP until ctx is canceled.
func (a *Application) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	sched := usecase.NewScheduler(
		scheduler.NewIntervalScheduler(a.cfg.Pipeline.Interval),
		a.pipeline,
		a.logger.With("component", "scheduler"),
	)
	if err := sched.Start(gctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	g.Go(func() error {
		<-gctx.Done()
		return sched.Stop(context.WithoutCancel(gctx))
	})

	if a.store != nil && a.cfg.Server.Addr != "" {
		handler := httpapi.NewHandler(a.store, a.logger.With("component", "httpapi"))
		g.Go(func() error {
			return httpapi.Serve(gctx, a.cfg.Server.Addr, handler.Router(), a.logger)
		})
	} else {
		a.logger.Warn("results api disabled", "reason", "no database configured")
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the result store.
func (a *Application) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// Stages holds the processing components built from configuration.
type Stages struct {
	Segmenter  *segment.Segmenter
	Resolver   *demographic.Resolver
	Classifier classifier.Classifier
	Counter    *counter.Counter
	Evaluator  *agreement.Evaluator
	Writer     *report.Writer
	Strategies []string
}

// BuildStages constructs every processing component, surfacing the first
// configuration error.
func BuildStages(cfg config.Config, logger *slog.Logger) (Stages, error) {
	var st Stages
	var err error

	if st.Segmenter, err = segment.New(segmentConfig(cfg.Segmentation)); err != nil {
		return Stages{}, err
	}
	if st.Resolver, err = demographic.New(resolverConfig(cfg.Demographics)); err != nil {
		return Stages{}, err
	}

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return Stages{}, err
	}
	st.Strategies = registry.Names()
	if st.Classifier, err = registry.Resolve(cfg.Classifier.Strategy); err != nil {
		return Stages{}, err
	}

	thresholds, err := parseThresholds(cfg.Classifier.Thresholds)
	if err != nil {
		return Stages{}, err
	}
	st.Counter, err = counter.New(counter.Config{
		Thresholds:     thresholds,
		Dedup:          counter.DedupPolicy(cfg.Counting.Dedup),
		Method:         st.Classifier.Name(),
		LeadershipOnly: cfg.Counting.LeadershipOnly,
	})
	if err != nil {
		return Stages{}, err
	}

	st.Evaluator, err = agreement.New(agreement.Config{ConfidenceLevel: cfg.Agreement.ConfidenceLevel},
		logger.With("component", "agreement"))
	if err != nil {
		return Stages{}, err
	}

	if cfg.Output.Dir != "" {
		if st.Writer, err = report.NewWriter(cfg.Output.Dir, cfg.Output.Formats); err != nil {
			return Stages{}, err
		}
	}
	return st, nil
}

func buildSource(in config.InputConfig, logger *slog.Logger) ports.ArticleSource {
	switch {
	case in.URL != "":
		return source.NewHTTPSource(in.URL, in.APIKey, nil, logger.With("component", "source.http"))
	case len(in.Paths) > 0:
		return source.NewFileSource(in.Paths, source.NewRegistry(), logger.With("component", "source.file"))
	default:
		return nil
	}
}

func buildRegistry(cfg config.Config, logger *slog.Logger) (*classifier.Registry, error) {
	registry := classifier.NewRegistry()

	frames, err := parseFrames(cfg.Frames)
	if err != nil {
		return nil, err
	}
	lexical, err := classifier.NewLexical(classifier.LexicalConfig{
		Frames:     frames,
		Weights:    cfg.Lexical.Weights,
		Saturation: cfg.Lexical.Saturation,
		Density:    cfg.Lexical.Density,
	})
	if err != nil {
		return nil, err
	}
	registry.Register(lexical)

	if cfg.Oracle.Endpoint != "" {
		var oracle ports.FrameOracle
		switch cfg.Oracle.Kind {
		case "chat":
			oracle = llm.NewChatOracle(cfg.Oracle)
		default:
			oracle = ml.NewClient(cfg.Oracle.Endpoint, cfg.Oracle.APIKey)
		}
		model, err := classifier.NewModel(oracle, classifier.ModelConfig{
			Name:              classifier.ModelName,
			BatchSize:         cfg.Oracle.BatchSize,
			Timeout:           cfg.Oracle.Timeout,
			MaxAttempts:       cfg.Oracle.MaxAttempts,
			InitialBackoff:    cfg.Oracle.InitialBackoff,
			MaxBackoff:        cfg.Oracle.MaxBackoff,
			RequestsPerSecond: cfg.Oracle.RequestsPerSecond,
			Burst:             cfg.Oracle.Burst,
		}, logger)
		if err != nil {
			return nil, err
		}
		registry.Register(model)
	}

	if len(cfg.Classifier.Ensemble.Members) > 0 {
		members := make([]classifier.Member, 0, len(cfg.Classifier.Ensemble.Members))
		for _, m := range cfg.Classifier.Ensemble.Members {
			c, err := registry.Resolve(m.Strategy)
			if err != nil {
				return nil, &domain.ConfigurationError{Field: "classifier.ensemble.members", Reason: err.Error()}
			}
			members = append(members, classifier.Member{Classifier: c, Weight: m.Weight})
		}
		ensemble, err := classifier.NewEnsemble(members, classifier.Policy(cfg.Classifier.Ensemble.Policy))
		if err != nil {
			return nil, err
		}
		registry.Register(ensemble)
	}

	return registry, nil
}

func segmentConfig(c config.SegmentationConfig) segment.Config {
	out := segment.Config{
		Mode:             segment.Mode(c.Mode),
		WindowSize:       c.WindowSize,
		Overlap:          c.Overlap,
		MinUnitLength:    c.MinUnitLength,
		MinContentLength: c.MinContentLength,
		LeadershipTerms:  c.LeadershipTerms,
	}
	if c.KeywordContext != nil {
		out.KeywordContext = *c.KeywordContext
	}
	return out
}

// resolverConfig walks the keyword maps in sorted order so duplicate-term
// errors are reported the same way on every start.
func resolverConfig(c config.DemographicsConfig) demographic.Config {
	out := demographic.Config{CombineScope: demographic.Scope(c.CombineScope)}

	for _, key := range sortedKeys(c.Gender) {
		g, _ := config.GenderAxis(key)
		out.Genders = append(out.Genders, demographic.GenderTerms{Gender: g, Terms: c.Gender[key]})
	}
	for _, key := range sortedKeys(c.Race) {
		r, sub, _ := config.RaceAxis(key)
		out.Races = append(out.Races, demographic.RaceTerms{Race: r, Subgroup: sub, Terms: c.Race[key]})
	}
	for _, p := range c.Intersectional {
		target, _ := domain.ParseTarget(p.Target)
		sub, _ := domain.ParseSubgroup(p.Subgroup)
		out.Phrases = append(out.Phrases, demographic.Phrase{Target: target, Subgroup: sub, Terms: p.Terms})
	}
	return out
}

func parseFrames(in config.FrameLexicons) (map[domain.FrameLabel]map[string][]string, error) {
	out := make(map[domain.FrameLabel]map[string][]string, len(in))
	for name, tiers := range in {
		frame, err := domain.ParseFrame(name)
		if err != nil {
			return nil, &domain.ConfigurationError{Field: "frames", Reason: err.Error()}
		}
		out[frame] = tiers
	}
	return out, nil
}

func parseThresholds(in map[string]float64) (domain.Thresholds, error) {
	out := make(domain.Thresholds, len(in))
	for name, th := range in {
		frame, err := domain.ParseFrame(name)
		if err != nil {
			return nil, &domain.ConfigurationError{Field: "classifier.thresholds", Reason: err.Error()}
		}
		out[frame] = th
	}
	return out, nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
