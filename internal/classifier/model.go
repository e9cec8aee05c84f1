package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/mjf789/spam-news/internal/domain"
	"github.com/mjf789/spam-news/internal/ports"
)

// ModelName identifies the oracle-backed strategy.
const ModelName = "model"

// ModelConfig controls batching, retries and pacing of oracle calls.
type ModelConfig struct {
	Name           string
	BatchSize      int
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// RequestsPerSecond of zero disables pacing.
	RequestsPerSecond float64
	Burst             int
}

// DefaultModelConfig returns conservative oracle settings.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Name:           ModelName,
		BatchSize:      16,
		Timeout:        30 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     8 * time.Second,
		Burst:          1,
	}
}

// Model delegates scoring to a FrameOracle. Batches that still fail after
// the last attempt come back undetermined.
type Model struct {
	name    string
	oracle  ports.FrameOracle
	cfg     ModelConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewModel validates cfg and wraps oracle.
func NewModel(oracle ports.FrameOracle, cfg ModelConfig, logger *slog.Logger) (*Model, error) {
	if oracle == nil {
		return nil, &domain.ConfigurationError{Field: "oracle", Reason: "model strategy requires an oracle"}
	}
	if cfg.Name == "" {
		cfg.Name = ModelName
	}
	switch {
	case cfg.BatchSize < 1:
		return nil, &domain.ConfigurationError{Field: "oracle.batchSize", Reason: "must be at least 1"}
	case cfg.MaxAttempts < 1:
		return nil, &domain.ConfigurationError{Field: "oracle.maxAttempts", Reason: "must be at least 1"}
	case cfg.Timeout <= 0:
		return nil, &domain.ConfigurationError{Field: "oracle.timeout", Reason: "must be positive"}
	case cfg.InitialBackoff < 0 || cfg.MaxBackoff < cfg.InitialBackoff:
		return nil, &domain.ConfigurationError{Field: "oracle.backoff", Reason: "need 0 <= initial <= max"}
	case cfg.RequestsPerSecond < 0:
		return nil, &domain.ConfigurationError{Field: "oracle.requestsPerSecond", Reason: "must not be negative"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Model{
		name:    cfg.Name,
		oracle:  oracle,
		cfg:     cfg,
		limiter: limiter,
		logger:  logger.With("component", "classifier", "strategy", cfg.Name),
	}, nil
}

// Name implements Classifier.
func (m *Model) Name() string { return m.name }

// Classify implements Classifier.
func (m *Model) Classify(ctx context.Context, units []domain.TextUnit) ([]domain.FrameScores, error) {
	out := make([]domain.FrameScores, len(units))
	for start := 0; start < len(units); start += m.cfg.BatchSize {
		end := min(start+m.cfg.BatchSize, len(units))
		texts := make([]string, end-start)
		for i, u := range units[start:end] {
			texts[i] = u.Text
		}

		results, err := m.scoreBatch(ctx, texts)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			m.logger.Warn("oracle batch undetermined", "units", fmt.Sprintf("%d-%d", start, end-1), "error", err)
			for i := start; i < end; i++ {
				out[i] = domain.UndeterminedScores()
			}
			continue
		}
		for i, res := range results {
			out[start+i] = toScores(res)
		}
	}
	return out, nil
}

func (m *Model) scoreBatch(ctx context.Context, texts []string) ([]map[domain.FrameLabel]float64, error) {
	backoff := m.cfg.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
		results, err := m.oracle.Score(attemptCtx, texts, domain.AllFrames)
		cancel()
		if err == nil && len(results) != len(texts) {
			err = fmt.Errorf("oracle returned %d results for %d texts", len(results), len(texts))
		}
		if err == nil {
			return results, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if errors.Is(err, context.DeadlineExceeded) {
			m.logger.Debug("oracle attempt timed out", "attempt", attempt, "timeout", m.cfg.Timeout)
		}

		if attempt < m.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, m.cfg.MaxBackoff)
		}
	}
	return nil, fmt.Errorf("oracle failed after %d attempts: %w", m.cfg.MaxAttempts, lastErr)
}

func toScores(res map[domain.FrameLabel]float64) domain.FrameScores {
	scores := make(domain.FrameScores, len(domain.AllFrames))
	for _, frame := range domain.AllFrames {
		v, ok := res[frame]
		if !ok || math.IsNaN(v) {
			scores[frame] = domain.FrameScore{Undetermined: true}
			continue
		}
		scores[frame] = domain.FrameScore{Value: clamp(v)}
	}
	return scores
}
