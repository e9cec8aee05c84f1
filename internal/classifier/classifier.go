// Package classifier scores text units against the four narrative frames.
// Strategies are interchangeable behind Classifier and selected by name
// through a Registry.
package classifier

import (
	"context"
	"fmt"
	"sort"

	"github.com/mjf789/spam-news/internal/domain"
)

// Classifier scores every unit of one article against every frame label.
// The result has one FrameScores per unit, in unit order. A strategy that
// cannot score a unit marks its labels undetermined and returns no error;
// errors are reserved for cancellation and misuse.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, units []domain.TextUnit) ([]domain.FrameScores, error)
}

// Registry keeps a mapping from strategy names to their implementations.
type Registry struct {
	classifiers map[string]Classifier
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{classifiers: map[string]Classifier{}}
}

// Register adds or replaces a strategy.
func (r *Registry) Register(c Classifier) {
	if r.classifiers == nil {
		r.classifiers = map[string]Classifier{}
	}
	r.classifiers[c.Name()] = c
}

// Resolve returns a strategy by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Classifier, error) {
	if c, ok := r.classifiers[name]; ok {
		return c, nil
	}
	return nil, &domain.ConfigurationError{
		Field:  "classifier.strategy",
		Reason: fmt.Sprintf("strategy %q is not registered", name),
	}
}

// Names lists registered strategies alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.classifiers))
	for name := range r.classifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
