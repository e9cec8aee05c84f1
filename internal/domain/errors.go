package domain

import (
	"errors"
	"fmt"
)

// ErrUndetermined marks a classification that could not be completed.
// It is never folded into a below-threshold score.
var ErrUndetermined = errors.New("detection undetermined")

// ValidationError rejects a single article; the corpus run continues.
type ValidationError struct {
	ArticleID string
	Reason    string
}

func (e *ValidationError) Error() string {
	if e.ArticleID == "" {
		return "invalid article: " + e.Reason
	}
	return fmt.Sprintf("invalid article %s: %s", e.ArticleID, e.Reason)
}

// ConfigurationError is fatal at startup.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsConfiguration reports whether err carries a ConfigurationError.
func IsConfiguration(err error) bool {
	var c *ConfigurationError
	return errors.As(err, &c)
}

// ErrRunNotFound is returned by result readers for unknown run ids.
var ErrRunNotFound = errors.New("run not found")
