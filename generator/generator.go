/*
Package generator defines the per-page generation collaborator consumed by
the batch worker.

The worker treats any generation error as retryable unless it is wrapped with
Permanent. Implementations must be safe to retry with the same inputs.
*/
package generator

import (
	"context"
	"errors"
)

// Output describes one generated page
type Output struct {
	// Ref is the artifact store key of the generated bytes
	Ref string
	// Size is the generated payload size in bytes
	Size int64
}

// Generator produces one coloring page per call
type Generator interface {
	Generate(ctx context.Context, name, prompt string) (*Output, error)
}

// permanentError marks a failure that must not be retried
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps an error so the worker records it as a terminal failure
// instead of consuming the item's retry budget.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether the error was marked with Permanent
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
