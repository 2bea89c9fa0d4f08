package ml

import (
	"errors"
	"fmt"
)

var (
	ErrModelLoad    = errors.New("model load failed")
	ErrInvalidInput = errors.New("invalid input")
)

// ModelLoadError is fatal at startup: the service must not serve without a model.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %q: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() []error {
	return []error{ErrModelLoad, e.Err}
}

// InvalidInputError reports a feature vector the classifier cannot score.
// Index is -1 when the problem is the arity rather than a single element.
type InvalidInputError struct {
	Expected int
	Received int
	Index    int
	Reason   string
}

func (e *InvalidInputError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("expected %d features, got %d", e.Expected, e.Received)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}
