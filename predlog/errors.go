package predlog

import (
	"errors"
	"fmt"
)

var (
	ErrLogWrite   = errors.New("prediction log write failed")
	ErrCorruptLog = errors.New("prediction log corrupt")
)

// LogWriteError is returned when a row could not be persisted. The prediction
// it describes is still valid.
type LogWriteError struct {
	Path string
	Err  error
}

func (e *LogWriteError) Error() string {
	return fmt.Sprintf("append to %s: %v", e.Path, e.Err)
}

func (e *LogWriteError) Unwrap() []error {
	return []error{ErrLogWrite, e.Err}
}

// CorruptLogError means an existing log is present but not a prediction log we
// can safely append to.
type CorruptLogError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CorruptLogError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("prediction log %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("prediction log %s: %s", e.Path, e.Reason)
}

func (e *CorruptLogError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrCorruptLog, e.Err}
	}
	return []error{ErrCorruptLog}
}
