package service

import (
	"errors"
	"fmt"
)

var ErrMalformedRequest = errors.New("malformed request")

// MalformedRequestError is a client error: the body could not be decoded or
// has no usable features field.
type MalformedRequestError struct {
	Reason string
	Err    error
}

func (e *MalformedRequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *MalformedRequestError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformedRequest, e.Err}
	}
	return []error{ErrMalformedRequest}
}
