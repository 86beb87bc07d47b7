package remote

import (
	"errors"
	"fmt"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var ErrRemoteFunction = errors.New("remote function failed")

// Result is the body of a worker response.
type Result struct {
	Status string `json:"status"`
	Value  any    `json:"value"`
	Error  string `json:"error,omitempty"`
}

func (r Result) Err() error {
	if r.Status == StatusError {
		return fmt.Errorf("%w: %s", ErrRemoteFunction, r.Error)
	}
	return nil
}
