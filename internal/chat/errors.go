package chat

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyPrompt = errors.New("message cannot be empty")
	ErrBusy        = errors.New("a request is already in flight")
)

// Kind classifies a failed submission.
type Kind string

const (
	KindEmptyResponse Kind = "empty_response"
	KindRemote        Kind = "remote"
)

// Error is returned by Submit when the remote call fails. The pending user
// turn has already been rolled back when it is returned.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("error processing request: %s", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
