package broker

import (
	"errors"
	"fmt"
)

// ErrConnection is matched by every error caused by an unreachable broker.
var ErrConnection = errors.New("broker connection unavailable")

var ErrQueueNotFound = errors.New("queue not found")

type PublishError struct {
	Queue string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s: %v", e.Queue, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

type ConsumeError struct {
	Queue string
	Err   error
}

func (e *ConsumeError) Error() string {
	return fmt.Sprintf("consume from %s: %v", e.Queue, e.Err)
}

func (e *ConsumeError) Unwrap() error {
	return e.Err
}

type QueryError struct {
	Queue string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query depth of %s: %v", e.Queue, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

func connectionError(cause error) error {
	if cause == nil {
		return ErrConnection
	}
	return errors.Join(ErrConnection, cause)
}
