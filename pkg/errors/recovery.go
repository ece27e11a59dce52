package errors

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic converts a recovered panic value into an internal error. The
// stack is kept out of Details so it never reaches API responses; use Stack.
func RecoverPanic(r interface{}) error {
	if r == nil {
		return nil
	}

	var err error
	switch v := r.(type) {
	case error:
		err = v
	case string:
		err = fmt.Errorf("panic: %s", v)
	default:
		err = fmt.Errorf("panic: %v", v)
	}

	return &PanicError{
		Err:   ErrInternal.WithCause(err),
		Stack: string(debug.Stack()),
	}
}

type PanicError struct {
	Err   error
	Stack string
}

func (e *PanicError) Error() string {
	return e.Err.Error()
}

func (e *PanicError) Unwrap() error {
	return e.Err
}
