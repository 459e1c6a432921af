package errors

import (
	"fmt"
	"runtime/debug"
)

// PanicError captures a recovered handler panic.
type PanicError struct {
	// Value is the value passed to panic().
	Value any

	// Stack is the goroutine stack at recovery time.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Recover converts a recovered value into a PanicError.
// Call it with the result of recover(); a nil value yields nil.
func Recover(r any) error {
	if r == nil {
		return nil
	}
	return &PanicError{
		Value: r,
		Stack: string(debug.Stack()),
	}
}
