package eventbus

// Result is the outcome of a bus operation. The bus never panics or
// returns a bare error past its API; every outcome is a Result.
type Result[T any] struct {
	// Value is the result if successful.
	Value T

	// Err is the failure, if any.
	Err error
}

// Ok reports whether the operation succeeded.
func (r Result[T]) Ok() bool {
	return r.Err == nil
}

// Message returns the failure message, or "" on success.
func (r Result[T]) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

func succeeded[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

func failed[T any](err error) Result[T] {
	return Result[T]{Err: err}
}
