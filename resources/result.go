package resources

// Result is the outcome of loading one resource category. A failed load is
// an expected outcome and is reported here rather than as a Go error, so a
// caller can continue with sibling categories.
type Result[T any] struct {
	Value T
	Err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail wraps a failure. Value is the zero value of T.
func Fail[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// Success reports whether the load succeeded.
func (r Result[T]) Success() bool {
	return r.Err == nil
}
