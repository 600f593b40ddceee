package cache

// Result pairs a stream emission with the error that produced it. Streams
// never abort on operation failures; they emit a failed Result and keep
// serving subsequent local state.
type Result[T any] struct {
	Value T
	Err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail wraps an error emission.
func Fail[T any](err error) Result[T] {
	return Result[T]{Err: err}
}
