// Package options provides the generic functional-option plumbing shared
// by the writer and reader configurations.
package options

// Option configures a value of type T and may reject invalid settings.
type Option[T any] interface {
	apply(T) error
}

// Func adapts a plain function into an Option.
type Func[T any] struct {
	applyFunc func(T) error
}

func (f *Func[T]) apply(target T) error {
	return f.applyFunc(target)
}

// New wraps fn as an Option that can fail.
func New[T any](fn func(T) error) *Func[T] {
	return &Func[T]{applyFunc: fn}
}

// NoError wraps fn as an Option that cannot fail.
func NoError[T any](fn func(T)) *Func[T] {
	return &Func[T]{
		applyFunc: func(target T) error {
			fn(target)
			return nil
		},
	}
}

// Apply applies opts to target in order, stopping at the first error.
func Apply[T any](target T, opts ...Option[T]) error {
	for _, opt := range opts {
		if err := opt.apply(target); err != nil {
			return err
		}
	}

	return nil
}
