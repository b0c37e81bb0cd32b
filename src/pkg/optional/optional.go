package optional

type Optional[T any] struct {
	set   bool
	value T
}

func Some[T any](value T) Optional[T] {
	return Optional[T]{set: true, value: value}
}

func None[T any]() Optional[T] {
	return Optional[T]{}
}

func (opt Optional[T]) Get() (T, bool) {
	return opt.value, opt.set
}

func (opt Optional[T]) IsNone() bool {
	return !opt.set
}

func (opt Optional[T]) IsSome() bool {
	return opt.set
}
