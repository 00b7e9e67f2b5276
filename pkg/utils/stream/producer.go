package stream

type Producer[T any] interface {
	Produce() (T, bool)
}

type ArrayProducer[T any] struct {
	list []T
}

func NewArrayProducer[T any](list []T) *ArrayProducer[T] {
	producer := ArrayProducer[T]{
		list: list,
	}
	return &producer
}

func (p *ArrayProducer[T]) Produce() (T, bool) {
	var zero T
	if len(p.list) == 0 {
		return zero, false
	}
	v := p.list[0]
	p.list = p.list[1:]
	return v, true
}

// Take pulls up to n values from the producer. A short batch means the
// producer is exhausted.
func Take[T any](p Producer[T], n int) []T {
	batch := make([]T, 0, n)
	for len(batch) < n {
		v, ok := p.Produce()
		if !ok {
			break
		}
		batch = append(batch, v)
	}
	return batch
}
