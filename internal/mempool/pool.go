// Package mempool recycles the large slices built for every inference: input
// tensors and the visited masks of the text detector.
package mempool

import "sync"

// classStep is the granularity of the size classes.
const classStep = 1024

// Pool hands out zeroed slices grouped by size class.
type Pool[T any] struct {
	classes sync.Map // size class -> *sync.Pool of []T
}

// Shared pools.
var (
	Float32 = &Pool[float32]{}
	Bool    = &Pool[bool]{}
)

// sizeClass rounds n up to a multiple of classStep, with one step as minimum.
func sizeClass(n int) int {
	if n <= classStep {
		return classStep
	}
	return (n + classStep - 1) / classStep * classStep
}

func (p *Pool[T]) pool(class int) *sync.Pool {
	if sp, ok := p.classes.Load(class); ok {
		return sp.(*sync.Pool)
	}
	sp, _ := p.classes.LoadOrStore(class, &sync.Pool{New: func() any { return make([]T, class) }})
	return sp.(*sync.Pool)
}

// Get returns a zeroed slice of length n. Release it with Put.
func (p *Pool[T]) Get(n int) []T {
	if n < 0 {
		n = 0
	}
	class := sizeClass(n)
	buf, _ := p.pool(class).Get().([]T)
	if cap(buf) < class {
		buf = make([]T, class)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}

// Put gives buf back. Slices that did not come from Get are accepted when
// their capacity is a size class; others are dropped. nil is ignored.
func (p *Pool[T]) Put(buf []T) {
	if buf == nil || cap(buf) != sizeClass(cap(buf)) {
		return
	}
	p.pool(cap(buf)).Put(buf[:cap(buf)]) //nolint:staticcheck // slices are the pooled unit
}
