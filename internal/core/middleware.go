package core

import (
	"cmp"
	"slices"
)

// entry is a single registered value with a deterministic execution order.
// Lower Order values run first.
type entry[T any] struct {
	Value T
	Order int
}

// Ordered collects values (call middlewares, server interceptors) and
// returns them sorted by their order key.
type Ordered[T any] struct {
	entries []entry[T]
}

// Add registers v with the given order.
func (b *Ordered[T]) Add(order int, v T) {
	b.entries = append(b.entries, entry[T]{Value: v, Order: order})
}

// Len reports how many values have been registered.
func (b *Ordered[T]) Len() int {
	return len(b.entries)
}

// Build sorts the collected values by Order (stable, so equal orders keep
// their registration order) and returns them.
func (b *Ordered[T]) Build() []T {
	sorted := slices.Clone(b.entries)
	slices.SortStableFunc(sorted, func(a, c entry[T]) int {
		return cmp.Compare(a.Order, c.Order)
	})

	out := make([]T, len(sorted))
	for i, e := range sorted {
		out[i] = e.Value
	}
	return out
}
