// Package ds provides small generic data structures shared by the runtime.
package ds

// Set is an ordered set with O(1) membership tests and stable iteration in
// insertion order. Actors use it to publish the message signatures they
// accept; ordering keeps diagnostics deterministic.
//
// Add mutates the receiver. Copy and Values return new values. A Set is not
// safe for concurrent mutation.
type Set[T comparable] struct {
	items map[T]struct{}
	order []T
}

// Add adds v to the set. No-op if already present. (mutates)
func (s *Set[T]) Add(v T) {
	if s.items == nil {
		s.items = map[T]struct{}{}
	}
	if s.Contains(v) {
		return
	}
	s.items[v] = struct{}{}
	s.order = append(s.order, v)
}

// Contains reports whether v is present in the set.
func (s *Set[T]) Contains(v T) bool {
	_, ok := s.items[v]
	return ok
}

// ContainsFunc reports whether any element satisfies fn.
func (s *Set[T]) ContainsFunc(fn func(T) bool) bool {
	for _, v := range s.order {
		if fn(v) {
			return true
		}
	}
	return false
}

// Copy returns a new set with the same elements and order.
func (s *Set[T]) Copy() *Set[T] {
	return NewSet(s.order...)
}

// Values returns a copy of the elements in insertion order. A nil set has
// no values.
func (s *Set[T]) Values() []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s.order))
	copy(out, s.order)
	return out
}

// NewSet creates a new set with the given items.
func NewSet[T comparable](items ...T) *Set[T] {
	set := &Set[T]{items: make(map[T]struct{}, len(items)), order: make([]T, 0, len(items))}
	for _, item := range items {
		set.Add(item)
	}
	return set
}
