// Package stack provides the explicit container stack used by the iterative decoder.
package stack

// Stack is a LIFO of T backed by a slice that keeps its capacity across Reset.
type Stack[T any] struct {
	items []T
}

// NewWithCapacity reduces allocations when approximate nesting depth is known.
func NewWithCapacity[T any](capacity int) *Stack[T] {
	return &Stack[T]{
		items: make([]T, 0, capacity),
	}
}

// Push adds elements in order with the last element at the top.
func (s *Stack[T]) Push(items ...T) {
	s.items = append(s.items, items...)
}

func (s *Stack[T]) Pop() (T, bool) {
	var zero T
	if len(s.items) == 0 {
		return zero, false
	}

	index := len(s.items) - 1
	item := s.items[index]
	s.items[index] = zero
	s.items = s.items[:index]
	return item, true
}

// PeekRef allows modifying the top element in place. The pointer is valid until
// the next Push.
func (s *Stack[T]) PeekRef() *T {
	if len(s.items) == 0 {
		return nil
	}

	return &s.items[len(s.items)-1]
}

func (s *Stack[T]) Size() int {
	return len(s.items)
}

// Reset empties the stack, dropping references to popped elements but keeping
// the backing array.
func (s *Stack[T]) Reset() {
	clear(s.items)
	s.items = s.items[:0]
}
