package analysis

import "sync"

// FallbackList is an ordered candidate list with promote-to-front memory.
// Callers try candidates in snapshot order and promote the one that
// succeeded, so the last good candidate is attempted first next time.
type FallbackList[T comparable] struct {
	mu    sync.Mutex
	items []T
}

func NewFallbackList[T comparable](items ...T) *FallbackList[T] {
	return &FallbackList[T]{items: items}
}

// Snapshot returns the current try order. The returned slice is a copy.
func (l *FallbackList[T]) Snapshot() []T {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]T, len(l.items))
	copy(out, l.items)

	return out
}

// Promote moves item to the front of the try order. Unknown items are
// ignored.
func (l *FallbackList[T]) Promote(item T) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, it := range l.items {
		if it == item {
			copy(l.items[1:i+1], l.items[:i])
			l.items[0] = item

			return
		}
	}
}
