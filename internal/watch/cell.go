package watch

import "sync"

// Cell holds a value owned by a single writer and notifies subscribers of
// every change.
type Cell[T any] struct {
	mu    sync.RWMutex
	value T
	feed  Feed[T]
}

// NewCell returns a cell holding initial.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set stores v and notifies subscribers.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.feed.Publish(v)
}

// Update applies fn to the current value under the write lock, stores the
// result and notifies subscribers. fn must not call back into the cell.
func (c *Cell[T]) Update(fn func(T) T) T {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = fn(c.value)
	c.feed.Publish(c.value)
	return c.value
}

// Subscribe registers fn for future changes.
func (c *Cell[T]) Subscribe(fn func(T)) (cancel func()) {
	return c.feed.Subscribe(fn)
}

// Close drops every subscription.
func (c *Cell[T]) Close() {
	c.feed.Close()
}
