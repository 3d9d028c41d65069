// Package watch provides observable values with cancellable subscriptions.
package watch

import "sync"

// Feed fans values out to subscribers. Each subscriber receives values in
// publish order on its own goroutine, so a slow subscriber never blocks
// Publish or other subscribers.
type Feed[T any] struct {
	mu     sync.Mutex
	subs   map[uint64]*subscriber[T]
	nextID uint64
	closed bool
}

type subscriber[T any] struct {
	fn func(T)

	mu      sync.Mutex
	queue   []T
	running bool
	done    bool
}

// Subscribe registers fn. The returned cancel func stops delivery; values
// still queued for fn are dropped. Cancel is safe to call more than once.
func (f *Feed[T]) Subscribe(fn func(T)) (cancel func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return func() {}
	}
	if f.subs == nil {
		f.subs = make(map[uint64]*subscriber[T])
	}
	id := f.nextID
	f.nextID++
	s := &subscriber[T]{fn: fn}
	f.subs[id] = s

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			s.stop()
		})
	}
}

// Publish queues v for every current subscriber.
func (f *Feed[T]) Publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		s.push(v)
	}
}

// Len returns the number of live subscriptions.
func (f *Feed[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close cancels every subscription. Later Subscribe calls return a no-op cancel.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	subs := f.subs
	f.subs = nil
	f.closed = true
	f.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
}

func (s *subscriber[T]) push(v T) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, v)
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.drain()
}

func (s *subscriber[T]) drain() {
	for {
		s.mu.Lock()
		if s.done || len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		v := s.queue[0]
		var zero T
		s.queue[0] = zero
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.fn(v)
	}
}

func (s *subscriber[T]) stop() {
	s.mu.Lock()
	s.done = true
	s.queue = nil
	s.mu.Unlock()
}
