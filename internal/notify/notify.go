// Package notify implements latest-value publication: one channel per
// subscriber, capacity one, where a newer value replaces an undelivered
// older one. Observers always see the field's latest value; intermediate
// states are not buffered.
package notify

import "sync"

// Source publishes values of one logical state to any number of subscribers.
type Source[T any] struct {
	mu   sync.Mutex
	subs map[int]chan T
	next int
	last T
	has  bool
}

// NewSource returns an empty source with no current value.
func NewSource[T any]() *Source[T] {
	return &Source[T]{subs: make(map[int]chan T)}
}

// Publish records v as the current value and offers it to every subscriber,
// displacing any value they have not yet received. Never blocks.
func (s *Source[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = v
	s.has = true
	for _, ch := range s.subs {
		offer(ch, v)
	}
}

// Subscribe registers a new observer. If a value has already been published,
// it is delivered immediately. The returned cancel func drops the
// subscription and closes the channel.
func (s *Source[T]) Subscribe() (<-chan T, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	ch := make(chan T, 1)
	if s.has {
		ch <- s.last
	}
	s.subs[id] = ch
	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// offer performs a displace-and-send on a capacity-one channel.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
