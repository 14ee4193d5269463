// Package mailbox provides the unbounded per-subscription delivery queue shared
// by the store implementations.
package mailbox

import "sync"

// Mailbox is an unbounded FIFO drained by a single goroutine. Producers never
// block, so a consumer may write back into the store without deadlocking.
type Mailbox[T any] struct {
	mu     sync.Mutex
	queue  []T
	wake   chan struct{}
	closed bool
}

func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{wake: make(chan struct{}, 1)}
}

// Push enqueues v. Values pushed after Close are dropped.
func (m *Mailbox[T]) Push(v T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.queue = append(m.queue, v)
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Close discards pending values and ends Drain. Idempotent.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.queue = nil
	close(m.wake)
}

// Drain calls fn for every queued value in order until the mailbox closes.
func (m *Mailbox[T]) Drain(fn func(T)) {
	for range m.wake {
		for {
			m.mu.Lock()
			if m.closed || len(m.queue) == 0 {
				m.mu.Unlock()
				break
			}
			next := m.queue[0]
			m.queue = m.queue[1:]
			m.mu.Unlock()
			fn(next)
		}
	}
}
