package subscription

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Playground/internal/core"
)

// Subscription forwards decoded store notifications to the latest callback
// until its token is revoked. Deliveries that arrive afterwards are dropped.
type Subscription[T any] struct {
	token *Token
	cb    atomic.Pointer[func(T)]
	onErr atomic.Pointer[func(error)]

	mu       sync.Mutex
	detach   []core.Unsubscribe
	detached bool
}

func newSubscription[T any](tok *Token, cb func(T), onErr func(error)) *Subscription[T] {
	s := &Subscription[T]{token: tok}
	s.Refresh(cb)
	if onErr != nil {
		s.onErr.Store(&onErr)
	}
	return s
}

func (s *Subscription[T]) Token() *Token { return s.token }

// Refresh swaps the callback; the previous one is never called again.
func (s *Subscription[T]) Refresh(cb func(T)) {
	if cb == nil {
		cb = func(T) {}
	}
	s.cb.Store(&cb)
}

// Unsubscribe revokes the token and detaches from the store. Safe to call
// repeatedly and from inside the callback.
//
// It does not wait for a delivery already running on another goroutine: one
// that passed the liveness check before the revoke may still invoke the
// callback after Unsubscribe returns. Callbacks must tolerate such
// late calls. No delivery starts after Unsubscribe returns.
func (s *Subscription[T]) Unsubscribe() {
	s.token.revoke()
	s.detachAll()
}

// deliver checks liveness, then calls the callback without holding a lock, so
// a callback may unsubscribe itself.
func (s *Subscription[T]) deliver(v T) {
	if !s.token.Alive() {
		log.Debug().Str("module", "app.subscription").Str("key", s.token.key).Uint64("gen", s.token.gen).Msg("late delivery dropped")
		return
	}
	(*s.cb.Load())(v)
}

// deliverFinal forwards v only if this call revokes the token, then detaches.
func (s *Subscription[T]) deliverFinal(v T) {
	if !s.token.revoke() {
		return
	}
	(*s.cb.Load())(v)
	s.detachAll()
}

func (s *Subscription[T]) fail(err error) {
	if !s.token.Alive() {
		return
	}
	if fn := s.onErr.Load(); fn != nil {
		(*fn)(err)
		return
	}
	log.Warn().Err(err).Str("module", "app.subscription").Str("key", s.token.key).Msg("subscription error")
}

// attach registers a store unsubscribe. If the subscription already ended it
// runs immediately.
func (s *Subscription[T]) attach(u core.Unsubscribe) {
	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		u()
		return
	}
	s.detach = append(s.detach, u)
	s.mu.Unlock()
}

func (s *Subscription[T]) detachAll() {
	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		return
	}
	s.detached = true
	fns := s.detach
	s.detach = nil
	s.mu.Unlock()
	for _, u := range fns {
		u()
	}
}
