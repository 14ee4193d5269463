package subscription

import "sync/atomic"

// Token is the liveness flag of one subscription. It starts alive and is
// revoked exactly once. Gen orders subscriptions made for the same key so a
// caller can tell a stale instance from the current one.
type Token struct {
	key   string
	gen   uint64
	alive atomic.Bool
}

func newToken(key string, gen uint64) *Token {
	t := &Token{key: key, gen: gen}
	t.alive.Store(true)
	return t
}

func (t *Token) Key() string        { return t.key }
func (t *Token) Generation() uint64 { return t.gen }
func (t *Token) Alive() bool        { return t.alive.Load() }

// revoke reports whether this call flipped the token.
func (t *Token) revoke() bool { return t.alive.CompareAndSwap(true, false) }
