// Package memory is an in-process real-time store. It backs tests and the
// single-node "memory" driver and follows the same contract as the Redis store.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Playground/internal/core"
	"github.com/dkeye/Playground/internal/domain"
	"github.com/dkeye/Playground/internal/store/mailbox"
)

type subscriber struct {
	filter core.Filter
	box    *mailbox.Mailbox[core.Snapshot]
}

type collection struct {
	docs  map[string]map[string]json.RawMessage
	order []string
}

// Store is a threadsafe in-memory document store with snapshot subscriptions.
type Store struct {
	mu     sync.Mutex
	colls  map[core.Collection]*collection
	subs   map[core.Collection]map[uint64]*subscriber
	nextID uint64

	down atomic.Bool
}

var _ core.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		colls: make(map[core.Collection]*collection),
		subs:  make(map[core.Collection]map[uint64]*subscriber),
	}
}

// SetUnavailable makes every call fail with domain.ErrStoreUnavailable.
func (s *Store) SetUnavailable(down bool) { s.down.Store(down) }

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if s.down.Load() {
		return domain.ErrStoreUnavailable
	}
	return nil
}

func (s *Store) coll(name core.Collection) *collection {
	c, ok := s.colls[name]
	if !ok {
		c = &collection{docs: make(map[string]map[string]json.RawMessage)}
		s.colls[name] = c
	}
	return c
}

func (s *Store) Create(ctx context.Context, coll core.Collection, id string, fields core.Fields) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	encoded, err := core.Apply(nil, fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(coll)
	if _, ok := c.docs[id]; ok {
		return fmt.Errorf("%s/%s: %w", coll, id, domain.ErrAlreadyExists)
	}
	c.docs[id] = encoded
	c.order = append(c.order, id)
	s.notifyLocked(coll, nil, encoded)
	return nil
}

func (s *Store) Get(ctx context.Context, coll core.Collection, id string) (core.Doc, error) {
	if err := s.check(ctx); err != nil {
		return core.Doc{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.coll(coll).docs[id]
	if !ok {
		return core.Doc{}, fmt.Errorf("%s/%s: %w", coll, id, domain.ErrNotFound)
	}
	return core.Doc{ID: id, Fields: clone(doc)}, nil
}

func (s *Store) Update(ctx context.Context, coll core.Collection, id string, fields core.Fields, conds ...core.Cond) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(coll)
	old, ok := c.docs[id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", coll, id, domain.ErrNotFound)
	}
	for _, cond := range conds {
		if !cond.Match(old) {
			return core.ErrConditionFailed
		}
	}
	next, err := core.Apply(old, fields)
	if err != nil {
		return err
	}
	c.docs[id] = next
	s.notifyLocked(coll, old, next)
	return nil
}

func (s *Store) Query(ctx context.Context, coll core.Collection, filter core.Filter) ([]core.Doc, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryLocked(coll, filter), nil
}

func (s *Store) queryLocked(coll core.Collection, filter core.Filter) []core.Doc {
	c := s.coll(coll)
	out := make([]core.Doc, 0)
	for _, id := range c.order {
		doc := c.docs[id]
		if filter.Match(doc) {
			out = append(out, core.Doc{ID: id, Fields: clone(doc)})
		}
	}
	return out
}

// Subscribe delivers the current snapshot immediately and then one snapshot per
// change that touches a matching document. onErr is never called by this store.
func (s *Store) Subscribe(ctx context.Context, coll core.Collection, filter core.Filter, onChange func(core.Snapshot), _ func(error)) (core.Unsubscribe, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	sub := &subscriber{filter: filter, box: mailbox.New[core.Snapshot]()}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	if s.subs[coll] == nil {
		s.subs[coll] = make(map[uint64]*subscriber)
	}
	s.subs[coll][id] = sub
	sub.box.Push(core.Snapshot{Collection: coll, Docs: s.queryLocked(coll, filter)})
	s.mu.Unlock()

	go sub.box.Drain(onChange)
	log.Debug().Str("module", "store.memory").Str("collection", string(coll)).Uint64("sub", id).Msg("subscribed")

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs[coll], id)
			s.mu.Unlock()
			sub.box.Close()
			log.Debug().Str("module", "store.memory").Str("collection", string(coll)).Uint64("sub", id).Msg("unsubscribed")
		})
	}, nil
}

// notifyLocked pushes a fresh snapshot to every subscriber whose filter matched
// the document before or after the change.
func (s *Store) notifyLocked(coll core.Collection, before, after map[string]json.RawMessage) {
	for _, sub := range s.subs[coll] {
		touched := sub.filter.Match(after) || (before != nil && sub.filter.Match(before))
		if !touched {
			continue
		}
		sub.box.Push(core.Snapshot{Collection: coll, Docs: s.queryLocked(coll, sub.filter)})
	}
}

func clone(in map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
