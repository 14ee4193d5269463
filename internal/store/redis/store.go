// Package redis implements the real-time store on Redis. Each document is a
// hash of JSON-encoded field values; a sorted set per collection keeps
// insertion order and every mutation publishes the changed id on the
// collection channel.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Playground/internal/core"
	"github.com/dkeye/Playground/internal/domain"
	"github.com/dkeye/Playground/internal/store/mailbox"
)

// maxTxAttempts bounds optimistic-lock retries when a watched key changes
// under a conditional update.
const maxTxAttempts = 8

type Store struct {
	rdb    *redis.Client
	prefix string
}

var _ core.Store = (*Store)(nil)

func New(rdb *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "playground"
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) docKey(coll core.Collection, id string) string {
	return fmt.Sprintf("%s:%s:doc:%s", s.prefix, coll, id)
}

func (s *Store) indexKey(coll core.Collection) string {
	return fmt.Sprintf("%s:%s:index", s.prefix, coll)
}

func (s *Store) seqKey(coll core.Collection) string {
	return fmt.Sprintf("%s:%s:seq", s.prefix, coll)
}

func (s *Store) channel(coll core.Collection) string {
	return fmt.Sprintf("%s:%s:changes", s.prefix, coll)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: redis %s: %v", domain.ErrStoreUnavailable, op, err)
}

func toHash(fields map[string]json.RawMessage) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = string(v)
	}
	return out
}

func fromHash(vals map[string]string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(vals))
	for k, v := range vals {
		out[k] = json.RawMessage(v)
	}
	return out
}

func (s *Store) Create(ctx context.Context, coll core.Collection, id string, fields core.Fields) error {
	encoded, err := core.Apply(nil, fields)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRecord, err)
	}
	seq, err := s.rdb.Incr(ctx, s.seqKey(coll)).Result()
	if err != nil {
		return unavailable("create", err)
	}

	key := s.docKey(coll, id)
	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%s/%s: %w", coll, id, domain.ErrAlreadyExists)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			// an empty hash cannot exist in Redis, keep a marker field
			pipe.HSet(ctx, key, "_id", `"`+id+`"`)
			if len(encoded) > 0 {
				pipe.HSet(ctx, key, toHash(encoded))
			}
			pipe.ZAdd(ctx, s.indexKey(coll), redis.Z{Score: float64(seq), Member: id})
			pipe.Publish(ctx, s.channel(coll), id)
			return nil
		})
		return err
	}
	return s.watch(ctx, "create", txf, key)
}

func (s *Store) Get(ctx context.Context, coll core.Collection, id string) (core.Doc, error) {
	vals, err := s.rdb.HGetAll(ctx, s.docKey(coll, id)).Result()
	if err != nil {
		return core.Doc{}, unavailable("get", err)
	}
	if len(vals) == 0 {
		return core.Doc{}, fmt.Errorf("%s/%s: %w", coll, id, domain.ErrNotFound)
	}
	return core.Doc{ID: id, Fields: strip(fromHash(vals))}, nil
}

func (s *Store) Update(ctx context.Context, coll core.Collection, id string, fields core.Fields, conds ...core.Cond) error {
	key := s.docKey(coll, id)
	txf := func(tx *redis.Tx) error {
		vals, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(vals) == 0 {
			return fmt.Errorf("%s/%s: %w", coll, id, domain.ErrNotFound)
		}
		current := strip(fromHash(vals))
		for _, c := range conds {
			if !c.Match(current) {
				return core.ErrConditionFailed
			}
		}
		next, err := core.Apply(current, fields)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidRecord, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(next) > 0 {
				pipe.HSet(ctx, key, toHash(next))
			}
			pipe.Publish(ctx, s.channel(coll), id)
			return nil
		})
		return err
	}
	return s.watch(ctx, "update", txf, key)
}

// watch runs txf under WATCH and retries when the key moved underneath it.
func (s *Store) watch(ctx context.Context, op string, txf func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxAttempts; i++ {
		err := s.rdb.Watch(ctx, txf, keys...)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, core.ErrConditionFailed),
			errors.Is(err, domain.ErrNotFound),
			errors.Is(err, domain.ErrAlreadyExists),
			errors.Is(err, domain.ErrInvalidRecord):
			return err
		default:
			return unavailable(op, err)
		}
	}
	return unavailable(op, redis.TxFailedErr)
}

func (s *Store) Query(ctx context.Context, coll core.Collection, filter core.Filter) ([]core.Doc, error) {
	ids, err := s.rdb.ZRange(ctx, s.indexKey(coll), 0, -1).Result()
	if err != nil {
		return nil, unavailable("query", err)
	}
	out := make([]core.Doc, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.docKey(coll, id))
		}
		return nil
	})
	if err != nil {
		return nil, unavailable("query", err)
	}
	for i, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) == 0 {
			continue
		}
		fields := strip(fromHash(vals))
		if filter.Match(fields) {
			out = append(out, core.Doc{ID: ids[i], Fields: fields})
		}
	}
	return out, nil
}

// Subscribe listens on the collection channel and re-queries on every change
// that touches a document inside the filter (before or after the change).
func (s *Store) Subscribe(ctx context.Context, coll core.Collection, filter core.Filter, onChange func(core.Snapshot), onErr func(error)) (core.Unsubscribe, error) {
	ps := s.rdb.Subscribe(ctx, s.channel(coll))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, unavailable("subscribe", err)
	}
	initial, err := s.Query(ctx, coll, filter)
	if err != nil {
		_ = ps.Close()
		return nil, err
	}

	box := mailbox.New[core.Snapshot]()
	box.Push(core.Snapshot{Collection: coll, Docs: initial})
	go box.Drain(onChange)

	subCtx, cancel := context.WithCancel(context.Background())
	go s.listen(subCtx, ps, coll, filter, initial, box, onErr)

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			_ = ps.Close()
			box.Close()
		})
	}, nil
}

func (s *Store) listen(ctx context.Context, ps *redis.PubSub, coll core.Collection, filter core.Filter, initial []core.Doc, box *mailbox.Mailbox[core.Snapshot], onErr func(error)) {
	seen := idSet(initial)
	for msg := range ps.Channel() {
		if ctx.Err() != nil {
			return
		}
		docs, err := s.Query(ctx, coll, filter)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("module", "store.redis").Str("collection", string(coll)).Msg("requery failed")
			if onErr != nil {
				onErr(err)
			}
			continue
		}
		now := idSet(docs)
		_, before := seen[msg.Payload]
		_, after := now[msg.Payload]
		seen = now
		if before || after {
			box.Push(core.Snapshot{Collection: coll, Docs: docs})
		}
	}
}

func idSet(docs []core.Doc) map[string]struct{} {
	out := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		out[d.ID] = struct{}{}
	}
	return out
}

func strip(fields map[string]json.RawMessage) map[string]json.RawMessage {
	delete(fields, "_id")
	return fields
}
