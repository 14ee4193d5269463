// Package subscription fans store notifications out to in-process listeners.
// Every subscription carries a Token; once it is revoked (by Unsubscribe or
// by the first observation of an ended room) nothing more is forwarded.
package subscription

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/Playground/internal/app/chat"
	"github.com/dkeye/Playground/internal/app/participants"
	"github.com/dkeye/Playground/internal/app/writing"
	"github.com/dkeye/Playground/internal/core"
	"github.com/dkeye/Playground/internal/domain"
)

type Multiplexer struct {
	store core.Store

	mu   sync.Mutex
	gens map[string]uint64
}

func New(store core.Store) *Multiplexer {
	return &Multiplexer{store: store, gens: make(map[string]uint64)}
}

func (m *Multiplexer) token(key string) *Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gens[key]++
	return newToken(key, m.gens[key])
}

// Generation is the number of subscriptions made so far for key.
func (m *Multiplexer) Generation(key string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gens[key]
}

func roomKey(kind string, roomID domain.RoomID) string { return kind + ":" + string(roomID) }

func feed[T any](ctx context.Context, store core.Store, sub *Subscription[T], coll core.Collection, filter core.Filter, onSnap func(core.Snapshot)) error {
	tok := sub.token
	unsub, err := store.Subscribe(ctx, coll, filter, func(s core.Snapshot) {
		if !tok.Alive() {
			return
		}
		onSnap(s)
	}, sub.fail)
	if err != nil {
		return fmt.Errorf("subscription: %s: %w", coll, err)
	}
	sub.attach(unsub)
	return nil
}

func decodeRoom(s core.Snapshot) (domain.Room, bool) {
	rooms := core.DecodeAll[domain.Room](s.Docs)
	if len(rooms) == 0 {
		return domain.Room{}, false
	}
	return rooms[0], true
}

// SubscribeToRoom forwards every change of the room. The first delivery with
// status ended is forwarded once and ends the subscription.
func (m *Multiplexer) SubscribeToRoom(ctx context.Context, roomID domain.RoomID, cb func(domain.Room), onErr func(error)) (*Subscription[domain.Room], error) {
	sub := newSubscription(m.token(roomKey("room", roomID)), cb, onErr)
	err := feed(ctx, m.store, sub, core.Rooms, core.Where("roomId", roomID), func(s core.Snapshot) {
		room, ok := decodeRoom(s)
		if !ok {
			return
		}
		if !room.IsActive() {
			sub.deliverFinal(room)
			return
		}
		sub.deliver(room)
	})
	if err != nil {
		sub.Unsubscribe()
		return nil, err
	}
	return sub, nil
}

// SubscribeToParticipants forwards all rows of the room (closed ones too) by join time.
func (m *Multiplexer) SubscribeToParticipants(ctx context.Context, roomID domain.RoomID, cb func([]domain.Participant), onErr func(error)) (*Subscription[[]domain.Participant], error) {
	sub := newSubscription(m.token(roomKey("participants", roomID)), cb, onErr)
	err := feed(ctx, m.store, sub, core.Participants, core.Where("roomId", roomID), func(s core.Snapshot) {
		rows := core.DecodeAll[domain.Participant](s.Docs)
		participants.SortByJoin(rows)
		sub.deliver(rows)
	})
	if err != nil {
		sub.Unsubscribe()
		return nil, err
	}
	return sub, nil
}

// SubscribeToWritings forwards the writings viewer may see: all of them for a
// teacher, own plus public ones for a student.
func (m *Multiplexer) SubscribeToWritings(ctx context.Context, roomID domain.RoomID, viewer domain.UserID, role domain.Role, cb func([]domain.Writing), onErr func(error)) (*Subscription[[]domain.Writing], error) {
	sub := newSubscription(m.token(roomKey("writings", roomID)), cb, onErr)
	err := feed(ctx, m.store, sub, core.Writings, core.Where("roomId", roomID), func(s core.Snapshot) {
		rows := core.DecodeAll[domain.Writing](s.Docs)
		writing.SortByCreated(rows)
		sub.deliver(writing.Visible(role, viewer, rows))
	})
	if err != nil {
		sub.Unsubscribe()
		return nil, err
	}
	return sub, nil
}

func (m *Multiplexer) SubscribeToMessages(ctx context.Context, roomID domain.RoomID, cb func([]domain.Message), onErr func(error)) (*Subscription[[]domain.Message], error) {
	sub := newSubscription(m.token(roomKey("messages", roomID)), cb, onErr)
	err := feed(ctx, m.store, sub, core.Messages, core.Where("roomId", roomID), func(s core.Snapshot) {
		rows := core.DecodeAll[domain.Message](s.Docs)
		chat.SortByTime(rows)
		sub.deliver(rows)
	})
	if err != nil {
		sub.Unsubscribe()
		return nil, err
	}
	return sub, nil
}
