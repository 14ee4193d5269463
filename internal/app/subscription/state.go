package subscription

import (
	"context"
	"sync"

	"github.com/dkeye/Playground/internal/app/chat"
	"github.com/dkeye/Playground/internal/app/participants"
	"github.com/dkeye/Playground/internal/app/writing"
	"github.com/dkeye/Playground/internal/core"
	"github.com/dkeye/Playground/internal/domain"
)

const (
	feedRoom = 1 << iota
	feedParticipants
	feedWritings
	feedMessages

	allFeeds = feedRoom | feedParticipants | feedWritings | feedMessages
)

// assembler merges the four room feeds into one RoomState. Feeds deliver on
// separate goroutines; mu serializes them so emitted states are ordered.
type assembler struct {
	mu    sync.Mutex
	seen  int
	state domain.RoomState
	sub   *Subscription[domain.RoomState]
}

func (a *assembler) apply(bit int, fn func(*domain.RoomState)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.sub.token.Alive() {
		return
	}
	fn(&a.state)
	a.seen |= bit
	if a.seen&feedRoom == 0 {
		return
	}
	out := a.snapshot()
	if !out.Room.IsActive() {
		a.sub.deliverFinal(out)
		return
	}
	if a.seen != allFeeds {
		return
	}
	a.sub.deliver(out)
}

func (a *assembler) snapshot() domain.RoomState {
	s := a.state
	s.Participants = append([]domain.Participant(nil), a.state.Participants...)
	s.Writings = append([]domain.Writing(nil), a.state.Writings...)
	s.Messages = append([]domain.Message(nil), a.state.Messages...)
	s.Presence = domain.PresenceFrom(s.Participants)
	return s
}

// WatchRoomState assembles the full room view for viewer from the room,
// participant, writing and message feeds. All four share one token: the
// first ended room revokes it, is delivered once, and detaches every feed.
// States are emitted once every feed has reported at least once.
func (m *Multiplexer) WatchRoomState(ctx context.Context, roomID domain.RoomID, viewer domain.User, cb func(domain.RoomState), onErr func(error)) (*Subscription[domain.RoomState], error) {
	sub := newSubscription(m.token(roomKey("state", roomID)), cb, onErr)
	a := &assembler{sub: sub}
	a.state.Participants = []domain.Participant{}
	a.state.Writings = []domain.Writing{}
	a.state.Messages = []domain.Message{}

	feeds := []struct {
		coll core.Collection
		fn   func(core.Snapshot)
	}{
		{core.Rooms, func(s core.Snapshot) {
			room, ok := decodeRoom(s)
			if !ok {
				return
			}
			a.apply(feedRoom, func(st *domain.RoomState) { st.Room = room })
		}},
		{core.Participants, func(s core.Snapshot) {
			rows := core.DecodeAll[domain.Participant](s.Docs)
			participants.SortByJoin(rows)
			a.apply(feedParticipants, func(st *domain.RoomState) { st.Participants = rows })
		}},
		{core.Writings, func(s core.Snapshot) {
			rows := core.DecodeAll[domain.Writing](s.Docs)
			writing.SortByCreated(rows)
			rows = writing.Visible(viewer.Role, viewer.ID, rows)
			a.apply(feedWritings, func(st *domain.RoomState) { st.Writings = rows })
		}},
		{core.Messages, func(s core.Snapshot) {
			rows := core.DecodeAll[domain.Message](s.Docs)
			chat.SortByTime(rows)
			a.apply(feedMessages, func(st *domain.RoomState) { st.Messages = rows })
		}},
	}
	for _, f := range feeds {
		if err := feed(ctx, m.store, sub, f.coll, core.Where("roomId", roomID), f.fn); err != nil {
			sub.Unsubscribe()
			return nil, err
		}
	}
	return sub, nil
}
