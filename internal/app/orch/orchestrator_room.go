package orch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Playground/internal/app/rooms"
	"github.com/dkeye/Playground/internal/domain"
)

// Create opens a room hosted by this client's user. The host is not joined.
func (o *Orchestrator) Create(ctx context.Context, title string, opts rooms.Options) (domain.Room, error) {
	return o.svc.Rooms.Create(ctx, o.User(), title, opts)
}

// Join enters roomID. Being in another room leaves it first; joining the same
// room again returns the current row.
func (o *Orchestrator) Join(ctx context.Context, roomID domain.RoomID) (domain.Participant, error) {
	current, pid, ok := o.Current()
	if ok && current == roomID {
		return o.svc.Participants.Get(ctx, pid)
	}
	if ok {
		if err := o.Leave(ctx); err != nil {
			return domain.Participant{}, err
		}
		log.Info().Str("module", "orch").Str("user", string(o.User().ID)).Str("from_room", string(current)).Msg("left previous room")
	}

	p, err := o.svc.Participants.Join(ctx, roomID, o.User())
	if err != nil {
		return domain.Participant{}, err
	}
	if err := o.attach(ctx, roomID, p); err != nil {
		// nobody will observe this row, close it again
		if _, lerr := o.svc.Participants.Leave(ctx, p.ID); lerr != nil {
			log.Error().Err(lerr).Str("module", "orch").Str("participant", string(p.ID)).Msg("rollback leave failed")
		}
		return domain.Participant{}, err
	}
	o.announce(ctx, roomID, fmt.Sprintf("%s joined", o.User().Name))
	return p, nil
}

// Leave closes this client's row and tears down local state.
func (o *Orchestrator) Leave(ctx context.Context) error {
	roomID, _, _ := o.Current()
	pid, ok := o.detach(0)
	if !ok {
		return fmt.Errorf("orch: leave: %w", domain.ErrNotInRoom)
	}
	if _, err := o.svc.Participants.Leave(ctx, pid); err != nil {
		return err
	}
	o.announce(ctx, roomID, fmt.Sprintf("%s left", o.User().Name))
	return nil
}

// EndRoom ends roomID (the current room when empty). Host only; this guard
// runs in the caller's code path, the store itself accepts any writer.
func (o *Orchestrator) EndRoom(ctx context.Context, roomID domain.RoomID) (domain.Room, error) {
	if roomID == "" {
		cur, _, ok := o.Current()
		if !ok {
			return domain.Room{}, fmt.Errorf("orch: end: %w", domain.ErrNotInRoom)
		}
		roomID = cur
	}
	room, err := o.svc.Rooms.Get(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if !room.IsHost(o.User().ID) {
		return domain.Room{}, fmt.Errorf("orch: end %s: %w", roomID, domain.ErrPermissionDenied)
	}
	if room.IsActive() {
		o.announce(ctx, roomID, "room ended by host")
	}
	return o.svc.Rooms.End(ctx, roomID)
}

// Restore reattaches to the room this user is still active in after a reload.
func (o *Orchestrator) Restore(ctx context.Context) (domain.Room, bool, error) {
	if cur, _, ok := o.Current(); ok {
		room, err := o.svc.Rooms.Get(ctx, cur)
		return room, err == nil, err
	}
	room, p, ok, err := o.svc.Participants.FindActiveRoom(ctx, o.User().ID)
	if err != nil || !ok {
		return domain.Room{}, false, err
	}
	if err := o.attach(ctx, room.ID, p); err != nil {
		return domain.Room{}, false, err
	}
	log.Info().Str("module", "orch").Str("user", string(o.User().ID)).Str("room", string(room.ID)).Msg("session restored")
	return room, true, nil
}

func (o *Orchestrator) Write(ctx context.Context, content string) (domain.Writing, error) {
	roomID, _, ok := o.Current()
	if !ok {
		return domain.Writing{}, fmt.Errorf("orch: write: %w", domain.ErrNotInRoom)
	}
	return o.svc.Writing.Upsert(ctx, roomID, o.User(), content)
}

// SetWritingPublic toggles a writing's visibility. Host only, client-side.
func (o *Orchestrator) SetWritingPublic(ctx context.Context, id domain.WritingID, isPublic bool) (domain.Writing, error) {
	w, err := o.svc.Writing.Get(ctx, id)
	if err != nil {
		return domain.Writing{}, err
	}
	room, err := o.svc.Rooms.Get(ctx, w.RoomID)
	if err != nil {
		return domain.Writing{}, err
	}
	if !room.IsHost(o.User().ID) {
		return domain.Writing{}, fmt.Errorf("orch: publish %s: %w", id, domain.ErrPermissionDenied)
	}
	return o.svc.Writing.SetPublic(ctx, id, isPublic)
}

func (o *Orchestrator) Say(ctx context.Context, text string) (domain.Message, error) {
	roomID, _, ok := o.Current()
	if !ok {
		return domain.Message{}, fmt.Errorf("orch: say: %w", domain.ErrNotInRoom)
	}
	return o.svc.Chat.Post(ctx, roomID, o.User(), text)
}

func (o *Orchestrator) announce(ctx context.Context, roomID domain.RoomID, text string) {
	if o.svc.Chat == nil || roomID == "" {
		return
	}
	if _, err := o.svc.Chat.Announce(ctx, roomID, text); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("room", string(roomID)).Msg("announce failed")
	}
}
