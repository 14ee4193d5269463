// Package participants tracks membership rows. Rows are soft-deleted by
// setting leftAt; the room's participantCount follows the active rows.
package participants

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Playground/internal/core"
	"github.com/dkeye/Playground/internal/domain"
)

type Registry struct {
	store core.Store
	now   func() time.Time
}

func New(store core.Store, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{store: store, now: now}
}

// Join admits user into an active room. A new row is created on every call.
func (r *Registry) Join(ctx context.Context, roomID domain.RoomID, user domain.User) (domain.Participant, error) {
	doc, err := r.store.Get(ctx, core.Rooms, string(roomID))
	if err != nil {
		return domain.Participant{}, fmt.Errorf("participants: join %s: %w", roomID, err)
	}
	room, err := core.Decode[domain.Room](doc)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("participants: join %s: %w", roomID, err)
	}
	if !room.IsActive() {
		return domain.Participant{}, fmt.Errorf("participants: join %s: %w", roomID, domain.ErrRoomNotActive)
	}
	if room.Full() {
		return domain.Participant{}, fmt.Errorf("participants: join %s: %w", roomID, domain.ErrRoomFull)
	}

	p := domain.Participant{
		ID:        domain.ParticipantID(uuid.NewString()),
		RoomID:    roomID,
		UserID:    user.ID,
		UserName:  user.Name,
		UserEmail: user.Email,
		Role:      user.Role,
		JoinedAt:  r.now().UTC(),
	}
	fields, err := core.EncodeFields(p)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("participants: join: %w", err)
	}
	if err := r.store.Create(ctx, core.Participants, string(p.ID), fields); err != nil {
		return domain.Participant{}, fmt.Errorf("participants: join %s: %w", roomID, err)
	}
	if err := r.store.Update(ctx, core.Rooms, string(roomID), core.Fields{"participantCount": core.Increment(1)}); err != nil {
		r.abandon(ctx, p.ID)
		return domain.Participant{}, fmt.Errorf("participants: join %s: count: %w", roomID, err)
	}
	log.Info().Str("module", "app.participants").Str("room", string(roomID)).Str("user", string(user.ID)).Str("participant", string(p.ID)).Msg("joined")
	return p, nil
}

// abandon closes a row whose join was never counted, so it cannot be found
// as active later.
func (r *Registry) abandon(ctx context.Context, id domain.ParticipantID) {
	err := r.store.Update(ctx, core.Participants, string(id),
		core.Fields{"leftAt": r.now().UTC()},
		core.Cond{Field: "leftAt", Value: nil},
	)
	if err != nil {
		log.Error().Err(err).Str("module", "app.participants").Str("participant", string(id)).Msg("join rollback failed")
	}
}

// Leave closes the row once. Repeated calls return the row unchanged and do
// not touch the room counter.
func (r *Registry) Leave(ctx context.Context, id domain.ParticipantID) (domain.Participant, error) {
	err := r.store.Update(ctx, core.Participants, string(id),
		core.Fields{"leftAt": r.now().UTC(), "isVoiceActive": false},
		core.Cond{Field: "leftAt", Value: nil},
	)
	closed := err == nil
	if err != nil && !errors.Is(err, core.ErrConditionFailed) {
		return domain.Participant{}, fmt.Errorf("participants: leave %s: %w", id, err)
	}

	p, err := r.Get(ctx, id)
	if err != nil {
		return domain.Participant{}, err
	}
	if !closed {
		return p, nil
	}
	if err := r.store.Update(ctx, core.Rooms, string(p.RoomID), core.Fields{"participantCount": core.Increment(-1)}); err != nil {
		return p, fmt.Errorf("participants: leave %s: count: %w", id, err)
	}
	log.Info().Str("module", "app.participants").Str("room", string(p.RoomID)).Str("participant", string(id)).Msg("left")
	return p, nil
}

func (r *Registry) Get(ctx context.Context, id domain.ParticipantID) (domain.Participant, error) {
	doc, err := r.store.Get(ctx, core.Participants, string(id))
	if err != nil {
		return domain.Participant{}, fmt.Errorf("participants: get %s: %w", id, err)
	}
	return core.Decode[domain.Participant](doc)
}

// ListByRoom returns every row of the room, closed ones included, by join time.
func (r *Registry) ListByRoom(ctx context.Context, roomID domain.RoomID) ([]domain.Participant, error) {
	docs, err := r.store.Query(ctx, core.Participants, core.Where("roomId", roomID))
	if err != nil {
		return nil, fmt.Errorf("participants: list %s: %w", roomID, err)
	}
	out := core.DecodeAll[domain.Participant](docs)
	SortByJoin(out)
	return out, nil
}

// Active is the active subset of rows.
func Active(rows []domain.Participant) []domain.Participant {
	return domain.ActiveParticipants(rows)
}

func SortByJoin(rows []domain.Participant) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].JoinedAt.Before(rows[j].JoinedAt) })
}

// FindActiveRoom looks for an active row of userID across active rooms,
// oldest room first. The first hit wins.
func (r *Registry) FindActiveRoom(ctx context.Context, userID domain.UserID) (domain.Room, domain.Participant, bool, error) {
	roomDocs, err := r.store.Query(ctx, core.Rooms, core.Where("status", domain.RoomActive))
	if err != nil {
		return domain.Room{}, domain.Participant{}, false, fmt.Errorf("participants: find %s: %w", userID, err)
	}
	activeRooms := core.DecodeAll[domain.Room](roomDocs)
	sort.SliceStable(activeRooms, func(i, j int) bool { return activeRooms[i].CreatedAt.Before(activeRooms[j].CreatedAt) })

	for _, room := range activeRooms {
		docs, err := r.store.Query(ctx, core.Participants,
			core.Where("roomId", room.ID).And("userId", userID).And("leftAt", nil))
		if err != nil {
			return domain.Room{}, domain.Participant{}, false, fmt.Errorf("participants: find %s: %w", userID, err)
		}
		rows := core.DecodeAll[domain.Participant](docs)
		if len(rows) == 0 {
			continue
		}
		SortByJoin(rows)
		return room, rows[len(rows)-1], true, nil
	}
	return domain.Room{}, domain.Participant{}, false, nil
}

func (r *Registry) SetVoice(ctx context.Context, id domain.ParticipantID, active bool) error {
	return r.set(ctx, id, "voice", core.Fields{"isVoiceActive": active})
}

func (r *Registry) SetMuted(ctx context.Context, id domain.ParticipantID, muted bool) error {
	return r.set(ctx, id, "mute", core.Fields{"isMuted": muted})
}

func (r *Registry) SetPeerID(ctx context.Context, id domain.ParticipantID, peerID string) error {
	return r.set(ctx, id, "peer", core.Fields{"peerId": peerID})
}

// set only touches active rows.
func (r *Registry) set(ctx context.Context, id domain.ParticipantID, op string, fields core.Fields) error {
	err := r.store.Update(ctx, core.Participants, string(id), fields, core.Cond{Field: "leftAt", Value: nil})
	if errors.Is(err, core.ErrConditionFailed) {
		return fmt.Errorf("participants: %s %s: %w", op, id, domain.ErrNotInRoom)
	}
	if err != nil {
		return fmt.Errorf("participants: %s %s: %w", op, id, err)
	}
	return nil
}
