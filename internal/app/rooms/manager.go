// Package rooms owns the room record lifecycle: create, read and the single
// active -> ended transition.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Playground/internal/core"
	"github.com/dkeye/Playground/internal/domain"
)

type Options struct {
	MaxParticipants *int `json:"maxParticipants,omitempty" binding:"omitempty,gt=0"`
	IsPublicWriting bool `json:"isPublicWriting"`
}

// EndedHook runs after this manager moved a room to ended. It is not called
// for rooms that were already ended.
type EndedHook func(ctx context.Context, room domain.Room)

type Manager struct {
	store   core.Store
	now     func() time.Time
	onEnded EndedHook
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func WithEndedHook(h EndedHook) Option { return func(m *Manager) { m.onEnded = h } }

func New(store core.Store, opts ...Option) *Manager {
	m := &Manager{store: store, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Create writes a new active room hosted by host.
func (m *Manager) Create(ctx context.Context, host domain.User, title string, opts Options) (domain.Room, error) {
	title = strings.TrimSpace(title)
	if host.ID == "" || strings.TrimSpace(host.Name) == "" || title == "" {
		return domain.Room{}, fmt.Errorf("rooms: create: %w", domain.ErrInvalidRoom)
	}
	if opts.MaxParticipants != nil && *opts.MaxParticipants <= 0 {
		return domain.Room{}, fmt.Errorf("rooms: create: max participants: %w", domain.ErrInvalidRoom)
	}

	room := domain.Room{
		ID:               domain.RoomID(uuid.NewString()),
		Title:            title,
		HostID:           host.ID,
		HostName:         host.Name,
		Status:           domain.RoomActive,
		CreatedAt:        m.now().UTC(),
		ParticipantCount: 0,
		MaxParticipants:  opts.MaxParticipants,
		IsPublicWriting:  opts.IsPublicWriting,
	}
	fields, err := core.EncodeFields(room)
	if err != nil {
		return domain.Room{}, fmt.Errorf("rooms: create: %w", err)
	}
	if err := m.store.Create(ctx, core.Rooms, string(room.ID), fields); err != nil {
		return domain.Room{}, fmt.Errorf("rooms: create: %w", err)
	}
	log.Info().Str("module", "app.rooms").Str("room", string(room.ID)).Str("host", string(host.ID)).Msg("room created")
	return room, nil
}

func (m *Manager) Get(ctx context.Context, id domain.RoomID) (domain.Room, error) {
	doc, err := m.store.Get(ctx, core.Rooms, string(id))
	if err != nil {
		return domain.Room{}, fmt.Errorf("rooms: get %s: %w", id, err)
	}
	return core.Decode[domain.Room](doc)
}

// End moves the room to ended. Ending an ended room is a no-op that returns
// the stored room; the status never goes back.
func (m *Manager) End(ctx context.Context, id domain.RoomID) (domain.Room, error) {
	now := m.now().UTC()
	err := m.store.Update(ctx, core.Rooms, string(id),
		core.Fields{"status": domain.RoomEnded, "endedAt": now},
		core.Cond{Field: "status", Value: domain.RoomActive},
	)
	transitioned := err == nil
	if err != nil && !errors.Is(err, core.ErrConditionFailed) {
		return domain.Room{}, fmt.Errorf("rooms: end %s: %w", id, err)
	}

	room, err := m.Get(ctx, id)
	if err != nil {
		return domain.Room{}, err
	}
	if transitioned {
		log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room ended")
		if m.onEnded != nil {
			m.onEnded(ctx, room)
		}
	} else {
		log.Debug().Str("module", "app.rooms").Str("room", string(id)).Msg("room already ended")
	}
	return room, nil
}

// ListActive returns active rooms, oldest first.
func (m *Manager) ListActive(ctx context.Context) ([]domain.Room, error) {
	docs, err := m.store.Query(ctx, core.Rooms, core.Where("status", domain.RoomActive))
	if err != nil {
		return nil, fmt.Errorf("rooms: list active: %w", err)
	}
	out := core.DecodeAll[domain.Room](docs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
