package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/Playground/internal/app/chat"
	"github.com/dkeye/Playground/internal/app/participants"
	"github.com/dkeye/Playground/internal/app/writing"
	"github.com/dkeye/Playground/internal/core"
	"github.com/dkeye/Playground/internal/domain"
)

const archiveTimeout = 10 * time.Second

// Archiver copies the final state of an ended room into a history sink. Its
// OnEnded method is a rooms.EndedHook.
type Archiver struct {
	sink         core.HistorySink
	participants *participants.Registry
	writing      *writing.Channel
	chat         *chat.Channel
}

func NewArchiver(sink core.HistorySink, p *participants.Registry, w *writing.Channel, c *chat.Channel) *Archiver {
	return &Archiver{sink: sink, participants: p, writing: w, chat: c}
}

// Collect reads every row of room from the real-time store.
func (a *Archiver) Collect(ctx context.Context, room domain.Room) (domain.RoomState, error) {
	st := domain.RoomState{Room: room}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := a.participants.ListByRoom(gctx, room.ID)
		st.Participants = rows
		return err
	})
	g.Go(func() error {
		rows, err := a.writing.ListByRoom(gctx, room.ID)
		st.Writings = rows
		return err
	})
	g.Go(func() error {
		rows, err := a.chat.History(gctx, room.ID, 0)
		st.Messages = rows
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.RoomState{}, fmt.Errorf("archive: collect %s: %w", room.ID, err)
	}
	st.Presence = domain.PresenceFrom(domain.ActiveParticipants(st.Participants))
	return st, nil
}

// OnEnded archives room. It outlives the request that ended the room and
// only logs failures; ending a room never fails because of history.
func (a *Archiver) OnEnded(ctx context.Context, room domain.Room) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()

	st, err := a.Collect(ctx, room)
	if err != nil {
		log.Error().Err(err).Str("module", "app.archive").Str("room", string(room.ID)).Msg("collect failed")
		return
	}
	if err := a.sink.Archive(ctx, st); err != nil {
		log.Error().Err(err).Str("module", "app.archive").Str("room", string(room.ID)).Msg("archive failed")
		return
	}
	log.Info().
		Str("module", "app.archive").
		Str("room", string(room.ID)).
		Int("participants", len(st.Participants)).
		Int("writings", len(st.Writings)).
		Int("messages", len(st.Messages)).
		Msg("room archived")
}
