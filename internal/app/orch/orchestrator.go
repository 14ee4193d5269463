// Package orch is the per-client glue: it joins and leaves rooms, keeps the
// continuity session in sync with the room feeds and reacts to a room ending
// by running its own leave routine once.
package orch

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Playground/internal/app/chat"
	"github.com/dkeye/Playground/internal/app/continuity"
	"github.com/dkeye/Playground/internal/app/participants"
	"github.com/dkeye/Playground/internal/app/peerid"
	"github.com/dkeye/Playground/internal/app/rooms"
	"github.com/dkeye/Playground/internal/app/subscription"
	"github.com/dkeye/Playground/internal/app/writing"
	"github.com/dkeye/Playground/internal/core"
	"github.com/dkeye/Playground/internal/domain"
)

// Services are shared by every orchestrator of the process.
type Services struct {
	Rooms        *rooms.Manager
	Participants *participants.Registry
	Writing      *writing.Channel
	Chat         *chat.Channel
	Subs         *subscription.Multiplexer
	PeerIDs      *peerid.Generator
	Transport    core.PeerTransport
}

type Orchestrator struct {
	svc     Services
	user    domain.User
	session *continuity.Store
	// base outlives request contexts; the ended-room reaction runs on it.
	base context.Context

	mu            sync.Mutex
	roomID        domain.RoomID
	participantID domain.ParticipantID
	epoch         uint64
	watch         *subscription.Subscription[domain.RoomState]
	audio         core.PeerHandle
	peerID        string
	onEnded       func(domain.Room)
}

func New(base context.Context, svc Services, user domain.User, session *continuity.Store) *Orchestrator {
	if session == nil {
		session = continuity.NewStore()
	}
	return &Orchestrator{svc: svc, user: user, session: session, base: base}
}

func (o *Orchestrator) User() domain.User {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.user
}

func (o *Orchestrator) Session() *continuity.Store { return o.session }

// Rename changes the display name used for later joins and messages.
func (o *Orchestrator) Rename(name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.user.SetName(name)
}

// OnRoomEnded registers fn to run after the automatic leave of an ended room.
func (o *Orchestrator) OnRoomEnded(fn func(domain.Room)) {
	o.mu.Lock()
	o.onEnded = fn
	o.mu.Unlock()
}

// Current returns the room and participant row this client is in.
func (o *Orchestrator) Current() (domain.RoomID, domain.ParticipantID, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.roomID, o.participantID, o.roomID != ""
}

// attach starts watching roomID as participant p. Callers hold no lock.
func (o *Orchestrator) attach(ctx context.Context, roomID domain.RoomID, p domain.Participant) error {
	o.mu.Lock()
	o.epoch++
	epoch := o.epoch
	o.roomID = roomID
	o.participantID = p.ID
	o.mu.Unlock()

	watch, err := o.svc.Subs.WatchRoomState(ctx, roomID, o.User(),
		func(st domain.RoomState) { o.onState(epoch, p, st) },
		func(err error) {
			log.Warn().Err(err).Str("module", "orch").Str("room", string(roomID)).Msg("room feed error")
		},
	)
	if err != nil {
		o.mu.Lock()
		if o.epoch == epoch {
			o.roomID, o.participantID = "", ""
		}
		o.mu.Unlock()
		return err
	}

	o.mu.Lock()
	stale := o.epoch != epoch
	if !stale {
		o.watch = watch
	}
	o.mu.Unlock()
	if stale {
		// left or ended before the watch was stored
		watch.Unsubscribe()
	}
	return nil
}

func (o *Orchestrator) onState(epoch uint64, p domain.Participant, st domain.RoomState) {
	o.mu.Lock()
	current := o.epoch == epoch
	peerID := o.peerID
	voice := o.audio != nil
	me := o.user
	o.mu.Unlock()
	if !current {
		return
	}

	if !st.Room.IsActive() {
		o.reactToEnd(epoch, st.Room)
		return
	}

	started := o.session.Start(continuity.Session{
		CurrentRoom:     st.Room,
		Participants:    st.Participants,
		Writings:        st.Writings,
		Messages:        st.Messages,
		MyParticipantID: p.ID,
		PeerID:          peerID,
		UserID:          me.ID,
		UserName:        me.Name,
		UserEmail:       me.Email,
		UserRole:        me.Role,
		IsVoiceActive:   voice,
		IsMuted:         p.IsMuted,
	})
	if started {
		return
	}
	o.session.Update(continuity.Patch{
		CurrentRoom:  &st.Room,
		Participants: &st.Participants,
		Writings:     &st.Writings,
		Messages:     &st.Messages,
	})
}

// reactToEnd is the observe-and-react path: the room feed delivered ended.
func (o *Orchestrator) reactToEnd(epoch uint64, room domain.Room) {
	pid, ok := o.detach(epoch)
	if !ok {
		return
	}
	if _, err := o.svc.Participants.Leave(o.base, pid); err != nil {
		log.Error().Err(err).Str("module", "orch").Str("participant", string(pid)).Msg("leave after room end failed")
	}
	log.Info().Str("module", "orch").Str("room", string(room.ID)).Str("user", string(o.User().ID)).Msg("room ended, left")

	o.mu.Lock()
	hook := o.onEnded
	o.mu.Unlock()
	if hook != nil {
		hook(room)
	}
}

// detach drops room membership state, stops the watch and the audio channel
// and clears the session. Only the first caller for a given epoch gets ok;
// epoch 0 means whatever is current.
func (o *Orchestrator) detach(epoch uint64) (domain.ParticipantID, bool) {
	o.mu.Lock()
	if o.roomID == "" || (epoch != 0 && o.epoch != epoch) {
		o.mu.Unlock()
		return "", false
	}
	pid := o.participantID
	watch := o.watch
	o.epoch++
	o.roomID, o.participantID, o.watch = "", "", nil
	o.mu.Unlock()

	if watch != nil {
		watch.Unsubscribe()
	}
	o.closeAudio()
	o.session.Clear()
	return pid, true
}

// Close releases the watch and audio without leaving the room, so a reload
// can restore the session.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	watch := o.watch
	o.epoch++
	o.roomID, o.participantID, o.watch = "", "", nil
	o.mu.Unlock()
	if watch != nil {
		watch.Unsubscribe()
	}
	o.closeAudio()
	log.Debug().Str("module", "orch").Str("user", string(o.User().ID)).Msg("closed")
}
