package orch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Playground/internal/app/continuity"
	"github.com/dkeye/Playground/internal/app/peerid"
	"github.com/dkeye/Playground/internal/domain"
)

// SetVoiceActive opens or closes this client's audio channel. Every open uses
// a freshly generated peer id.
func (o *Orchestrator) SetVoiceActive(ctx context.Context, active bool) (string, error) {
	roomID, pid, ok := o.Current()
	if !ok {
		return "", fmt.Errorf("orch: voice: %w", domain.ErrNotInRoom)
	}
	if !active {
		o.closeAudio()
		if err := o.svc.Participants.SetVoice(ctx, pid, false); err != nil {
			return "", err
		}
		off, empty := false, ""
		o.session.Update(continuity.Patch{IsVoiceActive: &off, PeerID: &empty})
		return "", nil
	}

	o.closeAudio()
	peerID := o.svc.PeerIDs.Generate(o.User().ID, roomID)
	if o.svc.Transport != nil {
		handle, err := o.svc.Transport.Open(peerID, peerid.AudioConstraints())
		if err != nil {
			return "", fmt.Errorf("orch: voice: open %s: %w", peerID, err)
		}
		o.mu.Lock()
		o.audio = handle
		o.mu.Unlock()
	}
	o.mu.Lock()
	o.peerID = peerID
	o.mu.Unlock()

	if err := o.svc.Participants.SetPeerID(ctx, pid, peerID); err != nil {
		o.closeAudio()
		return "", err
	}
	if err := o.svc.Participants.SetVoice(ctx, pid, true); err != nil {
		o.closeAudio()
		return "", err
	}
	on := true
	o.session.Update(continuity.Patch{IsVoiceActive: &on, PeerID: &peerID})
	log.Info().Str("module", "orch").Str("room", string(roomID)).Str("peer", peerID).Msg("voice on")
	return peerID, nil
}

func (o *Orchestrator) SetMuted(ctx context.Context, muted bool) error {
	_, pid, ok := o.Current()
	if !ok {
		return fmt.Errorf("orch: mute: %w", domain.ErrNotInRoom)
	}
	if err := o.svc.Participants.SetMuted(ctx, pid, muted); err != nil {
		return err
	}
	o.session.Update(continuity.Patch{IsMuted: &muted})
	return nil
}

// PeerID is the id of the open audio channel, empty when voice is off.
func (o *Orchestrator) PeerID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.peerID
}

func (o *Orchestrator) closeAudio() {
	o.mu.Lock()
	h := o.audio
	o.audio = nil
	o.peerID = ""
	o.mu.Unlock()
	if h != nil {
		h.Close()
		log.Debug().Str("module", "orch").Str("peer", h.PeerID()).Msg("audio closed")
	}
}
