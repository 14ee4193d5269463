package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Playground/internal/domain"
)

func (ctl *SignalWSController) handleRename(s *stream, data []byte) {
	var p struct {
		Name string `json:"name"`
	}
	if !decode(s, "rename", data, &p) {
		return
	}
	if err := s.o.Rename(p.Name); err != nil {
		s.failErr("rename", err)
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(s.sid)).Str("name", p.Name).Msg("rename")
	ctl.handleWhoAmI(s)
}

func (ctl *SignalWSController) handleWhoAmI(s *stream) {
	resp := struct {
		Type          string               `json:"type"`
		User          domain.User          `json:"user"`
		Room          domain.RoomID        `json:"room,omitempty"`
		ParticipantID domain.ParticipantID `json:"participantId,omitempty"`
		PeerID        string               `json:"peerId,omitempty"`
	}{
		Type:   "whoami",
		User:   s.o.User(),
		PeerID: s.o.PeerID(),
	}
	if roomID, pid, ok := s.o.Current(); ok {
		resp.Room = roomID
		resp.ParticipantID = pid
	}
	s.push(resp)
}
