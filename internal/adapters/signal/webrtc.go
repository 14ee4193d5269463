package signal

import (
	"context"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Playground/internal/adapters/rtc"
	"github.com/dkeye/Playground/internal/app/peerid"
	"github.com/dkeye/Playground/internal/core"
)

func (ctl *SignalWSController) sendCandidate(s *stream, ci webrtc.ICECandidateInit) {
	resp := struct {
		Type          string `json:"type"`
		Candidate     string `json:"candidate"`
		SDPMid        string `json:"sdpMid,omitempty"`
		SDPMLineIndex uint16 `json:"sdpMLineIndex,omitempty"`
	}{
		Type:      "candidate",
		Candidate: ci.Candidate,
	}
	if ci.SDPMid != nil {
		resp.SDPMid = *ci.SDPMid
	}
	if ci.SDPMLineIndex != nil {
		resp.SDPMLineIndex = *ci.SDPMLineIndex
	}
	s.push(resp)
}

// handleVoice toggles the audio channel. The reply carries the peer id and
// the constraints the browser should pass to getUserMedia.
func (ctl *SignalWSController) handleVoice(ctx context.Context, s *stream, data []byte) {
	var p struct {
		Active bool `json:"active"`
	}
	if !decode(s, "voice", data, &p) {
		return
	}
	peerID, err := s.o.SetVoiceActive(ctx, p.Active)
	if err != nil {
		s.failErr("voice", err)
		return
	}
	if conn := ctl.peer(peerID); conn != nil {
		conn.OnICECandidate(func(ci webrtc.ICECandidateInit) {
			ctl.sendCandidate(s, ci)
		})
	}
	s.push(struct {
		Type        string                `json:"type"`
		Active      bool                  `json:"active"`
		PeerID      string                `json:"peerId,omitempty"`
		Constraints core.MediaConstraints `json:"constraints"`
	}{Type: "voice", Active: p.Active, PeerID: peerID, Constraints: peerid.AudioConstraints()})
}

func (ctl *SignalWSController) handleMute(ctx context.Context, s *stream, data []byte) {
	var p struct {
		Muted bool `json:"muted"`
	}
	if !decode(s, "mute", data, &p) {
		return
	}
	if err := s.o.SetMuted(ctx, p.Muted); err != nil {
		s.failErr("mute", err)
	}
}

func (ctl *SignalWSController) peer(peerID string) *rtc.Connection {
	if ctl.Transport == nil || peerID == "" {
		return nil
	}
	conn, ok := ctl.Transport.Lookup(peerID)
	if !ok {
		return nil
	}
	return conn
}

func (ctl *SignalWSController) handleOffer(s *stream, data []byte) {
	var p struct {
		SDP string `json:"sdp"`
	}
	if !decode(s, "offer", data, &p) {
		return
	}
	conn := ctl.peer(s.o.PeerID())
	if conn == nil {
		log.Warn().Str("module", "signal").Str("sid", string(s.sid)).Msg("offer: voice is off")
		s.fail("offer", "voice_off")
		return
	}

	answer, err := conn.ApplyOfferAndCreateAnswer(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  p.SDP,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("peer", conn.PeerID()).Msg("webrtc apply offer")
		s.fail("offer", "negotiation_failed")
		return
	}

	s.push(map[string]string{
		"type":   "answer",
		"sdp":    answer.SDP,
		"peerId": conn.PeerID(),
	})
}

func (ctl *SignalWSController) handleCandidate(s *stream, data []byte) {
	var p struct {
		Candidate     string `json:"candidate"`
		SDPMid        string `json:"sdpMid"`
		SDPMLineIndex uint16 `json:"sdpMLineIndex"`
	}
	if !decode(s, "candidate", data, &p) {
		return
	}

	cand := webrtc.ICECandidateInit{
		Candidate: p.Candidate,
	}
	if p.SDPMid != "" {
		cand.SDPMid = &p.SDPMid
	}
	cand.SDPMLineIndex = &p.SDPMLineIndex

	conn := ctl.peer(s.o.PeerID())
	if conn == nil {
		log.Warn().Str("module", "signal").Str("sid", string(s.sid)).Msg("candidate: no media connection")
		return
	}
	if err := conn.AddICECandidate(cand); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("add ice candidate")
	}
}

const speakingWindow = 300 * time.Millisecond

func (ctl *SignalWSController) handleStats(s *stream) {
	conn := ctl.peer(s.o.PeerID())
	if conn == nil {
		s.fail("stats", "voice_off")
		return
	}
	st := conn.Stats()
	s.push(struct {
		Type     string    `json:"type"`
		PeerID   string    `json:"peerId"`
		Speaking bool      `json:"speaking"`
		Stats    rtc.Stats `json:"stats"`
	}{Type: "stats", PeerID: conn.PeerID(), Speaking: st.Speaking(time.Now(), speakingWindow), Stats: st})
}
