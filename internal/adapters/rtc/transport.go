// Package rtc is the peer-audio transport: one pion PeerConnection per peer
// id, audio only. Signalling messages reach it through the session stream.
package rtc

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Playground/internal/core"
)

var (
	ErrVideoUnsupported = errors.New("video not supported")
	ErrPeerInUse        = errors.New("peer id in use")
)

func DefaultWebRTCConfig(stun []string) webrtc.Configuration {
	if len(stun) == 0 {
		return webrtc.Configuration{}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: stun}},
	}
}

type Transport struct {
	api *webrtc.API
	cfg webrtc.Configuration

	mu    sync.Mutex
	conns map[string]*Connection
}

var _ core.PeerTransport = (*Transport)(nil)

// NewTransport builds an API whose media engine only knows Opus, so any
// video section of an offer is rejected during negotiation.
func NewTransport(cfg webrtc.Configuration) (*Transport, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		PayloadType: 111,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("rtc: register opus: %w", err)
	}
	return &Transport{
		api:   webrtc.NewAPI(webrtc.WithMediaEngine(m)),
		cfg:   cfg,
		conns: make(map[string]*Connection),
	}, nil
}

func (t *Transport) Open(peerID string, c core.MediaConstraints) (core.PeerHandle, error) {
	if c.Video {
		return nil, fmt.Errorf("rtc: open %s: %w", peerID, ErrVideoUnsupported)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.conns[peerID]; ok {
		return nil, fmt.Errorf("rtc: open %s: %w", peerID, ErrPeerInUse)
	}
	pc, err := t.api.NewPeerConnection(t.cfg)
	if err != nil {
		return nil, fmt.Errorf("rtc: open %s: %w", peerID, err)
	}
	conn := &Connection{pc: pc, peerID: peerID, owner: t}
	conn.bind()
	t.conns[peerID] = conn
	log.Info().Str("module", "webrtc").Str("peer", peerID).
		Bool("echo_cancellation", c.Audio.EchoCancellation).
		Bool("noise_suppression", c.Audio.NoiseSuppression).
		Bool("auto_gain_control", c.Audio.AutoGainControl).
		Msg("peer opened")
	return conn, nil
}

func (t *Transport) Lookup(peerID string) (*Connection, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.conns[peerID]
	return c, ok
}

func (t *Transport) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

func (t *Transport) forget(c *Connection) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conns[c.peerID] == c {
		delete(t.conns, c.peerID)
	}
}

// CloseAll closes every open peer, used on shutdown.
func (t *Transport) CloseAll() {
	t.mu.Lock()
	conns := make([]*Connection, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}
