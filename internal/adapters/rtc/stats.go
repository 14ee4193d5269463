package rtc

import (
	"sync"
	"time"

	"github.com/pion/rtp"
)

// opusSilenceMax is the largest Opus payload treated as comfort noise; DTX
// frames are one to three bytes.
const opusSilenceMax = 3

// Stats counts inbound audio of one peer.
type Stats struct {
	Packets   uint64    `json:"packets"`
	Bytes     uint64    `json:"bytes"`
	Lost      uint64    `json:"lost"`
	LastSeq   uint16    `json:"lastSeq"`
	LastVoice time.Time `json:"lastVoice"`
}

// Speaking reports voice activity within window before now.
func (s Stats) Speaking(now time.Time, window time.Duration) bool {
	return !s.LastVoice.IsZero() && now.Sub(s.LastVoice) <= window
}

type statsRecorder struct {
	mu    sync.Mutex
	s     Stats
	begun bool
}

func (r *statsRecorder) record(pkt *rtp.Packet, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.begun {
		if gap := pkt.SequenceNumber - r.s.LastSeq; gap > 1 && gap < 1<<15 {
			r.s.Lost += uint64(gap - 1)
		}
	}
	r.begun = true
	r.s.Packets++
	r.s.Bytes += uint64(len(pkt.Payload))
	r.s.LastSeq = pkt.SequenceNumber
	if len(pkt.Payload) > opusSilenceMax {
		r.s.LastVoice = now
	}
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.s
}
