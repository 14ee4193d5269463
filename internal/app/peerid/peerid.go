// Package peerid hands out identifiers for the peer-audio transport.
package peerid

import (
	"fmt"
	"strings"

	"github.com/jaevor/go-nanoid"

	"github.com/dkeye/Playground/internal/core"
	"github.com/dkeye/Playground/internal/domain"
)

const (
	suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	suffixLen      = 4
	partLen        = 20

	// SuffixSpace is the number of distinct suffixes for one (user, room) pair.
	SuffixSpace = 36 * 36 * 36 * 36
)

type Generator struct {
	suffix func() string
}

func New() (*Generator, error) {
	gen, err := nanoid.CustomASCII(suffixAlphabet, suffixLen)
	if err != nil {
		return nil, fmt.Errorf("peerid: %w", err)
	}
	return &Generator{suffix: gen}, nil
}

// Generate returns peer-<user>-<room>-<suffix>. Every call draws a new suffix,
// so a reconnecting client never reuses an id the transport may still hold.
func (g *Generator) Generate(userID domain.UserID, roomID domain.RoomID) string {
	return fmt.Sprintf("peer-%s-%s-%s", sanitize(string(userID)), sanitize(string(roomID)), g.suffix())
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == partLen {
				break
			}
		}
	}
	return b.String()
}

// AudioConstraints is the fixed capture profile for voice: all browser
// processing on, no video.
func AudioConstraints() core.MediaConstraints {
	return core.MediaConstraints{
		Audio: core.AudioConstraints{
			EchoCancellation: true,
			NoiseSuppression: true,
			AutoGainControl:  true,
		},
		Video: false,
	}
}
