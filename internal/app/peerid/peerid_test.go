package peerid

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var peerPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

func TestGenerate_FreshAndWellFormed(t *testing.T) {
	g, err := New()
	require.NoError(t, err)

	ids := make(map[string]struct{})
	var prefix string
	for i := 0; i < 3; i++ {
		id := g.Generate("User_ABC", "Room-42")
		assert.Regexp(t, peerPattern, id)
		assert.True(t, strings.HasPrefix(id, "peer-userabc-room42-"), id)
		p := id[:strings.LastIndex(id, "-")]
		if prefix == "" {
			prefix = p
		}
		assert.Equal(t, prefix, p)
		assert.Len(t, id[len(p)+1:], suffixLen)
		ids[id] = struct{}{}
	}
	// 3 draws from 36^4 suffixes; a collision here is ~2e-6
	assert.Len(t, ids, 3)
}

func TestGenerate_TruncatesParts(t *testing.T) {
	g, err := New()
	require.NoError(t, err)
	id := g.Generate("ABCDEFGHIJKLMNOPQRSTUVWXYZ", "0123456789012345678901234")
	parts := strings.Split(id, "-")
	require.Len(t, parts, 4)
	assert.Len(t, parts[1], 20)
	assert.Len(t, parts[2], 20)
	assert.Regexp(t, peerPattern, id)
}

func TestAudioConstraints(t *testing.T) {
	c := AudioConstraints()
	assert.True(t, c.Audio.EchoCancellation)
	assert.True(t, c.Audio.NoiseSuppression)
	assert.True(t, c.Audio.AutoGainControl)
	assert.False(t, c.Video)
}
