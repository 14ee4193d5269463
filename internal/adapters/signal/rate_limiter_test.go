package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_SlidingWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Second)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("r1", "a"))
	assert.True(t, rl.Allow("r1", "a"))
	assert.False(t, rl.Allow("r1", "a"))
	assert.True(t, rl.Allow("r1", "b"), "limits are per user")
	assert.True(t, rl.Allow("r2", "a"), "limits are per room")

	now = now.Add(1100 * time.Millisecond)
	assert.True(t, rl.Allow("r1", "a"))
}

func TestRateLimiter_ForgetsIdlePairs(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Second)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("r1", "a"))
	assert.True(t, rl.Allow("r2", "a"))
	assert.Equal(t, 2, rl.Len())

	now = now.Add(500 * time.Millisecond)
	assert.True(t, rl.Allow("r3", "b"))
	assert.Equal(t, 3, rl.Len(), "nothing idle yet")

	now = now.Add(700 * time.Millisecond)
	assert.False(t, rl.Allow("r3", "b"))
	assert.Equal(t, 1, rl.Len(), "r1 and r2 went idle")
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(0, time.Second)
	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow("r1", "a"))
	}
}
