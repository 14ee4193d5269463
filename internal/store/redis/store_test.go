package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Playground/internal/core"
	"github.com/dkeye/Playground/internal/domain"
)

// requires Redis on localhost:6379, skipped otherwise
const testRedisAddr = "localhost:6379"

func setupStore(t *testing.T) *Store {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}
	prefix := fmt.Sprintf("playground-test-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		cleanupKeys(ctx, client, prefix+"*")
		_ = client.Close()
	})
	return New(client, prefix)
}

func cleanupKeys(ctx context.Context, client *redis.Client, pattern string) {
	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return
		}
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

func TestStore_CreateGetUpdate(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, core.Rooms, "r1", core.Fields{"title": "Lesson", "participantCount": 0, "endedAt": nil}))
	require.ErrorIs(t, s.Create(ctx, core.Rooms, "r1", core.Fields{}), domain.ErrAlreadyExists)

	require.NoError(t, s.Update(ctx, core.Rooms, "r1", core.Fields{"participantCount": core.Increment(1)}))
	require.NoError(t, s.Update(ctx, core.Rooms, "r1",
		core.Fields{"status": "ended"}, core.Cond{Field: "endedAt", Value: nil}))

	doc, err := s.Get(ctx, core.Rooms, "r1")
	require.NoError(t, err)
	assert.JSONEq(t, `1`, string(doc.Fields["participantCount"]))
	assert.JSONEq(t, `"ended"`, string(doc.Fields["status"]))
	assert.NotContains(t, doc.Fields, "_id")

	err = s.Update(ctx, core.Rooms, "r1", core.Fields{"status": "active"}, core.Cond{Field: "status", Value: "active"})
	assert.ErrorIs(t, err, core.ErrConditionFailed)

	_, err = s.Get(ctx, core.Rooms, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_ConcurrentIncrements(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, core.Rooms, "r1", core.Fields{"participantCount": 0}))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Update(ctx, core.Rooms, "r1", core.Fields{"participantCount": core.Increment(1)}))
		}()
	}
	wg.Wait()

	doc, err := s.Get(ctx, core.Rooms, "r1")
	require.NoError(t, err)
	assert.JSONEq(t, `5`, string(doc.Fields["participantCount"]))
}

func TestStore_QueryAndSubscribe(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, core.Participants, "p1", core.Fields{"roomId": "r1"}))
	require.NoError(t, s.Create(ctx, core.Participants, "p2", core.Fields{"roomId": "r2"}))

	docs, err := s.Query(ctx, core.Participants, core.Where("roomId", "r1"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "p1", docs[0].ID)

	var (
		mu    sync.Mutex
		sizes []int
	)
	unsub, err := s.Subscribe(ctx, core.Participants, core.Where("roomId", "r1"), func(snap core.Snapshot) {
		mu.Lock()
		sizes = append(sizes, len(snap.Docs))
		mu.Unlock()
	}, nil)
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, s.Create(ctx, core.Participants, "p3", core.Fields{"roomId": "r1"}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(sizes) >= 2 && sizes[0] == 1 && sizes[len(sizes)-1] == 2
	}, 2*time.Second, 10*time.Millisecond)
}
