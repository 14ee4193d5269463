package app

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Playground/internal/app/continuity"
	"github.com/dkeye/Playground/internal/app/orch"
	"github.com/dkeye/Playground/internal/core"
	"github.com/dkeye/Playground/internal/domain"
)

func newClient(id string) func() *orch.Orchestrator {
	return func() *orch.Orchestrator {
		return orch.New(context.Background(), orch.Services{}, domain.User{ID: domain.UserID(id), Name: id, Role: domain.RoleStudent}, continuity.NewStore())
	}
}

func TestRegistry_GetOrCreateOnce(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	created := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := r.GetOrCreate("sid", newClient("u"))
			created <- ok
		}()
	}
	wg.Wait()
	close(created)
	n := 0
	for ok := range created {
		if ok {
			n++
		}
	}
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_BindCancelReplaces(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.BindCancel("nobody", func() {}))

	r.GetOrCreate("sid", newClient("u"))
	var first, second bool
	require.True(t, r.BindCancel("sid", func() { first = true }))
	require.True(t, r.BindCancel("sid", func() { second = true }))
	assert.True(t, first)
	assert.False(t, second)

	assert.True(t, r.Cancel("sid"))
	assert.True(t, second)
	assert.False(t, r.Cancel("sid"))
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	r.GetOrCreate("sid", newClient("u"))
	canceled := false
	r.BindCancel("sid", func() { canceled = true })

	r.Remove("sid")
	r.Remove("sid")
	assert.True(t, canceled)
	_, ok := r.Get("sid")
	assert.False(t, ok)
	assert.Empty(t, r.InRoom("r1"))
}

func TestSimplePolicy(t *testing.T) {
	p := SimplePolicy{MaxDropped: 2}
	assert.Equal(t, DropFrame, p.OnBackPressure(core.SessionID("s"), 1))
	assert.Equal(t, Disconnect, p.OnBackPressure(core.SessionID("s"), 2))
	assert.Equal(t, DropFrame, SimplePolicy{}.OnBackPressure("s", 7))
}
