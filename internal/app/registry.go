// Package app holds the process-wide client registry and the push policy.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Playground/internal/app/orch"
	"github.com/dkeye/Playground/internal/core"
	"github.com/dkeye/Playground/internal/domain"
)

type clientEntry struct {
	Orch   *orch.Orchestrator
	Cancel context.CancelFunc
}

// Registry maps a browser client token to its orchestrator.
type Registry struct {
	mu      sync.RWMutex
	clients map[core.SessionID]*clientEntry
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[core.SessionID]*clientEntry)}
}

// GetOrCreate returns the client's orchestrator, building it with create on
// first use. The bool reports whether it was created.
func (r *Registry) GetOrCreate(sid core.SessionID, create func() *orch.Orchestrator) (*orch.Orchestrator, bool) {
	r.mu.RLock()
	e, ok := r.clients[sid]
	r.mu.RUnlock()
	if ok {
		return e.Orch, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok = r.clients[sid]; ok {
		return e.Orch, false
	}
	o := create()
	r.clients[sid] = &clientEntry{Orch: o}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(o.User().ID)).Msg("created client")
	return o, true
}

func (r *Registry) Get(sid core.SessionID) (*orch.Orchestrator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.clients[sid]; ok {
		return e.Orch, true
	}
	return nil, false
}

// BindCancel attaches the cancel of the client's push stream, replacing and
// cancelling any previous one so only the newest tab streams.
func (r *Registry) BindCancel(sid core.SessionID, cancel context.CancelFunc) bool {
	r.mu.Lock()
	e, ok := r.clients[sid]
	var prev context.CancelFunc
	if ok {
		prev = e.Cancel
		e.Cancel = cancel
	}
	r.mu.Unlock()
	if prev != nil {
		prev()
	}
	if ok {
		log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound stream")
	}
	return ok
}

// Cancel stops the client's push stream, if any.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.Lock()
	e, ok := r.clients[sid]
	var cancel context.CancelFunc
	if ok {
		cancel = e.Cancel
		e.Cancel = nil
	}
	r.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled stream")
	return true
}

// Remove forgets the client. Its orchestrator is closed without leaving the
// room, so the user can restore after a reload.
func (r *Registry) Remove(sid core.SessionID) {
	r.mu.Lock()
	e, ok := r.clients[sid]
	delete(r.clients, sid)
	r.mu.Unlock()
	if !ok {
		return
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	e.Orch.Close()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("removed client")
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// InRoom lists clients of this process currently attached to roomID.
func (r *Registry) InRoom(roomID domain.RoomID) []core.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.SessionID, 0)
	for sid, e := range r.clients {
		if cur, _, ok := e.Orch.Current(); ok && cur == roomID {
			out = append(out, sid)
		}
	}
	return out
}

// CloseAll closes every client, used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	entries := r.clients
	r.clients = make(map[core.SessionID]*clientEntry)
	r.mu.Unlock()
	for _, e := range entries {
		if e.Cancel != nil {
			e.Cancel()
		}
		e.Orch.Close()
	}
}
