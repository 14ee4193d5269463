package core

import (
	"context"

	"github.com/dkeye/Playground/internal/domain"
)

// SessionID identifies one browser client (the client token cookie).
type SessionID string

// Frame is a raw payload pushed to a client.
type Frame []byte

// SignalConnection abstracts the push transport towards a client.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// HistorySink receives the final state of an ended room. Write-once.
type HistorySink interface {
	Archive(ctx context.Context, state domain.RoomState) error
}
