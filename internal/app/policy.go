package app

import "github.com/dkeye/Playground/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	Disconnect
)

// Policy decides what happens when a client's push stream cannot keep up.
type Policy interface {
	OnBackPressure(sid core.SessionID, dropped int) BackpressureAction
}

// SimplePolicy drops frames until MaxDropped consecutive ones were lost, then
// disconnects the stream. The client reconnects and gets a fresh snapshot.
type SimplePolicy struct {
	MaxDropped int
}

func (p SimplePolicy) OnBackPressure(_ core.SessionID, dropped int) BackpressureAction {
	limit := p.MaxDropped
	if limit <= 0 {
		limit = 8
	}
	if dropped >= limit {
		return Disconnect
	}
	return DropFrame
}
