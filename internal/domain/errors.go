package domain

import "errors"

var (
	// ErrStoreUnavailable wraps network or timeout failures of the real-time store.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrRoomNotActive rejects a join on a room whose status is not active.
	ErrRoomNotActive = errors.New("room not active")
	// ErrPermissionDenied is returned by the client-side host guard.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrMalformedState marks a persisted tool-state blob that failed to parse.
	ErrMalformedState = errors.New("malformed state")

	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRoomFull      = errors.New("room full")
	ErrInvalidRoom   = errors.New("invalid room")
	ErrInvalidRecord = errors.New("invalid record")
	ErrNotInRoom     = errors.New("not in a room")
)
