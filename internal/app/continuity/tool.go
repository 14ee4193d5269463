package continuity

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Playground/internal/domain"
)

// ToolState is the persisted widget layout: whether the call is minimized and
// where the floating widget sits.
type ToolState struct {
	Minimized bool `json:"minimized"`
	X         int  `json:"x"`
	Y         int  `json:"y"`
}

func DefaultToolState() ToolState {
	return ToolState{X: 24, Y: 24}
}

// ParseToolState decodes a persisted blob. An empty blob is the default; a
// broken one yields the default and domain.ErrMalformedState.
func ParseToolState(blob []byte) (ToolState, error) {
	if len(blob) == 0 {
		return DefaultToolState(), nil
	}
	st := DefaultToolState()
	if err := json.Unmarshal(blob, &st); err != nil {
		return DefaultToolState(), fmt.Errorf("%w: tool state: %v", domain.ErrMalformedState, err)
	}
	if st.X < 0 || st.Y < 0 {
		return DefaultToolState(), fmt.Errorf("%w: tool state: negative position", domain.ErrMalformedState)
	}
	return st, nil
}

// LoadTool replaces the tool state from a blob. Malformed input is logged
// and falls back to the default; it never fails.
func (s *Store) LoadTool(blob []byte) ToolState {
	st, err := ParseToolState(blob)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.continuity").Msg("using default tool state")
	}
	s.mu.Lock()
	s.tool = st
	s.mu.Unlock()
	return st
}

func (s *Store) Tool() ToolState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tool
}
