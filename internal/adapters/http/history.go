package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dkeye/Playground/internal/domain"
)

const defaultHistoryLimit = 20

func (a *API) historyRooms(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, fmt.Errorf("limit: want a positive integer, got %q", raw))
			return
		}
		limit = n
	}
	list, err := a.History.Rooms(c.Request.Context(), current(c).User().ID, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": list})
}

// historyRoom returns an archived room to its host or anyone who attended.
func (a *API) historyRoom(c *gin.Context) {
	state, err := a.History.Room(c.Request.Context(), domain.RoomID(c.Param("id")))
	if err != nil {
		fail(c, err)
		return
	}
	me := current(c).User().ID
	if !state.Room.IsHost(me) && !attended(state, me) {
		fail(c, fmt.Errorf("history %s: %w", state.Room.ID, domain.ErrPermissionDenied))
		return
	}
	c.JSON(http.StatusOK, state)
}

func attended(state domain.RoomState, id domain.UserID) bool {
	for _, p := range state.Participants {
		if p.UserID == id {
			return true
		}
	}
	return false
}
