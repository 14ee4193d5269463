package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dkeye/Playground/internal/app/peerid"
	"github.com/dkeye/Playground/internal/app/rooms"
	"github.com/dkeye/Playground/internal/domain"
)

type createRoomRequest struct {
	Title string `json:"title" binding:"required,max=200"`
	rooms.Options
}

func (a *API) listRooms(c *gin.Context) {
	list, err := a.Services.Rooms.ListActive(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": list})
}

func (a *API) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	room, err := current(c).Create(c.Request.Context(), req.Title, req.Options)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (a *API) getRoom(c *gin.Context) {
	room, err := a.Services.Rooms.Get(c.Request.Context(), domain.RoomID(c.Param("id")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (a *API) joinRoom(c *gin.Context) {
	p, err := current(c).Join(c.Request.Context(), domain.RoomID(c.Param("id")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (a *API) endRoom(c *gin.Context) {
	room, err := current(c).EndRoom(c.Request.Context(), domain.RoomID(c.Param("id")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (a *API) leaveRoom(c *gin.Context) {
	if err := current(c).Leave(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) write(c *gin.Context) {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	o := current(c)
	roomID, _, _ := o.Current()
	if a.Limiter != nil && !a.Limiter.Allow(roomID, o.User().ID) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
		return
	}
	w, err := o.Write(c.Request.Context(), req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (a *API) publishWriting(c *gin.Context) {
	var req struct {
		IsPublic *bool `json:"isPublic" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	w, err := current(c).SetWritingPublic(c.Request.Context(), domain.WritingID(c.Param("id")), *req.IsPublic)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (a *API) voice(c *gin.Context) {
	var req struct {
		Active bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	peerID, err := current(c).SetVoiceActive(c.Request.Context(), req.Active)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": req.Active, "peerId": peerID, "constraints": peerid.AudioConstraints()})
}

func (a *API) mute(c *gin.Context) {
	var req struct {
		Muted bool `json:"muted"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := current(c).SetMuted(c.Request.Context(), req.Muted); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) say(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	msg, err := current(c).Say(c.Request.Context(), req.Text)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
