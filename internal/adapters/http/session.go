package http

import (
	"encoding/json"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Playground/internal/app/continuity"
	"github.com/dkeye/Playground/internal/app/orch"
	"github.com/dkeye/Playground/internal/core"
	"github.com/dkeye/Playground/internal/domain"
)

const clientKey = "playground_client"

const (
	keyUserID = "uid"
	keyName   = "name"
	keyEmail  = "email"
	keyRole   = "role"
	keyTool   = "tool"
)

type identityRequest struct {
	UserID    string `json:"userId" binding:"required,max=128"`
	UserName  string `json:"userName" binding:"required,max=64"`
	UserEmail string `json:"userEmail" binding:"omitempty,email"`
	UserRole  string `json:"userRole" binding:"required,oneof=teacher student"`
}

func sid(c *gin.Context) core.SessionID {
	return core.SessionID(c.GetString("client_token"))
}

func current(c *gin.Context) *orch.Orchestrator {
	return c.MustGet(clientKey).(*orch.Orchestrator)
}

func identityFrom(s sessions.Session) (domain.User, bool) {
	id, _ := s.Get(keyUserID).(string)
	if id == "" {
		return domain.User{}, false
	}
	name, _ := s.Get(keyName).(string)
	email, _ := s.Get(keyEmail).(string)
	role, _ := s.Get(keyRole).(string)
	u, err := domain.NewUser(id, name, email, domain.Role(role))
	if err != nil {
		return domain.User{}, false
	}
	return u, true
}

// client returns the orchestrator of this browser, creating it from the
// identity and tool blob persisted in the cookie session.
func (a *API) client(c *gin.Context, user domain.User) *orch.Orchestrator {
	blob, _ := sessions.Default(c).Get(keyTool).(string)
	o, _ := a.Registry.GetOrCreate(sid(c), func() *orch.Orchestrator {
		st := continuity.NewStore()
		st.LoadTool([]byte(blob))
		return orch.New(a.base, a.Services, user, st)
	})
	return o
}

func (a *API) requireClient() gin.HandlerFunc {
	return func(c *gin.Context) {
		o, ok := a.Registry.Get(sid(c))
		if !ok {
			user, ok := identityFrom(sessions.Default(c))
			if !ok {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
			o = a.client(c, user)
		}
		c.Set(clientKey, o)
		c.Next()
	}
}

func (a *API) signIn(c *gin.Context) {
	var req identityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := domain.NewUser(req.UserID, req.UserName, req.UserEmail, domain.Role(req.UserRole))
	if err != nil {
		fail(c, err)
		return
	}

	if o, ok := a.Registry.Get(sid(c)); ok && o.User().ID != user.ID {
		a.Registry.Remove(sid(c))
	}

	s := sessions.Default(c)
	s.Set(keyUserID, string(user.ID))
	s.Set(keyName, user.Name)
	s.Set(keyEmail, user.Email)
	s.Set(keyRole, string(user.Role))
	if err := s.Save(); err != nil {
		fail(c, err)
		return
	}
	o := a.client(c, user)
	log.Info().Str("module", "adapters.http").Str("sid", string(sid(c))).Str("user", string(user.ID)).Msg("signed in")
	c.JSON(http.StatusOK, gin.H{"user": o.User()})
}

// signOut forgets the client without leaving its room; the user may restore
// from another browser.
func (a *API) signOut(c *gin.Context) {
	a.Registry.Remove(sid(c))
	s := sessions.Default(c)
	s.Clear()
	if err := s.Save(); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) getSession(c *gin.Context) {
	o := current(c)
	sess, active := o.Session().Current()
	resp := gin.H{"user": o.User(), "active": active, "tool": o.Session().Tool()}
	if active {
		resp["session"] = sess
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) rename(c *gin.Context) {
	var req struct {
		UserName string `json:"userName" binding:"required,max=64"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	o := current(c)
	if err := o.Rename(req.UserName); err != nil {
		fail(c, err)
		return
	}
	s := sessions.Default(c)
	s.Set(keyName, o.User().Name)
	if err := s.Save(); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": o.User()})
}

func (a *API) restore(c *gin.Context) {
	room, ok, err := current(c).Restore(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"restored": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"restored": true, "room": room})
}

func (a *API) getTool(c *gin.Context) {
	c.JSON(http.StatusOK, current(c).Session().Tool())
}

// putTool accepts the raw widget blob. A malformed blob resets to defaults.
func (a *API) putTool(c *gin.Context) {
	blob, err := c.GetRawData()
	if err != nil {
		badRequest(c, err)
		return
	}
	st := current(c).Session().LoadTool(blob)
	normalized, err := json.Marshal(st)
	if err != nil {
		fail(c, err)
		return
	}
	s := sessions.Default(c)
	s.Set(keyTool, string(normalized))
	if err := s.Save(); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
