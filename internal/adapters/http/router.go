// Package http exposes the playground over gin: identity, rooms, the
// per-client session and the push stream endpoint.
package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Playground/internal/adapters/signal"
	"github.com/dkeye/Playground/internal/app"
	"github.com/dkeye/Playground/internal/app/orch"
	"github.com/dkeye/Playground/internal/config"
	"github.com/dkeye/Playground/internal/domain"
)

const sessionName = "PlaygroundSession"

// HistoryReader is the read side of the room archive. Optional.
type HistoryReader interface {
	Room(ctx context.Context, id domain.RoomID) (domain.RoomState, error)
	Rooms(ctx context.Context, hostID domain.UserID, limit int) ([]domain.Room, error)
}

type Deps struct {
	Registry *app.Registry
	Services orch.Services
	History  HistoryReader
	Signal   *signal.SignalWSController
	Limiter  *signal.RateLimiter
}

type API struct {
	base context.Context
	Deps
}

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	a := &API{base: ctx, Deps: deps}
	api := r.Group("/api")

	api.POST("/session", a.signIn)
	api.DELETE("/session", a.signOut)

	client := api.Group("", a.requireClient())
	client.GET("/session", a.getSession)
	client.PATCH("/session", a.rename)
	client.POST("/session/restore", a.restore)
	client.GET("/session/tool", a.getTool)
	client.PUT("/session/tool", a.putTool)

	client.GET("/rooms", a.listRooms)
	client.POST("/rooms", a.createRoom)
	client.GET("/rooms/:id", a.getRoom)
	client.POST("/rooms/:id/join", a.joinRoom)
	client.POST("/rooms/:id/end", a.endRoom)

	client.POST("/room/leave", a.leaveRoom)
	client.PUT("/room/writing", a.write)
	client.POST("/room/voice", a.voice)
	client.POST("/room/mute", a.mute)
	client.POST("/room/messages", a.say)
	client.POST("/writings/:id/public", a.publishWriting)

	if deps.History != nil {
		client.GET("/history/rooms", a.historyRooms)
		client.GET("/history/rooms/:id", a.historyRoom)
	}

	if deps.Signal != nil {
		api.GET("/ws/signal", func(c *gin.Context) {
			log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws signal endpoint hit")
			deps.Signal.HandleSignal(ctx, c)
		})
	}

	return r
}
