package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/helio-dev/helio/internal/adapters/ws"
	"github.com/helio-dev/helio/internal/config"
	"github.com/helio-dev/helio/internal/domain"
	"github.com/helio-dev/helio/internal/runner"
	"github.com/helio-dev/helio/internal/storage"
)

// ClientTokenMiddleware assigns each browser a stable token; it doubles as
// the connection id once the websocket attaches.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	ctl *ws.Controller,
	store storage.RoomStore,
	run *runner.Client,
) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	sessionStore := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("HelioSessions", sessionStore))
	r.Use(ClientTokenMiddleware())

	api := r.Group("/api")

	api.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("conn", c.GetString("client_token")).Msg("ws endpoint hit")
		ctl.HandleWS(ctx, c)
	})

	api.GET("/health", func(c *gin.Context) {
		status := gin.H{"status": "ok"}
		if store != nil {
			pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(pingCtx); err != nil {
				status["status"] = "degraded"
				status["store"] = err.Error()
			}
		}
		c.JSON(http.StatusOK, status)
	})

	api.GET("/chat/:roomId", func(c *gin.Context) {
		if store == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
			return
		}
		roomID := domain.RoomID(c.Param("roomId"))
		msgs, err := store.Messages(c.Request.Context(), roomID)
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Str("room", string(roomID)).Msg("chat history")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
			return
		}
		if msgs == nil {
			msgs = []domain.ChatMessage{}
		}
		c.JSON(http.StatusOK, msgs)
	})

	api.POST("/run", func(c *gin.Context) {
		var req runner.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
			return
		}
		result, err := run.Run(c.Request.Context(), req)
		switch {
		case err == nil:
			c.Data(http.StatusOK, "application/json", result)
		case errors.Is(err, runner.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Daily compilation limit exceeded. Please try again tomorrow."})
		case errors.Is(err, runner.ErrUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service busy, please try again later."})
		case errors.Is(err, runner.ErrNotConfigured):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server misconfiguration: missing compiler credentials"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to execute code"})
		}
	})

	return r
}
