package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ankitGuptakapture/kaplingo-backend/internal/adapters/rtc"
	"github.com/ankitGuptakapture/kaplingo-backend/internal/adapters/signal"
	"github.com/ankitGuptakapture/kaplingo-backend/internal/app"
	"github.com/ankitGuptakapture/kaplingo-backend/internal/config"
	"github.com/ankitGuptakapture/kaplingo-backend/internal/core"
)

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

func SetupRouter(ctx context.Context, cfg *config.Config, facade *app.SessionFacade, sig *signal.Controller, media *rtc.Manager) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("KaplingoSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.httpapi").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.GET("/ws", func(c *gin.Context) {
		sig.HandleWS(ctx, c)
	})

	api.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, facade.Stats())
	})

	api.POST("/offer", func(c *gin.Context) {
		handleOffer(ctx, c, media)
	})

	return r
}

type offerRequest struct {
	ConnectionID string `json:"connection_id" binding:"required"`
	SDP          string `json:"sdp" binding:"required"`
	Type         string `json:"type" binding:"required,eq=offer"`
}

// handleOffer negotiates the media transport for an already-joined
// connection. The answer is returned synchronously; posting a second offer
// for the same connection renegotiates.
func handleOffer(ctx context.Context, c *gin.Context, media *rtc.Manager) {
	var req offerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid offer fields"})
		return
	}

	answer, err := media.Negotiate(ctx, core.ConnectionID(req.ConnectionID), req.SDP)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.httpapi").Str("cid", req.ConnectionID).Msg("offer negotiation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "negotiation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"type":          "answer",
		"sdp":           answer,
		"connection_id": req.ConnectionID,
	})
}
