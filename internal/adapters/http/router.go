package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gamelink/randomconnect/internal/adapters/signal"
	"github.com/gamelink/randomconnect/internal/app"
	"github.com/gamelink/randomconnect/internal/config"
)

// IdentityMiddleware resolves the caller's user id. The real deployment sits
// behind the platform auth service; standalone it issues a uuid cookie so the
// matchmaking flow still works end to end.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, _ := c.Cookie("uid")
		if uid == "" {
			uid = uuid.NewString()
			c.SetCookie("uid", uid, 3600*24*7, "/", "", false, true)
		}
		c.Set("user_id", uid)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, coord *app.Coordinator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("RandomConnect", store))
	r.Use(IdentityMiddleware())

	r.Static("/static", cfg.StaticPath)

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	ctl := signal.NewConnectController(coord, cfg)
	api.GET("/ws/connect", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("user", c.GetString("user_id")).Msg("ws connect endpoint hit")
		ctl.HandleConnect(ctx, c)
	})

	rest := &RestController{Coord: coord}
	api.POST("/queue/join", rest.JoinQueue)
	api.POST("/queue/leave", rest.LeaveQueue)
	api.GET("/connection", rest.CurrentConnection)
	api.POST("/rooms/:id/disconnect", rest.DisconnectRoom)
	api.POST("/rooms/:id/messages", rest.SendMessage)

	return r
}
