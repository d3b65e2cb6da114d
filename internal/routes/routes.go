package routes

import (
	"io"
	"net/http"

	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"

	"travel_tracker/internal/controllers"
	"travel_tracker/internal/middleware"
)

// Deps are the handlers mounted by SetupRouter.
type Deps struct {
	Auth       *middleware.Auth
	Travel     *controllers.TravelController
	WebSocket  *controllers.WebSocketController
	AuthTokens *controllers.AuthController
	AccessLog  io.Writer
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if d.AccessLog != nil {
		r.Use(ginlog.SetLogger(ginlog.WithWriter(d.AccessLog)))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	AuthRoutes(r, d)
	TravelRoutes(r, d)
	WebSocketRoutes(r, d)
	return r
}

func AuthRoutes(r *gin.Engine, d Deps) {
	auth := r.Group("/auth", d.Auth.RequireAuth(), middleware.RequireRole(middleware.RoleAdmin))
	{
		auth.POST("/token", d.AuthTokens.IssueToken)
	}
}
