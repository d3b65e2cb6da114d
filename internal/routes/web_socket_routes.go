package routes

import (
	"github.com/gin-gonic/gin"
)

// WebSocketRoutes authenticate with ?token inside the handlers.
func WebSocketRoutes(r *gin.Engine, d Deps) {
	ws := r.Group("/ws")
	{
		ws.GET("/location", d.WebSocket.HandleLocation)
		ws.GET("/events", d.WebSocket.HandleEvents)
	}
}
