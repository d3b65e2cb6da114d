package routes

import (
	"github.com/gin-gonic/gin"

	"travel_tracker/internal/middleware"
)

func TravelRoutes(r *gin.Engine, d Deps) {
	h := d.Travel
	t := r.Group("/travel", d.Auth.RequireAuth())
	{
		t.POST("/profiles", h.CreateProfile)
		t.GET("/profiles", h.FindProfile)
		t.GET("/events/:event_id/profiles", middleware.RequireRole(middleware.RoleAdmin), h.ListEventProfiles)

		t.GET("/profiles/:id", h.GetProfile)
		t.PATCH("/profiles/:id", h.UpdateProfile)
		t.DELETE("/profiles/:id", h.DeleteProfile)
		t.POST("/profiles/:id/flight/refresh", h.RefreshFlight)

		t.GET("/profiles/:id/checkpoints", h.Checkpoints)
		t.PATCH("/checkpoints/:id", h.UpdateCheckpoint)
		t.POST("/checkpoints/:id/complete", h.CompleteCheckpoint)
		t.POST("/checkpoints/:id/prompt", h.SendCheckpointPrompt)

		t.GET("/profiles/:id/notifications", h.Notifications)
		t.POST("/notifications/:id/read", h.MarkNotificationRead)
		t.POST("/notifications/:id/respond", h.RespondToNotification)

		t.POST("/profiles/:id/tracking/start", h.StartTracking)
		t.POST("/profiles/:id/tracking/stop", h.StopTracking)
		t.GET("/profiles/:id/tracking", h.TrackingStatus)

		t.POST("/profiles/:id/locations", h.RecordLocation)
		t.GET("/profiles/:id/location", h.CurrentLocation)
		t.GET("/profiles/:id/locations", h.LocationHistory)
		t.GET("/profiles/:id/track", h.TrackGeoJSON)

		t.POST("/profiles/:id/driver/verify", h.VerifyDriver)
		t.PUT("/profiles/:id/driver/credential", middleware.RequireRole(middleware.RoleAdmin), h.RegisterDriverCredential)
	}
}
