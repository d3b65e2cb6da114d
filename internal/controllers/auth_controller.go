package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"travel_tracker/internal/middleware"
)

// AuthController lets the host backend, holding an admin token, mint guest
// tokens for its users.
type AuthController struct {
	auth *middleware.Auth
	ttl  time.Duration
}

func NewAuthController(auth *middleware.Auth, ttl time.Duration) *AuthController {
	return &AuthController{auth: auth, ttl: ttl}
}

type tokenInput struct {
	Role    string    `json:"role" binding:"required,oneof=guest admin"`
	GuestID uuid.UUID `json:"guest_id"`
}

func (a *AuthController) IssueToken(c *gin.Context) {
	var input tokenInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := a.auth.GenerateToken(input.Role, input.GuestID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logrus.WithFields(logrus.Fields{
		"role":     input.Role,
		"guest_id": input.GuestID,
	}).Info("Issued API token")
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"role":       input.Role,
		"expires_in": int(a.ttl.Seconds()),
	})
}
