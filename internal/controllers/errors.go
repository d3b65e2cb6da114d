package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"travel_tracker/internal/travel"
)

// respondError maps engine errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, travel.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, travel.ErrDuplicateProfile):
		status = http.StatusConflict
	case errors.Is(err, travel.ErrInvalidInput), errors.Is(err, travel.ErrInvalidFix):
		status = http.StatusBadRequest
	case errors.Is(err, travel.ErrTrackingDisabled), errors.Is(err, travel.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, travel.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, travel.ErrVerificationFailed):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, travel.ErrTransportFailure):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("Travel request failed")
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
}
