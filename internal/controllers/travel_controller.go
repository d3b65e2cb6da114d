package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"travel_tracker/internal/location"
	"travel_tracker/internal/middleware"
	"travel_tracker/internal/models"
	"travel_tracker/internal/travel"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// TravelController serves the /travel HTTP API. Guest tokens may only touch
// profiles of their own guest; admin tokens may touch everything.
type TravelController struct {
	travel *travel.Controller
}

func NewTravelController(t *travel.Controller) *TravelController {
	registerValidators()
	return &TravelController{travel: t}
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		badRequest(c, fmt.Errorf("invalid %s", param))
		return uuid.Nil, false
	}
	return id, true
}

func canAccess(c *gin.Context, guestID uuid.UUID) bool {
	if middleware.ClaimsFrom(c).CanAccessGuest(guestID) {
		return true
	}
	forbidden(c)
	return false
}

// profileFor loads the :id profile and checks the caller may access it.
func (h *TravelController) profileFor(c *gin.Context) (*models.TravelProfile, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return nil, false
	}
	p, err := h.travel.Profile(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if !canAccess(c, p.GuestID) {
		return nil, false
	}
	return p, true
}

func (h *TravelController) checkpointFor(c *gin.Context) (*models.JourneyCheckpoint, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return nil, false
	}
	cp, err := h.travel.Checkpoint(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	p, err := h.travel.Profile(c.Request.Context(), cp.TravelProfileID)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if !canAccess(c, p.GuestID) {
		return nil, false
	}
	return cp, true
}

func (h *TravelController) notificationFor(c *gin.Context) (*models.GuestNotification, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return nil, false
	}
	n, err := h.travel.Notification(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if !canAccess(c, n.GuestID) {
		return nil, false
	}
	return n, true
}

func (h *TravelController) CreateProfile(c *gin.Context) {
	var in travel.CreateProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	if !canAccess(c, in.GuestID) {
		return
	}
	p, err := h.travel.CreateProfile(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *TravelController) FindProfile(c *gin.Context) {
	guestID, err := uuid.Parse(c.Query("guest_id"))
	if err != nil {
		badRequest(c, errors.New("guest_id query parameter must be a uuid"))
		return
	}
	eventID, err := uuid.Parse(c.Query("event_id"))
	if err != nil {
		badRequest(c, errors.New("event_id query parameter must be a uuid"))
		return
	}
	if !canAccess(c, guestID) {
		return
	}
	p, err := h.travel.FindProfile(c.Request.Context(), guestID, eventID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *TravelController) ListEventProfiles(c *gin.Context) {
	eventID, ok := parseID(c, "event_id")
	if !ok {
		return
	}
	profiles, err := h.travel.ListEventProfiles(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": profiles, "count": len(profiles)})
}

func (h *TravelController) GetProfile(c *gin.Context) {
	p, ok := h.profileFor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *TravelController) UpdateProfile(c *gin.Context) {
	p, ok := h.profileFor(c)
	if !ok {
		return
	}
	var u travel.ProfileUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		badRequest(c, err)
		return
	}
	updated, err := h.travel.UpdateProfile(c.Request.Context(), p.ID, u)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *TravelController) DeleteProfile(c *gin.Context) {
	p, ok := h.profileFor(c)
	if !ok {
		return
	}
	if err := h.travel.DeleteProfile(c.Request.Context(), p.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TravelController) RefreshFlight(c *gin.Context) {
	p, ok := h.profileFor(c)
	if !ok {
		return
	}
	updated, err := h.travel.RefreshFlight(c.Request.Context(), p.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *TravelController) Checkpoints(c *gin.Context) {
	p, ok := h.profileFor(c)
	if !ok {
		return
	}
	cps, err := h.travel.Checkpoints(c.Request.Context(), p.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkpoints": cps})
}

func (h *TravelController) UpdateCheckpoint(c *gin.Context) {
	cp, ok := h.checkpointFor(c)
	if !ok {
		return
	}
	var u travel.CheckpointUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		badRequest(c, err)
		return
	}
	updated, err := h.travel.UpdateCheckpoint(c.Request.Context(), cp.ID, u)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

type completeRequest struct {
	Method models.CompletionMethod `json:"method" binding:"omitempty,completion_method"`
}

// CompleteCheckpoint defaults to manual_override. Guests may only confirm.
func (h *TravelController) CompleteCheckpoint(c *gin.Context) {
	cp, ok := h.checkpointFor(c)
	if !ok {
		return
	}
	var req completeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	if req.Method == "" {
		req.Method = models.CompletionManualOverride
	}
	if claims := middleware.ClaimsFrom(c); (claims == nil || claims.Role != middleware.RoleAdmin) && req.Method != models.CompletionGuestConfirmed {
		forbidden(c)
		return
	}

	res, err := h.travel.CompleteCheckpoint(c.Request.Context(), cp.ID, req.Method)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *TravelController) SendCheckpointPrompt(c *gin.Context) {
	cp, ok := h.checkpointFor(c)
	if !ok {
		return
	}
	n, err := h.travel.SendCheckpointPrompt(c.Request.Context(), cp.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (h *TravelController) Notifications(c *gin.Context) {
	p, ok := h.profileFor(c)
	if !ok {
		return
	}
	ns, err := h.travel.Notifications(c.Request.Context(), p.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": ns})
}

func (h *TravelController) MarkNotificationRead(c *gin.Context) {
	n, ok := h.notificationFor(c)
	if !ok {
		return
	}
	n, err := h.travel.MarkNotificationRead(c.Request.Context(), n.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

type respondRequest struct {
	Response map[string]interface{} `json:"response"`
}

func (h *TravelController) RespondToNotification(c *gin.Context) {
	n, ok := h.notificationFor(c)
	if !ok {
		return
	}
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.travel.RespondToNotification(c.Request.Context(), n.ID, req.Response)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *TravelController) StartTracking(c *gin.Context) {
	p, ok := h.profileFor(c)
	if !ok {
		return
	}
	st, err := h.travel.StartTracking(c.Request.Context(), p.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *TravelController) StopTracking(c *gin.Context) {
	p, ok := h.profileFor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.travel.StopTracking(c.Request.Context(), p.ID))
}

func (h *TravelController) TrackingStatus(c *gin.Context) {
	p, ok := h.profileFor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.travel.TrackingStatus(p.ID))
}

func (h *TravelController) RecordLocation(c *gin.Context) {
	p, ok := h.profileFor(c)
	if !ok {
		return
	}
	var msg location.FixMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.travel.RecordLocation(c.Request.Context(), p.ID, msg.Fix())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *TravelController) CurrentLocation(c *gin.Context) {
	p, ok := h.profileFor(c)
	if !ok {
		return
	}
	row, err := h.travel.CurrentLocation(c.Request.Context(), p.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func historyLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultHistoryLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		badRequest(c, errors.New("limit must be a positive integer"))
		return 0, false
	}
	if n > maxHistoryLimit {
		n = maxHistoryLimit
	}
	return n, true
}

func (h *TravelController) LocationHistory(c *gin.Context) {
	p, ok := h.profileFor(c)
	if !ok {
		return
	}
	limit, ok := historyLimit(c)
	if !ok {
		return
	}
	rows, err := h.travel.LocationHistory(c.Request.Context(), p.ID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locations": rows})
}

func (h *TravelController) TrackGeoJSON(c *gin.Context) {
	p, ok := h.profileFor(c)
	if !ok {
		return
	}
	limit, ok := historyLimit(c)
	if !ok {
		return
	}
	raw, err := h.travel.TrackGeoJSON(c.Request.Context(), p.ID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/geo+json", raw)
}

func (h *TravelController) VerifyDriver(c *gin.Context) {
	p, ok := h.profileFor(c)
	if !ok {
		return
	}
	var a travel.VerificationAttempt
	if err := c.ShouldBindJSON(&a); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.travel.VerifyDriver(c.Request.Context(), p.ID, a)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *TravelController) RegisterDriverCredential(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in travel.CredentialInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	cred, err := h.travel.RegisterDriverCredential(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cred)
}
