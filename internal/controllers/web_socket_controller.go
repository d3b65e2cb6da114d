package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"travel_tracker/internal/hub"
	"travel_tracker/internal/location"
	"travel_tracker/internal/middleware"
	"travel_tracker/internal/travel"
)

const ackWriteWait = 10 * time.Second

// upgrader configures the WebSocket connection.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // browsers pass the bearer token in the query string
	},
}

// WebSocketController serves the device fix stream and the engine event feed.
type WebSocketController struct {
	travel *travel.Controller
	auth   *middleware.Auth
	broker *location.Broker
	hub    *hub.Hub
}

func NewWebSocketController(t *travel.Controller, auth *middleware.Auth, broker *location.Broker, h *hub.Hub) *WebSocketController {
	return &WebSocketController{travel: t, auth: auth, broker: broker, hub: h}
}

// authenticate validates ?token and checks the caller owns ?profile_id.
func (w *WebSocketController) authenticate(c *gin.Context) (uuid.UUID, int, error) {
	tokenString := c.Query("token")
	if tokenString == "" {
		return uuid.Nil, http.StatusUnauthorized, errors.New("missing authentication token")
	}
	claims, err := w.auth.ValidateToken(tokenString)
	if err != nil {
		return uuid.Nil, http.StatusUnauthorized, fmt.Errorf("invalid token: %w", err)
	}
	middleware.SetClaims(c, claims)

	profileID, err := uuid.Parse(c.Query("profile_id"))
	if err != nil {
		return uuid.Nil, http.StatusBadRequest, errors.New("missing or invalid 'profile_id' query parameter")
	}
	p, err := w.travel.Profile(c.Request.Context(), profileID)
	if err != nil {
		if errors.Is(err, travel.ErrNotFound) {
			return uuid.Nil, http.StatusNotFound, err
		}
		return uuid.Nil, http.StatusInternalServerError, err
	}
	if !claims.CanAccessGuest(p.GuestID) {
		return uuid.Nil, http.StatusForbidden, errors.New("unauthorized role for WebSocket connection")
	}
	return profileID, 0, nil
}

// HandleLocation receives device fixes and feeds the profile's tracking loop.
// @Router /ws/location [get]
// @Param token query string true "JWT token for authentication"
// @Param profile_id query string true "Travel profile streaming its location"
func (w *WebSocketController) HandleLocation(c *gin.Context) {
	profileID, status, authErr := w.authenticate(c)
	if authErr != nil {
		logrus.WithError(authErr).Warn("Location WebSocket connection attempt failed")
		c.JSON(status, gin.H{"error": authErr.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade WebSocket connection.")
		return
	}
	defer conn.Close()

	log := logrus.WithFields(logrus.Fields{
		"profile_id": profileID,
		"conn_ptr":   fmt.Sprintf("%p", conn),
	})
	log.Info("Device location WebSocket connection established.")

	w.pumpLocation(c.Request.Context(), conn, profileID, log)
	log.Info("Device location WebSocket connection closed.")
}

// deviceConn is the part of *websocket.Conn the location pump uses.
type deviceConn interface {
	ReadMessage() (int, []byte, error)
	SetWriteDeadline(t time.Time) error
	WriteJSON(v interface{}) error
}

// pumpLocation feeds device messages to the broker and acks each one. It
// returns when the socket can no longer be read or written.
func (w *WebSocketController) pumpLocation(ctx context.Context, conn deviceConn, profileID uuid.UUID, log *logrus.Entry) {
	for {
		messageType, p, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("Error reading device WebSocket message")
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var ack gin.H
		var msg location.FixMessage
		if err := json.Unmarshal(p, &msg); err != nil {
			log.WithError(err).WithField("payload", string(p)).Warn("Error unmarshaling device fix")
			ack = gin.H{"error": "Invalid location data format. Check timestamp format."}
		} else {
			switch err := w.broker.Deliver(ctx, profileID, msg); {
			case errors.Is(err, location.ErrNoSubscriber):
				ack = gin.H{"error": "tracking is not active for this profile"}
			case err != nil:
				log.WithError(err).Warn("Failed to queue device fix")
				ack = gin.H{"error": "failed to queue location"}
			default:
				ack = gin.H{"status": "queued"}
			}
		}

		_ = conn.SetWriteDeadline(time.Now().Add(ackWriteWait))
		if err := conn.WriteJSON(ack); err != nil {
			log.WithError(err).Warn("Error writing device WebSocket ack")
			break
		}
	}
}

// HandleEvents streams engine events for one profile.
// @Router /ws/events [get]
// @Param token query string true "JWT token for authentication"
// @Param profile_id query string true "Travel profile to watch"
func (w *WebSocketController) HandleEvents(c *gin.Context) {
	profileID, status, authErr := w.authenticate(c)
	if authErr != nil {
		logrus.WithError(authErr).Warn("Event WebSocket connection attempt failed")
		c.JSON(status, gin.H{"error": authErr.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade WebSocket connection.")
		return
	}
	defer conn.Close()

	w.hub.Serve(conn, profileID)
}
