package travel

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Event types emitted to sinks.
const (
	EventProfileCreated         = "profile_created"
	EventProfileUpdated         = "profile_updated"
	EventProfileDeleted         = "profile_deleted"
	EventJourneyAdvanced        = "journey_advanced"
	EventCheckpointApproaching  = "checkpoint_approaching"
	EventCheckpointCompleted    = "checkpoint_completed"
	EventCheckpointUpdated      = "checkpoint_updated"
	EventNotificationSent       = "notification_sent"
	EventNotificationRead       = "notification_read"
	EventNotificationResponded  = "notification_responded"
	EventLocationRecorded       = "location_recorded"
	EventLocationStale          = "location_stale"
	EventTrackingStarted        = "tracking_started"
	EventTrackingStopped        = "tracking_stopped"
	EventTrackingError          = "tracking_error"
	EventDriverVerified         = "driver_verified"
	EventDriverVerificationFail = "driver_verification_failed"
)

type Event struct {
	Type      string      `json:"type"`
	ProfileID uuid.UUID   `json:"profile_id"`
	At        time.Time   `json:"at"`
	Data      interface{} `json:"data,omitempty"`
}

// emitter fans an event out to every sink. Sink failures are logged only.
type emitter struct {
	sinks []EventSink
	clock Clock
}

func (e *emitter) emit(ctx context.Context, typ string, profileID uuid.UUID, data interface{}) {
	if len(e.sinks) == 0 {
		return
	}
	ev := Event{Type: typ, ProfileID: profileID, At: e.clock.Now(), Data: data}
	for _, s := range e.sinks {
		if err := s.Publish(ctx, ev); err != nil {
			logrus.WithFields(logrus.Fields{
				"event":      typ,
				"profile_id": profileID,
			}).WithError(err).Warn("Failed to publish travel event")
		}
	}
}
