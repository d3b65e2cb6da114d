package travel

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"travel_tracker/internal/geo"
	"travel_tracker/internal/models"
)

// Fix is a single position report from a guest's device.
type Fix struct {
	Lat       float64
	Lon       float64
	Accuracy  float64 // meters
	Altitude  *float64
	Speed     *float64
	Heading   *float64
	Timestamp time.Time
}

func (f Fix) Point() geo.Point { return geo.Point{Lat: f.Lat, Lon: f.Lon} }

// Validate rejects fixes outside WGS84 ranges or with unusable accuracy.
// maxAccuracy <= 0 disables the accuracy ceiling.
func (f Fix) Validate(maxAccuracy float64) error {
	if !f.Point().Valid() {
		return ErrInvalidFix
	}
	if math.IsNaN(f.Accuracy) || math.IsInf(f.Accuracy, 0) || f.Accuracy < 0 {
		return ErrInvalidFix
	}
	if maxAccuracy > 0 && f.Accuracy > maxAccuracy {
		return ErrInvalidFix
	}
	return nil
}

// LocationSource delivers a push stream of fixes for one profile. Both
// channels stay open until ctx is cancelled; an error on errs ends the stream.
type LocationSource interface {
	Subscribe(ctx context.Context, profileID uuid.UUID) (<-chan Fix, <-chan error, error)
}

type PushTarget struct {
	GuestID   uuid.UUID `json:"guest_id"`
	ProfileID uuid.UUID `json:"profile_id"`
}

type PushPayload struct {
	NotificationID uuid.UUID  `json:"notification_id"`
	CheckpointID   *uuid.UUID `json:"checkpoint_id,omitempty"`
	Type           string     `json:"type"`
	Title          string     `json:"title"`
	Message        string     `json:"message"`
}

// PushTransport delivers a best-effort hint to the guest's device.
type PushTransport interface {
	Send(ctx context.Context, target PushTarget, payload PushPayload) error
}

// CredentialRegistry returns the driver credential expected for a profile.
type CredentialRegistry interface {
	LookupExpectedCredential(ctx context.Context, profileID uuid.UUID) (*models.DriverCredential, error)
}

// FlightInfo holds the schedule fields copied onto a profile.
type FlightInfo struct {
	Status           string
	DepartureAirport string
	ArrivalAirport   string
	DepartureTime    *time.Time
	ArrivalTime      *time.Time
}

type FlightProvider interface {
	Lookup(ctx context.Context, flightNumber string, date time.Time) (*FlightInfo, error)
}

type EventSink interface {
	Publish(ctx context.Context, ev Event) error
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Metrics receives engine counters. Implementations must be safe for concurrent use.
type Metrics interface {
	FixIngested(source string)
	FixRejected(source string)
	CheckpointApproached(t models.CheckpointType)
	CheckpointCompleted(t models.CheckpointType, method models.CompletionMethod)
	NotificationSent(status models.PushStatus)
	PushObserve(d time.Duration)
	VerificationAttempt(method models.VerificationMethod, ok bool)
	TrackingActive(n int)
}

type nopMetrics struct{}

func (nopMetrics) FixIngested(string) {}
func (nopMetrics) FixRejected(string) {}
func (nopMetrics) CheckpointApproached(models.CheckpointType) {}
func (nopMetrics) CheckpointCompleted(models.CheckpointType, models.CompletionMethod) {}
func (nopMetrics) NotificationSent(models.PushStatus) {}
func (nopMetrics) PushObserve(time.Duration) {}
func (nopMetrics) VerificationAttempt(models.VerificationMethod, bool) {}
func (nopMetrics) TrackingActive(int) {}
