package travel

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"travel_tracker/internal/geo"
	"travel_tracker/internal/models"
)

// VerificationAttempt is a single presentation of the driver's credential.
type VerificationAttempt struct {
	Method   models.VerificationMethod `json:"method" binding:"required,verification_method"`
	Code     string                    `json:"code"`
	AuxData  map[string]interface{}    `json:"aux_data"`
	Location *geo.Point                `json:"location"`
}

type VerificationResult struct {
	Profile             *models.TravelProfile     `json:"profile"`
	Checkpoint          *models.JourneyCheckpoint `json:"checkpoint,omitempty"`
	CheckpointCompleted bool                      `json:"checkpoint_completed"`
	JourneyAdvanced     bool                      `json:"journey_advanced"`
}

// Verifier checks driver credentials and completes the meet_driver checkpoint.
// Callers serialize calls per profile.
type Verifier struct {
	registry    CredentialRegistry
	profiles    *ProfileStore
	checkpoints *CheckpointStore
	clock       Clock
	metrics     Metrics
}

func NewVerifier(registry CredentialRegistry, profiles *ProfileStore, checkpoints *CheckpointStore, clock Clock, m Metrics) *Verifier {
	if clock == nil {
		clock = systemClock{}
	}
	if m == nil {
		m = nopMetrics{}
	}
	return &Verifier{registry: registry, profiles: profiles, checkpoints: checkpoints, clock: clock, metrics: m}
}

func (v *Verifier) Verify(ctx context.Context, profileID uuid.UUID, a VerificationAttempt) (*VerificationResult, error) {
	if !a.Method.Valid() {
		return nil, invalidf("unknown verification method %q", a.Method)
	}
	if a.Location != nil && !a.Location.Valid() {
		return nil, invalidf("location out of range")
	}
	current, err := v.profiles.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}

	cred, err := v.registry.LookupExpectedCredential(ctx, profileID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			v.metrics.VerificationAttempt(a.Method, false)
			return nil, fmt.Errorf("no driver credential registered: %w", ErrVerificationFailed)
		}
		return nil, err
	}
	if !matchCode(a.Method, a.Code, a.AuxData, cred) {
		v.metrics.VerificationAttempt(a.Method, false)
		return nil, fmt.Errorf("%s: %w", a.Method, ErrVerificationFailed)
	}
	v.metrics.VerificationAttempt(a.Method, true)

	verified := true
	method := a.Method
	u := ProfileUpdate{
		DriverVerified:           &verified,
		DriverVerificationMethod: &method,
	}
	// Re-verification keeps the first verification time.
	if current.DriverVerificationTime == nil {
		now := v.clock.Now()
		u.DriverVerificationTime = &now
	}
	if a.Location != nil {
		u.DriverVerificationLat = &a.Location.Lat
		u.DriverVerificationLon = &a.Location.Lon
	}
	profile, err := v.profiles.Update(ctx, profileID, u)
	if err != nil {
		return nil, err
	}
	res := &VerificationResult{Profile: profile}

	cp, err := v.checkpoints.FindByType(ctx, profileID, models.CheckpointMeetDriver)
	if errors.Is(err, ErrNotFound) {
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	res.Checkpoint = cp
	if cp.Status == models.CheckpointCompleted {
		return res, nil
	}

	done, err := v.checkpoints.Complete(ctx, cp.ID, models.CompletionAutoDetected)
	if errors.Is(err, ErrInvalidTransition) {
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	res.Checkpoint = done
	res.CheckpointCompleted = true
	v.metrics.CheckpointCompleted(done.CheckpointType, done.CompletionMethod)

	advanced, err := v.profiles.Advance(ctx, profile, done.CheckpointType)
	if err != nil {
		return nil, err
	}
	res.JourneyAdvanced = advanced
	return res, nil
}
