package travel

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travel_tracker/internal/geo"
	"travel_tracker/internal/models"
)

func TestMatchCode(t *testing.T) {
	c := credentialFor(t, "AB12-CD34")

	tests := []struct {
		name   string
		method models.VerificationMethod
		code   string
		aux    map[string]interface{}
		want   bool
	}{
		{"barcode exact", models.VerifyBarcodeScan, "AB12-CD34", nil, true},
		{"barcode trimmed", models.VerifyBarcodeScan, "  AB12-CD34\n", nil, true},
		{"barcode case sensitive", models.VerifyBarcodeScan, "ab12-cd34", nil, false},
		{"qr with prefix", models.VerifyQRCode, "driver-code:AB12-CD34", nil, true},
		{"qr plain", models.VerifyQRCode, "AB12-CD34", nil, true},
		{"qr wrong", models.VerifyQRCode, "driver-code:AB12-CD35", nil, false},
		{"manual normalized", models.VerifyManualCode, "ab12 cd34", nil, true},
		{"manual no separators", models.VerifyManualCode, "ab12cd34", nil, true},
		{"manual wrong", models.VerifyManualCode, "ab12cd3", nil, false},
		{"photo with url", models.VerifyPhotoVerification, "AB12CD34", map[string]interface{}{"photo_url": "https://cdn/x.jpg"}, true},
		{"photo without url", models.VerifyPhotoVerification, "AB12CD34", nil, false},
		{"photo blank url", models.VerifyPhotoVerification, "AB12CD34", map[string]interface{}{"photo_url": " "}, false},
		{"empty code", models.VerifyManualCode, "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchCode(tt.method, tt.code, tt.aux, c))
		})
	}
}

func credentialFor(t *testing.T, code string) *models.DriverCredential {
	t.Helper()
	c, _ := newTestController(t)
	p, err := c.CreateProfile(context.Background(), CreateProfileInput{GuestID: uuid.New(), EventID: uuid.New()})
	require.NoError(t, err)
	cred, err := c.RegisterDriverCredential(context.Background(), p.ID, CredentialInput{Code: code, DriverName: "Sam"})
	require.NoError(t, err)
	return cred
}

func TestVerifyDriver_CompletesMeetDriverOnce(t *testing.T) {
	ctx := context.Background()
	c, env := newTestController(t)
	p := scenarioProfile(t, c)
	_, err := c.RegisterDriverCredential(ctx, p.ID, CredentialInput{Code: "ZX-81", DriverName: "Sam", VehiclePlate: "LX21 ABC"})
	require.NoError(t, err)

	// Guest walks into the pickup geofence.
	_, err = c.RecordLocation(ctx, p.ID, Fix{Lat: pickupB.lat, Lon: pickupB.lon, Accuracy: 5})
	require.NoError(t, err)
	cps, err := c.Checkpoints(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, models.CheckpointApproaching, cps[1].Status)

	attempt := VerificationAttempt{
		Method:   models.VerifyManualCode,
		Code:     "zx81",
		Location: &geo.Point{Lat: pickupB.lat, Lon: pickupB.lon},
	}
	first, err := c.VerifyDriver(ctx, p.ID, attempt)
	require.NoError(t, err)
	assert.True(t, first.Profile.DriverVerified)
	require.NotNil(t, first.Profile.DriverVerificationTime)
	assert.Equal(t, models.VerifyManualCode, first.Profile.DriverVerificationMethod)
	assert.True(t, first.CheckpointCompleted)
	assert.Equal(t, models.CheckpointCompleted, first.Checkpoint.Status)
	assert.Equal(t, models.CompletionAutoDetected, first.Checkpoint.CompletionMethod)
	assert.Equal(t, models.JourneyMetDriver, first.Profile.JourneyStatus)
	firstTime := *first.Profile.DriverVerificationTime

	env.clock.Advance(5 * time.Minute)
	second, err := c.VerifyDriver(ctx, p.ID, attempt)
	require.NoError(t, err)
	assert.False(t, second.CheckpointCompleted)
	assert.False(t, second.JourneyAdvanced)
	assert.Equal(t, models.JourneyMetDriver, second.Profile.JourneyStatus)
	assert.Equal(t, firstTime, *second.Profile.DriverVerificationTime)
	assert.Equal(t, *first.Checkpoint.CompletedAt, *second.Checkpoint.CompletedAt)

	assert.Len(t, env.sink.ofType(EventCheckpointCompleted), 1)
	assert.Len(t, env.sink.ofType(EventDriverVerified), 2)
}

func TestVerifyDriver_Failures(t *testing.T) {
	ctx := context.Background()
	c, env := newTestController(t)
	p := scenarioProfile(t, c)

	t.Run("no credential", func(t *testing.T) {
		_, err := c.VerifyDriver(ctx, p.ID, VerificationAttempt{Method: models.VerifyBarcodeScan, Code: "X"})
		assert.ErrorIs(t, err, ErrVerificationFailed)
	})

	_, err := c.RegisterDriverCredential(ctx, p.ID, CredentialInput{Code: "RIGHT"})
	require.NoError(t, err)

	t.Run("wrong code changes nothing", func(t *testing.T) {
		_, err := c.VerifyDriver(ctx, p.ID, VerificationAttempt{Method: models.VerifyBarcodeScan, Code: "WRONG"})
		assert.ErrorIs(t, err, ErrVerificationFailed)

		got, err := c.Profile(ctx, p.ID)
		require.NoError(t, err)
		assert.False(t, got.DriverVerified)
		assert.Nil(t, got.DriverVerificationTime)
		assert.Equal(t, models.CheckpointPending, got.Checkpoints[1].Status)
		assert.NotEmpty(t, env.sink.ofType(EventDriverVerificationFail))
	})

	t.Run("unknown method", func(t *testing.T) {
		_, err := c.VerifyDriver(ctx, p.ID, VerificationAttempt{Method: "retina", Code: "RIGHT"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("unknown profile", func(t *testing.T) {
		_, err := c.VerifyDriver(ctx, uuid.New(), VerificationAttempt{Method: models.VerifyBarcodeScan, Code: "RIGHT"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestVerifyDriver_PendingMeetDriverAndNoCheckpoint(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestController(t)

	p := scenarioProfile(t, c)
	_, err := c.RegisterDriverCredential(ctx, p.ID, CredentialInput{Code: "1234"})
	require.NoError(t, err)
	res, err := c.VerifyDriver(ctx, p.ID, VerificationAttempt{Method: models.VerifyQRCode, Code: "driver-code:1234"})
	require.NoError(t, err)
	assert.True(t, res.CheckpointCompleted, "pending meet_driver is completed too")

	bare, err := c.CreateProfile(ctx, CreateProfileInput{
		GuestID: uuid.New(), EventID: uuid.New(),
		Checkpoints: []CheckpointSpec{{Type: models.CheckpointHotelArrival}},
	})
	require.NoError(t, err)
	_, err = c.RegisterDriverCredential(ctx, bare.ID, CredentialInput{Code: "1234"})
	require.NoError(t, err)
	res, err = c.VerifyDriver(ctx, bare.ID, VerificationAttempt{Method: models.VerifyBarcodeScan, Code: "1234"})
	require.NoError(t, err)
	assert.True(t, res.Profile.DriverVerified)
	assert.Nil(t, res.Checkpoint)
	assert.Equal(t, models.JourneyNotStarted, res.Profile.JourneyStatus)
}
