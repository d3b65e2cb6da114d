package repo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"travel_tracker/internal/models"
)

// setupTestDB connects to the database named by TEST_DATABASE_DSN.
func setupTestDB(t *testing.T) *gorm.DB {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost user=travel password=travel dbname=travel_test port=5432 sslmode=disable connect_timeout=2"
	}
	db, err := gorm.Open(postgres.New(postgres.Config{DriverName: "postgres", DSN: dsn}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skip("Test database not available, skipping integration tests")
		return nil
	}
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func TestMemoryRepos(t *testing.T) {
	runRepoSuite(t, NewMemoryRepos())
}

func TestGormRepos(t *testing.T) {
	db := setupTestDB(t)
	if db == nil {
		return
	}
	runRepoSuite(t, NewGormRepos(db))
}

func runRepoSuite(t *testing.T, r *Repos) {
	ctx := context.Background()

	newProfile := func(t *testing.T) *models.TravelProfile {
		p := &models.TravelProfile{GuestID: uuid.New(), EventID: uuid.New()}
		require.NoError(t, r.Profiles.Create(ctx, p))
		t.Cleanup(func() { _ = r.Profiles.Delete(ctx, p.ID) })
		return p
	}

	t.Run("profile unique per guest and event", func(t *testing.T) {
		p := newProfile(t)
		assert.Equal(t, models.JourneyNotStarted, p.JourneyStatus)

		dup := &models.TravelProfile{GuestID: p.GuestID, EventID: p.EventID}
		err := r.Profiles.Create(ctx, dup)
		assert.ErrorIs(t, err, ErrDuplicate)

		got, err := r.Profiles.GetByGuestEvent(ctx, p.GuestID, p.EventID)
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
	})

	t.Run("save and get profile", func(t *testing.T) {
		p := newProfile(t)
		p.HotelName = "Grand Budapest"
		p.GPSTrackingEnabled = true
		require.NoError(t, r.Profiles.Save(ctx, p))

		got, err := r.Profiles.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Grand Budapest", got.HotelName)
		assert.True(t, got.GPSTrackingEnabled)

		list, err := r.Profiles.ListByEvent(ctx, p.EventID)
		require.NoError(t, err)
		require.Len(t, list, 1)
	})

	t.Run("missing rows", func(t *testing.T) {
		_, err := r.Profiles.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = r.Checkpoints.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = r.Notifications.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = r.Locations.Latest(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = r.Credentials.GetByProfile(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, r.Profiles.Delete(ctx, uuid.New()), ErrNotFound)
	})

	t.Run("checkpoints ordered by sequence and unique per type", func(t *testing.T) {
		p := newProfile(t)
		cps := []models.JourneyCheckpoint{
			{TravelProfileID: p.ID, CheckpointType: models.CheckpointMeetDriver, Sequence: models.CheckpointMeetDriver.Sequence()},
			{TravelProfileID: p.ID, CheckpointType: models.CheckpointAirportArrival, Sequence: models.CheckpointAirportArrival.Sequence()},
		}
		require.NoError(t, r.Checkpoints.CreateBatch(ctx, cps))

		list, err := r.Checkpoints.ListByProfile(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, models.CheckpointAirportArrival, list[0].CheckpointType)
		assert.Equal(t, models.CheckpointPending, list[0].Status)

		err = r.Checkpoints.CreateBatch(ctx, []models.JourneyCheckpoint{
			{TravelProfileID: p.ID, CheckpointType: models.CheckpointMeetDriver, Sequence: 2},
		})
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("latest location is the last appended", func(t *testing.T) {
		p := newProfile(t)
		for i := 0; i < 3; i++ {
			require.NoError(t, r.Locations.Append(ctx, &models.GPSTrackingData{
				TravelProfileID: p.ID,
				Latitude:        float64(i),
				RecordedAt:      time.Now().Add(-time.Duration(i) * time.Minute),
			}))
		}
		latest, err := r.Locations.Latest(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 2.0, latest.Latitude)

		rows, err := r.Locations.List(ctx, p.ID, 2)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, 1.0, rows[0].Latitude)
		assert.Equal(t, 2.0, rows[1].Latitude)
	})

	t.Run("notification round trip", func(t *testing.T) {
		p := newProfile(t)
		n := &models.GuestNotification{
			TravelProfileID:  p.ID,
			GuestID:          p.GuestID,
			NotificationType: models.NotificationCheckpointPrompt,
			Title:            "Arrived?",
			SentAt:           time.Now(),
		}
		require.NoError(t, r.Notifications.Create(ctx, n))
		assert.Equal(t, models.NotificationSent, n.Status)

		n.Status = models.NotificationResponded
		n.ResponseReceived = true
		n.ResponseData = datatypes.JSONMap{"confirmed": true}
		require.NoError(t, r.Notifications.Save(ctx, n))

		list, err := r.Notifications.ListByProfile(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, true, list[0].ResponseData["confirmed"])
	})

	t.Run("credential upsert replaces", func(t *testing.T) {
		p := newProfile(t)
		require.NoError(t, r.Credentials.Upsert(ctx, &models.DriverCredential{TravelProfileID: p.ID, CodeHash: "a", DriverName: "Ann"}))
		first, err := r.Credentials.GetByProfile(ctx, p.ID)
		require.NoError(t, err)

		require.NoError(t, r.Credentials.Upsert(ctx, &models.DriverCredential{TravelProfileID: p.ID, CodeHash: "b", DriverName: "Bob"}))
		got, err := r.Credentials.GetByProfile(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "b", got.CodeHash)
		assert.Equal(t, first.ID, got.ID)
	})

	t.Run("delete cascades", func(t *testing.T) {
		p := &models.TravelProfile{GuestID: uuid.New(), EventID: uuid.New()}
		require.NoError(t, r.Profiles.Create(ctx, p))
		require.NoError(t, r.Checkpoints.CreateBatch(ctx, []models.JourneyCheckpoint{
			{TravelProfileID: p.ID, CheckpointType: models.CheckpointSecurity, Sequence: 1},
		}))
		require.NoError(t, r.Locations.Append(ctx, &models.GPSTrackingData{TravelProfileID: p.ID, RecordedAt: time.Now()}))
		require.NoError(t, r.Notifications.Create(ctx, &models.GuestNotification{TravelProfileID: p.ID, GuestID: p.GuestID, SentAt: time.Now()}))
		require.NoError(t, r.Credentials.Upsert(ctx, &models.DriverCredential{TravelProfileID: p.ID, CodeHash: "x"}))

		require.NoError(t, r.Profiles.Delete(ctx, p.ID))

		cps, err := r.Checkpoints.ListByProfile(ctx, p.ID)
		require.NoError(t, err)
		assert.Empty(t, cps)
		ns, err := r.Notifications.ListByProfile(ctx, p.ID)
		require.NoError(t, err)
		assert.Empty(t, ns)
		_, err = r.Locations.Latest(ctx, p.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = r.Credentials.GetByProfile(ctx, p.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		// Same guest and event can be created again once deleted.
		again := &models.TravelProfile{GuestID: p.GuestID, EventID: p.EventID}
		require.NoError(t, r.Profiles.Create(ctx, again))
		require.NoError(t, r.Profiles.Delete(ctx, again.ID))
	})
}

func TestTranslate(t *testing.T) {
	assert.Nil(t, translate(nil))
	assert.ErrorIs(t, translate(gorm.ErrRecordNotFound), ErrNotFound)
	assert.ErrorIs(t, translate(gorm.ErrDuplicatedKey), ErrDuplicate)
	assert.ErrorIs(t, translate(&pq.Error{Code: "23505"}), ErrDuplicate)

	other := errors.New("boom")
	assert.Equal(t, other, translate(other))
}
