package travel

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travel_tracker/internal/models"
	"travel_tracker/internal/repo"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func nearA(m float64) Fix {
	return Fix{Lat: airportA.lat + metersNorth(m), Lon: airportA.lon, Accuracy: 10}
}

func TestTracking_StreamScenario(t *testing.T) {
	ctx := context.Background()
	c, env := newTestController(t)
	p := scenarioProfile(t, c)

	st, err := c.StartTracking(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, st.Active)
	sub := env.source.sub(t, p.ID)

	sub.fixes <- nearA(150)
	require.Eventually(t, func() bool {
		ns, err := c.Notifications(ctx, p.ID)
		return err == nil && len(ns) == 1
	}, waitFor, tick)

	cps, err := c.Checkpoints(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CheckpointApproaching, cps[0].Status)
	assert.Equal(t, models.CheckpointPending, cps[1].Status)

	// More fixes inside the same geofence.
	for _, m := range []float64{140, 120, 90} {
		sub.fixes <- nearA(m)
	}
	require.Eventually(t, func() bool {
		return c.TrackingStatus(p.ID).FixesAccepted == 4
	}, waitFor, tick)

	ns, err := c.Notifications(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, 1, env.pushCount())
	assert.Len(t, env.sink.ofType(EventCheckpointApproaching), 1)

	res, err := c.RespondToNotification(ctx, ns[0].ID, map[string]interface{}{"confirmed": true})
	require.NoError(t, err)
	require.NotNil(t, res.Completion)
	assert.Equal(t, models.CompletionGuestConfirmed, res.Completion.Checkpoint.CompletionMethod)
	assert.Equal(t, models.JourneyInTransit, res.Completion.Profile.JourneyStatus)

	history, err := c.LocationHistory(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 4)
	for _, row := range history {
		assert.Equal(t, models.SourceStream, row.Source)
	}
}

func TestTracking_StartRules(t *testing.T) {
	ctx := context.Background()
	c, env := newTestController(t)

	p := scenarioProfile(t, c)
	_, err := c.StartTracking(ctx, p.ID)
	require.NoError(t, err)
	first := env.source.sub(t, p.ID)

	_, err = c.StartTracking(ctx, p.ID)
	require.NoError(t, err)
	assert.Same(t, first, env.source.sub(t, p.ID), "second start does not resubscribe")
	assert.Len(t, env.sink.ofType(EventTrackingStarted), 1)

	disabled, err := c.CreateProfile(ctx, CreateProfileInput{
		GuestID: uuid.New(), EventID: uuid.New(), GPSTrackingEnabled: ptr(false),
	})
	require.NoError(t, err)
	_, err = c.StartTracking(ctx, disabled.ID)
	assert.ErrorIs(t, err, ErrTrackingDisabled)

	_, err = c.StartTracking(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTracking_StopIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c, env := newTestController(t)
	p := scenarioProfile(t, c)

	st := c.StopTracking(ctx, p.ID)
	assert.False(t, st.Active)
	assert.Empty(t, env.sink.ofType(EventTrackingStopped))

	_, err := c.StartTracking(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, c.StopTracking(ctx, p.ID).Active)
	assert.False(t, c.StopTracking(ctx, p.ID).Active)
	assert.Len(t, env.sink.ofType(EventTrackingStopped), 1)

	// Nothing is taken from the stream after stop.
	env.source.sub(t, p.ID).fixes <- nearA(10)
	time.Sleep(20 * time.Millisecond)
	history, err := c.LocationHistory(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestTracking_InvalidFixesAreDropped(t *testing.T) {
	ctx := context.Background()
	c, env := newTestController(t)
	p := scenarioProfile(t, c)
	_, err := c.StartTracking(ctx, p.ID)
	require.NoError(t, err)
	sub := env.source.sub(t, p.ID)

	sub.fixes <- Fix{Lat: math.NaN(), Lon: 0, Accuracy: 5}
	sub.fixes <- Fix{Lat: 0, Lon: 181, Accuracy: 5}
	sub.fixes <- Fix{Lat: 0, Lon: 0, Accuracy: 500}
	sub.fixes <- Fix{Lat: 0, Lon: 0, Accuracy: -1}
	sub.fixes <- Fix{Lat: 0, Lon: 0, Accuracy: 5}

	require.Eventually(t, func() bool {
		st := c.TrackingStatus(p.ID)
		return st.FixesAccepted == 1 && st.FixesRejected == 4
	}, waitFor, tick)
	assert.True(t, c.TrackingStatus(p.ID).Active)
}

func TestTracking_SourceErrorStopsOnlyThatProfile(t *testing.T) {
	ctx := context.Background()
	c, env := newTestController(t)
	p1 := scenarioProfile(t, c)
	p2 := scenarioProfile(t, c)
	for _, id := range []uuid.UUID{p1.ID, p2.ID} {
		_, err := c.StartTracking(ctx, id)
		require.NoError(t, err)
	}

	env.source.sub(t, p1.ID).errs <- ErrPermissionDenied
	require.Eventually(t, func() bool {
		return !c.TrackingStatus(p1.ID).Active
	}, waitFor, tick)

	st := c.TrackingStatus(p1.ID)
	assert.Contains(t, st.LastError, ErrPermissionDenied.Error())
	require.Eventually(t, func() bool {
		return len(env.sink.ofType(EventTrackingError)) == 1
	}, waitFor, tick)
	assert.Equal(t, p1.ID, env.sink.ofType(EventTrackingError)[0].ProfileID)

	assert.True(t, c.TrackingStatus(p2.ID).Active)
	env.source.sub(t, p2.ID).fixes <- nearA(150)
	require.Eventually(t, func() bool {
		return c.TrackingStatus(p2.ID).FixesAccepted == 1
	}, waitFor, tick)

	// Stop after failure is a no-op and tracking can resume.
	c.StopTracking(ctx, p1.ID)
	st, err := c.StartTracking(ctx, p1.ID)
	require.NoError(t, err)
	assert.True(t, st.Active)
	assert.Empty(t, st.LastError)
}

func TestTracking_StopWaitsForInFlightFix(t *testing.T) {
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	c, env := newTestController(t, func(o *Options) {
		o.PushTimeout = 5 * time.Second
		o.Push = pushFunc(func(context.Context, PushTarget, PushPayload) error {
			once.Do(func() { close(entered) })
			<-release
			return nil
		})
	})
	p := scenarioProfile(t, c)
	_, err := c.StartTracking(ctx, p.ID)
	require.NoError(t, err)

	env.source.sub(t, p.ID).fixes <- nearA(50)
	<-entered

	stopped := make(chan struct{})
	go func() {
		c.StopTracking(ctx, p.ID)
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("stop returned while a fix was in flight")
	case <-time.After(30 * time.Millisecond):
	}
	close(release)
	<-stopped

	ns, err := c.Notifications(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, models.PushDelivered, ns[0].PushStatus)
}

func TestTracking_HousekeepingReportsStaleOnce(t *testing.T) {
	ctx := context.Background()
	c, env := newTestController(t, func(o *Options) {
		o.HousekeepingInterval = 2 * time.Millisecond
		o.StaleAfter = time.Minute
	})
	p := scenarioProfile(t, c)
	_, err := c.StartTracking(ctx, p.ID)
	require.NoError(t, err)

	env.clock.Advance(2 * time.Minute)
	require.Eventually(t, func() bool {
		return len(env.sink.ofType(EventLocationStale)) == 1
	}, waitFor, tick)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, env.sink.ofType(EventLocationStale), 1)

	// A fix resets staleness; no proximity work is done by the timer.
	env.source.sub(t, p.ID).fixes <- Fix{Lat: 10, Lon: 10, Accuracy: 5}
	require.Eventually(t, func() bool {
		return c.TrackingStatus(p.ID).FixesAccepted == 1
	}, waitFor, tick)
	env.clock.Advance(2 * time.Minute)
	require.Eventually(t, func() bool {
		return len(env.sink.ofType(EventLocationStale)) == 2
	}, waitFor, tick)
	assert.Empty(t, env.sink.ofType(EventCheckpointApproaching))
}

func TestTracking_ShutdownStopsAll(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestController(t)
	p1 := scenarioProfile(t, c)
	p2 := scenarioProfile(t, c)
	for _, id := range []uuid.UUID{p1.ID, p2.ID} {
		_, err := c.StartTracking(ctx, id)
		require.NoError(t, err)
	}
	c.Shutdown(ctx)
	assert.False(t, c.TrackingStatus(p1.ID).Active)
	assert.False(t, c.TrackingStatus(p2.ID).Active)
}

func TestRecordLocation(t *testing.T) {
	ctx := context.Background()
	c, env := newTestController(t)
	p := scenarioProfile(t, c)

	_, err := c.RecordLocation(ctx, p.ID, Fix{Lat: 95, Lon: 0})
	assert.ErrorIs(t, err, ErrInvalidFix)
	_, err = c.RecordLocation(ctx, uuid.New(), Fix{Lat: 1, Lon: 1, Accuracy: 1})
	assert.ErrorIs(t, err, ErrNotFound)

	res, err := c.RecordLocation(ctx, p.ID, Fix{
		Lat: 1, Lon: 1, Accuracy: 3, Speed: ptr(4.2), Timestamp: env.clock.Now().Add(-time.Second),
	})
	require.NoError(t, err)
	assert.Equal(t, models.SourceManual, res.Location.Source)
	assert.Empty(t, res.Approaching)

	res, err = c.RecordLocation(ctx, p.ID, nearA(0))
	require.NoError(t, err)
	require.Len(t, res.Approaching, 1)
	require.Len(t, res.Notifications, 1)

	cur, err := c.CurrentLocation(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Location.ID, cur.ID)
}

func TestRecordLocation_NotificationsDisabled(t *testing.T) {
	ctx := context.Background()
	c, env := newTestController(t)
	p, err := c.CreateProfile(ctx, CreateProfileInput{
		GuestID:                        uuid.New(),
		EventID:                        uuid.New(),
		CheckpointNotificationsEnabled: ptr(false),
		Checkpoints: []CheckpointSpec{
			{Type: models.CheckpointAirportArrival, Latitude: ptr(airportA.lat), Longitude: ptr(airportA.lon), RadiusMeters: ptr(200.0)},
		},
	})
	require.NoError(t, err)

	res, err := c.RecordLocation(ctx, p.ID, nearA(10))
	require.NoError(t, err)
	assert.Len(t, res.Approaching, 1)
	assert.Empty(t, res.Notifications)
	assert.Zero(t, env.pushCount())
}

var errStoreDown = errors.New("db down")

// failingNotifications fails the next n Create calls.
type failingNotifications struct {
	repo.NotificationRepository
	mu sync.Mutex
	n  int
}

func (f *failingNotifications) Create(ctx context.Context, n *models.GuestNotification) error {
	f.mu.Lock()
	fail := f.n > 0
	if fail {
		f.n--
	}
	f.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return f.NotificationRepository.Create(ctx, n)
}

// failingCheckpoints fails the next Save that would mark a checkpoint of typ approaching.
type failingCheckpoints struct {
	repo.CheckpointRepository
	mu  sync.Mutex
	typ models.CheckpointType
	n   int
}

func (f *failingCheckpoints) Save(ctx context.Context, cp *models.JourneyCheckpoint) error {
	f.mu.Lock()
	fail := f.n > 0 && cp.CheckpointType == f.typ && cp.Status == models.CheckpointApproaching
	if fail {
		f.n--
	}
	f.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return f.CheckpointRepository.Save(ctx, cp)
}

func TestRecordLocation_PromptRetriedAfterStoreFailure(t *testing.T) {
	ctx := context.Background()
	flaky := &failingNotifications{n: 1}
	c, env := newTestController(t, func(o *Options) {
		flaky.NotificationRepository = o.Repos.Notifications
		o.Repos.Notifications = flaky
	})
	p := scenarioProfile(t, c)

	_, err := c.RecordLocation(ctx, p.ID, nearA(150))
	require.ErrorIs(t, err, errStoreDown)

	cps, err := c.Checkpoints(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CheckpointPending, cps[0].Status)
	assert.Nil(t, cps[0].ApproachedAt)
	assert.Empty(t, env.sink.ofType(EventCheckpointApproaching))

	res, err := c.RecordLocation(ctx, p.ID, nearA(140))
	require.NoError(t, err)
	require.Len(t, res.Approaching, 1)
	require.Len(t, res.Notifications, 1)

	ns, err := c.Notifications(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, cps[0].ID, *ns[0].CheckpointID)
	assert.Equal(t, 1, env.pushCount())

	// Further fixes in the fence do not prompt again.
	_, err = c.RecordLocation(ctx, p.ID, nearA(100))
	require.NoError(t, err)
	ns, err = c.Notifications(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, ns, 1)
}

func TestRecordLocation_PartialProximityStillPrompts(t *testing.T) {
	ctx := context.Background()
	flaky := &failingCheckpoints{typ: models.CheckpointSecurity, n: 1}
	c, _ := newTestController(t, func(o *Options) {
		flaky.CheckpointRepository = o.Repos.Checkpoints
		o.Repos.Checkpoints = flaky
	})
	p, err := c.CreateProfile(ctx, CreateProfileInput{
		GuestID: uuid.New(),
		EventID: uuid.New(),
		Checkpoints: []CheckpointSpec{
			{Type: models.CheckpointAirportArrival, Latitude: ptr(airportA.lat), Longitude: ptr(airportA.lon), RadiusMeters: ptr(200.0)},
			{Type: models.CheckpointSecurity, Latitude: ptr(airportA.lat), Longitude: ptr(airportA.lon), RadiusMeters: ptr(200.0)},
		},
	})
	require.NoError(t, err)

	res, err := c.RecordLocation(ctx, p.ID, nearA(50))
	require.ErrorIs(t, err, errStoreDown)
	require.NotNil(t, res)
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, models.CheckpointAirportArrival, res.Approaching[0].CheckpointType)

	res, err = c.RecordLocation(ctx, p.ID, nearA(40))
	require.NoError(t, err)
	require.Len(t, res.Approaching, 1)
	assert.Equal(t, models.CheckpointSecurity, res.Approaching[0].CheckpointType)

	ns, err := c.Notifications(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, ns, 2)
}
