package travel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"travel_tracker/internal/models"
	"travel_tracker/internal/repo"
)

// metersNorth returns a latitude offset of roughly m meters.
func metersNorth(m float64) float64 { return m / 111_195.0 }

func ptr[T any](v T) *T { return &v }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type pushFunc func(ctx context.Context, target PushTarget, payload PushPayload) error

func (f pushFunc) Send(ctx context.Context, target PushTarget, payload PushPayload) error {
	return f(ctx, target, payload)
}

// chanSource is a LocationSource whose streams are driven by the test.
type chanSource struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*chanSub
}

type chanSub struct {
	ctx   context.Context
	fixes chan Fix
	errs  chan error
}

func newChanSource() *chanSource {
	return &chanSource{subs: make(map[uuid.UUID]*chanSub)}
}

func (s *chanSource) Subscribe(ctx context.Context, profileID uuid.UUID) (<-chan Fix, <-chan error, error) {
	sub := &chanSub{ctx: ctx, fixes: make(chan Fix, 16), errs: make(chan error, 1)}
	s.mu.Lock()
	s.subs[profileID] = sub
	s.mu.Unlock()
	return sub.fixes, sub.errs, nil
}

func (s *chanSource) sub(t *testing.T, profileID uuid.UUID) *chanSub {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[profileID]
	require.True(t, ok, "profile %s has no subscription", profileID)
	return sub
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Publish(_ context.Context, ev Event) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) ofType(typ string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, ev := range s.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type MockFlightProvider struct {
	mock.Mock
}

func (m *MockFlightProvider) Lookup(ctx context.Context, flightNumber string, date time.Time) (*FlightInfo, error) {
	args := m.Called(ctx, flightNumber, date)
	info, _ := args.Get(0).(*FlightInfo)
	return info, args.Error(1)
}

type testEnv struct {
	repos  *repo.Repos
	clock  *fakeClock
	source *chanSource
	sink   *recordingSink

	mu     sync.Mutex
	pushes []PushPayload
}

func (e *testEnv) pushCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pushes)
}

func newTestController(t *testing.T, configure ...func(*Options)) (*Controller, *testEnv) {
	t.Helper()
	env := &testEnv{
		repos:  repo.NewMemoryRepos(),
		clock:  newFakeClock(),
		source: newChanSource(),
		sink:   &recordingSink{},
	}
	opts := Options{
		Repos:  env.repos,
		Source: env.source,
		Push: pushFunc(func(_ context.Context, _ PushTarget, p PushPayload) error {
			env.mu.Lock()
			env.pushes = append(env.pushes, p)
			env.mu.Unlock()
			return nil
		}),
		Sinks:          []EventSink{env.sink},
		Clock:          env.clock,
		MaxFixAccuracy: 100,
		PushTimeout:    200 * time.Millisecond,
	}
	for _, fn := range configure {
		fn(&opts)
	}
	c := NewController(opts)
	t.Cleanup(func() { c.Shutdown(context.Background()) })
	return c, env
}

var (
	airportA = struct{ lat, lon float64 }{51.4700, -0.4543}
	pickupB  = struct{ lat, lon float64 }{51.4710, -0.4600}
)

// scenarioProfile creates a profile with airport_arrival(200m @ A) and meet_driver(100m @ B).
func scenarioProfile(t *testing.T, c *Controller) *models.TravelProfile {
	t.Helper()
	p, err := c.CreateProfile(context.Background(), CreateProfileInput{
		GuestID: uuid.New(),
		EventID: uuid.New(),
		Checkpoints: []CheckpointSpec{
			{Type: models.CheckpointAirportArrival, Latitude: ptr(airportA.lat), Longitude: ptr(airportA.lon), RadiusMeters: ptr(200.0)},
			{Type: models.CheckpointMeetDriver, Latitude: ptr(pickupB.lat), Longitude: ptr(pickupB.lon), RadiusMeters: ptr(100.0)},
		},
	})
	require.NoError(t, err)
	require.Equal(t, models.JourneyNotStarted, p.JourneyStatus)
	require.Len(t, p.Checkpoints, 2)
	return p
}
