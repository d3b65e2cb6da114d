package travel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"travel_tracker/internal/geo"
	"travel_tracker/internal/models"
	"travel_tracker/internal/repo"
)

// Options wires a Controller. Only Repos is required.
type Options struct {
	Repos       *repo.Repos
	Source      LocationSource
	Push        PushTransport
	Flights     FlightProvider
	Credentials CredentialRegistry // defaults to the credentials repository
	Sinks       []EventSink
	Templates   Templates
	Clock       Clock
	Metrics     Metrics

	MaxFixAccuracy       float64
	PushTimeout          time.Duration
	HousekeepingInterval time.Duration
	StaleAfter           time.Duration
}

// Controller exposes the travel operations. Every mutation and read of a
// profile runs under that profile's lock, shared with its tracking loop.
type Controller struct {
	repos       *repo.Repos
	profiles    *ProfileStore
	checkpoints *CheckpointStore
	dispatcher  *Dispatcher
	ingestor    *Ingestor
	verifier    *Verifier
	credentials *CredentialStore
	flights     FlightProvider
	events      *emitter
	clock       Clock
	metrics     Metrics

	locks       *keyedMutex[uuid.UUID]
	createLocks *keyedMutex[[2]uuid.UUID]
}

func NewController(opts Options) *Controller {
	clock := opts.Clock
	if clock == nil {
		clock = systemClock{}
	}
	m := opts.Metrics
	if m == nil {
		m = nopMetrics{}
	}
	templates := opts.Templates
	if templates == nil {
		templates = DefaultTemplates()
	}

	c := &Controller{
		repos:       opts.Repos,
		profiles:    NewProfileStore(opts.Repos.Profiles),
		checkpoints: NewCheckpointStore(opts.Repos.Checkpoints, templates, clock),
		dispatcher:  NewDispatcher(opts.Repos.Notifications, opts.Push, templates, opts.PushTimeout, clock, m),
		credentials: NewCredentialStore(opts.Repos.Credentials),
		flights:     opts.Flights,
		events:      &emitter{sinks: opts.Sinks, clock: clock},
		clock:       clock,
		metrics:     m,
		locks:       newKeyedMutex[uuid.UUID](),
		createLocks: newKeyedMutex[[2]uuid.UUID](),
	}
	registry := opts.Credentials
	if registry == nil {
		registry = c.credentials
	}
	c.verifier = NewVerifier(registry, c.profiles, c.checkpoints, clock, m)
	c.ingestor = newIngestor(
		opts.Source,
		opts.Repos.Locations,
		c.profiles,
		c.checkpoints,
		c.dispatcher,
		c.locks,
		c.events,
		IngestorConfig{
			MaxFixAccuracy:       opts.MaxFixAccuracy,
			HousekeepingInterval: opts.HousekeepingInterval,
			StaleAfter:           opts.StaleAfter,
		},
		clock,
		m,
	)
	return c
}

type CreateProfileInput struct {
	GuestID uuid.UUID `json:"guest_id" binding:"required"`
	EventID uuid.UUID `json:"event_id" binding:"required"`

	FlightNumber string     `json:"flight_number"`
	FlightDate   *time.Time `json:"flight_date"`

	HotelName              string     `json:"hotel_name"`
	HotelAddress           string     `json:"hotel_address"`
	HotelReservationNumber string     `json:"hotel_reservation_number"`
	HotelCheckIn           *time.Time `json:"hotel_check_in"`
	HotelCheckOut          *time.Time `json:"hotel_check_out"`

	// Both default to true.
	GPSTrackingEnabled             *bool `json:"gps_tracking_enabled"`
	CheckpointNotificationsEnabled *bool `json:"checkpoint_notifications_enabled"`

	// Empty means one checkpoint per template stage.
	Checkpoints []CheckpointSpec `json:"checkpoints" binding:"omitempty,dive"`
}

// CompletionResult is returned by checkpoint completion. AlreadyCompleted is
// set when the checkpoint was completed before the call; nothing changed then.
type CompletionResult struct {
	Checkpoint       *models.JourneyCheckpoint `json:"checkpoint"`
	Profile          *models.TravelProfile     `json:"profile"`
	AlreadyCompleted bool                      `json:"already_completed"`
	JourneyAdvanced  bool                      `json:"journey_advanced"`
}

type ResponseResult struct {
	Notification *models.GuestNotification `json:"notification"`
	Completion   *CompletionResult         `json:"completion,omitempty"`
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func (c *Controller) CreateProfile(ctx context.Context, in CreateProfileInput) (*models.TravelProfile, error) {
	unlock := c.createLocks.Lock([2]uuid.UUID{in.GuestID, in.EventID})
	defer unlock()

	p := &models.TravelProfile{
		ID:                             uuid.New(),
		GuestID:                        in.GuestID,
		EventID:                        in.EventID,
		FlightNumber:                   in.FlightNumber,
		FlightDate:                     in.FlightDate,
		HotelName:                      in.HotelName,
		HotelAddress:                   in.HotelAddress,
		HotelReservationNumber:         in.HotelReservationNumber,
		HotelCheckIn:                   in.HotelCheckIn,
		HotelCheckOut:                  in.HotelCheckOut,
		JourneyStatus:                  models.JourneyNotStarted,
		GPSTrackingEnabled:             boolOr(in.GPSTrackingEnabled, true),
		CheckpointNotificationsEnabled: boolOr(in.CheckpointNotificationsEnabled, true),
	}

	switch _, err := c.profiles.FindByGuestEvent(ctx, in.GuestID, in.EventID); {
	case err == nil:
		return nil, fmt.Errorf("create profile: %w", ErrDuplicateProfile)
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	c.lookupFlight(ctx, p)

	if err := c.profiles.Create(ctx, p); err != nil {
		return nil, err
	}
	cps, err := c.checkpoints.CreateForProfile(ctx, p.ID, in.Checkpoints)
	if err != nil {
		if derr := c.profiles.Delete(context.WithoutCancel(ctx), p.ID); derr != nil {
			logrus.WithField("profile_id", p.ID).WithError(derr).Error("Failed to roll back profile creation")
		}
		return nil, err
	}
	p.Checkpoints = cps

	logrus.WithFields(logrus.Fields{
		"profile_id": p.ID,
		"guest_id":   p.GuestID,
		"event_id":   p.EventID,
	}).Info("Travel profile created")
	c.events.emit(ctx, EventProfileCreated, p.ID, p)
	return p, nil
}

// lookupFlight copies provider data onto p. Provider failures leave the
// flight fields empty and never fail the caller.
func (c *Controller) lookupFlight(ctx context.Context, p *models.TravelProfile) bool {
	if c.flights == nil || p.FlightNumber == "" || p.FlightDate == nil {
		return false
	}
	info, err := c.flights.Lookup(ctx, p.FlightNumber, *p.FlightDate)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"flight_number": p.FlightNumber,
			"profile_id":    p.ID,
		}).WithError(err).Warn("Flight lookup failed, continuing without flight data")
		return false
	}
	p.FlightStatus = info.Status
	p.DepartureAirport = info.DepartureAirport
	p.ArrivalAirport = info.ArrivalAirport
	p.DepartureTime = info.DepartureTime
	p.ArrivalTime = info.ArrivalTime
	return true
}

// RefreshFlight re-reads flight data for a profile with a flight number and date.
func (c *Controller) RefreshFlight(ctx context.Context, profileID uuid.UUID) (*models.TravelProfile, error) {
	p, err := c.Profile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if p.FlightNumber == "" || p.FlightDate == nil {
		return nil, invalidf("profile has no flight number and date")
	}
	if c.flights == nil {
		return nil, fmt.Errorf("no flight provider configured: %w", ErrTransportFailure)
	}
	info, err := c.flights.Lookup(ctx, p.FlightNumber, *p.FlightDate)
	if err != nil {
		return nil, fmt.Errorf("flight lookup: %w: %v", ErrTransportFailure, err)
	}
	return c.UpdateProfile(ctx, profileID, ProfileUpdate{
		FlightStatus:     &info.Status,
		DepartureAirport: &info.DepartureAirport,
		ArrivalAirport:   &info.ArrivalAirport,
		DepartureTime:    info.DepartureTime,
		ArrivalTime:      info.ArrivalTime,
	})
}

func (c *Controller) UpdateProfile(ctx context.Context, profileID uuid.UUID, u ProfileUpdate) (*models.TravelProfile, error) {
	// Driver fields are owned by verification.
	u.DriverVerified, u.DriverVerificationTime, u.DriverVerificationMethod = nil, nil, nil
	u.DriverVerificationLat, u.DriverVerificationLon = nil, nil

	unlock := c.locks.Lock(profileID)
	p, err := c.profiles.Update(ctx, profileID, u)
	unlock()
	if err != nil {
		return nil, err
	}
	c.events.emit(ctx, EventProfileUpdated, p.ID, p)

	if !p.GPSTrackingEnabled {
		c.ingestor.Stop(ctx, profileID)
	}
	return p, nil
}

func (c *Controller) DeleteProfile(ctx context.Context, profileID uuid.UUID) error {
	c.ingestor.Stop(ctx, profileID)

	unlock := c.locks.Lock(profileID)
	err := c.profiles.Delete(ctx, profileID)
	unlock()
	if err != nil {
		return err
	}
	c.ingestor.forget(profileID)
	logrus.WithField("profile_id", profileID).Info("Travel profile deleted")
	c.events.emit(ctx, EventProfileDeleted, profileID, nil)
	return nil
}

// Profile returns the profile with its checkpoints.
func (c *Controller) Profile(ctx context.Context, profileID uuid.UUID) (*models.TravelProfile, error) {
	unlock := c.locks.Lock(profileID)
	defer unlock()
	return c.loadProfile(ctx, profileID)
}

func (c *Controller) loadProfile(ctx context.Context, profileID uuid.UUID) (*models.TravelProfile, error) {
	p, err := c.profiles.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}
	cps, err := c.checkpoints.List(ctx, profileID)
	if err != nil {
		return nil, err
	}
	p.Checkpoints = cps
	return p, nil
}

func (c *Controller) FindProfile(ctx context.Context, guestID, eventID uuid.UUID) (*models.TravelProfile, error) {
	p, err := c.profiles.FindByGuestEvent(ctx, guestID, eventID)
	if err != nil {
		return nil, err
	}
	return c.Profile(ctx, p.ID)
}

func (c *Controller) ListEventProfiles(ctx context.Context, eventID uuid.UUID) ([]models.TravelProfile, error) {
	return c.profiles.ListByEvent(ctx, eventID)
}

func (c *Controller) Checkpoints(ctx context.Context, profileID uuid.UUID) ([]models.JourneyCheckpoint, error) {
	p, err := c.Profile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return p.Checkpoints, nil
}

func (c *Controller) Checkpoint(ctx context.Context, checkpointID uuid.UUID) (*models.JourneyCheckpoint, error) {
	cp, err := c.checkpoints.Get(ctx, checkpointID)
	if err != nil {
		return nil, err
	}
	unlock := c.locks.Lock(cp.TravelProfileID)
	defer unlock()
	return c.checkpoints.Get(ctx, checkpointID)
}

// CompleteCheckpoint completes a checkpoint and advances the journey. An
// already completed checkpoint is returned unchanged with AlreadyCompleted set.
func (c *Controller) CompleteCheckpoint(ctx context.Context, checkpointID uuid.UUID, method models.CompletionMethod) (*CompletionResult, error) {
	if !method.Valid() {
		return nil, invalidf("unknown completion_method %q", method)
	}
	cp, err := c.checkpoints.Get(ctx, checkpointID)
	if err != nil {
		return nil, err
	}
	unlock := c.locks.Lock(cp.TravelProfileID)
	defer unlock()
	return c.completeLocked(ctx, checkpointID, method)
}

func (c *Controller) completeLocked(ctx context.Context, checkpointID uuid.UUID, method models.CompletionMethod) (*CompletionResult, error) {
	cp, err := c.checkpoints.Complete(ctx, checkpointID, method)
	if errors.Is(err, ErrInvalidTransition) && cp != nil {
		p, perr := c.profiles.Get(ctx, cp.TravelProfileID)
		if perr != nil {
			return nil, perr
		}
		return &CompletionResult{Checkpoint: cp, Profile: p, AlreadyCompleted: true}, nil
	}
	if err != nil {
		return nil, err
	}
	c.metrics.CheckpointCompleted(cp.CheckpointType, cp.CompletionMethod)
	c.events.emit(ctx, EventCheckpointCompleted, cp.TravelProfileID, cp)

	p, err := c.profiles.Get(ctx, cp.TravelProfileID)
	if err != nil {
		return nil, err
	}
	advanced, err := c.profiles.Advance(ctx, p, cp.CheckpointType)
	if err != nil {
		return nil, err
	}
	if advanced {
		c.events.emit(ctx, EventJourneyAdvanced, p.ID, map[string]interface{}{
			"journey_status": p.JourneyStatus,
		})
	}
	logrus.WithFields(logrus.Fields{
		"profile_id":      p.ID,
		"checkpoint_type": cp.CheckpointType,
		"method":          method,
		"journey_status":  p.JourneyStatus,
	}).Info("Checkpoint completed")
	return &CompletionResult{Checkpoint: cp, Profile: p, JourneyAdvanced: advanced}, nil
}

func (c *Controller) UpdateCheckpoint(ctx context.Context, checkpointID uuid.UUID, u CheckpointUpdate) (*models.JourneyCheckpoint, error) {
	cp, err := c.checkpoints.Get(ctx, checkpointID)
	if err != nil {
		return nil, err
	}
	unlock := c.locks.Lock(cp.TravelProfileID)
	defer unlock()
	cp, err = c.checkpoints.Update(ctx, checkpointID, u)
	if err != nil {
		return nil, err
	}
	c.events.emit(ctx, EventCheckpointUpdated, cp.TravelProfileID, cp)
	return cp, nil
}

// SendCheckpointPrompt prompts the guest about a checkpoint on demand.
func (c *Controller) SendCheckpointPrompt(ctx context.Context, checkpointID uuid.UUID) (*models.GuestNotification, error) {
	cp, err := c.checkpoints.Get(ctx, checkpointID)
	if err != nil {
		return nil, err
	}
	unlock := c.locks.Lock(cp.TravelProfileID)
	defer unlock()

	p, err := c.profiles.Get(ctx, cp.TravelProfileID)
	if err != nil {
		return nil, err
	}
	if cp, err = c.checkpoints.Get(ctx, checkpointID); err != nil {
		return nil, err
	}
	n, err := c.dispatcher.SendCheckpointPrompt(ctx, p, cp)
	if err != nil {
		return nil, err
	}
	c.events.emit(ctx, EventNotificationSent, p.ID, n)
	return n, nil
}

func (c *Controller) Notifications(ctx context.Context, profileID uuid.UUID) ([]models.GuestNotification, error) {
	unlock := c.locks.Lock(profileID)
	defer unlock()
	if _, err := c.profiles.Get(ctx, profileID); err != nil {
		return nil, err
	}
	return c.dispatcher.List(ctx, profileID)
}

func (c *Controller) Notification(ctx context.Context, notificationID uuid.UUID) (*models.GuestNotification, error) {
	n, err := c.dispatcher.Get(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	unlock := c.locks.Lock(n.TravelProfileID)
	defer unlock()
	return c.dispatcher.Get(ctx, notificationID)
}

func (c *Controller) MarkNotificationRead(ctx context.Context, notificationID uuid.UUID) (*models.GuestNotification, error) {
	n, err := c.dispatcher.Get(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	unlock := c.locks.Lock(n.TravelProfileID)
	defer unlock()
	n, changed, err := c.dispatcher.MarkRead(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if changed {
		c.events.emit(ctx, EventNotificationRead, n.TravelProfileID, n)
	}
	return n, nil
}

// RespondToNotification records the guest's response. A response with
// "confirmed": true completes the referenced checkpoint as guest_confirmed.
func (c *Controller) RespondToNotification(ctx context.Context, notificationID uuid.UUID, data map[string]interface{}) (*ResponseResult, error) {
	n, err := c.dispatcher.Get(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	unlock := c.locks.Lock(n.TravelProfileID)
	defer unlock()

	n, err = c.dispatcher.Respond(ctx, notificationID, data)
	if err != nil {
		return nil, err
	}
	c.events.emit(ctx, EventNotificationResponded, n.TravelProfileID, n)
	res := &ResponseResult{Notification: n}

	if confirmed, _ := data["confirmed"].(bool); confirmed && n.CheckpointID != nil {
		res.Completion, err = c.completeLocked(ctx, *n.CheckpointID, models.CompletionGuestConfirmed)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// StartTracking starts the profile's tracking loop. Starting a tracked profile is a no-op.
func (c *Controller) StartTracking(ctx context.Context, profileID uuid.UUID) (TrackingStatus, error) {
	if _, err := c.ingestor.Start(ctx, profileID); err != nil {
		return c.ingestor.Status(profileID), err
	}
	return c.ingestor.Status(profileID), nil
}

// StopTracking is a no-op when the profile is not tracked.
func (c *Controller) StopTracking(ctx context.Context, profileID uuid.UUID) TrackingStatus {
	c.ingestor.Stop(ctx, profileID)
	return c.ingestor.Status(profileID)
}

func (c *Controller) TrackingStatus(profileID uuid.UUID) TrackingStatus {
	return c.ingestor.Status(profileID)
}

// RecordLocation processes a single manual fix outside the stream.
func (c *Controller) RecordLocation(ctx context.Context, profileID uuid.UUID, fix Fix) (*RecordResult, error) {
	return c.ingestor.Record(ctx, profileID, fix, models.SourceManual)
}

func (c *Controller) CurrentLocation(ctx context.Context, profileID uuid.UUID) (*models.GPSTrackingData, error) {
	unlock := c.locks.Lock(profileID)
	defer unlock()
	if _, err := c.profiles.Get(ctx, profileID); err != nil {
		return nil, err
	}
	row, err := c.repos.Locations.Latest(ctx, profileID)
	if err != nil {
		return nil, storeErr("current location", err)
	}
	return row, nil
}

func (c *Controller) LocationHistory(ctx context.Context, profileID uuid.UUID, limit int) ([]models.GPSTrackingData, error) {
	unlock := c.locks.Lock(profileID)
	defer unlock()
	if _, err := c.profiles.Get(ctx, profileID); err != nil {
		return nil, err
	}
	rows, err := c.repos.Locations.List(ctx, profileID, limit)
	if err != nil {
		return nil, storeErr("location history", err)
	}
	return rows, nil
}

// TrackGeoJSON renders the travelled track and the checkpoint geofences as a
// GeoJSON FeatureCollection.
func (c *Controller) TrackGeoJSON(ctx context.Context, profileID uuid.UUID, limit int) ([]byte, error) {
	unlock := c.locks.Lock(profileID)
	p, err := c.loadProfile(ctx, profileID)
	if err != nil {
		unlock()
		return nil, err
	}
	rows, err := c.repos.Locations.List(ctx, profileID, limit)
	unlock()
	if err != nil {
		return nil, storeErr("location history", err)
	}

	track := make([]geo.Point, 0, len(rows))
	for _, r := range rows {
		track = append(track, geo.Point{Lat: r.Latitude, Lon: r.Longitude})
	}
	var markers []geo.Marker
	for _, cp := range p.Checkpoints {
		if !cp.HasCenter() {
			continue
		}
		markers = append(markers, geo.Marker{
			Point: geo.Point{Lat: *cp.Latitude, Lon: *cp.Longitude},
			Properties: map[string]interface{}{
				"checkpoint_id":   cp.ID.String(),
				"checkpoint_type": string(cp.CheckpointType),
				"checkpoint_name": cp.CheckpointName,
				"radius_meters":   cp.RadiusMeters,
				"status":          string(cp.Status),
			},
		})
	}
	return geo.TrackFeatureCollection(track, map[string]interface{}{
		"profile_id":     profileID.String(),
		"journey_status": string(p.JourneyStatus),
		"fixes":          len(track),
	}, markers)
}

func (c *Controller) VerifyDriver(ctx context.Context, profileID uuid.UUID, a VerificationAttempt) (*VerificationResult, error) {
	unlock := c.locks.Lock(profileID)
	defer unlock()

	res, err := c.verifier.Verify(ctx, profileID, a)
	if errors.Is(err, ErrVerificationFailed) {
		logrus.WithFields(logrus.Fields{
			"profile_id": profileID,
			"method":     a.Method,
		}).Warn("Driver verification failed")
		c.events.emit(ctx, EventDriverVerificationFail, profileID, map[string]interface{}{"method": a.Method})
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	c.events.emit(ctx, EventDriverVerified, profileID, res.Profile)
	if res.CheckpointCompleted {
		c.events.emit(ctx, EventCheckpointCompleted, profileID, res.Checkpoint)
	}
	if res.JourneyAdvanced {
		c.events.emit(ctx, EventJourneyAdvanced, profileID, map[string]interface{}{
			"journey_status": res.Profile.JourneyStatus,
		})
	}
	return res, nil
}

func (c *Controller) RegisterDriverCredential(ctx context.Context, profileID uuid.UUID, in CredentialInput) (*models.DriverCredential, error) {
	unlock := c.locks.Lock(profileID)
	defer unlock()
	if _, err := c.profiles.Get(ctx, profileID); err != nil {
		return nil, err
	}
	return c.credentials.Register(ctx, profileID, in)
}

// Shutdown stops every tracking loop.
func (c *Controller) Shutdown(ctx context.Context) {
	c.ingestor.Shutdown(ctx)
}
