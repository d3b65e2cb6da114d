package travel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"travel_tracker/internal/models"
	"travel_tracker/internal/repo"
)

type IngestorConfig struct {
	// MaxFixAccuracy drops fixes with a worse accuracy radius. 0 disables.
	MaxFixAccuracy float64
	// HousekeepingInterval is the period of the per-profile timer. 0 disables.
	HousekeepingInterval time.Duration
	// StaleAfter is how long without fixes before location_stale fires.
	StaleAfter time.Duration
}

// TrackingStatus describes a profile's tracking loop.
type TrackingStatus struct {
	ProfileID     uuid.UUID  `json:"profile_id"`
	Active        bool       `json:"active"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	StoppedAt     *time.Time `json:"stopped_at,omitempty"`
	LastFixAt     *time.Time `json:"last_fix_at,omitempty"`
	FixesAccepted int        `json:"fixes_accepted"`
	FixesRejected int        `json:"fixes_rejected"`
	LastError     string     `json:"last_error,omitempty"`
}

// RecordResult is the outcome of processing one fix.
type RecordResult struct {
	Location      *models.GPSTrackingData    `json:"location"`
	Approaching   []models.JourneyCheckpoint `json:"approaching"`
	Notifications []models.GuestNotification `json:"notifications"`
}

type tracker struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Ingestor runs one tracking loop per profile over a LocationSource. Fixes of
// a profile are processed in arrival order under the profile lock.
type Ingestor struct {
	source      LocationSource
	locations   repo.LocationRepository
	profiles    *ProfileStore
	checkpoints *CheckpointStore
	dispatcher  *Dispatcher
	locks       *keyedMutex[uuid.UUID]
	events      *emitter
	cfg         IngestorConfig
	clock       Clock
	metrics     Metrics

	// Loops outlive the request that started them.
	base      context.Context
	cancelAll context.CancelFunc

	mu       sync.Mutex
	trackers map[uuid.UUID]*tracker
	status   map[uuid.UUID]*TrackingStatus
}

func newIngestor(
	source LocationSource,
	locations repo.LocationRepository,
	profiles *ProfileStore,
	checkpoints *CheckpointStore,
	dispatcher *Dispatcher,
	locks *keyedMutex[uuid.UUID],
	events *emitter,
	cfg IngestorConfig,
	clock Clock,
	m Metrics,
) *Ingestor {
	base, cancel := context.WithCancel(context.Background())
	return &Ingestor{
		source:      source,
		locations:   locations,
		profiles:    profiles,
		checkpoints: checkpoints,
		dispatcher:  dispatcher,
		locks:       locks,
		events:      events,
		cfg:         cfg,
		clock:       clock,
		metrics:     m,
		base:        base,
		cancelAll:   cancel,
		trackers:    make(map[uuid.UUID]*tracker),
		status:      make(map[uuid.UUID]*TrackingStatus),
	}
}

func (i *Ingestor) isTracking(profileID uuid.UUID) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.trackers[profileID]
	return ok
}

// Start begins tracking. It reports false when the profile was already tracked.
func (i *Ingestor) Start(ctx context.Context, profileID uuid.UUID) (bool, error) {
	if i.source == nil {
		return false, fmt.Errorf("start tracking: no location source configured: %w", ErrPermissionDenied)
	}
	if i.isTracking(profileID) {
		return false, nil
	}
	p, err := i.profiles.Get(ctx, profileID)
	if err != nil {
		return false, err
	}
	if !p.GPSTrackingEnabled {
		return false, fmt.Errorf("start tracking %s: %w", profileID, ErrTrackingDisabled)
	}

	loopCtx, cancel := context.WithCancel(i.base)
	fixes, errs, err := i.source.Subscribe(loopCtx, profileID)
	if err != nil {
		cancel()
		return false, fmt.Errorf("subscribe location source: %w", err)
	}

	i.mu.Lock()
	if _, exists := i.trackers[profileID]; exists {
		i.mu.Unlock()
		cancel()
		return false, nil
	}
	tr := &tracker{cancel: cancel, done: make(chan struct{})}
	i.trackers[profileID] = tr
	now := i.clock.Now()
	st := i.statusLocked(profileID)
	st.Active = true
	st.StartedAt = &now
	st.StoppedAt = nil
	st.LastError = ""
	active := len(i.trackers)
	i.mu.Unlock()

	i.metrics.TrackingActive(active)
	logrus.WithField("profile_id", profileID).Info("Location tracking started")
	i.events.emit(ctx, EventTrackingStarted, profileID, nil)

	go i.run(loopCtx, profileID, tr, fixes, errs)
	return true, nil
}

// Stop cancels the loop and waits for an in-flight fix to finish. It reports
// false when the profile was not tracked.
func (i *Ingestor) Stop(ctx context.Context, profileID uuid.UUID) bool {
	i.mu.Lock()
	tr, ok := i.trackers[profileID]
	if ok {
		delete(i.trackers, profileID)
	}
	i.mu.Unlock()
	if !ok {
		return false
	}

	tr.cancel()
	<-tr.done

	i.mu.Lock()
	now := i.clock.Now()
	st := i.statusLocked(profileID)
	st.Active = false
	st.StoppedAt = &now
	active := len(i.trackers)
	i.mu.Unlock()

	i.metrics.TrackingActive(active)
	logrus.WithField("profile_id", profileID).Info("Location tracking stopped")
	i.events.emit(ctx, EventTrackingStopped, profileID, nil)
	return true
}

// Shutdown stops every loop.
func (i *Ingestor) Shutdown(ctx context.Context) {
	i.mu.Lock()
	ids := make([]uuid.UUID, 0, len(i.trackers))
	for id := range i.trackers {
		ids = append(ids, id)
	}
	i.mu.Unlock()

	for _, id := range ids {
		i.Stop(ctx, id)
	}
	i.cancelAll()
}

func (i *Ingestor) Status(profileID uuid.UUID) TrackingStatus {
	i.mu.Lock()
	defer i.mu.Unlock()
	if st, ok := i.status[profileID]; ok {
		return *st
	}
	return TrackingStatus{ProfileID: profileID}
}

// forget drops status for a deleted profile.
func (i *Ingestor) forget(profileID uuid.UUID) {
	i.mu.Lock()
	delete(i.status, profileID)
	i.mu.Unlock()
}

func (i *Ingestor) statusLocked(profileID uuid.UUID) *TrackingStatus {
	st, ok := i.status[profileID]
	if !ok {
		st = &TrackingStatus{ProfileID: profileID}
		i.status[profileID] = st
	}
	return st
}

func (i *Ingestor) run(ctx context.Context, profileID uuid.UUID, tr *tracker, fixes <-chan Fix, errs <-chan error) {
	defer close(tr.done)

	var tick <-chan time.Time
	if i.cfg.HousekeepingInterval > 0 {
		t := time.NewTicker(i.cfg.HousekeepingInterval)
		defer t.Stop()
		tick = t.C
	}
	staleReported := false
	log := logrus.WithField("profile_id", profileID)

	for {
		select {
		case <-ctx.Done():
			return
		case fix := <-fixes:
			if ctx.Err() != nil {
				return
			}
			// The in-flight fix finishes even if Stop is called meanwhile.
			if _, err := i.Record(context.WithoutCancel(ctx), profileID, fix, models.SourceStream); err != nil {
				log.WithError(err).Warn("Location fix processing failed")
				continue
			}
			staleReported = false
		case err := <-errs:
			if ctx.Err() != nil {
				return
			}
			i.fail(ctx, profileID, tr, err)
			return
		case <-tick:
			if ctx.Err() != nil {
				return
			}
			if !staleReported && i.stale(profileID) {
				staleReported = true
				log.Info("No location fix received recently")
				i.events.emit(ctx, EventLocationStale, profileID, i.Status(profileID))
			}
		}
	}
}

// stale reports whether no fix arrived within StaleAfter of the last fix or start.
func (i *Ingestor) stale(profileID uuid.UUID) bool {
	if i.cfg.StaleAfter <= 0 {
		return false
	}
	st := i.Status(profileID)
	last := st.LastFixAt
	if last == nil {
		last = st.StartedAt
	}
	return last != nil && i.clock.Now().Sub(*last) >= i.cfg.StaleAfter
}

// fail ends tracking for one profile after a location-source error.
func (i *Ingestor) fail(ctx context.Context, profileID uuid.UUID, tr *tracker, err error) {
	if err == nil {
		err = errors.New("location source closed")
	}
	i.mu.Lock()
	if cur, ok := i.trackers[profileID]; ok && cur == tr {
		delete(i.trackers, profileID)
	}
	now := i.clock.Now()
	st := i.statusLocked(profileID)
	st.Active = false
	st.StoppedAt = &now
	st.LastError = err.Error()
	active := len(i.trackers)
	i.mu.Unlock()

	tr.cancel()
	i.metrics.TrackingActive(active)
	logrus.WithField("profile_id", profileID).WithError(err).Error("Location source failed, tracking stopped")
	i.events.emit(context.WithoutCancel(ctx), EventTrackingError, profileID, map[string]interface{}{
		"error":             err.Error(),
		"permission_denied": errors.Is(err, ErrPermissionDenied),
	})
}

// Record runs one fix through the pipeline: append to the log, evaluate
// proximity, prompt the guest for each newly approaching checkpoint.
func (i *Ingestor) Record(ctx context.Context, profileID uuid.UUID, fix Fix, source string) (*RecordResult, error) {
	if err := fix.Validate(i.cfg.MaxFixAccuracy); err != nil {
		i.metrics.FixRejected(source)
		i.countFix(profileID, false)
		return nil, fmt.Errorf("lat=%v lon=%v accuracy=%v: %w", fix.Lat, fix.Lon, fix.Accuracy, err)
	}

	unlock := i.locks.Lock(profileID)
	defer unlock()

	p, err := i.profiles.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}

	recordedAt := fix.Timestamp
	if recordedAt.IsZero() {
		recordedAt = i.clock.Now()
	}
	row := &models.GPSTrackingData{
		TravelProfileID: profileID,
		Latitude:        fix.Lat,
		Longitude:       fix.Lon,
		Accuracy:        fix.Accuracy,
		Altitude:        fix.Altitude,
		Speed:           fix.Speed,
		Heading:         fix.Heading,
		Source:          source,
		RecordedAt:      recordedAt.UTC(),
	}
	if err := i.locations.Append(ctx, row); err != nil {
		return nil, storeErr("record location", err)
	}
	i.metrics.FixIngested(source)
	i.countFix(profileID, true)
	i.events.emit(ctx, EventLocationRecorded, profileID, row)

	res := &RecordResult{Location: row}
	// A partial result still carries checkpoints already saved as approaching.
	approaching, evalErr := i.checkpoints.EvaluateProximity(ctx, profileID, fix.Point())
	errs := []error{evalErr}

	for idx := range approaching {
		cp := &approaching[idx]
		var n *models.GuestNotification
		if p.CheckpointNotificationsEnabled {
			var err error
			if n, err = i.dispatcher.SendCheckpointPrompt(ctx, p, cp); err != nil {
				errs = append(errs, err)
				i.releaseApproach(ctx, cp)
				continue
			}
			res.Notifications = append(res.Notifications, *n)
		} else {
			logrus.WithFields(logrus.Fields{
				"profile_id":    profileID,
				"checkpoint_id": cp.ID,
			}).Info("Checkpoint notifications disabled, prompt skipped")
		}
		res.Approaching = append(res.Approaching, *cp)
		i.metrics.CheckpointApproached(cp.CheckpointType)
		i.events.emit(ctx, EventCheckpointApproaching, profileID, cp)
		if n != nil {
			i.events.emit(ctx, EventNotificationSent, profileID, n)
		}
	}
	return res, errors.Join(errs...)
}

// releaseApproach puts cp back to pending after its prompt could not be
// recorded, so a later fix in the geofence retries it.
func (i *Ingestor) releaseApproach(ctx context.Context, cp *models.JourneyCheckpoint) {
	log := logrus.WithFields(logrus.Fields{
		"profile_id":    cp.TravelProfileID,
		"checkpoint_id": cp.ID,
	})
	if err := i.checkpoints.ResetApproach(context.WithoutCancel(ctx), cp.ID); err != nil {
		log.WithError(err).Error("Failed to reset checkpoint after prompt failure")
		return
	}
	log.Warn("Checkpoint prompt failed, checkpoint reset to pending")
}

func (i *Ingestor) countFix(profileID uuid.UUID, accepted bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	st := i.statusLocked(profileID)
	if !accepted {
		st.FixesRejected++
		return
	}
	now := i.clock.Now()
	st.FixesAccepted++
	st.LastFixAt = &now
}
