package travel

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"travel_tracker/internal/geo"
	"travel_tracker/internal/models"
	"travel_tracker/internal/repo"
)

// CheckpointSpec requests one checkpoint at profile creation. Empty Name and
// nil RadiusMeters fall back to the stage template.
type CheckpointSpec struct {
	Type         models.CheckpointType `json:"checkpoint_type" binding:"required,checkpoint_type"`
	Name         string                `json:"checkpoint_name"`
	Latitude     *float64              `json:"latitude"`
	Longitude    *float64              `json:"longitude"`
	RadiusMeters *float64              `json:"radius_meters"`
}

// CheckpointUpdate edits metadata only; status is never touched.
type CheckpointUpdate struct {
	Name         *string  `json:"checkpoint_name"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	RadiusMeters *float64 `json:"radius_meters"`
}

// CheckpointStore owns the ordered checkpoint set of each profile.
type CheckpointStore struct {
	checkpoints repo.CheckpointRepository
	templates   Templates
	clock       Clock
}

func NewCheckpointStore(checkpoints repo.CheckpointRepository, templates Templates, clock Clock) *CheckpointStore {
	if templates == nil {
		templates = DefaultTemplates()
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &CheckpointStore{checkpoints: checkpoints, templates: templates, clock: clock}
}

func validateGeofence(lat, lon, radius *float64) error {
	if (lat == nil) != (lon == nil) {
		return invalidf("latitude and longitude must be set together")
	}
	if lat != nil && !(geo.Point{Lat: *lat, Lon: *lon}).Valid() {
		return invalidf("geofence center out of range")
	}
	if radius != nil && !(*radius >= 0) {
		return invalidf("radius_meters must be >= 0")
	}
	return nil
}

// CreateForProfile creates one checkpoint per spec, or one per template stage
// when specs is empty.
func (s *CheckpointStore) CreateForProfile(ctx context.Context, profileID uuid.UUID, specs []CheckpointSpec) ([]models.JourneyCheckpoint, error) {
	if len(specs) == 0 {
		for _, ct := range models.CheckpointTypes {
			if _, ok := s.templates[ct]; ok {
				specs = append(specs, CheckpointSpec{Type: ct})
			}
		}
	}

	seen := make(map[models.CheckpointType]bool, len(specs))
	cps := make([]models.JourneyCheckpoint, 0, len(specs))
	for _, spec := range specs {
		if !spec.Type.Valid() {
			return nil, invalidf("unknown checkpoint_type %q", spec.Type)
		}
		if seen[spec.Type] {
			return nil, invalidf("duplicate checkpoint_type %q", spec.Type)
		}
		seen[spec.Type] = true
		if err := validateGeofence(spec.Latitude, spec.Longitude, spec.RadiusMeters); err != nil {
			return nil, err
		}

		tpl := s.templates.get(spec.Type)
		cp := models.JourneyCheckpoint{
			ID:              uuid.New(),
			TravelProfileID: profileID,
			CheckpointType:  spec.Type,
			CheckpointName:  spec.Name,
			Sequence:        spec.Type.Sequence(),
			Latitude:        spec.Latitude,
			Longitude:       spec.Longitude,
			RadiusMeters:    tpl.RadiusMeters,
			Status:          models.CheckpointPending,
		}
		if cp.CheckpointName == "" {
			cp.CheckpointName = tpl.Name
		}
		if spec.RadiusMeters != nil {
			cp.RadiusMeters = *spec.RadiusMeters
		}
		cps = append(cps, cp)
	}

	if err := s.checkpoints.CreateBatch(ctx, cps); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, invalidf("profile already has checkpoints of these types")
		}
		return nil, storeErr("create checkpoints", err)
	}
	return s.List(ctx, profileID)
}

func (s *CheckpointStore) List(ctx context.Context, profileID uuid.UUID) ([]models.JourneyCheckpoint, error) {
	list, err := s.checkpoints.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, storeErr("list checkpoints", err)
	}
	return list, nil
}

func (s *CheckpointStore) Get(ctx context.Context, id uuid.UUID) (*models.JourneyCheckpoint, error) {
	cp, err := s.checkpoints.Get(ctx, id)
	if err != nil {
		return nil, storeErr("get checkpoint", err)
	}
	return cp, nil
}

func (s *CheckpointStore) FindByType(ctx context.Context, profileID uuid.UUID, ct models.CheckpointType) (*models.JourneyCheckpoint, error) {
	list, err := s.List(ctx, profileID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].CheckpointType == ct {
			return &list[i], nil
		}
	}
	return nil, fmt.Errorf("find checkpoint %s: %w", ct, ErrNotFound)
}

// EvaluateProximity moves every pending checkpoint whose geofence contains p
// to approaching and returns those checkpoints. Checkpoints that are already
// approaching or completed are skipped, so each fires at most once.
func (s *CheckpointStore) EvaluateProximity(ctx context.Context, profileID uuid.UUID, p geo.Point) ([]models.JourneyCheckpoint, error) {
	list, err := s.List(ctx, profileID)
	if err != nil {
		return nil, err
	}
	var approaching []models.JourneyCheckpoint
	for i := range list {
		cp := &list[i]
		if cp.Status != models.CheckpointPending || !cp.HasCenter() {
			continue
		}
		fence := geo.Geofence{
			Center:       geo.Point{Lat: *cp.Latitude, Lon: *cp.Longitude},
			RadiusMeters: cp.RadiusMeters,
		}
		if !fence.Contains(p) {
			continue
		}
		now := s.clock.Now()
		cp.Status = models.CheckpointApproaching
		cp.ApproachedAt = &now
		if err := s.checkpoints.Save(ctx, cp); err != nil {
			return approaching, storeErr("mark checkpoint approaching", err)
		}
		approaching = append(approaching, *cp)
	}
	return approaching, nil
}

// ResetApproach returns an approaching checkpoint to pending so the next fix
// inside its geofence fires it again. Other statuses are left alone.
func (s *CheckpointStore) ResetApproach(ctx context.Context, id uuid.UUID) error {
	cp, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if cp.Status != models.CheckpointApproaching {
		return nil
	}
	cp.Status = models.CheckpointPending
	cp.ApproachedAt = nil
	return storeErr("reset checkpoint approach", s.checkpoints.Save(ctx, cp))
}

// Complete marks the checkpoint completed. It fails with ErrInvalidTransition
// when the checkpoint is already completed; the returned checkpoint is the
// unchanged one in that case.
func (s *CheckpointStore) Complete(ctx context.Context, id uuid.UUID, method models.CompletionMethod) (*models.JourneyCheckpoint, error) {
	if !method.Valid() {
		return nil, invalidf("unknown completion_method %q", method)
	}
	cp, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cp.Status == models.CheckpointCompleted {
		return cp, fmt.Errorf("complete checkpoint %s: %w", cp.ID, ErrInvalidTransition)
	}
	now := s.clock.Now()
	cp.Status = models.CheckpointCompleted
	cp.CompletionMethod = method
	cp.CompletedAt = &now
	if err := s.checkpoints.Save(ctx, cp); err != nil {
		return nil, storeErr("complete checkpoint", err)
	}
	return cp, nil
}

func (s *CheckpointStore) Update(ctx context.Context, id uuid.UUID, u CheckpointUpdate) (*models.JourneyCheckpoint, error) {
	cp, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	lat, lon := cp.Latitude, cp.Longitude
	if u.Latitude != nil {
		lat = u.Latitude
	}
	if u.Longitude != nil {
		lon = u.Longitude
	}
	if err := validateGeofence(lat, lon, u.RadiusMeters); err != nil {
		return nil, err
	}
	if u.Name != nil {
		if *u.Name == "" {
			return nil, invalidf("checkpoint_name must not be empty")
		}
		cp.CheckpointName = *u.Name
	}
	cp.Latitude, cp.Longitude = lat, lon
	if u.RadiusMeters != nil {
		cp.RadiusMeters = *u.RadiusMeters
	}
	if err := s.checkpoints.Save(ctx, cp); err != nil {
		return nil, storeErr("update checkpoint", err)
	}
	return cp, nil
}
