package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"travel_tracker/internal/models"
)

// NewMemoryRepos returns repositories backed by one in-process store. Values
// are copied on the way in and out so callers never share state with the store.
func NewMemoryRepos() *Repos {
	s := &memStore{
		profiles:      make(map[uuid.UUID]models.TravelProfile),
		checkpoints:   make(map[uuid.UUID]models.JourneyCheckpoint),
		locations:     make(map[uuid.UUID][]models.GPSTrackingData),
		notifications: make(map[uuid.UUID]memNotification),
		credentials:   make(map[uuid.UUID]models.DriverCredential),
	}
	return &Repos{
		Profiles:      (*memProfiles)(s),
		Checkpoints:   (*memCheckpoints)(s),
		Locations:     (*memLocations)(s),
		Notifications: (*memNotifications)(s),
		Credentials:   (*memCredentials)(s),
	}
}

type memNotification struct {
	n   models.GuestNotification
	seq uint64
}

type memStore struct {
	mu            sync.RWMutex
	profiles      map[uuid.UUID]models.TravelProfile
	checkpoints   map[uuid.UUID]models.JourneyCheckpoint
	locations     map[uuid.UUID][]models.GPSTrackingData // by profile, insertion order
	notifications map[uuid.UUID]memNotification
	credentials   map[uuid.UUID]models.DriverCredential // by profile
	nextLocID     uint
	nextSeq       uint64
}

func stamp(created, updated *time.Time) {
	now := time.Now()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

type memProfiles memStore

func (s *memProfiles) Create(_ context.Context, p *models.TravelProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.JourneyStatus == "" {
		p.JourneyStatus = models.JourneyNotStarted
	}
	if _, ok := s.profiles[p.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range s.profiles {
		if existing.GuestID == p.GuestID && existing.EventID == p.EventID {
			return ErrDuplicate
		}
	}
	stamp(&p.CreatedAt, &p.UpdatedAt)
	s.profiles[p.ID] = copyProfile(*p)
	return nil
}

func (s *memProfiles) Get(_ context.Context, id uuid.UUID) (*models.TravelProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyProfile(p)
	return &out, nil
}

func (s *memProfiles) GetByGuestEvent(_ context.Context, guestID, eventID uuid.UUID) (*models.TravelProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if p.GuestID == guestID && p.EventID == eventID {
			out := copyProfile(p)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memProfiles) ListByEvent(_ context.Context, eventID uuid.UUID) ([]models.TravelProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.TravelProfile
	for _, p := range s.profiles {
		if p.EventID == eventID {
			out = append(out, copyProfile(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memProfiles) Save(_ context.Context, p *models.TravelProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.ID]; !ok {
		return ErrNotFound
	}
	for id, existing := range s.profiles {
		if id != p.ID && existing.GuestID == p.GuestID && existing.EventID == p.EventID {
			return ErrDuplicate
		}
	}
	stamp(&p.CreatedAt, &p.UpdatedAt)
	s.profiles[p.ID] = copyProfile(*p)
	return nil
}

func (s *memProfiles) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[id]; !ok {
		return ErrNotFound
	}
	delete(s.profiles, id)
	for cid, cp := range s.checkpoints {
		if cp.TravelProfileID == id {
			delete(s.checkpoints, cid)
		}
	}
	for nid, n := range s.notifications {
		if n.n.TravelProfileID == id {
			delete(s.notifications, nid)
		}
	}
	delete(s.locations, id)
	delete(s.credentials, id)
	return nil
}

type memCheckpoints memStore

func (s *memCheckpoints) CreateBatch(_ context.Context, cps []models.JourneyCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[models.CheckpointType]bool)
	for i := range cps {
		cp := &cps[i]
		if seen[cp.CheckpointType] {
			return ErrDuplicate
		}
		seen[cp.CheckpointType] = true
		for _, existing := range s.checkpoints {
			if existing.TravelProfileID == cp.TravelProfileID && existing.CheckpointType == cp.CheckpointType {
				return ErrDuplicate
			}
		}
	}
	for i := range cps {
		cp := &cps[i]
		if cp.ID == uuid.Nil {
			cp.ID = uuid.New()
		}
		if cp.Status == "" {
			cp.Status = models.CheckpointPending
		}
		stamp(&cp.CreatedAt, &cp.UpdatedAt)
		s.checkpoints[cp.ID] = copyCheckpoint(*cp)
	}
	return nil
}

func (s *memCheckpoints) ListByProfile(_ context.Context, profileID uuid.UUID) ([]models.JourneyCheckpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.JourneyCheckpoint
	for _, cp := range s.checkpoints {
		if cp.TravelProfileID == profileID {
			out = append(out, copyCheckpoint(cp))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (s *memCheckpoints) Get(_ context.Context, id uuid.UUID) (*models.JourneyCheckpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyCheckpoint(cp)
	return &out, nil
}

func (s *memCheckpoints) Save(_ context.Context, cp *models.JourneyCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.checkpoints[cp.ID]; !ok {
		return ErrNotFound
	}
	stamp(&cp.CreatedAt, &cp.UpdatedAt)
	s.checkpoints[cp.ID] = copyCheckpoint(*cp)
	return nil
}

type memLocations memStore

func (s *memLocations) Append(_ context.Context, row *models.GPSTrackingData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextLocID++
	row.ID = s.nextLocID
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	s.locations[row.TravelProfileID] = append(s.locations[row.TravelProfileID], copyLocation(*row))
	return nil
}

func (s *memLocations) Latest(_ context.Context, profileID uuid.UUID) (*models.GPSTrackingData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.locations[profileID]
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	out := copyLocation(rows[len(rows)-1])
	return &out, nil
}

func (s *memLocations) List(_ context.Context, profileID uuid.UUID, limit int) ([]models.GPSTrackingData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.locations[profileID]
	if limit > 0 && len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	out := make([]models.GPSTrackingData, 0, len(rows))
	for _, r := range rows {
		out = append(out, copyLocation(r))
	}
	return out, nil
}

type memNotifications memStore

func (s *memNotifications) Create(_ context.Context, n *models.GuestNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if _, ok := s.notifications[n.ID]; ok {
		return ErrDuplicate
	}
	if n.Status == "" {
		n.Status = models.NotificationSent
	}
	stamp(&n.CreatedAt, &n.UpdatedAt)
	s.nextSeq++
	s.notifications[n.ID] = memNotification{n: copyNotification(*n), seq: s.nextSeq}
	return nil
}

func (s *memNotifications) Get(_ context.Context, id uuid.UUID) (*models.GuestNotification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyNotification(e.n)
	return &out, nil
}

func (s *memNotifications) ListByProfile(_ context.Context, profileID uuid.UUID) ([]models.GuestNotification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []memNotification
	for _, e := range s.notifications {
		if e.n.TravelProfileID == profileID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]models.GuestNotification, 0, len(entries))
	for _, e := range entries {
		out = append(out, copyNotification(e.n))
	}
	return out, nil
}

func (s *memNotifications) Save(_ context.Context, n *models.GuestNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.notifications[n.ID]
	if !ok {
		return ErrNotFound
	}
	stamp(&n.CreatedAt, &n.UpdatedAt)
	e.n = copyNotification(*n)
	s.notifications[n.ID] = e
	return nil
}

type memCredentials memStore

func (s *memCredentials) Upsert(_ context.Context, c *models.DriverCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.credentials[c.TravelProfileID]; ok {
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
	} else if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	stamp(&c.CreatedAt, &c.UpdatedAt)
	s.credentials[c.TravelProfileID] = *c
	return nil
}

func (s *memCredentials) GetByProfile(_ context.Context, profileID uuid.UUID) (*models.DriverCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[profileID]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

// Copies below detach pointer fields so stored values cannot be mutated by callers.

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func copyProfile(p models.TravelProfile) models.TravelProfile {
	p.FlightDate = copyTime(p.FlightDate)
	p.DepartureTime = copyTime(p.DepartureTime)
	p.ArrivalTime = copyTime(p.ArrivalTime)
	p.HotelCheckIn = copyTime(p.HotelCheckIn)
	p.HotelCheckOut = copyTime(p.HotelCheckOut)
	p.DriverVerificationTime = copyTime(p.DriverVerificationTime)
	p.DriverVerificationLat = copyFloat(p.DriverVerificationLat)
	p.DriverVerificationLon = copyFloat(p.DriverVerificationLon)
	p.Checkpoints = nil
	return p
}

func copyCheckpoint(c models.JourneyCheckpoint) models.JourneyCheckpoint {
	c.Latitude = copyFloat(c.Latitude)
	c.Longitude = copyFloat(c.Longitude)
	c.ApproachedAt = copyTime(c.ApproachedAt)
	c.CompletedAt = copyTime(c.CompletedAt)
	return c
}

func copyLocation(l models.GPSTrackingData) models.GPSTrackingData {
	l.Altitude = copyFloat(l.Altitude)
	l.Speed = copyFloat(l.Speed)
	l.Heading = copyFloat(l.Heading)
	return l
}

func copyNotification(n models.GuestNotification) models.GuestNotification {
	if n.CheckpointID != nil {
		id := *n.CheckpointID
		n.CheckpointID = &id
	}
	n.ReadAt = copyTime(n.ReadAt)
	n.ResponseTime = copyTime(n.ResponseTime)
	if n.ResponseData != nil {
		data := make(datatypes.JSONMap, len(n.ResponseData))
		for k, v := range n.ResponseData {
			data[k] = v
		}
		n.ResponseData = data
	}
	return n
}
