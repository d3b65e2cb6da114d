package travel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"travel_tracker/internal/models"
	"travel_tracker/internal/repo"
)

// ProfileUpdate is a partial edit. Nil fields are left untouched; JourneyStatus
// only changes when supplied explicitly.
type ProfileUpdate struct {
	FlightNumber     *string    `json:"flight_number"`
	FlightDate       *time.Time `json:"flight_date"`
	FlightStatus     *string    `json:"flight_status"`
	DepartureAirport *string    `json:"departure_airport"`
	ArrivalAirport   *string    `json:"arrival_airport"`
	DepartureTime    *time.Time `json:"departure_time"`
	ArrivalTime      *time.Time `json:"arrival_time"`

	HotelName              *string    `json:"hotel_name"`
	HotelAddress           *string    `json:"hotel_address"`
	HotelReservationNumber *string    `json:"hotel_reservation_number"`
	HotelCheckIn           *time.Time `json:"hotel_check_in"`
	HotelCheckOut          *time.Time `json:"hotel_check_out"`

	JourneyStatus                  *models.JourneyStatus `json:"journey_status"`
	GPSTrackingEnabled             *bool                 `json:"gps_tracking_enabled"`
	CheckpointNotificationsEnabled *bool                 `json:"checkpoint_notifications_enabled"`

	// Set by driver verification only.
	DriverVerified           *bool                      `json:"-"`
	DriverVerificationTime   *time.Time                 `json:"-"`
	DriverVerificationMethod *models.VerificationMethod `json:"-"`
	DriverVerificationLat    *float64                   `json:"-"`
	DriverVerificationLon    *float64                   `json:"-"`
}

func (u ProfileUpdate) apply(p *models.TravelProfile) error {
	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setTime := func(dst **time.Time, src *time.Time) {
		if src != nil {
			v := *src
			*dst = &v
		}
	}

	if u.JourneyStatus != nil && !u.JourneyStatus.Valid() {
		return invalidf("unknown journey_status %q", *u.JourneyStatus)
	}

	setStr(&p.FlightNumber, u.FlightNumber)
	setTime(&p.FlightDate, u.FlightDate)
	setStr(&p.FlightStatus, u.FlightStatus)
	setStr(&p.DepartureAirport, u.DepartureAirport)
	setStr(&p.ArrivalAirport, u.ArrivalAirport)
	setTime(&p.DepartureTime, u.DepartureTime)
	setTime(&p.ArrivalTime, u.ArrivalTime)
	setStr(&p.HotelName, u.HotelName)
	setStr(&p.HotelAddress, u.HotelAddress)
	setStr(&p.HotelReservationNumber, u.HotelReservationNumber)
	setTime(&p.HotelCheckIn, u.HotelCheckIn)
	setTime(&p.HotelCheckOut, u.HotelCheckOut)

	if u.JourneyStatus != nil {
		p.JourneyStatus = *u.JourneyStatus
	}
	if u.GPSTrackingEnabled != nil {
		p.GPSTrackingEnabled = *u.GPSTrackingEnabled
	}
	if u.CheckpointNotificationsEnabled != nil {
		p.CheckpointNotificationsEnabled = *u.CheckpointNotificationsEnabled
	}
	if u.DriverVerified != nil {
		p.DriverVerified = *u.DriverVerified
	}
	setTime(&p.DriverVerificationTime, u.DriverVerificationTime)
	if u.DriverVerificationMethod != nil {
		p.DriverVerificationMethod = *u.DriverVerificationMethod
	}
	if u.DriverVerificationLat != nil {
		v := *u.DriverVerificationLat
		p.DriverVerificationLat = &v
	}
	if u.DriverVerificationLon != nil {
		v := *u.DriverVerificationLon
		p.DriverVerificationLon = &v
	}
	return nil
}

// ProfileStore owns travel profiles and the journey state machine.
type ProfileStore struct {
	profiles repo.ProfileRepository
}

func NewProfileStore(profiles repo.ProfileRepository) *ProfileStore {
	return &ProfileStore{profiles: profiles}
}

// Create fails with ErrDuplicateProfile when the guest already has a profile for the event.
func (s *ProfileStore) Create(ctx context.Context, p *models.TravelProfile) error {
	if p.GuestID == uuid.Nil || p.EventID == uuid.Nil {
		return invalidf("guest_id and event_id are required")
	}
	if p.JourneyStatus == "" {
		p.JourneyStatus = models.JourneyNotStarted
	}
	if !p.JourneyStatus.Valid() {
		return invalidf("unknown journey_status %q", p.JourneyStatus)
	}

	_, err := s.profiles.GetByGuestEvent(ctx, p.GuestID, p.EventID)
	switch {
	case err == nil:
		return fmt.Errorf("create profile: %w", ErrDuplicateProfile)
	case !errors.Is(err, repo.ErrNotFound):
		return storeErr("create profile", err)
	}
	return storeErr("create profile", s.profiles.Create(ctx, p))
}

func (s *ProfileStore) Get(ctx context.Context, id uuid.UUID) (*models.TravelProfile, error) {
	p, err := s.profiles.Get(ctx, id)
	if err != nil {
		return nil, storeErr("get profile", err)
	}
	return p, nil
}

func (s *ProfileStore) FindByGuestEvent(ctx context.Context, guestID, eventID uuid.UUID) (*models.TravelProfile, error) {
	p, err := s.profiles.GetByGuestEvent(ctx, guestID, eventID)
	if err != nil {
		return nil, storeErr("find profile", err)
	}
	return p, nil
}

func (s *ProfileStore) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.TravelProfile, error) {
	list, err := s.profiles.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, storeErr("list profiles", err)
	}
	return list, nil
}

// Advance moves the journey to the status mapped from ct if it is strictly
// later than the current one. It reports whether the profile changed.
func (s *ProfileStore) Advance(ctx context.Context, p *models.TravelProfile, ct models.CheckpointType) (bool, error) {
	target, ok := ct.JourneyStatus()
	if !ok {
		return false, invalidf("unknown checkpoint_type %q", ct)
	}
	if target.Rank() <= p.JourneyStatus.Rank() {
		return false, nil
	}
	prev := p.JourneyStatus
	p.JourneyStatus = target
	if err := s.profiles.Save(ctx, p); err != nil {
		p.JourneyStatus = prev
		return false, storeErr("advance journey", err)
	}
	return true, nil
}

func (s *ProfileStore) Update(ctx context.Context, id uuid.UUID, u ProfileUpdate) (*models.TravelProfile, error) {
	p, err := s.profiles.Get(ctx, id)
	if err != nil {
		return nil, storeErr("update profile", err)
	}
	if err := u.apply(p); err != nil {
		return nil, err
	}
	if err := s.profiles.Save(ctx, p); err != nil {
		return nil, storeErr("update profile", err)
	}
	return p, nil
}

func (s *ProfileStore) Delete(ctx context.Context, id uuid.UUID) error {
	return storeErr("delete profile", s.profiles.Delete(ctx, id))
}
