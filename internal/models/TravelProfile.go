package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TravelProfile is one guest's journey to one event.
type TravelProfile struct {
	ID      uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	GuestID uuid.UUID `json:"guest_id" gorm:"type:uuid;not null;uniqueIndex:idx_profile_guest_event"`
	EventID uuid.UUID `json:"event_id" gorm:"type:uuid;not null;uniqueIndex:idx_profile_guest_event;index"`

	FlightNumber     string     `json:"flight_number"`
	FlightDate       *time.Time `json:"flight_date"`
	FlightStatus     string     `json:"flight_status"` // scheduled, active, landed, cancelled...
	DepartureAirport string     `json:"departure_airport"`
	ArrivalAirport   string     `json:"arrival_airport"`
	DepartureTime    *time.Time `json:"departure_time"`
	ArrivalTime      *time.Time `json:"arrival_time"`

	HotelName              string     `json:"hotel_name"`
	HotelAddress           string     `json:"hotel_address"`
	HotelReservationNumber string     `json:"hotel_reservation_number"`
	HotelCheckIn           *time.Time `json:"hotel_check_in"`
	HotelCheckOut          *time.Time `json:"hotel_check_out"`

	JourneyStatus                  JourneyStatus `json:"journey_status" gorm:"type:varchar(32);not null"`
	GPSTrackingEnabled             bool          `json:"gps_tracking_enabled"`
	CheckpointNotificationsEnabled bool          `json:"checkpoint_notifications_enabled"`

	DriverVerified           bool               `json:"driver_verified"`
	DriverVerificationTime   *time.Time         `json:"driver_verification_time"`
	DriverVerificationMethod VerificationMethod `json:"driver_verification_method,omitempty" gorm:"type:varchar(32)"`
	DriverVerificationLat    *float64           `json:"driver_verification_lat,omitempty"`
	DriverVerificationLon    *float64           `json:"driver_verification_lon,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Checkpoints []JourneyCheckpoint `json:"checkpoints,omitempty" gorm:"foreignKey:TravelProfileID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (p *TravelProfile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.JourneyStatus == "" {
		p.JourneyStatus = JourneyNotStarted
	}
	return nil
}
