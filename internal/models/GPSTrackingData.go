package models

import (
	"time"

	"github.com/google/uuid"
)

// GPSTrackingData is an append-only position log. The current location of a
// profile is the row with the highest ID.
type GPSTrackingData struct {
	ID              uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	TravelProfileID uuid.UUID `json:"travel_profile_id" gorm:"type:uuid;not null;index"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	Accuracy        float64   `json:"accuracy"`           // GPS accuracy in meters
	Altitude        *float64  `json:"altitude,omitempty"` // meters
	Speed           *float64  `json:"speed,omitempty"`    // m/s
	Heading         *float64  `json:"heading,omitempty"`  // degrees
	Source          string    `json:"source" gorm:"type:varchar(16)"`
	RecordedAt      time.Time `json:"recorded_at"`
	CreatedAt       time.Time `json:"created_at"`
}

func (GPSTrackingData) TableName() string { return "gps_tracking_data" }
