package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DriverCredential is the expected driver identity for a profile.
type DriverCredential struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	TravelProfileID uuid.UUID `json:"travel_profile_id" gorm:"type:uuid;not null;uniqueIndex"`
	DriverName      string    `json:"driver_name"`
	DriverPhone     string    `json:"driver_phone"`
	VehiclePlate    string    `json:"vehicle_plate"`
	CodeHash        string    `json:"-" gorm:"not null"` // bcrypt of the trimmed code, for scanned codes
	ManualCodeHash  string    `json:"-" gorm:"not null"` // bcrypt of the canonical typed form
	PhotoURL        string    `json:"photo_url"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (d *DriverCredential) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// All returns every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&TravelProfile{},
		&JourneyCheckpoint{},
		&GPSTrackingData{},
		&GuestNotification{},
		&DriverCredential{},
	}
}
