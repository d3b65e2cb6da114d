package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type JourneyCheckpoint struct {
	ID              uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	TravelProfileID uuid.UUID      `json:"travel_profile_id" gorm:"type:uuid;not null;uniqueIndex:idx_checkpoint_profile_type"`
	CheckpointType  CheckpointType `json:"checkpoint_type" gorm:"type:varchar(32);not null;uniqueIndex:idx_checkpoint_profile_type"`
	CheckpointName  string         `json:"checkpoint_name"`
	Sequence        int            `json:"sequence"`

	// Geofence. A checkpoint without a center never matches proximity.
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	RadiusMeters float64  `json:"radius_meters"`

	Status           CheckpointStatus `json:"status" gorm:"type:varchar(16);not null"`
	CompletionMethod CompletionMethod `json:"completion_method,omitempty" gorm:"type:varchar(32)"`
	ApproachedAt     *time.Time       `json:"approached_at"`
	CompletedAt      *time.Time       `json:"completed_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *JourneyCheckpoint) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CheckpointPending
	}
	return nil
}

// HasCenter reports whether the geofence center is set.
func (c *JourneyCheckpoint) HasCenter() bool {
	return c.Latitude != nil && c.Longitude != nil
}
