package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const NotificationCheckpointPrompt = "checkpoint_prompt"

type GuestNotification struct {
	ID               uuid.UUID          `json:"id" gorm:"type:uuid;primaryKey"`
	TravelProfileID  uuid.UUID          `json:"travel_profile_id" gorm:"type:uuid;not null;index"`
	CheckpointID     *uuid.UUID         `json:"checkpoint_id" gorm:"type:uuid;index"`
	GuestID          uuid.UUID          `json:"guest_id" gorm:"type:uuid;not null"`
	NotificationType string             `json:"notification_type" gorm:"type:varchar(32)"`
	Title            string             `json:"title"`
	Message          string             `json:"message"`
	Status           NotificationStatus `json:"status" gorm:"type:varchar(16);not null"`
	SentAt           time.Time          `json:"sent_at"`
	ReadAt           *time.Time         `json:"read_at"`
	ResponseReceived bool               `json:"response_received"`
	ResponseData     datatypes.JSONMap  `json:"response_data" gorm:"type:jsonb"`
	ResponseTime     *time.Time         `json:"response_time"`

	// Outcome of the device push; the record above is authoritative either way.
	PushStatus PushStatus `json:"push_status" gorm:"type:varchar(16)"`
	PushError  string     `json:"push_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (n *GuestNotification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Status == "" {
		n.Status = NotificationSent
	}
	return nil
}
