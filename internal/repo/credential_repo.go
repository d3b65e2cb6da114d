package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"travel_tracker/internal/models"
)

type credentialRepo struct {
	db *gorm.DB
}

func (r *credentialRepo) Upsert(ctx context.Context, c *models.DriverCredential) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "travel_profile_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"driver_name", "driver_phone", "vehicle_plate", "code_hash", "manual_code_hash", "photo_url", "updated_at",
		}),
	}).Create(c).Error
	if err != nil {
		return translate(err)
	}
	// On conflict the stored row keeps its original id.
	return translate(r.db.WithContext(ctx).First(c, "travel_profile_id = ?", c.TravelProfileID).Error)
}

func (r *credentialRepo) GetByProfile(ctx context.Context, profileID uuid.UUID) (*models.DriverCredential, error) {
	var c models.DriverCredential
	if err := r.db.WithContext(ctx).First(&c, "travel_profile_id = ?", profileID).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}
