package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"travel_tracker/internal/models"
)

type checkpointRepo struct {
	db *gorm.DB
}

func (r *checkpointRepo) CreateBatch(ctx context.Context, cps []models.JourneyCheckpoint) error {
	if len(cps) == 0 {
		return nil
	}
	return translate(r.db.WithContext(ctx).Create(&cps).Error)
}

func (r *checkpointRepo) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]models.JourneyCheckpoint, error) {
	var out []models.JourneyCheckpoint
	err := r.db.WithContext(ctx).
		Where("travel_profile_id = ?", profileID).
		Order("sequence ASC").
		Find(&out).Error
	return out, translate(err)
}

func (r *checkpointRepo) Get(ctx context.Context, id uuid.UUID) (*models.JourneyCheckpoint, error) {
	var cp models.JourneyCheckpoint
	if err := r.db.WithContext(ctx).First(&cp, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &cp, nil
}

func (r *checkpointRepo) Save(ctx context.Context, cp *models.JourneyCheckpoint) error {
	return translate(r.db.WithContext(ctx).Save(cp).Error)
}
