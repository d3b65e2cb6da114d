package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"travel_tracker/internal/models"
)

type locationRepo struct {
	db *gorm.DB
}

func (r *locationRepo) Append(ctx context.Context, row *models.GPSTrackingData) error {
	return translate(r.db.WithContext(ctx).Create(row).Error)
}

func (r *locationRepo) Latest(ctx context.Context, profileID uuid.UUID) (*models.GPSTrackingData, error) {
	var row models.GPSTrackingData
	err := r.db.WithContext(ctx).
		Where("travel_profile_id = ?", profileID).
		Order("id DESC").
		First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return &row, nil
}

func (r *locationRepo) List(ctx context.Context, profileID uuid.UUID, limit int) ([]models.GPSTrackingData, error) {
	var rows []models.GPSTrackingData
	q := r.db.WithContext(ctx).
		Where("travel_profile_id = ?", profileID).
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}
