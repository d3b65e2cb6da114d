package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"travel_tracker/internal/models"
)

type notificationRepo struct {
	db *gorm.DB
}

func (r *notificationRepo) Create(ctx context.Context, n *models.GuestNotification) error {
	return translate(r.db.WithContext(ctx).Create(n).Error)
}

func (r *notificationRepo) Get(ctx context.Context, id uuid.UUID) (*models.GuestNotification, error) {
	var n models.GuestNotification
	if err := r.db.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &n, nil
}

func (r *notificationRepo) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]models.GuestNotification, error) {
	var out []models.GuestNotification
	err := r.db.WithContext(ctx).
		Where("travel_profile_id = ?", profileID).
		Order("sent_at ASC, created_at ASC").
		Find(&out).Error
	return out, translate(err)
}

func (r *notificationRepo) Save(ctx context.Context, n *models.GuestNotification) error {
	return translate(r.db.WithContext(ctx).Save(n).Error)
}
