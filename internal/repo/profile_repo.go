package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"travel_tracker/internal/models"
)

type profileRepo struct {
	db *gorm.DB
}

func (r *profileRepo) Create(ctx context.Context, p *models.TravelProfile) error {
	return translate(r.db.WithContext(ctx).Omit("Checkpoints").Create(p).Error)
}

func (r *profileRepo) Get(ctx context.Context, id uuid.UUID) (*models.TravelProfile, error) {
	var p models.TravelProfile
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *profileRepo) GetByGuestEvent(ctx context.Context, guestID, eventID uuid.UUID) (*models.TravelProfile, error) {
	var p models.TravelProfile
	err := r.db.WithContext(ctx).
		Where("guest_id = ? AND event_id = ?", guestID, eventID).
		First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *profileRepo) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.TravelProfile, error) {
	var out []models.TravelProfile
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Find(&out).Error
	return out, translate(err)
}

func (r *profileRepo) Save(ctx context.Context, p *models.TravelProfile) error {
	return translate(r.db.WithContext(ctx).Omit("Checkpoints").Save(p).Error)
}

func (r *profileRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		children := []interface{}{
			&models.GuestNotification{},
			&models.GPSTrackingData{},
			&models.DriverCredential{},
			&models.JourneyCheckpoint{},
		}
		for _, m := range children {
			if err := tx.Where("travel_profile_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&models.TravelProfile{}, "id = ?", id)
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
