// Package repo persists travel entities. Every repository has a gorm
// implementation for PostgreSQL and an in-memory twin with the same semantics.
package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"travel_tracker/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

type ProfileRepository interface {
	Create(ctx context.Context, p *models.TravelProfile) error
	Get(ctx context.Context, id uuid.UUID) (*models.TravelProfile, error)
	GetByGuestEvent(ctx context.Context, guestID, eventID uuid.UUID) (*models.TravelProfile, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.TravelProfile, error)
	Save(ctx context.Context, p *models.TravelProfile) error
	// Delete removes the profile and everything that belongs to it.
	Delete(ctx context.Context, id uuid.UUID) error
}

type CheckpointRepository interface {
	CreateBatch(ctx context.Context, cps []models.JourneyCheckpoint) error
	// ListByProfile returns checkpoints in stage order.
	ListByProfile(ctx context.Context, profileID uuid.UUID) ([]models.JourneyCheckpoint, error)
	Get(ctx context.Context, id uuid.UUID) (*models.JourneyCheckpoint, error)
	Save(ctx context.Context, cp *models.JourneyCheckpoint) error
}

type LocationRepository interface {
	Append(ctx context.Context, row *models.GPSTrackingData) error
	// Latest returns the most recently inserted row for the profile.
	Latest(ctx context.Context, profileID uuid.UUID) (*models.GPSTrackingData, error)
	// List returns up to limit of the newest rows, oldest first. limit <= 0 means all.
	List(ctx context.Context, profileID uuid.UUID, limit int) ([]models.GPSTrackingData, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *models.GuestNotification) error
	Get(ctx context.Context, id uuid.UUID) (*models.GuestNotification, error)
	ListByProfile(ctx context.Context, profileID uuid.UUID) ([]models.GuestNotification, error)
	Save(ctx context.Context, n *models.GuestNotification) error
}

type CredentialRepository interface {
	// Upsert stores the credential, replacing any existing one for the profile.
	Upsert(ctx context.Context, c *models.DriverCredential) error
	GetByProfile(ctx context.Context, profileID uuid.UUID) (*models.DriverCredential, error)
}

// Repos bundles every repository behind one store.
type Repos struct {
	Profiles      ProfileRepository
	Checkpoints   CheckpointRepository
	Locations     LocationRepository
	Notifications NotificationRepository
	Credentials   CredentialRepository
}

// NewGormRepos wires all repositories to db.
func NewGormRepos(db *gorm.DB) *Repos {
	return &Repos{
		Profiles:      &profileRepo{db: db},
		Checkpoints:   &checkpointRepo{db: db},
		Locations:     &locationRepo{db: db},
		Notifications: &notificationRepo{db: db},
		Credentials:   &credentialRepo{db: db},
	}
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}
