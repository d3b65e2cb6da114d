package travel

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"travel_tracker/internal/models"
	"travel_tracker/internal/repo"
)

// Dispatcher records guest notifications and pushes them to the device.
// The record is the source of truth; the push is only a delivery hint.
type Dispatcher struct {
	notifications repo.NotificationRepository
	push          PushTransport
	templates     Templates
	pushTimeout   time.Duration
	clock         Clock
	metrics       Metrics
}

func NewDispatcher(notifications repo.NotificationRepository, push PushTransport, templates Templates, pushTimeout time.Duration, clock Clock, m Metrics) *Dispatcher {
	if templates == nil {
		templates = DefaultTemplates()
	}
	if clock == nil {
		clock = systemClock{}
	}
	if m == nil {
		m = nopMetrics{}
	}
	return &Dispatcher{
		notifications: notifications,
		push:          push,
		templates:     templates,
		pushTimeout:   pushTimeout,
		clock:         clock,
		metrics:       m,
	}
}

// SendCheckpointPrompt creates a sent notification for cp and attempts a
// bounded push. Push failure only sets PushStatus to failed.
func (d *Dispatcher) SendCheckpointPrompt(ctx context.Context, p *models.TravelProfile, cp *models.JourneyCheckpoint) (*models.GuestNotification, error) {
	title, message := d.templates.prompt(p, cp)
	cpID := cp.ID
	n := &models.GuestNotification{
		ID:               uuid.New(),
		TravelProfileID:  p.ID,
		CheckpointID:     &cpID,
		GuestID:          p.GuestID,
		NotificationType: models.NotificationCheckpointPrompt,
		Title:            title,
		Message:          message,
		Status:           models.NotificationSent,
		SentAt:           d.clock.Now(),
	}
	if err := d.notifications.Create(ctx, n); err != nil {
		return nil, storeErr("create notification", err)
	}

	n.PushStatus, n.PushError = d.deliver(ctx, n)
	if err := d.notifications.Save(ctx, n); err != nil {
		// The notification exists; only the push outcome was lost.
		logrus.WithField("notification_id", n.ID).WithError(err).Warn("Failed to record push outcome")
	}
	d.metrics.NotificationSent(n.PushStatus)
	return n, nil
}

func (d *Dispatcher) deliver(ctx context.Context, n *models.GuestNotification) (models.PushStatus, string) {
	if d.push == nil {
		return models.PushSkipped, ""
	}
	pctx := ctx
	if d.pushTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, d.pushTimeout)
		defer cancel()
	}

	start := time.Now()
	err := d.push.Send(pctx,
		PushTarget{GuestID: n.GuestID, ProfileID: n.TravelProfileID},
		PushPayload{
			NotificationID: n.ID,
			CheckpointID:   n.CheckpointID,
			Type:           n.NotificationType,
			Title:          n.Title,
			Message:        n.Message,
		})
	d.metrics.PushObserve(time.Since(start))
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrTransportFailure, err)
		logrus.WithFields(logrus.Fields{
			"notification_id": n.ID,
			"guest_id":        n.GuestID,
		}).WithError(err).Warn("Checkpoint prompt push failed")
		return models.PushFailed, err.Error()
	}
	return models.PushDelivered, ""
}

func (d *Dispatcher) Get(ctx context.Context, id uuid.UUID) (*models.GuestNotification, error) {
	n, err := d.notifications.Get(ctx, id)
	if err != nil {
		return nil, storeErr("get notification", err)
	}
	return n, nil
}

func (d *Dispatcher) List(ctx context.Context, profileID uuid.UUID) ([]models.GuestNotification, error) {
	list, err := d.notifications.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, storeErr("list notifications", err)
	}
	return list, nil
}

// MarkRead moves a sent notification to read. Any later status is left as is.
// It reports whether the notification changed.
func (d *Dispatcher) MarkRead(ctx context.Context, id uuid.UUID) (*models.GuestNotification, bool, error) {
	n, err := d.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if n.Status != models.NotificationSent {
		return n, false, nil
	}
	now := d.clock.Now()
	n.Status = models.NotificationRead
	n.ReadAt = &now
	if err := d.notifications.Save(ctx, n); err != nil {
		return nil, false, storeErr("mark notification read", err)
	}
	return n, true, nil
}

// Respond records the guest's answer. Responding implies reading; a later
// response replaces an earlier one.
func (d *Dispatcher) Respond(ctx context.Context, id uuid.UUID, data map[string]interface{}) (*models.GuestNotification, error) {
	n, err := d.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	now := d.clock.Now()
	if n.ReadAt == nil {
		n.ReadAt = &now
	}
	n.Status = models.NotificationResponded
	n.ResponseReceived = true
	n.ResponseData = datatypes.JSONMap(data)
	n.ResponseTime = &now
	if err := d.notifications.Save(ctx, n); err != nil {
		return nil, storeErr("respond to notification", err)
	}
	return n, nil
}
