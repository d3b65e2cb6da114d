// Package push delivers guest push hints and engine events over NATS.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"travel_tracker/internal/bus"
	"travel_tracker/internal/travel"
)

// Conn is the part of *nats.Conn used here.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

type PublisherMetrics interface {
	NATSPublishedInc(kind string)
	NATSPublishErrInc(kind string)
}

const (
	kindPush  = "push"
	kindEvent = "event"
)

// DefaultFlushTimeout bounds a flush when the caller's context has no deadline.
const DefaultFlushTimeout = 5 * time.Second

type publisher struct {
	nc           Conn
	prefix       string
	logSubjects  bool
	metrics      PublisherMetrics
	flushTimeout time.Duration
}

func newPublisher(nc Conn, prefix string, logSubjects bool, m PublisherMetrics, flushTimeout time.Duration) publisher {
	if flushTimeout <= 0 {
		flushTimeout = DefaultFlushTimeout
	}
	return publisher{nc: nc, prefix: prefix, logSubjects: logSubjects, metrics: m, flushTimeout: flushTimeout}
}

// flush waits for the server to acknowledge pending publishes. nats.go
// rejects contexts without a deadline, so one is added when missing.
func (p *publisher) flush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.flushTimeout)
		defer cancel()
	}
	return p.nc.FlushWithContext(ctx)
}

func (p *publisher) publish(ctx context.Context, kind, token string, v interface{}) error {
	subject := bus.Subject(p.prefix, token)
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if p.logSubjects {
		logrus.WithField("subject", subject).Debug("NATS publish")
	}
	err = p.nc.Publish(subject, b)
	if err == nil {
		err = p.flush(ctx)
	}
	if p.metrics != nil {
		if err != nil {
			p.metrics.NATSPublishErrInc(kind)
		} else {
			p.metrics.NATSPublishedInc(kind)
		}
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// PushMessage is what a device subscribed to travel.push.<guest_id> receives.
type PushMessage struct {
	travel.PushTarget
	travel.PushPayload
	SentAt time.Time `json:"sent_at"`
}

// NATSTransport implements travel.PushTransport. A send is complete once the
// server has acknowledged the flush, bounded by the caller's context or
// flushTimeout when it has no deadline.
type NATSTransport struct {
	publisher
}

func NewNATSTransport(nc Conn, prefix string, logSubjects bool, m PublisherMetrics, flushTimeout time.Duration) *NATSTransport {
	return &NATSTransport{newPublisher(nc, prefix, logSubjects, m, flushTimeout)}
}

func (t *NATSTransport) Send(ctx context.Context, target travel.PushTarget, payload travel.PushPayload) error {
	msg := PushMessage{PushTarget: target, PushPayload: payload, SentAt: time.Now().UTC()}
	return t.publish(ctx, kindPush, target.GuestID.String(), msg)
}

// NATSEventSink implements travel.EventSink on <prefix>.<profile_id>.
type NATSEventSink struct {
	publisher
}

func NewNATSEventSink(nc Conn, prefix string, logSubjects bool, m PublisherMetrics, flushTimeout time.Duration) *NATSEventSink {
	return &NATSEventSink{newPublisher(nc, prefix, logSubjects, m, flushTimeout)}
}

func (s *NATSEventSink) Publish(ctx context.Context, ev travel.Event) error {
	return s.publish(ctx, kindEvent, ev.ProfileID.String(), ev)
}

// LogTransport records pushes in the log only. Used when no NATS URL is configured.
type LogTransport struct{}

func (LogTransport) Send(_ context.Context, target travel.PushTarget, payload travel.PushPayload) error {
	logrus.WithFields(logrus.Fields{
		"guest_id":        target.GuestID,
		"profile_id":      target.ProfileID,
		"notification_id": payload.NotificationID,
		"type":            payload.Type,
		"title":           payload.Title,
	}).Info("Push notification (log transport)")
	return nil
}
