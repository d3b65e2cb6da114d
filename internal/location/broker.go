// Package location turns device position reports into per-profile fix streams.
package location

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"travel_tracker/internal/travel"
)

// ErrNoSubscriber is returned by Publish when nobody is tracking the profile.
var ErrNoSubscriber = errors.New("no active tracking subscription for profile")

type subscription struct {
	ctx   context.Context
	fixes chan travel.Fix
	errs  chan error
}

// Broker implements travel.LocationSource. Producers (the device websocket,
// the NATS feed) publish fixes; the ingestor's tracking loop consumes them.
// Channels are never closed; consumers stop on their own context.
type Broker struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]*subscription
	buffer int
}

func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 32
	}
	return &Broker{subs: make(map[uuid.UUID]*subscription), buffer: buffer}
}

// Subscribe registers the single consumer for a profile, replacing any older one.
func (b *Broker) Subscribe(ctx context.Context, profileID uuid.UUID) (<-chan travel.Fix, <-chan error, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	sub := &subscription{
		ctx:   ctx,
		fixes: make(chan travel.Fix, b.buffer),
		errs:  make(chan error, 1),
	}

	b.mu.Lock()
	b.subs[profileID] = sub
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if b.subs[profileID] == sub {
			delete(b.subs, profileID)
		}
		b.mu.Unlock()
	}()

	logrus.WithField("profile_id", profileID).Debug("Location subscription opened")
	return sub.fixes, sub.errs, nil
}

func (b *Broker) lookup(profileID uuid.UUID) *subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := b.subs[profileID]
	if sub == nil || sub.ctx.Err() != nil {
		return nil
	}
	return sub
}

// Subscribed reports whether a tracking loop is currently consuming fixes for the profile.
func (b *Broker) Subscribed(profileID uuid.UUID) bool {
	return b.lookup(profileID) != nil
}

// Publish hands a fix to the profile's consumer, blocking while its buffer is full.
func (b *Broker) Publish(ctx context.Context, profileID uuid.UUID, fix travel.Fix) error {
	sub := b.lookup(profileID)
	if sub == nil {
		return ErrNoSubscriber
	}
	select {
	case sub.fixes <- fix:
		return nil
	case <-sub.ctx.Done():
		return ErrNoSubscriber
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fail ends the profile's stream with err. Only the first error is kept.
func (b *Broker) Fail(profileID uuid.UUID, err error) error {
	sub := b.lookup(profileID)
	if sub == nil {
		return ErrNoSubscriber
	}
	select {
	case sub.errs <- err:
	default:
	}
	return nil
}

// Deliver routes a decoded device message: error reports fail the stream,
// everything else is published as a fix.
func (b *Broker) Deliver(ctx context.Context, profileID uuid.UUID, msg FixMessage) error {
	if err := msg.StreamError(); err != nil {
		return b.Fail(profileID, err)
	}
	return b.Publish(ctx, profileID, msg.Fix())
}
