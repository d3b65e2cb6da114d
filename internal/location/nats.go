package location

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// NATSFeed forwards device fixes published on <prefix>.<profile_id> into a Broker.
// NATS delivers a subscription's messages sequentially, so per-profile order is kept.
type NATSFeed struct {
	nc             *nats.Conn
	prefix         string
	broker         *Broker
	publishTimeout time.Duration
	sub            *nats.Subscription
}

func NewNATSFeed(nc *nats.Conn, prefix string, broker *Broker) *NATSFeed {
	return &NATSFeed{
		nc:             nc,
		prefix:         strings.TrimSuffix(prefix, "."),
		broker:         broker,
		publishTimeout: 5 * time.Second,
	}
}

func (f *NATSFeed) Start() error {
	sub, err := f.nc.Subscribe(f.prefix+".*", f.handle)
	if err != nil {
		return err
	}
	f.sub = sub
	logrus.WithField("subject", f.prefix+".*").Info("Listening for device fixes on NATS")
	return nil
}

func (f *NATSFeed) Stop() error {
	if f.sub == nil {
		return nil
	}
	return f.sub.Unsubscribe()
}

func (f *NATSFeed) handle(msg *nats.Msg) {
	token := msg.Subject[strings.LastIndex(msg.Subject, ".")+1:]
	profileID, err := uuid.Parse(token)
	if err != nil {
		logrus.WithField("subject", msg.Subject).Warn("Ignoring fix on subject without a profile id")
		return
	}

	var fm FixMessage
	if err := json.Unmarshal(msg.Data, &fm); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"profile_id": profileID,
			"payload":    string(msg.Data),
		}).Warn("Error unmarshaling fix from NATS")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.publishTimeout)
	defer cancel()
	if err := f.broker.Deliver(ctx, profileID, fm); err != nil {
		lvl := logrus.WarnLevel
		if errors.Is(err, ErrNoSubscriber) {
			lvl = logrus.DebugLevel
		}
		logrus.WithError(err).WithField("profile_id", profileID).Log(lvl, "Dropped fix from NATS")
	}
}
