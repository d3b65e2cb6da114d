// Package bus holds the shared NATS connection helpers.
package bus

import (
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// ConnMetrics observes connection state changes.
type ConnMetrics interface {
	NATSSetConnected(connected bool)
}

// Connect dials NATS with reconnect logging. m may be nil.
func Connect(url, name string, m ConnMetrics) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logrus.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			logrus.WithField("url", c.ConnectedUrl()).Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logrus.Info("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return nc, nil
}

// Close drains and closes nc. Safe on nil.
func Close(nc *nats.Conn) {
	if nc == nil {
		return
	}
	if err := nc.Drain(); err != nil {
		logrus.WithError(err).Warn("NATS drain failed")
	}
	nc.Close()
}

// SubjectToken makes s usable as a single NATS subject token.
func SubjectToken(s string) string {
	s = strings.TrimSpace(s)
	// tokens cannot contain spaces, '>', '*' or '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}

// Subject joins a prefix and one token.
func Subject(prefix, token string) string {
	return strings.TrimSuffix(prefix, ".") + "." + SubjectToken(token)
}
