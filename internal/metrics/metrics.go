// Package metrics exposes the engine counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"travel_tracker/internal/models"
)

// Collector implements travel.Metrics, push.PublisherMetrics and bus.ConnMetrics.
// All methods are safe on a nil *Collector.
type Collector struct {
	reg *prometheus.Registry

	FixesIngested        *prometheus.CounterVec // source
	FixesRejected        *prometheus.CounterVec // source
	CheckpointsApproach  *prometheus.CounterVec // type
	CheckpointsCompleted *prometheus.CounterVec // type, method
	NotificationsSent    *prometheus.CounterVec // push_status
	Verifications        *prometheus.CounterVec // method, ok
	ActiveTracking       prometheus.Gauge

	NATSPublished   *prometheus.CounterVec // kind
	NATSPublishErrs *prometheus.CounterVec // kind
	NATSConnected   prometheus.Gauge

	PushDuration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		FixesIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travel_fixes_ingested_total",
			Help: "Location fixes accepted and stored.",
		}, []string{"source"}),
		FixesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travel_fixes_rejected_total",
			Help: "Location fixes rejected as invalid.",
		}, []string{"source"}),
		CheckpointsApproach: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travel_checkpoints_approached_total",
			Help: "Checkpoints whose geofence was entered.",
		}, []string{"type"}),
		CheckpointsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travel_checkpoints_completed_total",
			Help: "Checkpoints completed.",
		}, []string{"type", "method"}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travel_notifications_sent_total",
			Help: "Checkpoint prompts recorded, by push outcome.",
		}, []string{"push_status"}),
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travel_driver_verifications_total",
			Help: "Driver verification attempts.",
		}, []string{"method", "ok"}),
		ActiveTracking: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "travel_tracking_active",
			Help: "Profiles with a running tracking loop.",
		}),
		NATSPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travel_nats_published_total",
			Help: "Total NATS messages published.",
		}, []string{"kind"}),
		NATSPublishErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travel_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}, []string{"kind"}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "travel_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "travel_push_duration_seconds",
			Help:    "Duration of push delivery attempts.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
	}

	reg.MustRegister(
		c.FixesIngested, c.FixesRejected,
		c.CheckpointsApproach, c.CheckpointsCompleted,
		c.NotificationsSent, c.Verifications, c.ActiveTracking,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.PushDuration,
	)
	return c
}

func (c *Collector) FixIngested(source string) {
	if c != nil {
		c.FixesIngested.WithLabelValues(source).Inc()
	}
}

func (c *Collector) FixRejected(source string) {
	if c != nil {
		c.FixesRejected.WithLabelValues(source).Inc()
	}
}

func (c *Collector) CheckpointApproached(t models.CheckpointType) {
	if c != nil {
		c.CheckpointsApproach.WithLabelValues(string(t)).Inc()
	}
}

func (c *Collector) CheckpointCompleted(t models.CheckpointType, method models.CompletionMethod) {
	if c != nil {
		c.CheckpointsCompleted.WithLabelValues(string(t), string(method)).Inc()
	}
}

func (c *Collector) NotificationSent(status models.PushStatus) {
	if c != nil {
		c.NotificationsSent.WithLabelValues(string(status)).Inc()
	}
}

func (c *Collector) PushObserve(d time.Duration) {
	if c != nil {
		c.PushDuration.Observe(d.Seconds())
	}
}

func (c *Collector) VerificationAttempt(method models.VerificationMethod, ok bool) {
	if c != nil {
		c.Verifications.WithLabelValues(string(method), strconv.FormatBool(ok)).Inc()
	}
}

func (c *Collector) TrackingActive(n int) {
	if c != nil {
		c.ActiveTracking.Set(float64(n))
	}
}

func (c *Collector) NATSPublishedInc(kind string) {
	if c != nil {
		c.NATSPublished.WithLabelValues(kind).Inc()
	}
}

func (c *Collector) NATSPublishErrInc(kind string) {
	if c != nil {
		c.NATSPublishErrs.WithLabelValues(kind).Inc()
	}
}

func (c *Collector) NATSSetConnected(connected bool) {
	if c == nil {
		return
	}
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("metrics server error")
		}
	}()
	logrus.WithField("addr", addr).Info("metrics listening")
	return srv
}
