package bootstrap

import (
	"io"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/samber/do"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"travel_tracker/internal/bus"
	"travel_tracker/internal/config"
	"travel_tracker/internal/controllers"
	"travel_tracker/internal/flight"
	"travel_tracker/internal/hub"
	"travel_tracker/internal/location"
	"travel_tracker/internal/logger"
	"travel_tracker/internal/metrics"
	"travel_tracker/internal/middleware"
	"travel_tracker/internal/push"
	"travel_tracker/internal/repo"
	"travel_tracker/internal/routes"
	"travel_tracker/internal/travel"
)

// BuildContainer registers every service lazily. NATS-backed services are
// only registered when cfg.NATSURL is set.
func BuildContainer(cfg *config.Config) *do.Injector {
	inj := do.New()

	do.ProvideValue(inj, cfg)

	// logger; the returned writer also receives the HTTP access log
	do.Provide(inj, func(i *do.Injector) (io.Writer, error) {
		return logger.Setup(cfg.LogFile, cfg.LogLevel), nil
	})

	do.Provide(inj, func(i *do.Injector) (*metrics.Collector, error) {
		return metrics.NewCollector(), nil
	})

	// storage
	if cfg.StoreDriver == config.StorePostgres {
		do.Provide(inj, func(i *do.Injector) (*gorm.DB, error) {
			return config.OpenDB(cfg.DB, cfg.AutoMigrateDB)
		})
	}
	do.Provide(inj, func(i *do.Injector) (*repo.Repos, error) {
		if cfg.StoreDriver == config.StoreMemory {
			logrus.Warn("Using in-memory store; data is lost on restart")
			return repo.NewMemoryRepos(), nil
		}
		db, err := do.Invoke[*gorm.DB](i)
		if err != nil {
			return nil, err
		}
		return repo.NewGormRepos(db), nil
	})

	// transport
	do.Provide(inj, func(i *do.Injector) (*location.Broker, error) {
		return location.NewBroker(cfg.FixBuffer), nil
	})
	do.Provide(inj, func(i *do.Injector) (*hub.Hub, error) {
		return hub.New(0), nil
	})
	if cfg.NATSURL != "" {
		do.Provide(inj, func(i *do.Injector) (*nats.Conn, error) {
			host, _ := os.Hostname()
			return bus.Connect(cfg.NATSURL, "travel-tracker-"+host, do.MustInvoke[*metrics.Collector](i))
		})
		do.Provide(inj, func(i *do.Injector) (*location.NATSFeed, error) {
			return location.NewNATSFeed(
				do.MustInvoke[*nats.Conn](i),
				cfg.NATSFixSubject,
				do.MustInvoke[*location.Broker](i),
			), nil
		})
	}
	do.Provide(inj, func(i *do.Injector) (travel.PushTransport, error) {
		if cfg.NATSURL == "" {
			return push.LogTransport{}, nil
		}
		nc, err := do.Invoke[*nats.Conn](i)
		if err != nil {
			return nil, err
		}
		return push.NewNATSTransport(nc, cfg.NATSPushSubject, cfg.LogNATSSubjects, do.MustInvoke[*metrics.Collector](i), cfg.PushTimeout), nil
	})
	do.Provide(inj, func(i *do.Injector) ([]travel.EventSink, error) {
		sinks := []travel.EventSink{do.MustInvoke[*hub.Hub](i)}
		if cfg.NATSURL != "" {
			nc, err := do.Invoke[*nats.Conn](i)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, push.NewNATSEventSink(nc, cfg.NATSEventSubject, cfg.LogNATSSubjects, do.MustInvoke[*metrics.Collector](i), cfg.PushTimeout))
		}
		return sinks, nil
	})

	do.Provide(inj, func(i *do.Injector) (travel.Templates, error) {
		return travel.LoadTemplates(cfg.CheckpointTemplatesFile)
	})

	// engine
	do.Provide(inj, func(i *do.Injector) (*travel.Controller, error) {
		do.MustInvoke[io.Writer](i)

		repos, err := do.Invoke[*repo.Repos](i)
		if err != nil {
			return nil, err
		}
		templates, err := do.Invoke[travel.Templates](i)
		if err != nil {
			return nil, err
		}
		pushT, err := do.Invoke[travel.PushTransport](i)
		if err != nil {
			return nil, err
		}
		sinks, err := do.Invoke[[]travel.EventSink](i)
		if err != nil {
			return nil, err
		}

		opts := travel.Options{
			Repos:                repos,
			Source:               do.MustInvoke[*location.Broker](i),
			Push:                 pushT,
			Sinks:                sinks,
			Templates:            templates,
			Metrics:              do.MustInvoke[*metrics.Collector](i),
			MaxFixAccuracy:       cfg.MaxFixAccuracy,
			PushTimeout:          cfg.PushTimeout,
			HousekeepingInterval: cfg.HousekeepingInterval,
			StaleAfter:           cfg.StaleAfter,
		}
		if cfg.FlightAPIURL != "" {
			opts.Flights = flight.NewClient(cfg.FlightAPIURL, cfg.FlightAPIKey, cfg.FlightAPITimeout)
		}
		return travel.NewController(opts), nil
	})

	// HTTP
	do.Provide(inj, func(i *do.Injector) (*middleware.Auth, error) {
		return middleware.NewAuth(cfg.JWTSecret, cfg.TokenTTL), nil
	})
	do.Provide(inj, func(i *do.Injector) (*gin.Engine, error) {
		ctrl, err := do.Invoke[*travel.Controller](i)
		if err != nil {
			return nil, err
		}
		auth := do.MustInvoke[*middleware.Auth](i)
		return routes.SetupRouter(routes.Deps{
			Auth:       auth,
			Travel:     controllers.NewTravelController(ctrl),
			WebSocket:  controllers.NewWebSocketController(ctrl, auth, do.MustInvoke[*location.Broker](i), do.MustInvoke[*hub.Hub](i)),
			AuthTokens: controllers.NewAuthController(auth, cfg.TokenTTL),
			AccessLog:  do.MustInvoke[io.Writer](i),
		}), nil
	})

	return inj
}
