package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/samber/do"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"travel_tracker/internal/bootstrap"
	"travel_tracker/internal/bus"
	"travel_tracker/internal/config"
	"travel_tracker/internal/hub"
	"travel_tracker/internal/location"
	"travel_tracker/internal/metrics"
	"travel_tracker/internal/middleware"
	"travel_tracker/internal/travel"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	gin.SetMode(gin.ReleaseMode)

	inj := bootstrap.BuildContainer(cfg)

	router, err := do.Invoke[*gin.Engine](inj)
	if err != nil {
		logrus.WithError(err).Fatal("failed to build server")
	}
	ctrl := do.MustInvoke[*travel.Controller](inj)
	collector := do.MustInvoke[*metrics.Collector](inj)

	var feed *location.NATSFeed
	if cfg.NATSURL != "" {
		feed = do.MustInvoke[*location.NATSFeed](inj)
		if err := feed.Start(); err != nil {
			logrus.WithError(err).Fatal("failed to subscribe to device fixes")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           middleware.EnableCORS(router, cfg.CORSAllowedOrigins...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = collector.Serve(cfg.MetricsAddr)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.WithField("addr", cfg.HTTPAddr).Info("Travel tracker listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("Shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if feed != nil {
			if err := feed.Stop(); err != nil {
				logrus.WithError(err).Warn("Failed to unsubscribe NATS fix feed")
			}
		}
		err := srv.Shutdown(sctx)
		do.MustInvoke[*hub.Hub](inj).Close()
		ctrl.Shutdown(sctx)
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(sctx)
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logrus.WithError(err).Error("Server stopped with error")
	}

	if cfg.NATSURL != "" {
		bus.Close(do.MustInvoke[*nats.Conn](inj))
	}
	if cfg.StoreDriver == config.StorePostgres {
		if err := config.CloseDB(do.MustInvoke[*gorm.DB](inj)); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}
	logrus.Info("Server stopped")
}
