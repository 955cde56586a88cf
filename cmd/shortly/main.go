package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"

	"github.com/go-chi/httplog/v2"
	"golang.org/x/sync/errgroup"

	api "github.com/shortly-app/shortly/internal/api/http"
	"github.com/shortly-app/shortly/internal/clicks"
	"github.com/shortly-app/shortly/internal/config"
	"github.com/shortly-app/shortly/internal/geoip"
	"github.com/shortly-app/shortly/internal/registry"
	"github.com/shortly-app/shortly/internal/registry/janitor"
	"github.com/shortly-app/shortly/pkg/logship"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx); err != nil {
		panic(err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return err
	}

	logger := httplog.NewLogger("shortly", httplog.Options{
		LogLevel: slog.LevelInfo,
		Concise:  cfg.Env != config.EnvProd,
		JSON:     cfg.Env == config.EnvProd,
	})

	if cfg.LogShip.Enabled {
		shipper := logship.NewShipper(cfg.LogShip.Endpoint,
			logship.WithBatchSize(cfg.LogShip.BatchSize),
			logship.WithFlushInterval(cfg.LogShip.FlushInterval),
		)
		defer shipper.Close()

		logger.Logger = slog.New(logship.NewHandler(logger.Logger.Handler(), shipper))
	}

	reg := registry.New(
		registry.NewGenerator(cfg.Registry.ShortCodeLength),
		registry.WithDefaultValidity(cfg.Registry.DefaultValidityMinutes),
	)

	locator := geoip.NewClient(cfg.GeoIP.Endpoint, cfg.GeoIP.Timeout, cfg.GeoIP.CacheSize)

	tracker := clicks.NewTracker(reg, locator, cfg.Clicks.BufferSize, cfg.Clicks.LookupTimeout, logger.Logger)
	tracker.Start(cfg.Clicks.WorkerCount)

	r := api.NewRouter(logger, reg, tracker, cfg)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        r,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		janitor.New(reg, cfg.Registry.CleanupInterval, logger.Logger).Run(ctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("starting server", slog.String("addr", server.Addr), slog.String("env", cfg.Env))

		var err error
		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		if err := server.Shutdown(context.Background()); err != nil {
			return err
		}

		tracker.Close()

		return nil
	})

	return g.Wait()
}
