package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"PriceProbe/internal/usecase"
	"PriceProbe/pkg/cache"
	"PriceProbe/pkg/config"
	xhttp "PriceProbe/pkg/http"
	applogger "PriceProbe/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	aggregator *usecase.Aggregator
	delivery   *usecase.DeliveryChannel
	httpServer *xhttp.Server
	snapshot   cache.Service
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	aggregator *usecase.Aggregator,
	delivery *usecase.DeliveryChannel,
	httpServer *xhttp.Server,
	snapshot cache.Service,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		aggregator: aggregator,
		delivery:   delivery,
		httpServer: httpServer,
		snapshot:   snapshot,
	}
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext serves the status API and runs the aggregation loop until ctx
// is done or the loop exits.
func (a *App) RunContext(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			a.log.Error("http server start error", applogger.Error(err))
			return err
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- a.aggregator.Run(ctx)
	}()
	a.log.Info("probe started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("sink", a.cfg.Sink.Mode),
	)

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
		runErr = <-done
	case runErr = <-done:
		if runErr != nil {
			a.log.Error("aggregation stopped", applogger.Error(runErr))
		}
	}

	return errors.Join(runErr, a.shutdown())
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	a.log.Info("shutting down")
	var errs []error

	if a.httpServer != nil {
		if err := a.httpServer.Stop(context.Background()); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if err := a.delivery.Close(); err != nil {
		a.log.Warn("sink close error", applogger.Error(err))
	}
	if a.snapshot != nil {
		if err := a.snapshot.Close(); err != nil {
			a.log.Warn("snapshot close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
