package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"Pasture/internal/usecase"
	"Pasture/pkg/config"
	xhttp "Pasture/pkg/http"
	pkgkafka "Pasture/pkg/kafka"
	applogger "Pasture/pkg/logger"
	"Pasture/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	queue      queue.Runner
	scheduler  *usecase.Scheduler
	consumer   *pkgkafka.Consumer
	ingest     pkgkafka.MessageHandler
	httpServer *xhttp.Server
	cleanup    func()
}

// New creates a new App instance with all dependencies. consumer and
// httpServer may be nil when Kafka or the API is disabled.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	q queue.Runner,
	scheduler *usecase.Scheduler,
	consumer *pkgkafka.Consumer,
	ingest pkgkafka.MessageHandler,
	httpServer *xhttp.Server,
) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		log:        log,
		queue:      q,
		scheduler:  scheduler,
		consumer:   consumer,
		ingest:     ingest,
		httpServer: httpServer,
	}
}

// SetCleanup registers the function that releases infrastructure clients
// once every component has stopped.
func (a *App) SetCleanup(fn func()) { a.cleanup = fn }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	if err := a.queue.Start(); err != nil {
		a.log.Error("queue start error", applogger.Error(err))
		return err
	}

	if a.consumer != nil && a.ingest != nil {
		a.consumer.RegisterHandler(a.ingest)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.ingest.Topic()))
	}

	if a.cfg.Schedule.Enabled && a.scheduler != nil {
		a.scheduler.Start(ctx)
		a.log.Info("scheduler started")
	}

	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			a.log.Error("http server start error", applogger.Error(err))
			_ = a.shutdown()
			return err
		}
	}

	a.log.Info("pasture running",
		applogger.String("env", a.cfg.Environment),
		applogger.String("backend", a.cfg.Backend.Type),
		applogger.String("queue", a.cfg.Queue.Driver),
	)
	<-ctx.Done()

	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops producers of work before the workers that consume it.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if err := a.queue.Stop(ctx); err != nil {
		a.log.Warn("queue stop error", applogger.Error(err))
	}
	if a.cleanup != nil {
		a.cleanup()
	}

	a.log.Info("shutdown complete")
	return nil
}
