package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	mid "ZoneDesk/internal/middleware"
	"ZoneDesk/internal/usecase"
	pkgch "ZoneDesk/pkg/clickhouse"
	"ZoneDesk/pkg/config"
	xhttp "ZoneDesk/pkg/http"
	pkgkafka "ZoneDesk/pkg/kafka"
	applogger "ZoneDesk/pkg/logger"
)

// Components are the long-lived parts the App starts and stops. Optional
// ones are nil when their backend is not configured.
type Components struct {
	Ingestor   *usecase.Ingestor
	Pipeline   *mid.RealtimePipeline
	Hub        *usecase.StreamHub
	Processor  *usecase.BarProcessor
	Consumer   *pkgkafka.Consumer
	Sink       *usecase.ArchiveSink
	ClickHouse *pkgch.Client
	HTTP       *xhttp.Server
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg *config.Config
	log *applogger.Logger
	c   Components
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, c Components) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, log: l, c: c}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and shuts down when ctx ends.
func (a *App) RunContext(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	if p := a.c.Processor; p != nil && p.Enabled() {
		p.Start(runCtx)
		a.log.Info("bar archive started", applogger.String("backend", a.cfg.Backend.Type))
	}

	if err := a.c.Ingestor.Start(runCtx); err != nil {
		if !errors.Is(err, usecase.ErrStreamDisabled) {
			return err
		}
		a.log.Warn("live ingest not started; serving snapshots from history only")
	} else {
		a.log.Info("ingestor started", applogger.Strings("symbols", a.cfg.Polygon.Symbols))
	}

	if a.c.Consumer != nil && a.c.Sink != nil {
		a.c.Consumer.RegisterHandler(a.c.Sink)
		if err := a.c.Consumer.Start(runCtx); err != nil {
			a.log.Error("kafka consumer error", applogger.Error(err))
		} else {
			a.log.Info("kafka archive consumer started", applogger.String("topic", a.c.Sink.Topic()))
		}
	}

	if err := a.c.HTTP.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
		return a.shutdown(runCtx)
	case err := <-a.c.HTTP.Errors():
		a.log.Error("http server stopped", applogger.Error(err))
		if serr := a.shutdown(runCtx); serr != nil {
			a.log.Warn("shutdown after http failure", applogger.Error(serr))
		}
		return err
	}
}

// shutdown closes the websocket first, then ends every SSE stream, then
// drains the archive.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.c.Ingestor.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("ingestor stop error", applogger.Error(err))
	}
	if a.c.Pipeline != nil {
		a.c.Pipeline.Stop()
	}
	if a.c.Hub != nil {
		a.c.Hub.Close()
	}

	if err := a.c.HTTP.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.c.Processor != nil {
		a.c.Processor.Close()
	}
	if a.c.ClickHouse != nil {
		if err := a.c.ClickHouse.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
