package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/models"
	domrepo "github.com/syedqaisarjalil/drl-forex-trading-internal/internal/domain/repository"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/usecase"
	pkgch "github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/clickhouse"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/config"
	xhttp "github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/http"
	pkgkafka "github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/kafka"
	applogger "github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/logger"
)

// App encapsulates the entire application lifecycle: scheduled update
// cycles, the on-demand repair consumer and the read API.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	updater    *usecase.Updater
	store      domrepo.BarStore
	consumer   *pkgkafka.Consumer
	repair     pkgkafka.MessageHandler
	chClient   *pkgch.Client
	httpServer *xhttp.Server
	handler    xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	updater *usecase.Updater,
	store domrepo.BarStore,
	consumer *pkgkafka.Consumer,
	repair pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	handler xhttp.Handler,
) *App {
	return &App{
		cfg:      cfg,
		l:        l,
		updater:  updater,
		store:    store,
		consumer: consumer,
		repair:   repair,
		chClient: chClient,
		handler:  handler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	symbols := make([]models.Symbol, 0, len(a.cfg.Symbols))
	names := make([]string, 0, len(a.cfg.Symbols))
	for _, s := range a.cfg.Symbols {
		symbols = append(symbols, models.Symbol{Name: s.Name, PipSize: s.PipSize, SpreadAvg: s.SpreadAvg})
		names = append(names, s.Name)
	}
	if err := a.updater.EnsureSymbols(ctx, symbols); err != nil {
		a.l.Error("ensure symbols", applogger.Error(err))
		return err
	}
	a.l.Info("symbols registered", applogger.Strings("symbols", names))

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.l),
	)

	// Scheduled update loop. One immediate run, then on the cadence.
	go a.updateLoop(ctx, names)

	if a.consumer != nil && a.repair != nil {
		a.consumer.RegisterHandler(a.repair)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.l.Info("kafka consumer started", applogger.String("topic", a.repair.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

func (a *App) updateLoop(ctx context.Context, names []string) {
	ticker := time.NewTicker(a.cfg.Update.Cadence)
	defer ticker.Stop()

	for {
		a.runOnce(ctx, names)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *App) runOnce(ctx context.Context, names []string) {
	start := time.Now()
	outcomes := a.updater.UpdateAll(ctx, names, usecase.UpdateOptions{})

	done, failed := 0, 0
	for i := range outcomes {
		if outcomes[i].Failed() {
			failed++
		} else {
			done++
		}
	}
	a.l.Info("update run finished",
		applogger.Int("symbols", len(names)),
		applogger.Int("done", done),
		applogger.Int("failed", failed),
		applogger.Duration("elapsed", time.Since(start)))
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.l.Warn("store close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
