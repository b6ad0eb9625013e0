package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/kbukum/warden/health"
	"github.com/kbukum/warden/logger"
	"github.com/kbukum/warden/observability"
	"github.com/kbukum/warden/reports"
	"github.com/kbukum/warden/supervisor"
)

// App wires one supervised process: logging, telemetry, the report
// channel, the supervisor and the optional probe server. C is the config
// type and D the deps value shared by every slot.
//
//	app, err := bootstrap.NewApp(cfg, deps)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*config.Config, Deps]) error {
//	    a.Supervisor.Spawn("ingest", newIngest, a.Errors)
//	    a.Supervisor.SpawnWithSharedReceiver("alerts", alert.Constructor[Deps](notifier), a.Receiver)
//	    return nil
//	})
//	if err := app.Run(ctx); err != nil {
//	    os.Exit(1)
//	}
type App[C Config, D any] struct {
	Name    string
	Version string
	Cfg     C
	Logger  *logger.Logger
	Metrics *observability.Metrics
	Summary *Summary

	// Errors is the sending half of the report channel; hand it to
	// Spawn. Receiver is the half the alert slot drains.
	Errors     *reports.Sender
	Receiver   *reports.SharedReceiver
	Supervisor *supervisor.Supervisor[D]
	// Health is nil unless health.enabled is set.
	Health *health.Server

	opts        *appOptions
	checkers    []observability.HealthChecker
	onConfigure []func(ctx context.Context, app *App[C, D]) error
	onStart     []Hook
	onReady     []Hook
	onStop      []Hook

	shutdownTelemetry func(context.Context) error
}

// NewApp applies defaults to cfg, validates it and builds every component.
// Nothing runs until Run.
func NewApp[C Config, D any](cfg C, deps D, opts ...Option) (*App[C, D], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	base := cfg.GetConfig()
	o := resolveOptions(opts)

	log := o.logger
	if log == nil {
		logger.Init(&base.Service.Logging)
		log = logger.GetGlobalLogger()
	}

	metrics := o.metrics
	if metrics == nil {
		m, err := observability.DefaultMetrics()
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		metrics = m
	}

	errs, rx := reports.NewChannelFromConfig(base.Reports)

	app := &App[C, D]{
		Name:     base.Service.Name,
		Version:  base.Service.Version,
		Cfg:      cfg,
		Logger:   log,
		Metrics:  metrics,
		Summary:  NewSummary(base.Service.Name, base.Service.Version),
		Errors:   errs,
		Receiver: rx,
		Supervisor: supervisor.New(deps,
			supervisor.WithConfig(base.Supervisor),
			supervisor.WithLogger(log.WithComponent("supervisor")),
			supervisor.WithMetrics(metrics),
		),
		opts: o,
	}
	if base.Health.Enabled {
		app.Health = health.New(base.Health, log)
	}
	return app, nil
}

// OnConfigure registers a callback that spawns the application's slots.
func (a *App[C, D]) OnConfigure(fn func(ctx context.Context, app *App[C, D]) error) {
	a.onConfigure = append(a.onConfigure, fn)
}

// AddHealthChecker adds a component to the readiness and health probes,
// next to the supervisor.
func (a *App[C, D]) AddHealthChecker(hc observability.HealthChecker) {
	a.checkers = append(a.checkers, hc)
}

// Run starts everything, then blocks until a slot terminates, a signal
// arrives or ctx ends, and shuts down. A terminated slot is returned as
// the SERVICE_FATAL *errors.AppError from Supervisor.Wait; a signal or
// cancellation returns nil.
func (a *App[C, D]) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		_ = a.stop()
		return err
	}

	err := a.wait(ctx)
	if stopErr := a.stop(); stopErr != nil && err == nil {
		err = stopErr
	}
	return err
}

// Shutdown stops the app. Use it when driving startup yourself.
func (a *App[C, D]) Shutdown() error {
	return a.stop()
}

func (a *App[C, D]) startup(ctx context.Context) error {
	start := time.Now()
	a.Logger.Info("Starting application", logger.Fields(
		"name", a.Name,
		"version", a.Version,
	))

	shutdown, err := observability.Init(ctx, a.Cfg.GetConfig().Observability)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	a.shutdownTelemetry = shutdown

	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}

	for _, fn := range a.onConfigure {
		if err := fn(ctx, a); err != nil {
			return fmt.Errorf("configuration failed: %w", err)
		}
	}

	if a.Health != nil {
		checkers := append([]observability.HealthChecker{a.Supervisor}, a.checkers...)
		a.Health.Register(a.Name, a.Version, a.Supervisor, checkers...)
		if err := a.Health.Start(ctx); err != nil {
			return err
		}
	}

	if err := runHooks(ctx, a.onReady); err != nil {
		return fmt.Errorf("onReady hook failed: %w", err)
	}

	a.Summary.SetStartupDuration(time.Since(start))
	if a.opts.summaryOut != nil {
		a.Summary.Write(a.opts.summaryOut, a.Supervisor.Slots(), a.healthAddr())
	}
	return nil
}

// wait returns the first slot termination, or nil on a signal or ctx end.
func (a *App[C, D]) wait(ctx context.Context) error {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	if len(a.opts.signals) > 0 {
		signal.Notify(sigCh, a.opts.signals...)
		defer signal.Stop(sigCh)
	}

	result := make(chan error, 1)
	go func() { result <- a.Supervisor.Wait(waitCtx) }()

	select {
	case err := <-result:
		if err == nil {
			a.Logger.Info("No services running - shutting down")
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		a.Logger.Error("Service terminated - shutting down", logger.Fields(logger.FieldError, err.Error()))
		return err
	case sig := <-sigCh:
		a.Logger.Info("Received shutdown signal", logger.Fields("signal", sig.String()))
		return nil
	case <-ctx.Done():
		a.Logger.Info("Context canceled - shutting down")
		return nil
	}
}

func (a *App[C, D]) stop() error {
	a.Logger.Info("Shutting down application", logger.Fields(
		"timeout", a.opts.gracefulTimeout.String(),
	))
	ctx, cancel := context.WithTimeout(context.Background(), a.opts.gracefulTimeout)
	defer cancel()

	var shutdownErr error
	record := func(what string, err error) {
		if err == nil {
			return
		}
		a.Logger.Error(what+" error", logger.Fields(logger.FieldError, err.Error()))
		if shutdownErr == nil {
			shutdownErr = err
		}
	}

	record("Supervisor shutdown", a.Supervisor.Shutdown(ctx))
	a.Errors.Close()
	record("OnStop hook", runHooks(ctx, a.onStop))
	if a.Health != nil {
		record("Health server shutdown", a.Health.Stop(ctx))
	}
	if a.shutdownTelemetry != nil {
		record("Telemetry shutdown", a.shutdownTelemetry(ctx))
	}

	a.Logger.Info("Application shutdown complete")
	return shutdownErr
}

func (a *App[C, D]) healthAddr() string {
	if a.Health == nil {
		return ""
	}
	return a.Health.Addr()
}
