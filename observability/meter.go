package observability

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/warden/logger"
)

// InitMeter installs an OTLP/HTTP meter provider, exporting every
// cfg.MetricInterval, as the global provider. The caller shuts it down on
// exit.
func InitMeter(ctx context.Context, cfg Config) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.MetricInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.MetricInterval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Get("observability").Info("Meter initialized", logger.Fields(
		"endpoint", cfg.Endpoint,
		"interval", cfg.MetricInterval.String(),
	))
	return mp, nil
}

// Init installs both providers when cfg.Enabled and returns a shutdown
// function that flushes them. When disabled it returns a no-op shutdown.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	tp, err := InitTracer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	mp, err := InitMeter(ctx, cfg)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the OpenTelemetry instruments recorded by the toolkit.
type Metrics struct {
	retryAttempts  metric.Int64Counter
	retryExhausted metric.Int64Counter
	slotRestarts   metric.Int64Counter
	slotFailures   metric.Int64Counter
	cacheLookups   metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	retryAttempts, err := meter.Int64Counter("retry.attempts",
		metric.WithDescription("Network call attempts by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating retry.attempts counter: %w", err)
	}

	retryExhausted, err := meter.Int64Counter("retry.exhausted",
		metric.WithDescription("Calls that failed after every allowed attempt"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating retry.exhausted counter: %w", err)
	}

	slotRestarts, err := meter.Int64Counter("supervisor.slot.restarts",
		metric.WithDescription("Supervised service reconstructions after a crash or completion"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating supervisor.slot.restarts counter: %w", err)
	}

	slotFailures, err := meter.Int64Counter("supervisor.slot.failures",
		metric.WithDescription("Supervised slots terminated and escalated"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating supervisor.slot.failures counter: %w", err)
	}

	cacheLookups, err := meter.Int64Counter("cache.lookups",
		metric.WithDescription("Cache reads by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating cache.lookups counter: %w", err)
	}

	return &Metrics{
		retryAttempts:  retryAttempts,
		retryExhausted: retryExhausted,
		slotRestarts:   slotRestarts,
		slotFailures:   slotFailures,
		cacheLookups:   cacheLookups,
	}, nil
}

// DefaultMetrics builds Metrics on the global meter provider.
func DefaultMetrics() (*Metrics, error) {
	return NewMetrics(Meter(instrumentationName))
}

// RecordRetryAttempt records one network attempt and how it was classified.
func (m *Metrics) RecordRetryAttempt(ctx context.Context, host, outcome string) {
	if m == nil {
		return
	}
	m.retryAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrHTTPHost, host),
		attribute.String(AttrOutcome, outcome),
	))
}

// RecordRetryExhausted records a call that used up all attempts.
func (m *Metrics) RecordRetryExhausted(ctx context.Context, host string) {
	if m == nil {
		return
	}
	m.retryExhausted.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrHTTPHost, host)))
}

// RecordSlotRestart records a slot being reconstructed.
func (m *Metrics) RecordSlotRestart(ctx context.Context, service, policy, outcome string) {
	if m == nil {
		return
	}
	m.slotRestarts.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrService, service),
		attribute.String(AttrPolicy, policy),
		attribute.String(AttrOutcome, outcome),
	))
}

// RecordSlotFailure records a slot termination that was escalated.
func (m *Metrics) RecordSlotFailure(ctx context.Context, service, policy string) {
	if m == nil {
		return
	}
	m.slotFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrService, service),
		attribute.String(AttrPolicy, policy),
	))
}

// RecordCacheLookup records a cache read.
func (m *Metrics) RecordCacheLookup(ctx context.Context, cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrCache, cache),
		attribute.String(AttrOutcome, result),
	))
}
