// Package otel sets up the OpenTelemetry SDK for a roverwatch process. Log
// records are exported to the session log file and, when an endpoint is
// configured, to an OTLP collector. Collector instruments are exported over
// OTLP or to an extra reader.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config holds OTel configuration
type Config struct {
	Enabled      bool
	ServiceName  string
	Version      string
	BatchTimeout time.Duration
	LogWriter    io.Writer // session log file
	Endpoint     string    // OTLP/HTTP host:port, optional
	Insecure     bool
	// MetricReader is registered alongside the OTLP reader.
	MetricReader sdkmetric.Reader
}

type component struct {
	name string
	c    interface {
		ForceFlush(context.Context) error
		Shutdown(context.Context) error
	}
}

// Provider owns the SDK log and meter providers. The zero value and a
// disabled provider hand out no-op instruments.
type Provider struct {
	enabled bool
	logs    *sdklog.LoggerProvider
	meters  *sdkmetric.MeterProvider
}

// New builds the providers described by cfg. A disabled cfg yields a no-op
// provider.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 5 * time.Second
	}

	kv := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	if cfg.Version != "" {
		kv = append(kv, semconv.ServiceVersion(cfg.Version))
	}
	res, err := resource.New(ctx, resource.WithAttributes(kv...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	logs, err := newLoggerProvider(ctx, cfg, res)
	if err != nil {
		return nil, err
	}
	meters, err := newMeterProvider(ctx, cfg, res)
	if err != nil {
		_ = logs.Shutdown(ctx)
		return nil, err
	}
	if meters != nil {
		otel.SetMeterProvider(meters)
	}

	return &Provider{enabled: true, logs: logs, meters: meters}, nil
}

func newLoggerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdklog.LoggerProvider, error) {
	opts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	batch := func(exp sdklog.Exporter) sdklog.LoggerProviderOption {
		return sdklog.WithProcessor(sdklog.NewBatchProcessor(exp, sdklog.WithExportTimeout(cfg.BatchTimeout)))
	}

	if cfg.LogWriter != nil {
		exp, err := stdoutlog.New(stdoutlog.WithWriter(cfg.LogWriter), stdoutlog.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create file log exporter: %w", err)
		}
		opts = append(opts, batch(exp))
	}
	if cfg.Endpoint != "" {
		expOpts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			expOpts = append(expOpts, otlploghttp.WithInsecure())
		}
		exp, err := otlploghttp.New(ctx, expOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}
		opts = append(opts, batch(exp))
	}

	if len(opts) == 1 {
		return nil, errors.New("OTel enabled but no log writer or endpoint configured")
	}
	return sdklog.NewLoggerProvider(opts...), nil
}

// newMeterProvider returns nil when there is nowhere to send measurements.
func newMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if cfg.Endpoint != "" {
		expOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			expOpts = append(expOpts, otlpmetrichttp.WithInsecure())
		}
		exp, err := otlpmetrichttp.New(ctx, expOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(cfg.BatchTimeout)),
		))
	}
	if cfg.MetricReader != nil {
		opts = append(opts, sdkmetric.WithReader(cfg.MetricReader))
	}

	if len(opts) == 1 {
		return nil, nil
	}
	return sdkmetric.NewMeterProvider(opts...), nil
}

// LoggerProvider returns the log provider for the otelslog bridge, or nil
// when disabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	return p.logs
}

// Meter returns a named meter. It is a no-op unless a metric destination
// is configured.
func (p *Provider) Meter(name string) metric.Meter {
	if p.meters == nil {
		return noop.Meter{}
	}
	return p.meters.Meter(name)
}

func (p *Provider) components() []component {
	var out []component
	if p.logs != nil {
		out = append(out, component{"log", p.logs})
	}
	if p.meters != nil {
		out = append(out, component{"metric", p.meters})
	}
	return out
}

// Flush exports everything buffered so far.
func (p *Provider) Flush(ctx context.Context) error {
	var errs []error
	for _, c := range p.components() {
		if err := c.c.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s flush failed: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown flushes and stops the providers. The provider is unusable after.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, c := range p.components() {
		if err := c.c.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s shutdown failed: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}

// Enabled returns whether OTel is enabled
func (p *Provider) Enabled() bool {
	return p.enabled
}
