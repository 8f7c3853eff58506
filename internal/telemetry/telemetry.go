// Package telemetry sets up audit tracing and the per-scanner metrics that
// are pushed to an OTLP collector.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials"

	"github.com/yairfalse/tagaudit/internal/config"
)

const instrumentationName = "github.com/yairfalse/tagaudit"

// Provider owns the process tracer and meter providers and the scanner
// instruments. It is the auditor's Recorder.
type Provider struct {
	traces  *sdktrace.TracerProvider
	metrics *sdkmetric.MeterProvider
	tracer  trace.Tracer
	scanner scannerInstruments
}

// scannerInstruments are recorded once per resource type scan.
type scannerInstruments struct {
	duration  metric.Float64Histogram
	resources metric.Int64Counter
	errors    metric.Int64Counter
}

// NewProvider installs global tracer and meter providers for an audit run.
// Without an endpoint spans and metrics stay in process.
func NewProvider(ctx context.Context, cfg config.OTELConfig) (*Provider, error) {
	return newProvider(ctx, cfg)
}

// newProvider accepts extra metric readers so tests can collect in process.
func newProvider(ctx context.Context, cfg config.OTELConfig, readers ...sdkmetric.Reader) (*Provider, error) {
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	traces, err := newTracerProvider(ctx, cfg, res)
	if err != nil {
		return nil, err
	}

	metrics, err := newMeterProvider(ctx, cfg, res, readers)
	if err != nil {
		_ = traces.Shutdown(ctx)
		return nil, err
	}

	p := &Provider{traces: traces, metrics: metrics}
	p.scanner, err = newScannerInstruments(metrics.Meter(instrumentationName))
	if err != nil {
		_ = p.Shutdown(ctx)
		return nil, err
	}

	otel.SetTracerProvider(traces)
	otel.SetMeterProvider(metrics)
	p.tracer = traces.Tracer(instrumentationName)
	return p, nil
}

// exportTraces and exportMetrics report whether anything leaves the process.
func exportTraces(cfg config.OTELConfig) bool  { return cfg.Endpoint != "" && cfg.Traces.Enabled }
func exportMetrics(cfg config.OTELConfig) bool { return cfg.Endpoint != "" && cfg.Metrics.Enabled }

func newTracerProvider(ctx context.Context, cfg config.OTELConfig, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	if !exportTraces(cfg) {
		return sdktrace.NewTracerProvider(sdktrace.WithResource(res)), nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}

	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Traces.SampleRate))),
	), nil
}

func newMeterProvider(ctx context.Context, cfg config.OTELConfig, res *resource.Resource, readers []sdkmetric.Reader) (*sdkmetric.MeterProvider, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if exportMetrics(cfg) {
		exOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			exOpts = append(exOpts, otlpmetricgrpc.WithInsecure())
		} else {
			exOpts = append(exOpts, otlpmetricgrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
		}

		exp, err := otlpmetricgrpc.New(ctx, exOpts...)
		if err != nil {
			return nil, fmt.Errorf("create metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	}

	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}
	return sdkmetric.NewMeterProvider(opts...), nil
}

func newScannerInstruments(meter metric.Meter) (scannerInstruments, error) {
	var (
		s   scannerInstruments
		err error
	)

	if s.duration, err = meter.Float64Histogram(
		"tagaudit_scanner_duration_seconds",
		metric.WithDescription("Time spent listing one resource type"),
		metric.WithUnit("s"),
	); err != nil {
		return s, fmt.Errorf("create scanner duration histogram: %w", err)
	}

	if s.resources, err = meter.Int64Counter(
		"tagaudit_scanner_resources_total",
		metric.WithDescription("Resources found per resource type scan"),
	); err != nil {
		return s, fmt.Errorf("create scanner resources counter: %w", err)
	}

	if s.errors, err = meter.Int64Counter(
		"tagaudit_scanner_errors_total",
		metric.WithDescription("Resource type scans that ended in a provider error"),
	); err != nil {
		return s, fmt.Errorf("create scanner errors counter: %w", err)
	}

	return s, nil
}

func scannerAttrs(region, scanner string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("region", region),
		attribute.String("scanner", scanner),
	)
}

// Tracer is handed to the auditor for its audit and scan spans.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// RecordScan counts the resources one scanner found and how long it took.
func (p *Provider) RecordScan(ctx context.Context, region, scanner string, count int, d time.Duration) {
	attrs := scannerAttrs(region, scanner)
	p.scanner.duration.Record(ctx, d.Seconds(), attrs)
	p.scanner.resources.Add(ctx, int64(count), attrs)
}

// RecordError counts a scanner that failed.
func (p *Provider) RecordError(ctx context.Context, region, scanner string) {
	p.scanner.errors.Add(ctx, 1, scannerAttrs(region, scanner))
}

// Shutdown sends any buffered spans and metrics, then stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.traces != nil {
		if err := p.traces.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
	}
	if p.metrics != nil {
		if err := p.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
