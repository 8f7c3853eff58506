package emitter

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/yairfalse/tagaudit/pkg/resource"
)

// TextfileEmitter writes audit gauges in Prometheus text format for the
// node_exporter textfile collector. Every Emit rewrites the whole file.
type TextfileEmitter struct {
	path     string
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider

	resources    metric.Int64Gauge
	untagged     metric.Int64Gauge
	scanDuration metric.Float64Gauge
	lastScan     metric.Float64Gauge
	scanSuccess  metric.Int64Gauge
}

// NewTextfileEmitter creates an emitter writing to path.
func NewTextfileEmitter(path string) (*TextfileEmitter, error) {
	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
		otelprom.WithoutTargetInfo(),
		otelprom.WithoutUnits(),
	)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	e := &TextfileEmitter{
		path:     path,
		registry: registry,
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)),
	}

	if err := e.initMetrics(e.provider.Meter("github.com/yairfalse/tagaudit")); err != nil {
		_ = e.provider.Shutdown(context.Background())
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return e, nil
}

func (e *TextfileEmitter) initMetrics(meter metric.Meter) error {
	var err error

	e.resources, err = meter.Int64Gauge(
		"tagaudit_resources",
		metric.WithDescription("Resources reported by the last audit"),
	)
	if err != nil {
		return fmt.Errorf("create resources gauge: %w", err)
	}

	e.untagged, err = meter.Int64Gauge(
		"tagaudit_untagged_resources",
		metric.WithDescription("Resources without any tags in the last audit"),
	)
	if err != nil {
		return fmt.Errorf("create untagged_resources gauge: %w", err)
	}

	e.scanDuration, err = meter.Float64Gauge(
		"tagaudit_scan_duration_seconds",
		metric.WithDescription("Wall time of the last audit"),
	)
	if err != nil {
		return fmt.Errorf("create scan_duration gauge: %w", err)
	}

	e.lastScan, err = meter.Float64Gauge(
		"tagaudit_last_scan_timestamp_seconds",
		metric.WithDescription("Unix time the last audit started"),
	)
	if err != nil {
		return fmt.Errorf("create last_scan gauge: %w", err)
	}

	e.scanSuccess, err = meter.Int64Gauge(
		"tagaudit_scan_success",
		metric.WithDescription("1 if the last audit completed, 0 if it failed"),
	)
	if err != nil {
		return fmt.Errorf("create scan_success gauge: %w", err)
	}

	return nil
}

// Emit records the result and rewrites the textfile.
func (e *TextfileEmitter) Emit(ctx context.Context, result resource.ScanResult) error {
	region := metric.WithAttributes(attribute.String("region", result.Report.Region))

	e.scanDuration.Record(ctx, result.Duration.Seconds(), region)

	if result.Error != nil {
		e.scanSuccess.Record(ctx, 0, region)
		return e.write()
	}
	e.scanSuccess.Record(ctx, 1, region)

	scannedAt := result.Report.ScannedAt
	if scannedAt.IsZero() {
		scannedAt = time.Now()
	}
	e.lastScan.Record(ctx, float64(scannedAt.UnixNano())/1e9, region)

	total := result.Report.CountByType()
	untagged := make(map[resource.Type]int)
	for _, r := range result.Report.Untagged() {
		untagged[r.Type]++
	}

	for _, typ := range resource.AllTypes() {
		attrs := metric.WithAttributes(
			attribute.String("region", result.Report.Region),
			attribute.String("type", string(typ)),
		)
		e.resources.Record(ctx, int64(total[typ]), attrs)
		e.untagged.Record(ctx, int64(untagged[typ]), attrs)
	}

	return e.write()
}

func (e *TextfileEmitter) write() error {
	if err := prometheus.WriteToTextfile(e.path, e.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	log.Debug().Str("path", e.path).Msg("metrics textfile written")
	return nil
}

// Close shuts down the meter provider.
func (e *TextfileEmitter) Close() error {
	return e.provider.Shutdown(context.Background())
}
