package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

const (
	OutcomeConsumed     = "consumed"
	OutcomeDuplicate    = "duplicate"
	OutcomeInsufficient = "insufficient"
	OutcomeConflict     = "conflict"
	OutcomeError        = "error"

	LineChecked   = "checked"
	LineCorrected = "corrected"
	LineUnpriced  = "unpriced"
)

// Metrics exposes costing and inventory instruments. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	unpriced          metric.Int64Counter
	stockConsumptions metric.Int64Counter
	lowStock          metric.Int64Counter
	reconcileLines    metric.Int64Counter
	reconcileFailures metric.Int64Counter
	consumeDuration   metric.Float64Histogram
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New builds the domain instruments on provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "bakehouse"
	}
	meter := provider.Meter(name)

	unpriced, err := meter.Int64Counter("bakehouse_price_unpriced_total",
		metric.WithDescription("Price resolutions that found no effective price."))
	if err != nil {
		return nil, err
	}
	stockConsumptions, err := meter.Int64Counter("bakehouse_stock_consumptions_total",
		metric.WithDescription("Stock consumption attempts by outcome."))
	if err != nil {
		return nil, err
	}
	lowStock, err := meter.Int64Counter("bakehouse_stock_low_total",
		metric.WithDescription("Materials observed at or below minimum stock after consumption."))
	if err != nil {
		return nil, err
	}
	reconcileLines, err := meter.Int64Counter("bakehouse_reconcile_lines_total",
		metric.WithDescription("Order lines visited by price reconciliation by outcome."))
	if err != nil {
		return nil, err
	}
	reconcileFailures, err := meter.Int64Counter("bakehouse_reconcile_order_failures_total",
		metric.WithDescription("Orders that failed during price reconciliation."))
	if err != nil {
		return nil, err
	}
	consumeDuration, err := meter.Float64Histogram("bakehouse_stock_consume_duration_seconds",
		metric.WithDescription("Stock consumption transaction latency."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		unpriced:          unpriced,
		stockConsumptions: stockConsumptions,
		lowStock:          lowStock,
		reconcileLines:    reconcileLines,
		reconcileFailures: reconcileFailures,
		consumeDuration:   consumeDuration,
	}, nil
}

func (m *Metrics) RecordUnpriced(ctx context.Context) {
	if m == nil {
		return
	}
	m.unpriced.Add(ctx, 1)
}

// RecordStockConsumption counts one consumption attempt and its latency.
func (m *Metrics) RecordStockConsumption(ctx context.Context, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(attribute.String("outcome", outcome))...)
	m.stockConsumptions.Add(ctx, 1, attrs)
	m.consumeDuration.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *Metrics) RecordLowStock(ctx context.Context, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.lowStock.Add(ctx, int64(count))
}

func (m *Metrics) RecordReconcileLines(ctx context.Context, outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.reconcileLines.Add(ctx, int64(count), metric.WithAttributes(FilterAttributes(attribute.String("outcome", outcome))...))
}

func (m *Metrics) RecordReconcileFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.reconcileFailures.Add(ctx, 1)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"outcome": {},
	"job":     {},
	"reason":  {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
