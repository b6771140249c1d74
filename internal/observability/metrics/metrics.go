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

// Metrics exposes application-level instruments.
type Metrics struct {
	messagesProcessed metric.Int64Counter
	editsApplied      metric.Int64Counter
	deltasApplied     metric.Int64Counter
	freezeSuppressed  metric.Int64Counter
	eventsDropped     metric.Int64Counter
	rateLimitAllowed  metric.Int64Counter
	rateLimitDenied   metric.Int64Counter
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
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "hivetally"
	}
	meter := provider.Meter(name)

	messagesProcessed, err := meter.Int64Counter("hivetally_messages_processed_total")
	if err != nil {
		return nil, err
	}
	editsApplied, err := meter.Int64Counter("hivetally_edits_applied_total")
	if err != nil {
		return nil, err
	}
	deltasApplied, err := meter.Int64Counter("hivetally_tally_deltas_total")
	if err != nil {
		return nil, err
	}
	freezeSuppressed, err := meter.Int64Counter("hivetally_freeze_suppressed_total")
	if err != nil {
		return nil, err
	}
	eventsDropped, err := meter.Int64Counter("hivetally_events_dropped_total")
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("hivetally_rate_limit_allowed_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("hivetally_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		messagesProcessed: messagesProcessed,
		editsApplied:      editsApplied,
		deltasApplied:     deltasApplied,
		freezeSuppressed:  freezeSuppressed,
		eventsDropped:     eventsDropped,
		rateLimitAllowed:  rateLimitAllowed,
		rateLimitDenied:   rateLimitDenied,
	}, nil
}

// RecordMessageProcessed increments processed message counts.
func (m *Metrics) RecordMessageProcessed(ctx context.Context, transport, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("transport", strings.TrimSpace(transport)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.messagesProcessed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEditApplied increments applied edit counts.
func (m *Metrics) RecordEditApplied(ctx context.Context, transport, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("transport", strings.TrimSpace(transport)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.editsApplied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDeltaApplied increments tally delta counts.
func (m *Metrics) RecordDeltaApplied(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("event_type", strings.TrimSpace(eventType)))
	m.deltasApplied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordFreezeSuppressed increments counts of events dropped for frozen users.
func (m *Metrics) RecordFreezeSuppressed(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("event_type", strings.TrimSpace(eventType)))
	m.freezeSuppressed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEventDropped increments counts of events rejected before processing.
func (m *Metrics) RecordEventDropped(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.eventsDropped.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
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
	"endpoint":    {},
	"status_code": {},
	"event_type":  {},
	"transport":   {},
	"outcome":     {},
	"reason":      {},
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
