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
	chatTurns        metric.Int64Counter
	unansweredTurns  metric.Int64Counter
	feeLookups       metric.Int64Counter
	retrievalCache   metric.Int64Counter
	streamCancels    metric.Int64Counter
	disambigPending  metric.Int64Counter
	firstTokenMillis metric.Int64Histogram
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

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "assist"
	}
	meter := provider.Meter(name)

	chatTurns, err := meter.Int64Counter("assist_chat_turns_total")
	if err != nil {
		return nil, err
	}
	unansweredTurns, err := meter.Int64Counter("assist_chat_turns_unanswered_total")
	if err != nil {
		return nil, err
	}
	feeLookups, err := meter.Int64Counter("assist_fee_lookups_total")
	if err != nil {
		return nil, err
	}
	retrievalCache, err := meter.Int64Counter("assist_retrieval_cache_total")
	if err != nil {
		return nil, err
	}
	streamCancels, err := meter.Int64Counter("assist_stream_cancelled_total")
	if err != nil {
		return nil, err
	}
	disambigPending, err := meter.Int64Counter("assist_disambiguation_issued_total")
	if err != nil {
		return nil, err
	}
	firstTokenMillis, err := meter.Int64Histogram("assist_first_token_ms")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		chatTurns:        chatTurns,
		unansweredTurns:  unansweredTurns,
		feeLookups:       feeLookups,
		retrievalCache:   retrievalCache,
		streamCancels:    streamCancels,
		disambigPending:  disambigPending,
		firstTokenMillis: firstTokenMillis,
	}, nil
}

// RecordTurn counts a completed conversation turn by backing source.
func (m *Metrics) RecordTurn(ctx context.Context, source string, answered bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("backing_source", strings.TrimSpace(source)))
	m.chatTurns.Add(ctx, 1, metric.WithAttributes(attrs...))
	if !answered {
		m.unansweredTurns.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordFeeLookup counts fee resolver outcomes.
func (m *Metrics) RecordFeeLookup(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.feeLookups.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRetrievalCache counts cache hits and misses.
func (m *Metrics) RecordRetrievalCache(ctx context.Context, result string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("result", strings.TrimSpace(result)))
	m.retrievalCache.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordStreamCancelled counts client disconnects mid-stream.
func (m *Metrics) RecordStreamCancelled(ctx context.Context) {
	if m == nil {
		return
	}
	m.streamCancels.Add(ctx, 1)
}

// RecordDisambiguationIssued counts issued disambiguation prompts.
func (m *Metrics) RecordDisambiguationIssued(ctx context.Context) {
	if m == nil {
		return
	}
	m.disambigPending.Add(ctx, 1)
}

// RecordFirstToken records latency to the first streamed token.
func (m *Metrics) RecordFirstToken(ctx context.Context, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.firstTokenMillis.Record(ctx, elapsed.Milliseconds())
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
	"backing_source": {},
	"outcome":        {},
	"result":         {},
	"endpoint":       {},
	"status_code":    {},
	"method":         {},
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
