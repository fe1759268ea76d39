// Package otel wires OpenTelemetry metrics with a Prometheus exporter for
// the agent-monitor daemon.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/metric"
)

var (
	initMetricsOnce       sync.Once
	eventsCounter         metric.Int64Counter
	correlationCounter    metric.Int64Counter
	confidenceHistogram   metric.Float64Histogram
	broadcastCounter      metric.Int64Counter
	streamConnectionsGauge metric.Int64ObservableGauge
	streamConnections     int64
	streamConnectionsMu   sync.Mutex
)

// InitMetrics creates the meter instruments. Safe to call multiple times;
// only runs once. Call after InitMeterProvider. All record helpers are
// no-ops until this succeeds.
func InitMetrics(ctx context.Context) error {
	var err error
	initMetricsOnce.Do(func() {
		m := Meter()
		eventsCounter, err = m.Int64Counter("agentmon_events_ingested_total", metric.WithDescription("Total agent events ingested"))
		if err != nil {
			return
		}
		correlationCounter, err = m.Int64Counter("agentmon_correlation_outcomes_total", metric.WithDescription("Correlation outcomes by result (matched, no_match, failed)"))
		if err != nil {
			return
		}
		confidenceHistogram, err = m.Float64Histogram("agentmon_correlation_confidence", metric.WithDescription("Confidence of successful correlations"))
		if err != nil {
			return
		}
		broadcastCounter, err = m.Int64Counter("agentmon_broadcast_events_total", metric.WithDescription("Total broadcast events published"))
		if err != nil {
			return
		}
		streamConnectionsGauge, err = m.Int64ObservableGauge("agentmon_stream_connections", metric.WithDescription("Current stream subscriber count"))
		if err != nil {
			return
		}
		_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			streamConnectionsMu.Lock()
			n := streamConnections
			streamConnectionsMu.Unlock()
			o.ObserveInt64(streamConnectionsGauge, n)
			return nil
		}, streamConnectionsGauge)
		if err != nil {
			return
		}
	})
	return err
}

// RecordEventIngested records one ingested event by kind.
func RecordEventIngested(ctx context.Context, kind string) {
	if eventsCounter == nil {
		return
	}
	eventsCounter.Add(ctx, 1, metric.WithAttributes(AttrKind.String(kind)))
}

// RecordCorrelation records a correlation outcome; confidence is recorded
// only for matches.
func RecordCorrelation(ctx context.Context, result string, confidence float64) {
	if correlationCounter != nil {
		correlationCounter.Add(ctx, 1, metric.WithAttributes(AttrResult.String(result)))
	}
	if confidenceHistogram != nil && result == "matched" {
		confidenceHistogram.Record(ctx, confidence)
	}
}

// RecordBroadcastEvent records one broadcast event published.
func RecordBroadcastEvent(ctx context.Context) {
	if broadcastCounter != nil {
		broadcastCounter.Add(ctx, 1)
	}
}

// AddStreamConnection adds 1 to the stream connection gauge (call on subscribe).
func AddStreamConnection() {
	streamConnectionsMu.Lock()
	streamConnections++
	streamConnectionsMu.Unlock()
}

// RemoveStreamConnection subtracts 1 from the stream connection gauge (call on unsubscribe).
func RemoveStreamConnection() {
	streamConnectionsMu.Lock()
	streamConnections--
	if streamConnections < 0 {
		streamConnections = 0
	}
	streamConnectionsMu.Unlock()
}
