package otel

import (
	"context"
	"testing"
)

func TestRecordHelpersAreNoOpsBeforeInit(t *testing.T) {
	// Must not panic when instruments are nil.
	ctx := context.Background()
	RecordEventIngested(ctx, "tool_result")
	RecordCorrelation(ctx, "matched", 0.8)
	RecordBroadcastEvent(ctx)
	AddStreamConnection()
	RemoveStreamConnection()
	RemoveStreamConnection() // gauge clamps at zero
}

func TestInitMeterProviderAndMetrics(t *testing.T) {
	ctx := context.Background()
	handler, err := InitMeterProvider(ctx, "agent-monitor-test")
	if err != nil {
		t.Fatalf("InitMeterProvider: %v", err)
	}
	if handler == nil {
		t.Fatal("expected /metrics handler")
	}
	if err := InitMetrics(ctx); err != nil {
		t.Fatalf("InitMetrics: %v", err)
	}
	RecordEventIngested(ctx, "tool_result")
	RecordCorrelation(ctx, "matched", 0.72)
	RecordCorrelation(ctx, "no_match", 0)
	RecordBroadcastEvent(ctx)
	AddStreamConnection()
	RemoveStreamConnection()
}
