package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	oteltrace "go.opentelemetry.io/otel/trace"
)

func TestStartOperationProducesRecordingSpan(t *testing.T) {
	tr := New("driftwatch-test", "test")

	ctx, span := tr.StartOperation(context.Background(), "evaluate_drift", map[string]any{"service_id": "svc-a"})
	defer span.End()

	require.True(t, span.IsRecording())
	require.True(t, oteltrace.SpanContextFromContext(ctx).IsValid())
}

func TestRecordEventAndErrorDoNotPanicWithoutActiveSpan(t *testing.T) {
	require.NotPanics(t, func() {
		RecordEvent(context.Background(), "noop", map[string]any{"k": "v"})
		RecordError(context.Background(), "validation_error", errors.New("boom"))
	})
}

func TestFinishOperationSetsStatus(t *testing.T) {
	tr := New("driftwatch-test", "test")
	_, span := tr.StartOperation(context.Background(), "ingest_sample", nil)

	require.NotPanics(t, func() { FinishOperation(span, true) })

	_, span2 := tr.StartOperation(context.Background(), "ingest_sample", nil)
	require.NotPanics(t, func() { FinishOperation(span2, false) })
}
