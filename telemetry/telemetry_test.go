package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"gridpointer/grid"
	"gridpointer/motion"
)

func TestNew_DisabledWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	tr, err := New(context.Background())
	require.NoError(t, err)
	assert.False(t, tr.Enabled())

	// no-op 实现可以正常调用
	tw := &motion.Transition{From: grid.Cell{Col: 1}, To: grid.Cell{Col: 2}, Duration: 150 * time.Millisecond}
	tr.TweenStarted(time.Now(), tw)
	tr.TweenFinished(time.Now(), tw)
	assert.NoError(t, tr.Shutdown(context.Background()))
}

func TestTracer_ExportsTweenSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	defer provider.Shutdown(context.Background())
	tr := NewWithTracer(provider.Tracer("test"))

	start := time.Unix(1700000000, 0)
	tw := &motion.Transition{
		From:     grid.Cell{Col: 10, Row: 5},
		To:       grid.Cell{Col: 15, Row: 5},
		Duration: 150 * time.Millisecond,
		Dash:     true,
	}
	tr.TweenStarted(start, tw)
	tr.TweenFinished(start.Add(151*time.Millisecond), tw)

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, SpanTween, s.Name)
	assert.Equal(t, 151*time.Millisecond, s.EndTime.Sub(s.StartTime))
	assert.Contains(t, s.Attributes, attribute.Int("gridpointer.to.col", 15))
	assert.Contains(t, s.Attributes, attribute.Bool("gridpointer.dash", true))
	assert.Contains(t, s.Attributes, attribute.Int64("gridpointer.duration_ms", 150))
}

func TestTracer_InterruptedSpanIsClosed(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	defer provider.Shutdown(context.Background())
	tr := NewWithTracer(provider.Tracer("test"))

	now := time.Now()
	tr.TweenStarted(now, &motion.Transition{To: grid.Cell{Col: 1}})
	tr.TweenStarted(now.Add(time.Millisecond), &motion.Transition{To: grid.Cell{Col: 2}})
	require.NoError(t, tr.Shutdown(context.Background()))

	spans := exp.GetSpans()
	require.Len(t, spans, 2)
	assert.Contains(t, spans[0].Attributes, attribute.Bool("gridpointer.interrupted", true))
}
