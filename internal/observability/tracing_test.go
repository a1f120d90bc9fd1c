package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := Tracer
	Tracer = tp.Tracer("test")
	t.Cleanup(func() {
		Tracer = previous
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestStartOperation_RecordsError(t *testing.T) {
	recorder := recordSpans(t)

	run := func() (err error) {
		_, finish := StartOperation(context.Background(), "TopicService", "CreateTopic", attribute.Int64("topic.id", 7))
		defer finish(&err)
		return errors.New("boom")
	}
	require.Error(t, run())

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "TopicService.CreateTopic", span.Name())
	assert.Equal(t, trace.SpanKindInternal, span.SpanKind())
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, "boom", span.Status().Description)
	assert.Contains(t, span.Attributes(), attribute.Int64("topic.id", 7))
	require.Len(t, span.Events(), 1)
	assert.Equal(t, "exception", span.Events()[0].Name)
}

func TestStartOperation_NestsAndLeavesSuccessUnset(t *testing.T) {
	recorder := recordSpans(t)

	ctx, finishOuter := StartOperation(context.Background(), "VoteService", "CastVote")
	require.True(t, trace.SpanFromContext(ctx).SpanContext().IsValid())
	_, finishInner := StartOperation(ctx, "ReplyService", "ListReplies")
	finishInner(nil)
	var err error
	finishOuter(&err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	inner, outer := spans[0], spans[1]
	assert.Equal(t, "ReplyService.ListReplies", inner.Name())
	assert.Equal(t, outer.SpanContext().SpanID(), inner.Parent().SpanID())
	assert.Equal(t, codes.Unset, outer.Status().Code)
	assert.Empty(t, outer.Events())
}

func TestInitTracing_DisabledIsNoop(t *testing.T) {
	previous := Tracer
	t.Cleanup(func() { Tracer = previous })

	shutdown, err := InitTracing(TracingConfig{ServiceName: "agora-test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1).Description())
	assert.Contains(t, samplerFor(0.25).Description(), "ParentBased")
}
