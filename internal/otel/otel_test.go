package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	eventbus "github.com/hanpama/olapcore/internal/eventbus"
	events "github.com/hanpama/olapcore/internal/events"
	"github.com/hanpama/olapcore/internal/execution"
	"github.com/hanpama/olapcore/internal/olap"
	"github.com/hanpama/olapcore/internal/query"
	"github.com/hanpama/olapcore/internal/resolver"
)

func newRecorder(t *testing.T) (*eventbus.Bus, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	bus := eventbus.New()
	detach := Attach(bus, tp.Tracer("test"))
	t.Cleanup(detach)
	return bus, sr
}

func attr(s sdktrace.ReadOnlySpan, key string) attribute.Value {
	for _, kv := range s.Attributes() {
		if string(kv.Key) == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func TestResolutionSpansNestUnderExecution(t *testing.T) {
	bus, sr := newRecorder(t)
	eventbus.Use(bus)
	t.Cleanup(func() { eventbus.Use(nil) })

	cat, cube := olap.NewSampleCatalog(olap.NamingSSAS)
	stmt := execution.NewStatement("q")
	exec := stmt.NewExecution(context.Background(), 0)
	require.NoError(t, stmt.Start(exec))
	q := &query.Query{Cube: "Sales", Axes: []*query.Axis{query.On(0, query.Set(
		query.Id("[Product].[Food].[Dairy]"),
	))}}
	_, err := resolver.New(cat).Resolve(exec.Context(), exec, cube, q)
	require.NoError(t, err)
	require.NoError(t, stmt.End(exec))

	spans := sr.Ended()
	var names []string
	for _, s := range spans {
		names = append(names, s.Name())
	}
	want := []string{"olap.lookup", "olap.lookup", "olap.resolve", "olap.execution"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("ended spans mismatch (-want +got):\n%s", diff)
	}

	lookup, resolve, root := spans[0], spans[2], spans[3]
	require.Equal(t, resolve.SpanContext().SpanID(), lookup.Parent().SpanID())
	require.Equal(t, root.SpanContext().SpanID(), resolve.Parent().SpanID())
	require.Equal(t, "[Product].[All Products]", attr(lookup, "olap.lookup.parent").AsString())
	require.Equal(t, int64(2), attr(resolve, "olap.resolve.lookups").AsInt64())
	require.Equal(t, "done", attr(root, "olap.execution.state").AsString())

	// Every locus frame is recorded on the execution span.
	require.Len(t, root.Events(), 3)
	require.Equal(t, "locus", root.Events()[0].Name)
}

func TestFailedLookupMarksSpanError(t *testing.T) {
	bus, sr := newRecorder(t)
	ctx := context.Background()
	boom := errors.New("backend down")

	eventbus.PublishTo(ctx, bus, events.LookupStart{ExecutionID: "e1", Parent: "[Time].[All Times]", Names: 2})
	eventbus.PublishTo(ctx, bus, events.LookupFinish{ExecutionID: "e1", Err: boom})

	spans := sr.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, codes.Error, spans[0].Status().Code)
	require.Equal(t, "backend down", spans[0].Status().Description)
}

func TestRunsWithoutExecutionAreNotTraced(t *testing.T) {
	bus, sr := newRecorder(t)
	eventbus.Use(bus)
	t.Cleanup(func() { eventbus.Use(nil) })

	cat, cube := olap.NewSampleCatalog(olap.NamingSSAS)
	q := &query.Query{Cube: "Sales", Axes: []*query.Axis{query.On(0, query.Set(
		query.Id("[Product].[Food].[Dairy]"),
	))}}
	_, err := resolver.New(cat).Resolve(context.Background(), nil, cube, q)
	require.NoError(t, err)

	ctx := context.Background()
	eventbus.PublishTo(ctx, bus, events.ResolveStart{Cube: "Sales"})
	eventbus.PublishTo(ctx, bus, events.ResolveStart{Cube: "Sales"})
	eventbus.PublishTo(ctx, bus, events.ResolveFinish{})
	eventbus.PublishTo(ctx, bus, events.ResolveFinish{})
	require.Empty(t, sr.Ended())
	require.Empty(t, sr.Started())
}

func TestDetachStopsRecording(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	bus := eventbus.New()
	detach := Attach(bus, tp.Tracer("test"))
	detach()

	eventbus.PublishTo(context.Background(), bus, events.ExecutionStart{ExecutionID: "e1"})
	eventbus.PublishTo(context.Background(), bus, events.ExecutionEnd{ExecutionID: "e1"})
	require.Empty(t, sr.Ended())
}

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup("", "olapcore")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
