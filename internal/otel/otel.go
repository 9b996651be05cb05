package otel

import (
	"context"
	"sync"

	eventbus "github.com/hanpama/olapcore/internal/eventbus"
	events "github.com/hanpama/olapcore/internal/events"
	"github.com/hanpama/olapcore/internal/execution"
	reqid "github.com/hanpama/olapcore/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Setup configures OpenTelemetry and attaches span subscribers to the
// global event bus. If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	detach := Attach(eventbus.Current(), otel.Tracer("olapcore"))
	return func(ctx context.Context) error {
		detach()
		return tp.Shutdown(ctx)
	}, nil
}

// Attach subscribes span builders to bus and returns a function removing
// them. Execution spans are keyed by execution id; resolution, lookup and
// locus spans nest below the execution they belong to.
func Attach(bus *eventbus.Bus, tracer trace.Tracer) (detach func()) {
	s := &subscriber{tracer: tracer}
	return s.register(bus)
}

type subscriber struct {
	tracer      trace.Tracer
	httpSpans   sync.Map // rid -> trace.Span
	grpcSpans   sync.Map // grpcKey -> trace.Span
	execSpans   sync.Map // execution id -> trace.Span
	resolve     sync.Map // execution id -> trace.Span
	lookupSpans sync.Map // execution id -> trace.Span
}

// parent returns ctx carrying the innermost open span for the execution.
func (s *subscriber) parent(ctx context.Context, execID string, maps ...*sync.Map) context.Context {
	for _, m := range maps {
		if v, ok := m.Load(execID); ok {
			return trace.ContextWithSpan(ctx, v.(trace.Span))
		}
	}
	return ctx
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *subscriber) register(bus *eventbus.Bus) func() {
	var unsubs []func()
	on := func(u func()) { unsubs = append(unsubs, u) }

	on(eventbus.SubscribeTo(bus, func(ctx context.Context, e events.HTTPStart) {
		rid, _ := reqid.FromContext(ctx)
		_, span := s.tracer.Start(ctx, "http.request")
		span.SetAttributes(
			semconv.HTTPMethodKey.String(e.Request.Method),
			attribute.String("http.target", e.Request.URL.Path),
			semconv.HTTPRouteKey.String(e.Route),
			attribute.String("http.request_id", rid),
		)
		s.httpSpans.Store(rid, span)
	}))

	on(eventbus.SubscribeTo(bus, func(ctx context.Context, e events.HTTPFinish) {
		rid, _ := reqid.FromContext(ctx)
		v, ok := s.httpSpans.LoadAndDelete(rid)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
		span.End()
	}))

	on(eventbus.SubscribeTo(bus, func(ctx context.Context, e events.ExecutionStart) {
		parent := ctx
		if rid, ok := reqid.FromContext(ctx); ok {
			if v, ok := s.httpSpans.Load(rid); ok {
				parent = trace.ContextWithSpan(ctx, v.(trace.Span))
			}
		}
		_, span := s.tracer.Start(parent, "olap.execution")
		span.SetAttributes(
			attribute.String("olap.execution.id", e.ExecutionID),
			attribute.String("olap.statement.id", e.StatementID),
			attribute.Int64("olap.execution.timeout_ms", e.Timeout.Milliseconds()),
		)
		s.execSpans.Store(e.ExecutionID, span)
	}))

	on(eventbus.SubscribeTo(bus, func(ctx context.Context, e events.ExecutionEnd) {
		v, ok := s.execSpans.LoadAndDelete(e.ExecutionID)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(attribute.String("olap.execution.state", e.State))
		end(span, e.Err)
	}))

	// Resolution and lookup spans are keyed by execution id. Runs without
	// an execution have no key and are not traced.
	on(eventbus.SubscribeTo(bus, func(ctx context.Context, e events.ResolveStart) {
		if e.ExecutionID == "" {
			return
		}
		_, span := s.tracer.Start(s.parent(ctx, e.ExecutionID, &s.execSpans), "olap.resolve")
		span.SetAttributes(
			attribute.String("olap.cube", e.Cube),
			attribute.Int("olap.resolve.candidates", e.Candidates),
		)
		s.resolve.Store(e.ExecutionID, span)
	}))

	on(eventbus.SubscribeTo(bus, func(ctx context.Context, e events.ResolveFinish) {
		v, ok := s.resolve.LoadAndDelete(e.ExecutionID)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(
			attribute.Int("olap.resolve.rounds", e.Rounds),
			attribute.Int("olap.resolve.lookups", e.Lookups),
			attribute.Int("olap.resolve.resolved", e.Resolved),
			attribute.Int("olap.resolve.unresolved", e.Unresolved),
		)
		end(span, e.Err)
	}))

	on(eventbus.SubscribeTo(bus, func(ctx context.Context, e events.LookupStart) {
		if e.ExecutionID == "" {
			return
		}
		_, span := s.tracer.Start(s.parent(ctx, e.ExecutionID, &s.resolve, &s.execSpans), "olap.lookup")
		span.SetAttributes(
			attribute.String("olap.hierarchy", e.Hierarchy),
			attribute.String("olap.lookup.parent", e.Parent),
			attribute.Int("olap.lookup.depth", e.Depth),
			attribute.Int("olap.lookup.names", e.Names),
		)
		s.lookupSpans.Store(e.ExecutionID, span)
	}))

	on(eventbus.SubscribeTo(bus, func(ctx context.Context, e events.LookupFinish) {
		v, ok := s.lookupSpans.LoadAndDelete(e.ExecutionID)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(attribute.Int("olap.lookup.found", e.Found))
		end(span, e.Err)
	}))

	// Locus frames become events on the execution span; lookups already
	// have spans of their own.
	on(eventbus.SubscribeTo(bus, func(ctx context.Context, e events.LocusExit) {
		v, ok := s.execSpans.Load(e.ExecutionID)
		if !ok {
			return
		}
		v.(trace.Span).AddEvent("locus", trace.WithAttributes(
			attribute.String("olap.locus.component", e.Component),
			attribute.String("olap.locus.message", e.Message),
			attribute.Int("olap.locus.depth", e.Depth),
			attribute.Int64("olap.locus.duration_us", e.Duration.Microseconds()),
		))
	}))

	on(eventbus.SubscribeTo(bus, func(ctx context.Context, e events.GRPCClientStart) {
		rid, _ := reqid.FromContext(ctx)
		parent := ctx
		if exec := executionID(ctx); exec != "" {
			parent = s.parent(ctx, exec, &s.lookupSpans, &s.resolve, &s.execSpans)
		} else if v, ok := s.httpSpans.Load(rid); ok {
			parent = trace.ContextWithSpan(ctx, v.(trace.Span))
		}
		_, span := s.tracer.Start(parent, "grpc.client")
		span.SetAttributes(
			semconv.RPCServiceKey.String(e.Service),
			semconv.RPCMethodKey.String(e.Method),
			attribute.String("net.peer.name", e.Target),
		)
		s.grpcSpans.Store(grpcKey(ctx, rid), span)
	}))

	on(eventbus.SubscribeTo(bus, func(ctx context.Context, e events.GRPCClientFinish) {
		rid, _ := reqid.FromContext(ctx)
		v, ok := s.grpcSpans.LoadAndDelete(grpcKey(ctx, rid))
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(attribute.String("grpc.code", e.Code.String()))
		end(span, e.Err)
	}))

	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func executionID(ctx context.Context) string {
	if e, ok := execution.FromContext(ctx); ok {
		return e.ID.String()
	}
	return ""
}

// grpcKey keys client spans by execution when there is one, else by request.
func grpcKey(ctx context.Context, rid string) string {
	if id := executionID(ctx); id != "" {
		return id
	}
	return "req:" + rid
}
