// Package otel turns bus events into OpenTelemetry spans: one per HTTP
// request or bridge connection, one per processed payload below it, and one
// per content API call below that.
package otel

import (
	"context"
	"fmt"
	"sync"

	eventbus "github.com/hanpama/livebridge/internal/eventbus"
	events "github.com/hanpama/livebridge/internal/events"
	reqid "github.com/hanpama/livebridge/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const instrumentation = "github.com/hanpama/livebridge"

// Setup exports traces to the OTLP collector at endpoint and subscribes to
// the process-wide bus. With an empty endpoint telemetry stays off.
func Setup(endpoint, service string) (shutdown func(context.Context) error, err error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exporter, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		return nil, fmt.Errorf("otel: exporter: %w", err)
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(service))),
	)
	otel.SetTracerProvider(provider)

	detach := Attach(eventbus.Current(), provider.Tracer(instrumentation))
	return func(ctx context.Context) error {
		detach()
		return provider.Shutdown(ctx)
	}, nil
}

// Attach records the events of b as spans of tracer. A nil bus records
// nothing.
func Attach(b *eventbus.Bus, tracer trace.Tracer) (detach func()) {
	if b == nil {
		return func() {}
	}
	r := &recorder{tracer: tracer}
	offs := []func(){
		eventbus.On(b, r.httpStart),
		eventbus.On(b, r.httpFinish),
		eventbus.On(b, r.payloadStart),
		eventbus.On(b, r.payloadFinish),
		eventbus.On(b, r.remoteStart),
		eventbus.On(b, r.remoteFinish),
		eventbus.On(b, r.formSubmit),
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

// openSpans holds the open span of one level per request id.
type openSpans struct{ m sync.Map }

func (o *openSpans) put(rid string, span trace.Span) { o.m.Store(rid, span) }

func (o *openSpans) get(rid string) (trace.Span, bool) {
	v, ok := o.m.Load(rid)
	if !ok {
		return nil, false
	}
	return v.(trace.Span), true
}

// finish ends the span of rid after letting fn annotate it.
func (o *openSpans) finish(rid string, fn func(trace.Span)) {
	v, ok := o.m.LoadAndDelete(rid)
	if !ok {
		return
	}
	span := v.(trace.Span)
	fn(span)
	span.End()
}

type recorder struct {
	tracer  trace.Tracer
	http    openSpans
	payload openSpans
	remote  openSpans
}

// within returns ctx parented to the first open span found among levels.
func within(ctx context.Context, rid string, levels ...*openSpans) context.Context {
	for _, l := range levels {
		if span, ok := l.get(rid); ok {
			return trace.ContextWithSpan(ctx, span)
		}
	}
	return ctx
}

func failed(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func (r *recorder) httpStart(ctx context.Context, e events.HTTPStart) {
	rid, _ := reqid.FromContext(ctx)
	_, span := r.tracer.Start(ctx, "http.request", trace.WithSpanKind(trace.SpanKindServer))
	span.SetAttributes(
		semconv.HTTPMethodKey.String(e.Request.Method),
		semconv.HTTPRouteKey.String(e.Route),
		attribute.String("http.target", e.Request.URL.Path),
	)
	r.http.put(rid, span)
}

func (r *recorder) httpFinish(ctx context.Context, e events.HTTPFinish) {
	rid, _ := reqid.FromContext(ctx)
	r.http.finish(rid, func(span trace.Span) {
		span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
		if e.Status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("status %d", e.Status))
		}
	})
}

func (r *recorder) payloadStart(ctx context.Context, e events.GraphQLStart) {
	rid, _ := reqid.FromContext(ctx)
	_, span := r.tracer.Start(within(ctx, rid, &r.http), "bridge.payload")
	span.SetAttributes(attribute.String("bridge.payload.id", e.PayloadID))
	r.payload.put(rid, span)
}

func (r *recorder) payloadFinish(ctx context.Context, e events.GraphQLFinish) {
	rid, _ := reqid.FromContext(ctx)
	r.payload.finish(rid, func(span trace.Span) {
		span.SetAttributes(attribute.Int("graphql.error_count", len(e.Errors)))
		failed(span, e.Err)
	})
}

func (r *recorder) remoteStart(ctx context.Context, e events.RemoteStart) {
	rid, _ := reqid.FromContext(ctx)
	_, span := r.tracer.Start(within(ctx, rid, &r.payload, &r.http), "content.request", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("net.peer.name", e.Endpoint),
		attribute.String("graphql.operation.name", e.OperationName),
	)
	r.remote.put(rid, span)
}

func (r *recorder) remoteFinish(ctx context.Context, e events.RemoteFinish) {
	rid, _ := reqid.FromContext(ctx)
	r.remote.finish(rid, func(span trace.Span) {
		if e.Status != 0 {
			span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
		}
		failed(span, e.Err)
	})
}

// formSubmit annotates the innermost open span; submits have no span of
// their own.
func (r *recorder) formSubmit(ctx context.Context, e events.FormSubmit) {
	rid, _ := reqid.FromContext(ctx)
	span := trace.SpanFromContext(within(ctx, rid, &r.payload, &r.http))
	span.AddEvent("form.submit", trace.WithAttributes(
		attribute.String("form.id", e.FormID),
		attribute.String("content.collection", e.Collection),
		attribute.Bool("form.submit.ok", e.Err == nil),
	))
}
