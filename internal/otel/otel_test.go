package otel

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	eventbus "github.com/hanpama/livebridge/internal/eventbus"
	events "github.com/hanpama/livebridge/internal/events"
	reqid "github.com/hanpama/livebridge/internal/reqid"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorder(t *testing.T) (*eventbus.Bus, *tracetest.SpanRecorder, func()) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	bus := eventbus.New()
	detach := Attach(bus, provider.Tracer(instrumentation))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return bus, rec, detach
}

func spanNamed(t *testing.T, spans []sdktrace.ReadOnlySpan, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, s := range spans {
		if s.Name() == name {
			return s
		}
	}
	t.Fatalf("no span %q", name)
	return nil
}

func TestAttach_NestsSpansPerRequest(t *testing.T) {
	bus, rec, _ := newRecorder(t)
	ctx := reqid.WithID(context.Background(), "conn-1")
	req := httptest.NewRequest("GET", "/bridge", nil)

	eventbus.Emit(ctx, bus, events.HTTPStart{Request: req, Route: "GET /bridge"})
	eventbus.Emit(ctx, bus, events.GraphQLStart{PayloadID: "p1"})
	eventbus.Emit(ctx, bus, events.RemoteStart{Endpoint: "http://content"})
	eventbus.Emit(ctx, bus, events.RemoteFinish{Endpoint: "http://content", Status: 502, Err: errors.New("bad gateway")})
	eventbus.Emit(ctx, bus, events.FormSubmit{FormID: "content/posts/a.md", Collection: "post"})
	eventbus.Emit(ctx, bus, events.GraphQLFinish{PayloadID: "p1", Errors: []error{errors.New("x")}})
	eventbus.Emit(ctx, bus, events.HTTPFinish{Request: req, Route: "GET /bridge", Status: 101})

	spans := rec.Ended()
	require.Len(t, spans, 3)
	httpSpan := spanNamed(t, spans, "http.request")
	payload := spanNamed(t, spans, "bridge.payload")
	remote := spanNamed(t, spans, "content.request")

	require.Equal(t, httpSpan.SpanContext().SpanID(), payload.Parent().SpanID())
	require.Equal(t, payload.SpanContext().SpanID(), remote.Parent().SpanID())
	require.Equal(t, codes.Error, remote.Status().Code)
	require.Equal(t, codes.Unset, httpSpan.Status().Code)

	require.Len(t, payload.Events(), 1)
	require.Equal(t, "form.submit", payload.Events()[0].Name)
}

func TestAttach_SeparatesRequests(t *testing.T) {
	bus, rec, _ := newRecorder(t)
	a := reqid.WithID(context.Background(), "a")
	b := reqid.WithID(context.Background(), "b")
	req := httptest.NewRequest("GET", "/api/forms", nil)

	eventbus.Emit(a, bus, events.HTTPStart{Request: req})
	eventbus.Emit(b, bus, events.HTTPStart{Request: req})
	eventbus.Emit(b, bus, events.HTTPFinish{Request: req, Status: 500})
	require.Len(t, rec.Ended(), 1)
	require.Equal(t, codes.Error, rec.Ended()[0].Status().Code)

	eventbus.Emit(a, bus, events.HTTPFinish{Request: req, Status: 200})
	require.Len(t, rec.Ended(), 2)
}

func TestAttach_Detach(t *testing.T) {
	bus, rec, detach := newRecorder(t)
	detach()

	ctx := reqid.WithID(context.Background(), "a")
	req := httptest.NewRequest("GET", "/", nil)
	eventbus.Emit(ctx, bus, events.HTTPStart{Request: req})
	eventbus.Emit(ctx, bus, events.HTTPFinish{Request: req, Status: 200})
	require.Empty(t, rec.Ended())
	require.Empty(t, rec.Started())
}

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup("", "livebridge")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
