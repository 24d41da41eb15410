package tracing_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cwrk-planet/chat-service/pkg/tracing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestMiddleware_StartsSpan(t *testing.T) {
	shutdown := tracing.Init(1)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	var sc trace.SpanContext
	h := tracing.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc = trace.SpanFromContext(r.Context()).SpanContext()
	}))

	r := httptest.NewRequest(http.MethodGet, "/messages/direct", nil)
	r.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	h.ServeHTTP(httptest.NewRecorder(), r)

	require.True(t, sc.IsValid())
	require.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", sc.TraceID().String())
}

func TestStartEnd(t *testing.T) {
	shutdown := tracing.Init(1)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	ctx, span := tracing.Start(context.Background(), "relay.send")
	require.True(t, trace.SpanFromContext(ctx).SpanContext().IsValid())
	tracing.End(span, errors.New("boom"))
}
