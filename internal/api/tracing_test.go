package api

import (
	"context"
	"net/http"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

func installSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider()
	tp.RegisterSpanProcessor(recorder)
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(noop.NewTracerProvider())
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func onlySpan(t *testing.T, recorder *tracetest.SpanRecorder) sdktrace.ReadOnlySpan {
	t.Helper()
	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected one span, got %d", len(spans))
	}
	return spans[0]
}

func TestCloneRequestSpanCarriesResolutionAttributes(t *testing.T) {
	recorder := installSpanRecorder(t)
	server, _ := setupTestServer(t, &fakeResolver{current: testPublished(t)}, ServerOptions{})

	rec := doRequest(t, server, http.MethodGet, "/api/v1/repositories/clone?host=git.example.com", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	span := onlySpan(t, recorder)
	if got, want := span.Name(), "GET /api/v1/repositories/clone"; got != want {
		t.Fatalf("expected span name %q, got %q", want, got)
	}
	if span.Status().Code != codes.Ok {
		t.Fatalf("expected span status Ok, got %v", span.Status().Code)
	}
	attrs := span.Attributes()
	if !containsStringAttribute(attrs, "http.route", "/api/v1/repositories/clone") {
		t.Fatal("expected span attribute http.route=/api/v1/repositories/clone")
	}
	if !containsStringAttribute(attrs, "glenhance.run_id", "run-1") {
		t.Fatal("expected span attribute glenhance.run_id=run-1")
	}
	if !containsIntAttribute(attrs, "glenhance.unresolved_count", 1) {
		t.Fatal("expected span attribute glenhance.unresolved_count=1")
	}
	if !containsIntAttribute(attrs, "glenhance.result_count", 2) {
		t.Fatal("expected span attribute glenhance.result_count=2")
	}
	if hasAttribute(attrs, "glenhance.scope.namespace") {
		t.Fatal("unscoped request should not carry glenhance.scope.namespace")
	}
}

func TestScopedRequestSpansNameTheScope(t *testing.T) {
	tests := []struct {
		target string
		route  string
		key    string
		id     int
	}{
		{"/api/v1/repositories/bare?home=/srv&namespace=1", "/api/v1/repositories/bare", "glenhance.scope.namespace", 1},
		{"/api/v1/projects?namespace=3", "/api/v1/projects", "glenhance.scope.namespace", 3},
		{"/api/v1/namespaces?root=1", "/api/v1/namespaces", "glenhance.scope.root", 1},
		{"/api/v1/namespaces/2/subtree", "/api/v1/namespaces/{id}/subtree", "glenhance.scope.root", 2},
	}
	for _, tc := range tests {
		t.Run(tc.route, func(t *testing.T) {
			recorder := installSpanRecorder(t)
			server, _ := setupTestServer(t, &fakeResolver{current: testPublished(t)}, ServerOptions{})

			if rec := doRequest(t, server, http.MethodGet, tc.target, nil, ""); rec.Code != http.StatusOK {
				t.Fatalf("GET %s status = %d, want 200", tc.target, rec.Code)
			}
			span := onlySpan(t, recorder)
			if got, want := span.Name(), "GET "+tc.route; got != want {
				t.Fatalf("span name = %q, want %q", got, want)
			}
			if !containsIntAttribute(span.Attributes(), tc.key, tc.id) {
				t.Fatalf("expected span attribute %s=%d, got %v", tc.key, tc.id, span.Attributes())
			}
		})
	}
}

func TestRequestSpanMarksServerErrors(t *testing.T) {
	recorder := installSpanRecorder(t)
	server, _ := setupTestServer(t, &fakeResolver{}, ServerOptions{})

	if rec := doRequest(t, server, http.MethodGet, "/api/v1/namespaces/7", nil, ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 before the first pass", rec.Code)
	}
	span := onlySpan(t, recorder)
	if got, want := span.Name(), "GET /api/v1/namespaces/{id}"; got != want {
		t.Fatalf("span name = %q, want %q", got, want)
	}
	if span.Status().Code != codes.Error {
		t.Fatalf("expected span status Error, got %v", span.Status().Code)
	}
	if !containsIntAttribute(span.Attributes(), "http.status_code", http.StatusServiceUnavailable) {
		t.Fatal("expected span attribute http.status_code=503")
	}
	if hasAttribute(span.Attributes(), "glenhance.run_id") {
		t.Fatal("no run should be attributed before the first pass")
	}
}

func TestRequestTracingSkipsMetricsEndpoint(t *testing.T) {
	recorder := installSpanRecorder(t)
	server, _ := setupTestServer(t, &fakeResolver{current: testPublished(t)}, ServerOptions{})

	if rec := doRequest(t, server, http.MethodGet, "/metrics", nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if got := len(recorder.Ended()); got != 0 {
		t.Fatalf("expected no spans for /metrics, got %d", got)
	}
}

func hasAttribute(attrs []attribute.KeyValue, key string) bool {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return true
		}
	}
	return false
}

func containsStringAttribute(attrs []attribute.KeyValue, key, value string) bool {
	for _, attr := range attrs {
		if string(attr.Key) == key && attr.Value.Type() == attribute.STRING && attr.Value.AsString() == value {
			return true
		}
	}
	return false
}

func containsIntAttribute(attrs []attribute.KeyValue, key string, value int) bool {
	for _, attr := range attrs {
		if string(attr.Key) == key && attr.Value.Type() == attribute.INT64 && attr.Value.AsInt64() == int64(value) {
			return true
		}
	}
	return false
}
