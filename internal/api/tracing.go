package api

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const apiTracerName = "github.com/odvcencio/glenhance/internal/api"

// Span attributes set by the resolution handlers.
const (
	attrRunID          = attribute.Key("glenhance.run_id")
	attrScopeNamespace = attribute.Key("glenhance.scope.namespace")
	attrScopeRoot      = attribute.Key("glenhance.scope.root")
	attrResultCount    = attribute.Key("glenhance.result_count")
	attrUnresolved     = attribute.Key("glenhance.unresolved_count")
)

func requestTracingMiddleware(route func(*http.Request) string) middlewareFunc {
	tracer := otel.Tracer(apiTracerName)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkipRequestInstrumentation(r) {
				next.ServeHTTP(w, r)
				return
			}

			label := route(r)
			spanName := fmt.Sprintf("%s %s", r.Method, label)

			ctx, span := tracer.Start(r.Context(), spanName, trace.WithSpanKind(trace.SpanKindServer))
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				span.SetAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.route", label),
					attribute.Int("http.status_code", rec.status),
				)
				if rec.status >= http.StatusInternalServerError {
					span.SetStatus(codes.Error, http.StatusText(rec.status))
				} else {
					span.SetStatus(codes.Ok, "")
				}
				span.End()
			}()

			next.ServeHTTP(rec, r.WithContext(ctx))
		})
	}
}

// annotateRequest adds attributes to the span started for r, if any.
func annotateRequest(r *http.Request, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(r.Context()).SetAttributes(attrs...)
}

func annotateScope(r *http.Request, key attribute.Key, id *int64) {
	if id != nil {
		annotateRequest(r, key.Int64(*id))
	}
}
