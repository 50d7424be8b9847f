package api

import (
	"net/http"
	"time"

	uuid "github.com/nu7hatch/gouuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	tracerName      = "github.com/purplejs/purplejs/api"
	requestIDHeader = "X-Request-Id"
)

// withLoggingHandler returns the middleware which logs response status for request.
func withLoggingHandler(l logrus.FieldLogger, next http.Handler) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			if u, err := uuid.NewV4(); err == nil {
				id = u.String()
			}
		}
		rw.Header().Set(requestIDHeader, id)

		start := time.Now()
		wrapped := &wrappedResponseWriter{ResponseWriter: rw, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		l.WithFields(logrus.Fields{
			"status":    wrapped.status,
			"requestId": id,
			"duration":  time.Since(start),
		}).Debugf("%s %s", r.Method, r.URL.Path)
	}
}

func withRateLimitHandler(limiter *rate.Limiter, next http.Handler) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			rw.Header().Set("Retry-After", "1")
			http.Error(rw, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(rw, r)
	}
}

// withTracingHandler records a server span for every request, continuing the
// trace of the caller when the request carries one.
func withTracingHandler(tracer trace.Tracer, next http.Handler) http.HandlerFunc {
	propagator := propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	return func(rw http.ResponseWriter, r *http.Request) {
		ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
				attribute.String("server.address", r.Host),
			),
		)
		defer span.End()

		wrapped := &wrappedResponseWriter{ResponseWriter: rw, status: http.StatusOK}
		next.ServeHTTP(wrapped, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.response.status_code", wrapped.status))
		if wrapped.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(wrapped.status))
		}
	}
}
