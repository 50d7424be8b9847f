// Package api puts a script application on an HTTP server.
package api

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Options configure the server.
type Options struct {
	// Addr is the address the server listens on.
	Addr string
	// RateLimit is the number of requests per second the server accepts.
	// Zero disables rate limiting.
	RateLimit float64
	// RateBurst is the number of requests accepted at once above RateLimit.
	RateBurst int
	// Compression lists the encodings responses may be compressed with, in
	// order of preference. Empty disables compression.
	Compression []string
	// ReadHeaderTimeout limits the time to read request headers.
	ReadHeaderTimeout time.Duration
}

func newHandler(app http.Handler, logger logrus.FieldLogger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ping", handlePing(logger))
	mux.Handle("/", app)
	return mux
}

// GetServer returns a http.Server instance that serves app, the handler of a
// script application.
func GetServer(
	opts Options, app http.Handler, logger logrus.FieldLogger, tp trace.TracerProvider,
) (*http.Server, error) {
	handler := newHandler(app, logger)

	if len(opts.Compression) > 0 {
		for _, enc := range opts.Compression {
			if _, ok := encoders[enc]; !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, enc)
			}
		}
		handler = withCompressionHandler(opts.Compression, handler)
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		handler = withRateLimitHandler(rate.NewLimiter(rate.Limit(opts.RateLimit), burst), handler)
	}
	if tp != nil {
		handler = withTracingHandler(tp.Tracer(tracerName), handler)
	}
	handler = withLoggingHandler(logger, handler)

	timeout := opts.ReadHeaderTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Server{Addr: opts.Addr, Handler: handler, ReadHeaderTimeout: timeout}, nil
}

type wrappedResponseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *wrappedResponseWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *wrappedResponseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *wrappedResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *wrappedResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("the response writer can't be hijacked")
	}
	w.status = http.StatusSwitchingProtocols
	w.wroteHeader = true
	return h.Hijack()
}

func (w *wrappedResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func handlePing(logger logrus.FieldLogger) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Add("Content-Type", "text/plain; charset=utf-8")
		if _, err := fmt.Fprint(rw, "ok"); err != nil {
			logger.WithError(err).Error("Error while printing ok")
		}
	})
}
