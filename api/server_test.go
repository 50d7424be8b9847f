package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func testHTTPHandler(rw http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/fail" {
		http.Error(rw, "failed", http.StatusInternalServerError)
		return
	}
	rw.Header().Add("Content-Type", "text/plain; charset=utf-8")
	if _, err := fmt.Fprint(rw, strings.Repeat("hello ", 100)); err != nil {
		panic(err.Error())
	}
}

func newTestServer(t *testing.T, opts Options, logger logrus.FieldLogger) http.Handler {
	t.Helper()
	if logger == nil {
		l, _ := logtest.NewNullLogger()
		logger = l
	}
	srv, err := GetServer(opts, http.HandlerFunc(testHTTPHandler), logger, nil)
	require.NoError(t, err)
	return srv.Handler
}

func TestLogger(t *testing.T) {
	t.Parallel()
	for _, method := range []string{"GET", "POST", "PUT", "PATCH"} {
		method := method
		t.Run("method="+method, func(t *testing.T) {
			t.Parallel()
			for _, path := range []string{"/", "/test", "/test/path"} {
				rw := httptest.NewRecorder()
				r := httptest.NewRequest(method, "http://example.com"+path, nil)

				l, hook := logtest.NewNullLogger()
				l.Level = logrus.DebugLevel
				newTestServer(t, Options{}, l).ServeHTTP(rw, r)

				res := rw.Result()
				assert.Equal(t, http.StatusOK, res.StatusCode)
				assert.NotEmpty(t, res.Header.Get(requestIDHeader))

				if !assert.Len(t, hook.Entries, 1) {
					continue
				}
				e := hook.LastEntry()
				assert.Equal(t, logrus.DebugLevel, e.Level)
				assert.Equal(t, fmt.Sprintf("%s %s", method, path), e.Message)
				assert.Equal(t, http.StatusOK, e.Data["status"])
				assert.Equal(t, res.Header.Get(requestIDHeader), e.Data["requestId"])
			}
		})
	}
}

func TestLoggerKeepsRequestID(t *testing.T) {
	t.Parallel()
	rw := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/fail", nil)
	r.Header.Set(requestIDHeader, "abc")

	l, hook := logtest.NewNullLogger()
	l.Level = logrus.DebugLevel
	newTestServer(t, Options{}, l).ServeHTTP(rw, r)

	assert.Equal(t, "abc", rw.Header().Get(requestIDHeader))
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, http.StatusInternalServerError, hook.LastEntry().Data["status"])
}

func TestPing(t *testing.T) {
	t.Parallel()
	rw := httptest.NewRecorder()
	newTestServer(t, Options{}, nil).ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rw.Code)
	assert.Equal(t, "ok", rw.Body.String())
}

func TestRateLimit(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, Options{RateLimit: 0.001, RateBurst: 2}, nil)

	for i := 0; i < 2; i++ {
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rw.Code)
	}

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rw.Code)
	assert.Equal(t, "1", rw.Header().Get("Retry-After"))
}

func TestCompression(t *testing.T) {
	t.Parallel()
	decoders := map[string]func(r io.Reader) (io.Reader, error){
		"br": func(r io.Reader) (io.Reader, error) { return brotli.NewReader(r), nil },
		"zstd": func(r io.Reader) (io.Reader, error) {
			d, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return d.IOReadCloser(), nil
		},
		"gzip":    func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) },
		"deflate": func(r io.Reader) (io.Reader, error) { return flate.NewReader(r), nil },
	}

	for encoding, decode := range decoders {
		encoding, decode := encoding, decode
		t.Run(encoding, func(t *testing.T) {
			t.Parallel()
			h := newTestServer(t, Options{Compression: []string{encoding}}, nil)
			rw := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("Accept-Encoding", encoding)
			h.ServeHTTP(rw, r)

			assert.Equal(t, encoding, rw.Header().Get("Content-Encoding"))
			assert.Empty(t, rw.Header().Get("Content-Length"))
			assert.Equal(t, "text/plain; charset=utf-8", rw.Header().Get("Content-Type"))

			dr, err := decode(bytes.NewReader(rw.Body.Bytes()))
			require.NoError(t, err)
			body, err := io.ReadAll(dr)
			require.NoError(t, err)
			assert.Equal(t, strings.Repeat("hello ", 100), string(body))
		})
	}

	t.Run("not accepted", func(t *testing.T) {
		t.Parallel()
		h := newTestServer(t, Options{Compression: []string{"gzip"}}, nil)
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Empty(t, rw.Header().Get("Content-Encoding"))
		assert.Equal(t, strings.Repeat("hello ", 100), rw.Body.String())
	})

	t.Run("unknown encoding", func(t *testing.T) {
		t.Parallel()
		_, err := GetServer(Options{Compression: []string{"lzma"}}, http.NotFoundHandler(), logrus.New(), nil)
		assert.ErrorIs(t, err, ErrUnknownEncoding)
	})
}

func TestNegotiateEncoding(t *testing.T) {
	t.Parallel()
	supported := []string{"br", "zstd", "gzip"}
	testCases := map[string]string{
		"":                       "",
		"gzip":                   "gzip",
		"gzip, br":               "br",
		"br;q=0, gzip;q=0.5":     "gzip",
		"*":                      "br",
		"identity":               "",
		"deflate, ZSTD;q=0.1":    "zstd",
		"*;q=0, gzip;q=1":        "gzip",
		" gzip ; q=0 , deflate ": "",
	}
	for accept, expected := range testCases {
		assert.Equal(t, expected, negotiateEncoding(accept, supported), accept)
	}
}

func TestTracing(t *testing.T) {
	t.Parallel()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	l, _ := logtest.NewNullLogger()
	srv, err := GetServer(Options{}, http.HandlerFunc(testHTTPHandler), l, tp)
	require.NoError(t, err)

	srv.Handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/hello", nil))
	srv.Handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/fail", nil))

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "GET /hello", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, "POST /fail", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)

	var status int64
	for _, attr := range spans[1].Attributes() {
		if attr.Key == "http.response.status_code" {
			status = attr.Value.AsInt64()
		}
	}
	assert.Equal(t, int64(http.StatusInternalServerError), status)
}
