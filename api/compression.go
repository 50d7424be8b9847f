package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/net/http/httpguts"
)

// ErrUnknownEncoding is returned for compression encodings the server can't produce.
var ErrUnknownEncoding = errors.New("unknown content encoding")

type encoder func(w io.Writer) (io.WriteCloser, error)

var encoders = map[string]encoder{ //nolint:gochecknoglobals
	"br": func(w io.Writer) (io.WriteCloser, error) {
		return brotli.NewWriter(w), nil
	},
	"zstd": func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w)
	},
	"gzip": func(w io.Writer) (io.WriteCloser, error) {
		return gzip.NewWriter(w), nil
	},
	"deflate": func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	},
}

// negotiateEncoding picks the first of supported that accept allows.
func negotiateEncoding(accept string, supported []string) string {
	if accept == "" {
		return ""
	}
	weights := make(map[string]float64)
	for _, part := range strings.Split(accept, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		q := 1.0
		if v, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				q = f
			}
		}
		weights[strings.ToLower(strings.TrimSpace(name))] = q
	}
	for _, enc := range supported {
		q, ok := weights[enc]
		if !ok {
			q, ok = weights["*"]
		}
		if ok && q > 0 {
			return enc
		}
	}
	return ""
}

func withCompressionHandler(supported []string, next http.Handler) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Add("Vary", "Accept-Encoding")
		encoding := negotiateEncoding(r.Header.Get("Accept-Encoding"), supported)
		if encoding == "" || r.Method == http.MethodHead ||
			httpguts.HeaderValuesContainsToken(r.Header["Connection"], "upgrade") {
			next.ServeHTTP(rw, r)
			return
		}

		cw := &compressResponseWriter{ResponseWriter: rw, encoding: encoding, newEncoder: encoders[encoding]}
		next.ServeHTTP(cw, r)
		_ = cw.Close()
	}
}

type compressResponseWriter struct {
	http.ResponseWriter
	encoding    string
	newEncoder  encoder
	w           io.WriteCloser
	err         error
	wroteHeader bool
}

func (c *compressResponseWriter) WriteHeader(status int) {
	if c.wroteHeader {
		return
	}
	c.wroteHeader = true
	h := c.Header()
	if compressible(status) && h.Get("Content-Encoding") == "" {
		h.Set("Content-Encoding", c.encoding)
		h.Del("Content-Length")
		c.w, c.err = c.newEncoder(c.ResponseWriter)
	}
	c.ResponseWriter.WriteHeader(status)
}

func (c *compressResponseWriter) Write(b []byte) (int, error) {
	if !c.wroteHeader {
		if c.Header().Get("Content-Type") == "" {
			c.Header().Set("Content-Type", http.DetectContentType(b))
		}
		c.WriteHeader(http.StatusOK)
	}
	if c.err != nil {
		return 0, c.err
	}
	if c.w == nil {
		return c.ResponseWriter.Write(b)
	}
	return c.w.Write(b)
}

func (c *compressResponseWriter) Flush() {
	if f, ok := c.w.(interface{ Flush() error }); ok {
		_ = f.Flush()
	}
	if f, ok := c.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (c *compressResponseWriter) Close() error {
	if c.w == nil {
		return nil
	}
	return c.w.Close()
}

func compressible(status int) bool {
	return status >= http.StatusOK && status != http.StatusNoContent && status != http.StatusNotModified
}
