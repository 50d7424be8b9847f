// Package trace sets up the OpenTelemetry tracer provider the server records
// request spans with.
package trace

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const serviceName = "purple"

var (
	// ErrInvalidTracesOutput indicates that the defined traces output is not valid.
	ErrInvalidTracesOutput = errors.New("invalid traces output")
	// ErrInvalidProto indicates that the defined exporter protocol is not valid.
	ErrInvalidProto = errors.New("invalid protocol")
	// ErrInvalidURLScheme indicates that the defined exporter URL scheme is not valid.
	ErrInvalidURLScheme = errors.New("invalid URL scheme")
	// ErrInvalidGRPCWithURLPath indicates that an exporter using gRPC protocol does not support URL path.
	ErrInvalidGRPCWithURLPath = errors.New("grpc protocol does not support URL path")
)

// TracerProvider provides tracers and shuts down their processing pipeline.
type TracerProvider struct {
	trace.TracerProvider
	shutdown func(ctx context.Context) error
}

type tracerProviderParams struct {
	proto    string
	endpoint string
	urlPath  string
	insecure bool
	headers  map[string]string
}

func defaultTracerProviderParams() tracerProviderParams {
	return tracerProviderParams{
		proto:    "grpc",
		endpoint: "127.0.0.1:4317",
		insecure: true,
		headers:  make(map[string]string),
	}
}

func newTracerProvider(ctx context.Context, params tracerProviderParams) (*TracerProvider, error) {
	client, err := newClient(params)
	if err != nil {
		return nil, fmt.Errorf("creating TracerProvider exporter client: %w", err)
	}

	exporter, err := otlptrace.New(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("creating TracerProvider exporter: %w", err)
	}

	prov := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		)),
	)
	return &TracerProvider{TracerProvider: prov, shutdown: prov.Shutdown}, nil
}

// NewTracerProvider wraps an already configured provider, such as one
// recording spans in memory.
func NewTracerProvider(prov *sdktrace.TracerProvider) *TracerProvider {
	return &TracerProvider{TracerProvider: prov, shutdown: prov.Shutdown}
}

func newClient(params tracerProviderParams) (otlptrace.Client, error) {
	switch params.proto {
	case "http":
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(params.endpoint),
			otlptracehttp.WithURLPath(params.urlPath),
			otlptracehttp.WithHeaders(params.headers),
		}
		if params.insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.NewClient(opts...), nil
	case "grpc":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(params.endpoint),
			otlptracegrpc.WithHeaders(params.headers),
		}
		if params.insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.NewClient(opts...), nil
	default:
		return nil, ErrInvalidProto
	}
}

// NewNoopTracerProvider creates a TracerProvider that records nothing.
func NewNoopTracerProvider() *TracerProvider {
	prov := noop.NewTracerProvider()
	otel.SetTracerProvider(prov)
	return &TracerProvider{
		TracerProvider: prov,
		shutdown:       func(context.Context) error { return nil },
	}
}

// Shutdown flushes pending spans and releases the exporter.
// After Shutdown is called, all methods are no-ops.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	return tp.shutdown(ctx)
}

// TracerProviderFromConfigLine initializes a TracerProvider from a traces
// output line. An empty line or "none" disables tracing.
//
// Supported format is: otel[=<endpoint>:<port>,<other opts>]
// Where endpoint and port default to: 127.0.0.1:4317
// And other opts accept:
//   - proto: http or grpc (default).
//   - header.<header_name>
//
// Example: otel=http://127.0.0.1:4318/v1/traces,header.Authorization=token
func TracerProviderFromConfigLine(ctx context.Context, line string) (*TracerProvider, error) {
	if line == "" || line == "none" {
		return NewNoopTracerProvider(), nil
	}
	params, err := tracerProviderParamsFromConfigLine(line)
	if err != nil {
		return nil, err
	}
	return newTracerProvider(ctx, params)
}

func tracerProviderParamsFromConfigLine(line string) (tracerProviderParams, error) {
	params := defaultTracerProviderParams()

	if line == "otel" {
		return params, nil
	}

	traceOutput, _, _ := strings.Cut(line, "=")
	if traceOutput != "otel" {
		return params, fmt.Errorf("%w %q", ErrInvalidTracesOutput, traceOutput)
	}

	for _, token := range strings.Split(line, ",") {
		key, value, ok := strings.Cut(token, "=")
		if !ok {
			return params, fmt.Errorf("error while parsing otel configuration: %q is not a key=value pair", token)
		}

		var err error
		switch key {
		case "otel":
			if strings.Contains(value, "://") {
				err = params.parseURL(value)
			} else {
				params.endpoint = value
			}
			if err != nil {
				return params, fmt.Errorf("couldn't parse the otel URL: %w", err)
			}
		case "proto":
			if err = params.parseProto(value); err != nil {
				return params, fmt.Errorf("couldn't parse the otel proto: %w", err)
			}
		default:
			if name, ok := strings.CutPrefix(key, "header."); ok {
				params.headers[name] = value
				continue
			}
			return params, fmt.Errorf("unknown otel config key %s", key)
		}
	}

	if params.proto == "grpc" && params.urlPath != "" {
		return params, ErrInvalidGRPCWithURLPath
	}

	return params, nil
}

func (p *tracerProviderParams) parseURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q", ErrInvalidURLScheme, u.Scheme)
	}

	p.proto = "http"
	p.endpoint = u.Host
	p.urlPath = u.Path
	p.insecure = u.Scheme == "http"

	return nil
}

func (p *tracerProviderParams) parseProto(proto string) error {
	if proto != "http" && proto != "grpc" {
		return fmt.Errorf("%w: %q", ErrInvalidProto, proto)
	}
	p.proto = proto
	return nil
}
