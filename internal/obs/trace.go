package obs

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Span exporters accepted by TracingConfig.Exporter.
const (
	ExporterNone   = "none"
	ExporterLog    = "log"
	ExporterStdout = "stdout"
)

// TracingConfig selects how finished spans leave the process.
type TracingConfig struct {
	ServiceName string
	Version     string
	Exporter    string
	SampleRatio float64
}

// NewTracerProvider builds an SDK provider for cfg. The log exporter writes
// finished spans through logger at debug level.
func NewTracerProvider(cfg TracingConfig, logger *zap.Logger) (*tracesdk.TracerProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var exporter tracesdk.SpanExporter
	switch strings.ToLower(strings.TrimSpace(cfg.Exporter)) {
	case ExporterLog, "":
		exporter = &logExporter{logger: logger}
	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
		if err != nil {
			return nil, fmt.Errorf("stdout trace exporter: %w", err)
		}
		exporter = exp
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.Exporter)
	}

	ratio := cfg.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	return tracesdk.NewTracerProvider(
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(ratio))),
		tracesdk.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.Version),
		)),
		tracesdk.WithBatcher(exporter),
	), nil
}

// InitTracing installs the process-wide provider. With the "none" exporter
// spans are dropped and shutdown is a no-op.
func InitTracing(cfg TracingConfig, logger *zap.Logger) (trace.TracerProvider, func(context.Context) error, error) {
	if strings.EqualFold(strings.TrimSpace(cfg.Exporter), ExporterNone) {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, func(context.Context) error { return nil }, nil
	}
	tp, err := NewTracerProvider(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	otel.SetTracerProvider(tp)
	return tp, tp.Shutdown, nil
}

type logExporter struct {
	logger *zap.Logger
}

func (e *logExporter) ExportSpans(_ context.Context, spans []tracesdk.ReadOnlySpan) error {
	for _, s := range spans {
		fields := []zap.Field{
			zap.String("span", s.Name()),
			zap.String("trace_id", s.SpanContext().TraceID().String()),
			zap.String("span_id", s.SpanContext().SpanID().String()),
			zap.Duration("duration", s.EndTime().Sub(s.StartTime())),
			zap.String("status", s.Status().Code.String()),
		}
		if s.Parent().IsValid() {
			fields = append(fields, zap.String("parent_span_id", s.Parent().SpanID().String()))
		}
		for _, kv := range s.Attributes() {
			fields = append(fields, zap.String("attr."+string(kv.Key), kv.Value.Emit()))
		}
		e.logger.Debug("span finished", fields...)
	}
	return nil
}

func (e *logExporter) Shutdown(context.Context) error { return nil }

// Trace opens a server span per request named after the canonical path.
func Trace(next http.Handler, tp trace.TracerProvider) http.Handler {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer("stockroom.app/internal/obs")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" "+CanonicalPath(r.URL.Path),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", CanonicalPath(r.URL.Path)),
			),
		)
		defer span.End()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", sw.code))
		if sw.code >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(sw.code))
		}
	})
}

// TraceIDFromContext returns the active trace id, or "" when tracing is off.
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
