package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const (
	ServiceName    = "invchat"
	ServiceVersion = "1.0.0"
)

func rotatingFile(dir, name string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, name),
		MaxSize:    10, // 10 MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

// InitLogger initializes structured logging with rotation. When console is
// true records are also written to stdout.
func InitLogger(logDir string, level slog.Level, console bool) (*slog.Logger, func(), error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	lumberjackLogger := rotatingFile(logDir, "invchat.log")

	var out io.Writer = lumberjackLogger
	if console {
		out = io.MultiWriter(os.Stdout, lumberjackLogger)
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(handler)
	slog.SetDefault(logger)

	cleanup := func() {
		_ = lumberjackLogger.Close()
	}
	return logger, cleanup, nil
}

// Exporters names where spans and metric snapshots are written
type Exporters struct {
	Traces   io.Writer
	Metrics  io.Writer
	Interval time.Duration // metric export period, 10s when zero
}

// FileExporters opens rotating invchat_traces.log and invchat_metrics.log
// files under logDir. The returned function closes both files.
func FileExporters(logDir string) (Exporters, func() error, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return Exporters{}, nil, fmt.Errorf("failed to create logs directory: %w", err)
	}
	traces := rotatingFile(logDir, "invchat_traces.log")
	metrics := rotatingFile(logDir, "invchat_metrics.log")
	closeFiles := func() error {
		return errors.Join(traces.Close(), metrics.Close())
	}
	return Exporters{Traces: traces, Metrics: metrics}, closeFiles, nil
}

// Providers owns the tracer and meter providers of the process
type Providers struct {
	tracing *sdktrace.TracerProvider
	metrics *sdkmetric.MeterProvider
}

// NewProviders builds tracer and meter providers exporting to ex and
// installs them as the otel globals.
func NewProviders(ctx context.Context, ex Exporters) (*Providers, error) {
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	spans, err := stdouttrace.New(stdouttrace.WithWriter(ex.Traces))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	snapshots, err := stdoutmetric.New(stdoutmetric.WithWriter(ex.Metrics))
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	interval := ex.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	p := &Providers{
		tracing: sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(spans),
			sdktrace.WithResource(res),
		),
		metrics: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(snapshots, sdkmetric.WithInterval(interval))),
			sdkmetric.WithResource(res),
		),
	}
	otel.SetTracerProvider(p.tracing)
	otel.SetMeterProvider(p.metrics)
	return p, nil
}

func (p *Providers) Tracer() trace.Tracer { return p.tracing.Tracer(ServiceName) }
func (p *Providers) Meter() metric.Meter  { return p.metrics.Meter(ServiceName) }

// Shutdown flushes pending spans and a final metric snapshot
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(p.tracing.Shutdown(ctx), p.metrics.Shutdown(ctx))
}
