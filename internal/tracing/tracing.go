// Package tracing provides minimal OTLP tracing around graph assembly and
// tool execution.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const serviceName = "dmriflow-worker"

var tracer oteltrace.Tracer

// Config holds tracing configuration.
type Config struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"endpoint"`
}

// Initialize sets up OTLP tracing. A no-op tracer handle is installed even
// when tracing is disabled, so the Start helpers never panic.
func Initialize(cfg Config, logger *zap.Logger) (func(context.Context) error, error) {
	tracer = otel.Tracer(serviceName)

	if !cfg.Enabled {
		logger.Info("Tracing disabled")
		return func(context.Context) error { return nil }, nil
	}
	if cfg.OTLPEndpoint == "" {
		cfg.OTLPEndpoint = "localhost:4317"
	}

	exporter, err := otlptracegrpc.New(
		context.Background(),
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	tracer = otel.Tracer(serviceName)

	logger.Info("Tracing initialized", zap.String("endpoint", cfg.OTLPEndpoint))
	return tp.Shutdown, nil
}

// StartSpan creates a new span with the given name.
func StartSpan(ctx context.Context, spanName string) (context.Context, oteltrace.Span) {
	if tracer == nil {
		tracer = otel.Tracer(serviceName)
	}
	return tracer.Start(ctx, spanName)
}

// StartAssemblySpan creates a span for one subject graph assembly.
func StartAssemblySpan(ctx context.Context, graphName, subjectID string) (context.Context, oteltrace.Span) {
	ctx, span := StartSpan(ctx, "assemble "+graphName)
	span.SetAttributes(
		attribute.String("graph.name", graphName),
		attribute.String("subject.id", subjectID),
	)
	return ctx, span
}

// StartToolSpan creates a span for one external tool invocation.
func StartToolSpan(ctx context.Context, binary, nodeID string) (context.Context, oteltrace.Span) {
	ctx, span := StartSpan(ctx, "tool "+binary)
	span.SetAttributes(
		attribute.String("tool.binary", binary),
		attribute.String("graph.node", nodeID),
	)
	return ctx, span
}
