// Package tracing sets up OpenTelemetry tracing of scans, written to a local file.
package tracing

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mypyrun/mypyrun/src/cli/logging"
)

var log = logging.Log

// A ShutdownFunc flushes any outstanding spans and closes the trace file.
type ShutdownFunc func(context.Context) error

// Init starts writing spans to the given file as JSON, and returns a function to call at exit.
// If the filename is empty it does nothing and spans are discarded.
func Init(filename, version string) (ShutdownFunc, error) {
	if filename == "" {
		return func(context.Context) error { return nil }, nil
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("Failed to create trace file: %w", err)
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(f))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("Failed to create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "mypyrun"),
			attribute.String("service.version", version),
		)),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	log.Debug("Writing traces to %s", filename)
	return func(ctx context.Context) error {
		defer f.Close()
		return tp.Shutdown(ctx)
	}, nil
}
