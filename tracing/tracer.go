// package tracing installs the OpenTelemetry tracer provider
// the instrumented upstream http client reports spans to
package tracing

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/kava-labs/resource-aggregator-service/logging"
)

const ServiceName = "resource-aggregator-service"

// InitTracer registers a global tracer provider exporting spans as JSON to w,
// returning a function which flushes and stops the provider
func InitTracer(w io.Writer, logger *logging.ServiceLogger) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)

	logger.Debug().Str("service", ServiceName).Msg("tracing initialized")

	return tp.Shutdown, nil
}
