// Package telemetry wires OpenTelemetry tracing and metrics for the
// scraper toolkit. Configuration comes from a telemetry.json5 file
// discovered by walking up from the working directory; when no file
// exists telemetry stays disabled and the no-op global providers are
// used.
package telemetry

import (
	"context"
	"errors"
	"os"
	"time"

	"storescout/lib/configutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
)

type Telemetry struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
}

func (t Telemetry) Shutdown(ctx context.Context) error {
	var errlist []error
	if t.TracerProvider != nil {
		if err := t.TracerProvider.Shutdown(ctx); err != nil {
			errlist = append(errlist, err)
		}
	}
	if t.MeterProvider != nil {
		if err := t.MeterProvider.Shutdown(ctx); err != nil {
			errlist = append(errlist, err)
		}
	}
	return errors.Join(errlist...)
}

// SetupFromEnv searches up the filesystem from the cwd for a
// telemetry.json5 config and sets up the global providers from it.
func SetupFromEnv(ctx context.Context, serviceName string) (Telemetry, error) {
	config, err := configutil.ReadRecursively[config]("telemetry.json5")
	if err != nil {
		return Telemetry{}, err
	}
	return Setup(ctx, serviceName, config)
}

func Setup(ctx context.Context, serviceName string, config config) (Telemetry, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*15)
	defer cancel()

	r, err := newResource(serviceName)
	if err != nil {
		return Telemetry{}, err
	}

	tracerProvider, err := newTraceProvider(ctx, r, config)
	if err != nil {
		return Telemetry{}, err
	}
	otel.SetTracerProvider(tracerProvider)

	meterProvider, err := newMetricProvider(ctx, r, config)
	if err != nil {
		return Telemetry{}, err
	}
	otel.SetMeterProvider(meterProvider)

	return Telemetry{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
	}, nil
}

var setupTestEnvironments = map[string]bool{}

// SetupForTesting sets up telemetry in a testing environment, making
// sure a given service name is only set up once per process. Missing
// config is fine; tests run with telemetry disabled then.
func SetupForTesting(serviceName string) func() {
	if setupTestEnvironments[serviceName] {
		return func() {}
	}
	setupTestEnvironments[serviceName] = true

	InitSlog(true)
	tel, err := SetupFromEnv(context.Background(), serviceName)
	if os.IsNotExist(err) {
		return func() {}
	}
	if err != nil {
		panic(err)
	}

	return func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			panic(err)
		}
	}
}
