package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	name = "github.com/hyperledger-labs/yui-lane-relayer"

	propagatorsKey     = "OTEL_PROPAGATORS"
	defaultPropagators = "tracecontext,baggage"

	// cf. https://opentelemetry.io/docs/specs/otel/configuration/sdk-environment-variables/#exporter-selection
	tracesExporterKey  = "OTEL_TRACES_EXPORTER"
	metricsExporterKey = "OTEL_METRICS_EXPORTER"
	logsExporterKey    = "OTEL_LOGS_EXPORTER"

	prometheusHostKey     = "OTEL_EXPORTER_PROMETHEUS_HOST"
	prometheusPortKey     = "OTEL_EXPORTER_PROMETHEUS_PORT"
	defaultPrometheusHost = "localhost"
	defaultPrometheusPort = 9464

	consoleTracesWriterKey  = "OTEL_EXPORTER_CONSOLE_TRACES_WRITER"
	consoleLogsWriterKey    = "OTEL_EXPORTER_CONSOLE_LOGS_WRITER"
	consoleMetricsWriterKey = "OTEL_EXPORTER_CONSOLE_METRICS_WRITER"
)

// Defaults differ from the SDK: the relayer exposes its lane metrics for scraping unless told otherwise.
var (
	defaultTracesExporter  = "none"
	defaultMetricsExporter = "prometheus"
	defaultLogsExporter    = "none"
)

// SetupOTelSDK bootstraps the OpenTelemetry pipeline from the standard OTEL_* environment variables
// and creates the lane instruments. The returned shutdown function flushes every provider.
//
// An unknown exporter name is an error rather than a warning.
func SetupOTelSDK(ctx context.Context) (shutdown func(context.Context) error, err error) {
	var shutdownFuncs []func(context.Context) error
	shutdown = func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}
	fail := func(inErr error) (func(context.Context) error, error) {
		return nil, errors.Join(inErr, shutdown(ctx))
	}

	prop, err := newPropagator()
	if err != nil {
		return fail(err)
	}
	otel.SetTextMapPropagator(prop)

	tracerProvider, err := newTracerProvider(ctx)
	if err != nil {
		return fail(err)
	}
	shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)

	meterProvider, err := newMeterProvider(ctx)
	if err != nil {
		return fail(err)
	}
	shutdownFuncs = append(shutdownFuncs, meterProvider.Shutdown)
	otel.SetMeterProvider(meterProvider)

	loggerProvider, err := newLoggerProvider(ctx)
	if err != nil {
		return fail(err)
	}
	shutdownFuncs = append(shutdownFuncs, loggerProvider.Shutdown)
	global.SetLoggerProvider(loggerProvider)

	if err := InitializeMetrics(); err != nil {
		return fail(err)
	}
	return shutdown, nil
}

func getEnv(envName, defaultValue string) string {
	if v := os.Getenv(envName); v != "" {
		return v
	}
	return defaultValue
}

func getWriter(envName string) (io.Writer, error) {
	switch v := getEnv(envName, "stdout"); v {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		return nil, fmt.Errorf("unknown writer: %q from %s=%q", v, envName, os.Getenv(envName))
	}
}

// exporterNames returns the comma separated exporter names selected by envName
func exporterNames(envName, defaultValue string) []string {
	return strings.Split(getEnv(envName, defaultValue), ",")
}

func unsupportedExporter(exporter, envName string) error {
	return fmt.Errorf("unsupported exporter: %q from %s=%q", exporter, envName, os.Getenv(envName))
}

func newPropagator() (propagation.TextMapPropagator, error) {
	var propagators []propagation.TextMapPropagator
	for _, propagator := range strings.Split(getEnv(propagatorsKey, defaultPropagators), ",") {
		switch propagator {
		case "tracecontext":
			propagators = append(propagators, propagation.TraceContext{})
		case "baggage":
			propagators = append(propagators, propagation.Baggage{})
		default:
			return nil, fmt.Errorf("unsupported propagator: %q from %s=%q", propagator, propagatorsKey, os.Getenv(propagatorsKey))
		}
	}
	return propagation.NewCompositeTextMapPropagator(propagators...), nil
}

func newTracerProvider(ctx context.Context) (*sdktrace.TracerProvider, error) {
	var opts []sdktrace.TracerProviderOption
	for _, exporter := range exporterNames(tracesExporterKey, defaultTracesExporter) {
		var (
			exp sdktrace.SpanExporter
			err error
		)
		switch exporter {
		case "otlp":
			exp, err = otlptracegrpc.New(ctx)
		case "console":
			var w io.Writer
			if w, err = getWriter(consoleTracesWriterKey); err == nil {
				exp, err = stdouttrace.New(stdouttrace.WithWriter(w))
			}
		case "none":
			continue
		default:
			return nil, unsupportedExporter(exporter, tracesExporterKey)
		}
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

func newMeterProvider(ctx context.Context) (*sdkmetric.MeterProvider, error) {
	var opts []sdkmetric.Option
	for _, exporter := range exporterNames(metricsExporterKey, defaultMetricsExporter) {
		switch exporter {
		case "otlp":
			exp, err := otlpmetricgrpc.New(ctx)
			if err != nil {
				return nil, err
			}
			opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
		case "console":
			w, err := getWriter(consoleMetricsWriterKey)
			if err != nil {
				return nil, err
			}
			exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
			if err != nil {
				return nil, err
			}
			opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
		case "prometheus":
			addr := fmt.Sprintf("%s:%s", getEnv(prometheusHostKey, defaultPrometheusHost), getEnv(prometheusPortKey, fmt.Sprint(defaultPrometheusPort)))
			exp, err := NewPrometheusExporter(addr)
			if err != nil {
				return nil, err
			}
			opts = append(opts, sdkmetric.WithReader(exp))
		case "none":
		default:
			return nil, unsupportedExporter(exporter, metricsExporterKey)
		}
	}
	return sdkmetric.NewMeterProvider(opts...), nil
}

func newLoggerProvider(ctx context.Context) (*sdklog.LoggerProvider, error) {
	var opts []sdklog.LoggerProviderOption
	for _, exporter := range exporterNames(logsExporterKey, defaultLogsExporter) {
		var (
			exp sdklog.Exporter
			err error
		)
		switch exporter {
		case "otlp":
			exp, err = otlploggrpc.New(ctx)
		case "console":
			var w io.Writer
			if w, err = getWriter(consoleLogsWriterKey); err == nil {
				exp, err = stdoutlog.New(stdoutlog.WithWriter(w))
			}
		case "none":
			continue
		default:
			return nil, unsupportedExporter(exporter, logsExporterKey)
		}
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)))
	}
	return sdklog.NewLoggerProvider(opts...), nil
}
