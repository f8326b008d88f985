package telemetry

import (
	"fmt"
	"net/http"

	"github.com/hyperledger-labs/yui-lane-relayer/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	api "go.opentelemetry.io/otel/metric"
)

const (
	namespaceRoot = "relayer.lane"
)

var (
	BestBlockNumberGauge   *Int64SyncGauge
	LaneNonceGauge         *Int64SyncGauge
	SubmittedNoncesCounter api.Int64Counter
	LoopRestartsCounter    api.Int64Counter

	meter = otel.Meter(name)
)

func InitializeMetrics() error {
	return InitializeMetricsWithMeter(meter)
}

// InitializeMetricsWithMeter creates the lane instruments from m
func InitializeMetricsWithMeter(m api.Meter) error {
	var err error

	// create the instrument "relayer.lane.best_block_number"
	name := fmt.Sprintf("%s.best_block_number", namespaceRoot)
	if BestBlockNumberGauge, err = NewInt64SyncGauge(
		m,
		name,
		api.WithUnit("1"),
		api.WithDescription("best block numbers known by the source and target clients"),
	); err != nil {
		return fmt.Errorf("failed to create the instrument %s: %v", name, err)
	}

	// create the instrument "relayer.lane.nonce"
	name = fmt.Sprintf("%s.nonce", namespaceRoot)
	if LaneNonceGauge, err = NewInt64SyncGauge(
		m,
		name,
		api.WithUnit("1"),
		api.WithDescription("latest generated, received and confirmed nonces of the lane"),
	); err != nil {
		return fmt.Errorf("failed to create the instrument %s: %v", name, err)
	}

	// create the instrument "relayer.lane.submitted_nonces"
	name = fmt.Sprintf("%s.submitted_nonces", namespaceRoot)
	if SubmittedNoncesCounter, err = m.Int64Counter(
		name,
		api.WithUnit("1"),
		api.WithDescription("number of nonces submitted by the delivery and receiving races"),
	); err != nil {
		return fmt.Errorf("failed to create the instrument %s: %v", name, err)
	}

	// create the instrument "relayer.lane.loop_restarts"
	name = fmt.Sprintf("%s.loop_restarts", namespaceRoot)
	if LoopRestartsCounter, err = m.Int64Counter(
		name,
		api.WithUnit("1"),
		api.WithDescription("number of times the message lane loop has been restarted after a failure"),
	); err != nil {
		return fmt.Errorf("failed to create the instrument %s: %v", name, err)
	}

	return nil
}

func NewPrometheusExporter(addr string) (*prometheus.Exporter, error) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger := log.GetLogger().WithModule("telemetry")
			logger.Fatal("Prometheus exporter server failed", err)
		}
	}()

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create the Prometheus Exporter: %v", err)
	}

	return exporter, nil
}
