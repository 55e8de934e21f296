// Package metrics declares the Prometheus collectors of the challenge oracle client
// and serves them on a dedicated listener.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OracleRequests counts oracle calls by operation and outcome kind.
	OracleRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oracle_client_oracle_requests_total",
		Help: "Number of requests issued to the attestation oracle",
	}, []string{"op", "outcome"})

	// FlowOutcomes counts orchestration runs by challenge set and the last stage reached.
	FlowOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oracle_client_flow_outcomes_total",
		Help: "Number of challenge flow runs by final stage",
	}, []string{"challenge_set", "stage"})

	// EvidenceSubmissions counts evidence submissions by mode and result.
	EvidenceSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oracle_client_evidence_submissions_total",
		Help: "Number of evidence submissions by mode",
	}, []string{"mode", "result"})

	// PollAttempts observes the number of attestation GETs per poll.
	PollAttempts = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "oracle_client_poll_attempts",
		Help:    "Attestation poll attempts used before a result or exhaustion",
		Buckets: prometheus.LinearBuckets(1, 1, 10),
	}, []string{"found"})
)

// MetricsServer exposes the default registry plus build information over HTTP.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server listening on addr. namespace prefixes the build info gauge.
func New(namespace, addr string) (*MetricsServer, error) {
	reg := prometheus.NewRegistry()
	buildInfo := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "up",
		Help:      "Set to 1 while the process is serving",
	})
	if err := reg.Register(buildInfo); err != nil {
		return nil, err
	}
	buildInfo.Set(1)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		prometheus.Gatherers{prometheus.DefaultGatherer, reg},
		promhttp.HandlerOpts{},
	))

	return &MetricsServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
