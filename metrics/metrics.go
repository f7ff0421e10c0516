// Package metrics holds the Prometheus collectors of the enclave service and
// the server exposing them.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ruteri/secret-contract-enclave/common"
)

var (
	// Registry holds the service collectors.
	Registry = prometheus.NewRegistry()

	ecalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.PackageName,
			Subsystem: "enclave",
			Name:      "ecalls_total",
			Help:      "Total number of ecalls by entry point and result.",
		},
		[]string{"entrypoint", "result"},
	)

	ecallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: common.PackageName,
			Subsystem: "enclave",
			Name:      "ecall_duration_seconds",
			Help:      "Duration of ecalls.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"entrypoint"},
	)

	authFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.PackageName,
			Subsystem: "enclave",
			Name:      "auth_failures_total",
			Help:      "Rejected calls by error kind.",
		},
		[]string{"kind"},
	)

	codeFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.PackageName,
			Subsystem: "code_store",
			Name:      "fetch_total",
			Help:      "Contract code fetches through the code ocall.",
		},
		[]string{"backend", "result"},
	)
)

func init() {
	Registry.MustRegister(
		ecalls,
		ecallDuration,
		authFailures,
		codeFetches,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Ecall records one finished ecall.
func Ecall(entrypoint, result string, duration time.Duration) {
	ecalls.WithLabelValues(entrypoint, result).Inc()
	ecallDuration.WithLabelValues(entrypoint).Observe(duration.Seconds())
}

// AuthFailure records a rejected call. kind is the boundary error kind, never
// the failing sub-check.
func AuthFailure(kind string) {
	authFailures.WithLabelValues(kind).Inc()
}

// CodeFetch records a code ocall result.
func CodeFetch(backend, result string) {
	codeFetches.WithLabelValues(backend, result).Inc()
}

// Handler exposes the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// MetricsServer serves /metrics on its own listener.
type MetricsServer struct {
	srv *http.Server
}

func New(listenAddr string) (*MetricsServer, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	return &MetricsServer{
		srv: &http.Server{
			Addr:              listenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
