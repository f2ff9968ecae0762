// Package metrics provides Prometheus metrics for goremote batches.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mwantia/goremote/pkg/remote"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	transfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goremote_transfers_total",
			Help: "Total number of processed files by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	transferBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goremote_transfer_bytes_total",
			Help: "Total size of successfully transferred files",
		},
		[]string{"operation"},
	)

	batchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "goremote_batch_duration_seconds",
			Help:    "Duration of upload, download and delete batches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	connectionErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "goremote_connection_errors_total",
			Help: "Total number of batches aborted by a connection error",
		},
	)
)

// ObserveBatch records the outcome of a finished batch.
func ObserveBatch(op remote.Operation, info *remote.TransferInfo) {
	if info == nil {
		return
	}
	operation := string(op)
	for _, d := range info.All() {
		transfersTotal.WithLabelValues(operation, string(d.Outcome)).Inc()
		if d.Outcome == remote.OutcomeTransferred && d.File.Size() > 0 {
			transferBytesTotal.WithLabelValues(operation).Add(float64(d.File.Size()))
		}
	}
	batchDuration.WithLabelValues(operation).Observe(info.Runtime().Seconds())
}

// ObserveError counts err if it is a connection level failure.
func ObserveError(err error) {
	var connErr *remote.ConnectionError
	if errors.As(err, &connErr) {
		connectionErrorsTotal.Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes the metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}
