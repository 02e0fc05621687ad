// Package metrics exposes Prometheus counters for the indexer and the
// synchronizer.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mwantia/fsindex/data"
	"github.com/mwantia/fsindex/log"
	"github.com/mwantia/fsindex/synchronizer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Namespace = "fsindex"

const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Collector implements both synchronizer.Observer and indexer.Observer.
type Collector struct {
	registry *prometheus.Registry

	notifications *prometheus.CounterVec
	rows          *prometheus.CounterVec
	txDuration    prometheus.Histogram
	indexedRows   *prometheus.CounterVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "synchronizer",
			Name:      "notifications_total",
			Help:      "Handled filesystem notifications.",
		}, []string{"kind", "target", "result"}),

		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "synchronizer",
			Name:      "rows_total",
			Help:      "Rows deleted or inserted by committed notifications.",
		}, []string{"op"}),

		txDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "synchronizer",
			Name:      "transaction_seconds",
			Help:      "Duration of a notification transaction.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),

		indexedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "indexer",
			Name:      "rows_total",
			Help:      "Rows written by the bulk indexer.",
		}, []string{"type"}),
	}

	c.registry.MustRegister(c.notifications, c.rows, c.txDuration, c.indexedRows)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) ObserveDelta(delta *synchronizer.Delta, duration time.Duration, err error) {
	n := delta.Notification

	result := ResultOK
	if err != nil {
		result = ResultError
	}

	c.notifications.WithLabelValues(n.Kind.String(), n.Target(), result).Inc()
	c.txDuration.Observe(duration.Seconds())

	// Rows of a rolled back transaction never reached the table.
	if err != nil {
		return
	}
	c.rows.WithLabelValues("deleted").Add(float64(delta.Deleted))
	c.rows.WithLabelValues("inserted").Add(float64(len(delta.Inserted)))
}

func (c *Collector) ObserveIndexedRow(row data.IndexRow) {
	if row.IsPlaceholder() {
		c.indexedRows.WithLabelValues("placeholder").Inc()
		return
	}
	c.indexedRows.WithLabelValues("file").Inc()
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string, logger *log.Logger) error {
	if logger == nil {
		logger = log.Discard()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Serving metrics on %s", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	}
}
