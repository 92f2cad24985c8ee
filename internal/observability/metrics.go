package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Batch writer metrics
	RowsRead       prometheus.Counter
	RecordsWritten *prometheus.CounterVec
	RowsSkipped    *prometheus.CounterVec
	BytesWritten   *prometheus.GaugeVec
	BatchDuration  *prometheus.HistogramVec
	LastSuccess    *prometheus.GaugeVec

	// Batch reader metrics
	RecordsDecoded *prometheus.CounterVec

	// Publishing metrics
	UploadDuration    *prometheus.HistogramVec
	StorageErrors     *prometheus.CounterVec
	MessagesPublished *prometheus.CounterVec
	Rejects           *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		RowsRead: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "logavro_rows_read_total",
				Help: "Total number of CSV data rows read",
			},
		),
		RecordsWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logavro_records_written_total",
				Help: "Total number of records appended to category files",
			},
			[]string{"category", "format"},
		),
		RowsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logavro_rows_skipped_total",
				Help: "Total number of rows skipped",
			},
			[]string{"category", "reason"},
		),
		BytesWritten: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "logavro_file_size_bytes",
				Help: "Size of the last written category file",
			},
			[]string{"category", "format"},
		),
		BatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "logavro_batch_duration_seconds",
				Help:    "Duration of batch operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		LastSuccess: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "logavro_last_success_timestamp_seconds",
				Help: "Unix time of the last successful batch operation",
			},
			[]string{"operation"},
		),
		RecordsDecoded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logavro_records_decoded_total",
				Help: "Total number of records decoded from category files",
			},
			[]string{"category"},
		),
		UploadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "logavro_storage_duration_seconds",
				Help:    "Duration of storage upload and download operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "operation"},
		),
		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logavro_storage_errors_total",
				Help: "Total number of storage errors",
			},
			[]string{"backend", "operation"},
		),
		MessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logavro_kafka_messages_total",
				Help: "Total number of records sent to Kafka",
			},
			[]string{"topic", "status"},
		),
		Rejects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logavro_rejects_total",
				Help: "Total number of rows written to reject sinks",
			},
			[]string{"sink", "status"},
		),
	}
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// IncRowsRead increments the rows read counter.
func (m *Metrics) IncRowsRead() {
	m.RowsRead.Inc()
}

// IncRecordsWritten increments the records written counter.
func (m *Metrics) IncRecordsWritten(category, format string) {
	m.RecordsWritten.WithLabelValues(category, format).Inc()
}

// IncRowsSkipped increments the rows skipped counter.
func (m *Metrics) IncRowsSkipped(category, reason string) {
	m.RowsSkipped.WithLabelValues(category, reason).Inc()
}

// SetFileSize records the size of a written category file.
func (m *Metrics) SetFileSize(category, format string, size int64) {
	m.BytesWritten.WithLabelValues(category, format).Set(float64(size))
}

// ObserveBatchDuration observes a batch duration and, on success, stamps the last success time.
func (m *Metrics) ObserveBatchDuration(operation string, seconds float64, success bool) {
	m.BatchDuration.WithLabelValues(operation).Observe(seconds)
	if success {
		m.LastSuccess.WithLabelValues(operation).SetToCurrentTime()
	}
}

// IncRecordsDecoded increments the records decoded counter.
func (m *Metrics) IncRecordsDecoded(category string) {
	m.RecordsDecoded.WithLabelValues(category).Inc()
}

// ObserveStorageDuration observes a storage operation duration.
func (m *Metrics) ObserveStorageDuration(backend, operation string, seconds float64) {
	m.UploadDuration.WithLabelValues(backend, operation).Observe(seconds)
}

// IncStorageErrors increments storage errors counter.
func (m *Metrics) IncStorageErrors(backend, operation string) {
	m.StorageErrors.WithLabelValues(backend, operation).Inc()
}

// AddMessagesPublished adds to the Kafka messages counter.
func (m *Metrics) AddMessagesPublished(topic, status string, n int) {
	m.MessagesPublished.WithLabelValues(topic, status).Add(float64(n))
}

// IncRejects increments the reject sink counter.
func (m *Metrics) IncRejects(sink, status string) {
	m.Rejects.WithLabelValues(sink, status).Inc()
}

// ExportConfig controls how metrics leave a finished batch process.
type ExportConfig struct {
	// TextfilePath is a node-exporter textfile collector path.
	TextfilePath string
	// PushURL is a Pushgateway base URL.
	PushURL string
	// Job is the Pushgateway job name.
	Job string
}

// Export writes the registry to the textfile and pushes it to the gateway,
// whichever are configured.
func (m *Metrics) Export(ctx context.Context, cfg ExportConfig) error {
	if cfg.TextfilePath != "" {
		if err := prometheus.WriteToTextfile(cfg.TextfilePath, m.registry); err != nil {
			return fmt.Errorf("failed to write metrics textfile: %w", err)
		}
	}

	if cfg.PushURL != "" {
		job := cfg.Job
		if job == "" {
			job = "logavro"
		}
		if err := push.New(cfg.PushURL, job).Gatherer(m.registry).PushContext(ctx); err != nil {
			return fmt.Errorf("failed to push metrics: %w", err)
		}
	}

	return nil
}
