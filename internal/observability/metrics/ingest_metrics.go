package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	FailureReasonCanceled             = "canceled"
	FailureReasonDeadlineExceeded     = "deadline_exceeded"
	FailureReasonUniqueViolation      = "unique_violation"
	FailureReasonSerializationFailure = "serialization_failure"
	FailureReasonLockTimeout          = "lock_timeout"
	FailureReasonDB                   = "db"
	FailureReasonUnknown              = "unknown"
)

// IngestMetrics holds the Prometheus collectors scraped from /metrics.
type IngestMetrics struct {
	uploads  *prometheus.CounterVec
	rows     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewIngestMetrics registers the ingestion collectors on registerer
// (the default registerer when nil).
func NewIngestMetrics(registerer prometheus.Registerer) *IngestMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "usagelens_uploads_total",
		Help: "Ingestion attempts by final status and source.",
	}, []string{"status", "source"})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "usagelens_ingest_rows_total",
		Help: "Rows seen by ingestion, by classification.",
	}, []string{"classification"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "usagelens_ingest_failures_total",
		Help: "Failed ingestion attempts by stage and reason.",
	}, []string{"stage", "reason"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "usagelens_ingest_duration_seconds",
		Help:    "End-to-end ingestion latency.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"source"})

	registerer.MustRegister(uploads, rows, failures, duration)

	return &IngestMetrics{
		uploads:  uploads,
		rows:     rows,
		failures: failures,
		duration: duration,
	}
}

func (m *IngestMetrics) IncUpload(status, source string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(status, source).Inc()
}

func (m *IngestMetrics) AddRows(classification string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rows.WithLabelValues(classification).Add(float64(n))
}

func (m *IngestMetrics) IncFailure(stage string, err error) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(stage, ClassifyFailureReason(err)).Inc()
}

func (m *IngestMetrics) ObserveDuration(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(source).Observe(d.Seconds())
}

// ClassifyFailureReason maps a storage or context error to a low-cardinality label.
func ClassifyFailureReason(err error) string {
	switch {
	case err == nil:
		return FailureReasonUnknown
	case errors.Is(err, context.Canceled):
		return FailureReasonCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return FailureReasonDeadlineExceeded
	case isUniqueViolation(err):
		return FailureReasonUniqueViolation
	case hasPGCode(err, "40001"):
		return FailureReasonSerializationFailure
	case hasPGCode(err, "55P03"):
		return FailureReasonLockTimeout
	case isDBError(err):
		return FailureReasonDB
	default:
		return FailureReasonUnknown
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return hasPGCode(err, "23505")
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidField) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrUnsupportedDriver) ||
		errors.Is(err, gorm.ErrInvalidValue) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
