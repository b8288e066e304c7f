package prometheus

import (
	"inventory-service/pkg/config"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HttpRequestsTotal   prometheus.CounterVec
	HttpRequestDuration prometheus.HistogramVec

	// Storage operation metrics
	StorageOperationDuration prometheus.HistogramVec

	// Product metrics
	ProductOperationsCounter prometheus.CounterVec

	// Treatment metrics
	TreatmentsCounter prometheus.CounterVec

	// Expiring stock metrics
	ExpiringProductsGauge prometheus.GaugeVec
)

// InitMetrics initializes Prometheus metrics with configuration
func InitMetrics(config *config.Config) {
	// Use metric prefix from configuration
	prefix := config.Metrics.Prefix

	// HTTP request metrics
	HttpRequestsTotal = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTP request duration
	HttpRequestDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Storage operation metrics
	StorageOperationDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_storage_operation_duration_seconds",
			Help:    "Duration of collection store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation_type"},
	)

	// Product metrics
	ProductOperationsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_operations_total",
			Help: "Total number of product operations",
		},
		[]string{"operation"},
	)

	// Treatment metrics
	TreatmentsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_treatments_total",
			Help: "Total number of treatment transactions by disposition type",
		},
		[]string{"type"},
	)

	// Expiring stock metrics
	ExpiringProductsGauge = *promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "_expiring_products",
			Help: "Number of active products per expiration bucket",
		},
		[]string{"bucket"},
	)
}

// TrackStorageOperation returns a function that records the duration of a
// collection store operation
func TrackStorageOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		duration := time.Since(startTime).Seconds()
		StorageOperationDuration.WithLabelValues(operationType).Observe(duration)
	}
}

// RecordProductOperation increments the counter for product operations
func RecordProductOperation(operation string) {
	ProductOperationsCounter.WithLabelValues(operation).Inc()
}

// RecordTreatment increments the counter for treatment transactions
func RecordTreatment(treatmentType string) {
	TreatmentsCounter.WithLabelValues(treatmentType).Inc()
}

// UpdateExpiringProducts updates the gauge for an expiration bucket
func UpdateExpiringProducts(bucket string, count float64) {
	ExpiringProductsGauge.WithLabelValues(bucket).Set(count)
}
