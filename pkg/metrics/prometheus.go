// Package metrics provides Prometheus metrics for the covergap service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      prometheus.Labels
	metricPrefix     string
	registry         prometheus.Registerer

	// Scoring
	scoringPasses     *prometheus.CounterVec
	scoringDuration   prometheus.Histogram
	gridPoints        *prometheus.CounterVec
	boundaryFallbacks prometheus.Counter
	suggestionsPlaced prometheus.Counter
	suggestDuration   prometheus.Histogram
	scoringErrors     prometheus.Counter

	// Ingestion
	incidentsIngested  prometheus.Counter
	incidentsDuplicate prometheus.Counter
	incidentsRejected  prometheus.Counter
	kafkaMessages      *prometheus.CounterVec

	// Store
	storeIncidents prometheus.Gauge
	storeStations  prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerActiveCount       prometheus.Gauge
	workerMessagesPerSecond prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "covergap",
		subsystem:        "coverage",
		histogramBuckets: LatencyBucketsMs,
		enabled:          true,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.scoringPasses = m.counterVec("scoring_passes_total", "Total number of scoring passes by optimization target", "target")
	m.scoringDuration = m.histogram("scoring_duration_milliseconds", "Duration of a full grid scoring pass in milliseconds")
	m.gridPoints = m.counterVec("grid_points_total", "Grid points seen by the scorer by outcome", "outcome")
	m.boundaryFallbacks = m.counter("boundary_fallbacks_total", "Scoring passes that ignored a malformed jurisdiction boundary")
	m.suggestionsPlaced = m.counter("suggestions_placed_total", "Total number of suggested station sites placed")
	m.suggestDuration = m.histogram("suggest_duration_milliseconds", "Duration of a full greedy suggestion run in milliseconds")
	m.scoringErrors = m.counter("scoring_errors_total", "Total number of rejected scoring requests")

	m.incidentsIngested = m.counter("incidents_ingested_total", "Total number of incidents written to the store")
	m.incidentsDuplicate = m.counter("incidents_duplicate_total", "Total number of duplicate incidents dropped")
	m.incidentsRejected = m.counter("incidents_rejected_total", "Total number of incidents rejected by validation")
	m.kafkaMessages = m.counterVec("kafka_messages_total", "Kafka incident messages by outcome", "outcome")

	m.storeIncidents = m.gauge("store_incidents", "Number of incidents currently stored")
	m.storeStations = m.gauge("store_stations", "Number of stations currently stored")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.queueSize = m.gauge("queue_size", "Current size of the incident ingest queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum ingest queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of incidents enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Total number of incidents dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of rejected enqueue attempts")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Enqueue latency in milliseconds")

	m.workerActiveCount = m.gauge("worker_active_count", "Number of ingest workers")
	m.workerMessagesPerSecond = m.gauge("worker_messages_per_second", "Incidents processed per second across workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Worker per-incident processing latency in milliseconds")
	m.workerErrors = m.counter("worker_errors_total", "Total number of worker processing errors")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by HTTP endpoint", "endpoint", "method", "status_code")
	m.errorLatency = m.histogramVec("error_latency_milliseconds", "Latency of failed operations in milliseconds", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap memory in use in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of running goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Most recent GC pause in milliseconds")
}

// Enabled reports whether recording is active.
func (m *Manager) Enabled() bool { return m.enabled }

// GetRegistry returns the registry that backs the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

func with(f func(m *Manager)) {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	f(globalManager)
}

// RecordScoringPass records a completed scoring pass.
func RecordScoringPass(target string, durationMs float64) {
	with(func(m *Manager) {
		m.scoringPasses.WithLabelValues(target).Inc()
		m.scoringDuration.Observe(durationMs)
	})
}

// RecordGridPoints records how many lattice points were generated, excluded and scored.
func RecordGridPoints(generated, excluded, scored int) {
	with(func(m *Manager) {
		m.gridPoints.WithLabelValues("generated").Add(float64(generated))
		m.gridPoints.WithLabelValues("excluded").Add(float64(excluded))
		m.gridPoints.WithLabelValues("scored").Add(float64(scored))
	})
}

// RecordBoundaryFallback records a malformed boundary being ignored.
func RecordBoundaryFallback() {
	with(func(m *Manager) { m.boundaryFallbacks.Inc() })
}

// RecordSuggestions records placed station suggestions.
func RecordSuggestions(n int) {
	with(func(m *Manager) { m.suggestionsPlaced.Add(float64(n)) })
}

// RecordSuggestRun records the wall time of a whole suggestion run. The
// scoring passes inside it are recorded separately with RecordScoringPass.
func RecordSuggestRun(durationMs float64) {
	with(func(m *Manager) { m.suggestDuration.Observe(durationMs) })
}

// RecordScoringError records a rejected scoring request.
func RecordScoringError() {
	with(func(m *Manager) { m.scoringErrors.Inc() })
}

// RecordIncidentIngested records an incident written to the store.
func RecordIncidentIngested() {
	with(func(m *Manager) { m.incidentsIngested.Inc() })
}

// RecordIncidentDuplicate records a dropped duplicate incident.
func RecordIncidentDuplicate() {
	with(func(m *Manager) { m.incidentsDuplicate.Inc() })
}

// RecordIncidentRejected records an incident that failed validation.
func RecordIncidentRejected() {
	with(func(m *Manager) { m.incidentsRejected.Inc() })
}

// RecordKafkaMessage records a consumed Kafka message by outcome (enqueued, decode_error, dropped).
func RecordKafkaMessage(outcome string) {
	with(func(m *Manager) { m.kafkaMessages.WithLabelValues(outcome).Inc() })
}

// UpdateStoreSizes sets the store gauges.
func UpdateStoreSizes(incidents, stations int) {
	with(func(m *Manager) {
		m.storeIncidents.Set(float64(incidents))
		m.storeStations.Set(float64(stations))
	})
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	with(func(m *Manager) { m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc() })
}

// RecordHTTPRequestDuration records HTTP request latency.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	with(func(m *Manager) {
		m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
	})
}

// UpdateQueueSize sets the current queue length.
func UpdateQueueSize(size int) {
	with(func(m *Manager) { m.queueSize.Set(float64(size)) })
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	with(func(m *Manager) { m.queueCapacity.Set(float64(capacity)) })
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(ratio float64) {
	with(func(m *Manager) { m.queueUtilization.Set(ratio) })
}

// RecordQueueEnqueue records a successful enqueue.
func RecordQueueEnqueue() {
	with(func(m *Manager) { m.queueEnqueueRate.Inc() })
}

// RecordQueueDequeue records a dequeue.
func RecordQueueDequeue() {
	with(func(m *Manager) { m.queueDequeueRate.Inc() })
}

// RecordQueueEnqueueError records a rejected enqueue.
func RecordQueueEnqueueError() {
	with(func(m *Manager) { m.queueEnqueueErrors.Inc() })
}

// RecordQueueProcessingLatency records enqueue latency.
func RecordQueueProcessingLatency(ms float64) {
	with(func(m *Manager) { m.queueProcessingLatency.Observe(ms) })
}

// UpdateWorkerActiveCount sets the number of workers.
func UpdateWorkerActiveCount(n int) {
	with(func(m *Manager) { m.workerActiveCount.Set(float64(n)) })
}

// UpdateWorkerMessagesPerSecond sets worker throughput.
func UpdateWorkerMessagesPerSecond(rate float64) {
	with(func(m *Manager) { m.workerMessagesPerSecond.Set(rate) })
}

// RecordWorkerProcessingLatency records per-incident worker latency.
func RecordWorkerProcessingLatency(ms float64) {
	with(func(m *Manager) { m.workerProcessingLatency.Observe(ms) })
}

// RecordWorkerError records a worker failure.
func RecordWorkerError() {
	with(func(m *Manager) { m.workerErrors.Inc() })
}

// RecordErrorByComponent records an error attributed to a component.
func RecordErrorByComponent(component, errorType string) {
	with(func(m *Manager) { m.errorRateByComponent.WithLabelValues(component, errorType).Inc() })
}

// RecordErrorByType records an error by type and severity.
func RecordErrorByType(errorType, severity string) {
	with(func(m *Manager) { m.errorRateByType.WithLabelValues(errorType, severity).Inc() })
}

// RecordErrorByEndpoint records an HTTP error response.
func RecordErrorByEndpoint(endpoint, method, statusCode string) {
	with(func(m *Manager) { m.errorRateByEndpoint.WithLabelValues(endpoint, method, statusCode).Inc() })
}

// RecordErrorLatency records how long a failed operation took.
func RecordErrorLatency(component, errorType string, ms float64) {
	with(func(m *Manager) { m.errorLatency.WithLabelValues(component, errorType).Observe(ms) })
}

// UpdateSystemMetrics sets process-level gauges.
func UpdateSystemMetrics(memoryBytes uint64, goroutines int) {
	with(func(m *Manager) {
		m.systemMemoryUsage.Set(float64(memoryBytes))
		m.systemGoroutineCount.Set(float64(goroutines))
	})
}

// RecordGCPause records a GC pause duration.
func RecordGCPause(ms float64) {
	with(func(m *Manager) { m.systemGCPauseTime.Observe(ms) })
}
