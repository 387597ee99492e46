package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "sla_"

	resultSuccess   = "success"
	resultError     = "error"
	resultDuplicate = "duplicate"
)

var (
	registerOnce sync.Once

	measurementAggregateTotal   *prometheus.CounterVec
	measurementAggregateLatency *prometheus.HistogramVec

	reportGenerateTotal   *prometheus.CounterVec
	reportGenerateLatency *prometheus.HistogramVec
	reportExportTotal     *prometheus.CounterVec
	reportExportLatency   *prometheus.HistogramVec

	incidentEventsTotal *prometheus.CounterVec

	schedulerRunsTotal *prometheus.CounterVec

	notificationsTotal *prometheus.CounterVec
)

// Init registers SLA metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		measurementAggregateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "measurement_aggregate_total",
				Help: "Total measurement aggregations by result",
			},
			[]string{"result"},
		)
		measurementAggregateLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "measurement_aggregate_latency_seconds",
				Help:    "Measurement aggregation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		reportGenerateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_generate_total",
				Help: "Total report generate operations by result",
			},
			[]string{"result"},
		)
		reportGenerateLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_generate_latency_seconds",
				Help:    "Report generate latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total report export operations by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		incidentEventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "incident_events_total",
				Help: "Total incident lifecycle events by type",
			},
			[]string{"event"},
		)

		schedulerRunsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "scheduler_runs_total",
				Help: "Scheduled period aggregations by result",
			},
			[]string{"result"},
		)

		notificationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Incident notifications by event and result",
			},
			[]string{"event", "result"},
		)

		prometheus.MustRegister(
			measurementAggregateTotal,
			measurementAggregateLatency,
			reportGenerateTotal,
			reportGenerateLatency,
			reportExportTotal,
			reportExportLatency,
			incidentEventsTotal,
			schedulerRunsTotal,
			notificationsTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveMeasurementAggregate records aggregation latency and result.
func ObserveMeasurementAggregate(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if measurementAggregateTotal != nil {
		measurementAggregateTotal.WithLabelValues(result).Inc()
	}
	if measurementAggregateLatency != nil {
		measurementAggregateLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveReportGenerate records report latency and result.
func ObserveReportGenerate(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if reportGenerateTotal != nil {
		reportGenerateTotal.WithLabelValues(result).Inc()
	}
	if reportGenerateLatency != nil {
		reportGenerateLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveReportExport records export latency and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncIncidentEvent increments incident lifecycle counters.
func IncIncidentEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	if incidentEventsTotal != nil {
		incidentEventsTotal.WithLabelValues(event).Inc()
	}
}

// IncSchedulerRun increments scheduled aggregation counters.
func IncSchedulerRun(result string) {
	if result == "" {
		result = resultSuccess
	}
	if schedulerRunsTotal != nil {
		schedulerRunsTotal.WithLabelValues(result).Inc()
	}
}

// IncNotification increments notification delivery counters.
func IncNotification(event, result string) {
	if event == "" {
		event = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if notificationsTotal != nil {
		notificationsTotal.WithLabelValues(event, result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess   = resultSuccess
	ResultError     = resultError
	ResultDuplicate = resultDuplicate
)
