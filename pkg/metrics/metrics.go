package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// HistogramBuckets are latency buckets in milliseconds.
var HistogramBuckets = []float64{
	// --- Fast responses (0 - 500ms) ---
	5, 10, 25, 50, 100, 200, 300, 500,

	// --- Medium responses (500ms - 5s) ---
	750, 1000, 1500, 2000, 3000, 5000,

	// --- Slow responses ---
	7500, 10000, 15000, 30000,
}

// Metric is a definition for the name, description, type and ID of each
// metric; NewMetric builds the matching collector (CounterVec, Summary, etc).
type Metric struct {
	ID          string
	Name        string
	Description string
	Type        string
	Args        []string
}

// NewMetric associates prometheus.Collector based on Metric.Type. Unknown
// types yield nil.
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	switch m.Type {
	case "counter_vec":
		return prometheus.NewCounterVec(
			prometheus.CounterOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description},
			m.Args,
		)
	case "counter":
		return prometheus.NewCounter(
			prometheus.CounterOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description},
		)
	case "gauge_vec":
		return prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description},
			m.Args,
		)
	case "gauge":
		return prometheus.NewGauge(
			prometheus.GaugeOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description},
		)
	case "histogram_vec":
		return prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description, Buckets: HistogramBuckets},
			m.Args,
		)
	case "histogram":
		return prometheus.NewHistogram(
			prometheus.HistogramOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description, Buckets: HistogramBuckets},
		)
	case "summary_vec":
		return prometheus.NewSummaryVec(
			prometheus.SummaryOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description},
			m.Args,
		)
	case "summary":
		return prometheus.NewSummary(
			prometheus.SummaryOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description},
		)
	}
	return nil
}

// Process-level metrics owned by the monitoring service.
var (
	MetricsUptime = &Metric{
		ID:          "uptime",
		Name:        "start_time_seconds",
		Description: "Unix time the host process started.",
		Type:        "gauge",
	}
	MetricsExitTime = &Metric{
		ID:          "exitTime",
		Name:        "exit_time_seconds",
		Description: "Unix time the final flush started; zero while running.",
		Type:        "gauge",
	}
)

const (
	RefererKey = "X-Referer"
)
