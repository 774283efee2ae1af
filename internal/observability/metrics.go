package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "buoy_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the decoder service.
type Metrics struct {
	FilesListed    *prometheus.CounterVec // labels: station
	FilesSelected  *prometheus.CounterVec // labels: station
	FilesSkipped   *prometheus.CounterVec // labels: station; unchanged since last publish or rejection
	FilesDecoded   *prometheus.CounterVec // labels: station
	DecodeErrors   *prometheus.CounterVec // labels: station, kind={schema_mismatch,timestamp_parse,malformed}
	ConfigErrors   *prometheus.CounterVec // labels: station
	RecordsDecoded *prometheus.CounterVec // labels: station

	RecordsPublished prometheus.Counter
	PublishErrors    prometheus.Counter
	PipelineRunning  prometheus.Gauge
	CycleDuration    prometheus.Histogram
	BatchSize        prometheus.Histogram
}

func newMetrics() *Metrics {
	return &Metrics{
		FilesListed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_listed_total",
			Help:      "Files found in a station's inbox.",
		}, []string{"station"}),
		FilesSelected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_selected_total",
			Help:      "Files picked by the selector for processing.",
		}, []string{"station"}),
		FilesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_skipped_total",
			Help:      "Selected files left alone because their content was already published.",
		}, []string{"station"}),
		FilesDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_decoded_total",
			Help:      "Files decoded without error.",
		}, []string{"station"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Files rejected by the decoder, by failure kind.",
		}, []string{"station", "kind"}),
		ConfigErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_errors_total",
			Help:      "Cycles where a station's configuration could not be used.",
		}, []string{"station"}),
		RecordsDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_decoded_total",
			Help:      "Observation records decoded.",
		}, []string{"station"}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Observation records written to the sink topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed batch publishes.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one poll cycle across all stations.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Observation records per decoded file.",
			Buckets:   []float64{1, 10, 50, 100, 500, 1000, 1500, 3000},
		}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FilesListed,
		m.FilesSelected,
		m.FilesSkipped,
		m.FilesDecoded,
		m.DecodeErrors,
		m.ConfigErrors,
		m.RecordsDecoded,
		m.RecordsPublished,
		m.PublishErrors,
		m.PipelineRunning,
		m.CycleDuration,
		m.BatchSize,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
