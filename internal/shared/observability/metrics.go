package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pybundle_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pybundle_stage_seconds",
		Help:    "Time spent in each pipeline stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	UnitsBundled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pybundle_units_bundled",
		Help: "Number of source units in the last bundle.",
	})

	UnresolvedImports = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pybundle_unresolved_imports",
		Help: "Number of import references left to the runtime in the last bundle.",
	})

	IdentifiersRenamed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pybundle_identifiers_renamed_total",
		Help: "Total number of identifier occurrences replaced by an alias.",
	})

	DocstringsStripped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pybundle_docstrings_stripped_total",
		Help: "Total number of docstrings replaced with an empty literal.",
	})

	GuardsRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pybundle_entry_guards_removed_total",
		Help: "Total number of main-guard bodies disabled in non-entry modules.",
	})

	AliasCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pybundle_alias_collisions_total",
		Help: "Total number of alias collisions detected while building rename tables.",
	})

	ArchiveBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pybundle_archive_bytes",
		Help: "Size of the last archive written, marker line included.",
	})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pybundle_runs_total",
		Help: "Total number of bundle runs by outcome.",
	}, []string{"outcome"})
)

// WriteMetricsFile dumps the default registry in the Prometheus text format,
// suitable for a node_exporter textfile collector.
func WriteMetricsFile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
