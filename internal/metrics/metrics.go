package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fansite"

// Registry holds every fansite collector.
var Registry = prometheus.NewRegistry()

// AppInfo exposes the build version as a label; the value is always 1.
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always 1, version in labels)",
	},
	[]string{"version"},
)

// SectionFetchTotal counts home page section loads by outcome
// (ok|error|timeout).
var SectionFetchTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "section_fetch_total",
		Help:      "Total number of section loads by outcome",
	},
	[]string{"section", "result"},
)

var SectionFetchDuration = promauto.With(Registry).NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "section_fetch_duration_seconds",
		Help:      "Section load latency in seconds",
		Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
	},
	[]string{"section"},
)

// FeedImportTotal counts feed imports by outcome (ok|not_modified|error).
var FeedImportTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_import_total",
		Help:      "Total number of feed imports by outcome",
	},
	[]string{"feed", "result"},
)

var FeedEvents = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "feed_events",
		Help:      "Events read from the last successful import of a feed",
	},
	[]string{"feed"},
)

// SkippedEventsTotal counts events left out of a response because their
// dates could not be normalized.
var SkippedEventsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "skipped_events_total",
		Help:      "Total number of malformed events omitted from output",
	},
	[]string{"reason"},
)

var ResponseCacheTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "response_cache_total",
		Help:      "API response cache lookups by result (hit|miss)",
	},
	[]string{"result"},
)

// Init registers runtime collectors and sets the version label.
func Init(version string) {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	AppInfo.WithLabelValues(version).Set(1)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
