package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pulsewise"

var (
	importsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "import",
		Name:      "requests_total",
		Help:      "Heart-rate report imports by outcome.",
	}, []string{"outcome"})

	recordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "import",
		Name:      "records_total",
		Help:      "Parsed heart-rate rows by result.",
	}, []string{"result"})

	parseStrategyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "import",
		Name:      "parse_strategy_total",
		Help:      "Rows parsed per parser strategy.",
	}, []string{"strategy"})

	importDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "import",
		Name:      "stage_duration_seconds",
		Help:      "Duration of each import stage.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"stage"})

	lastRiskScore = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "risk",
		Name:      "last_score",
		Help:      "Most recent risk score produced by an import.",
	})

	summaryCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "summary_cache",
		Name:      "lookups_total",
		Help:      "Summary cache lookups by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(importsTotal, recordsTotal, parseStrategyTotal, importDuration, lastRiskScore, summaryCacheTotal)
}

// ObserveImport counts one finished import; outcome is "success" or a failure
// reason code.
func ObserveImport(outcome string) {
	importsTotal.WithLabelValues(outcome).Inc()
}

func ObserveRecords(applied, skipped, unparsed int) {
	recordsTotal.WithLabelValues("applied").Add(float64(applied))
	recordsTotal.WithLabelValues("skipped").Add(float64(skipped))
	recordsTotal.WithLabelValues("unparsed").Add(float64(unparsed))
}

func ObserveParseStrategies(structured, fallback int) {
	parseStrategyTotal.WithLabelValues("structured").Add(float64(structured))
	parseStrategyTotal.WithLabelValues("fallback").Add(float64(fallback))
}

func ObserveStage(stage string, seconds float64) {
	importDuration.WithLabelValues(stage).Observe(seconds)
}

func ObserveRiskScore(score float64) {
	lastRiskScore.Set(score)
}

func ObserveCacheLookup(hit bool) {
	if hit {
		summaryCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	summaryCacheTotal.WithLabelValues("miss").Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
