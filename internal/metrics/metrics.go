package metrics

import (
    "net/http"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    pagesProcessed = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "scancleaner",
            Name:      "pages_processed_total",
            Help:      "Total pages processed by result (kept, blank, skipped)",
        },
        []string{"result"},
    )

    duplicatesTotal = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "scancleaner",
            Name:      "duplicates_total",
            Help:      "Total items marked as duplicates",
        },
    )

    reportsTotal = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "scancleaner",
            Name:      "reports_total",
            Help:      "Total report groups produced by boundary detection",
        },
    )

    ocrFallbacks = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "scancleaner",
            Name:      "ocr_fallbacks_total",
            Help:      "Boundary decisions that fell back to the pixel heuristic",
        },
    )

    stageDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "scancleaner",
            Name:      "stage_duration_seconds",
            Help:      "Duration of pipeline stages",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"stage"},
    )
)

// Init registers collectors.
func Init() {
    prometheus.MustRegister(pagesProcessed, duplicatesTotal, reportsTotal, ocrFallbacks, stageDuration)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func IncPage(result string) { pagesProcessed.WithLabelValues(result).Inc() }

func IncDuplicate() { duplicatesTotal.Inc() }

func AddReports(n int) { reportsTotal.Add(float64(n)) }

func IncOCRFallback() { ocrFallbacks.Inc() }

func ObserveStage(stage string, dur time.Duration) {
    stageDuration.WithLabelValues(stage).Observe(dur.Seconds())
}
