// Package metrics exposes Prometheus collectors for the profile builder.
package metrics

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchRequestsTotal         *prometheus.CounterVec
	fetchRetriesTotal          *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	cacheLookupsTotal          *prometheus.CounterVec
	headlessPromotionsTotal    prometheus.Counter
	profilesTotal              *prometheus.CounterVec
	renderedPagesTotal         prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dossier_fetch_requests_total",
				Help: "Outbound fetch attempts, labeled by site and status class.",
			},
			[]string{"site", "status"},
		)

		fetchRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dossier_fetch_retries_total",
				Help: "Fetch attempts that were retried after a transient failure.",
			},
			[]string{"site"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dossier_fetch_bytes_total",
				Help: "Total number of response bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dossier_fetch_duration_seconds",
				Help:    "Histogram of single fetch attempt latencies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"site"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dossier_rate_limit_delay_seconds",
				Help:    "Histogram of throttle wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)

		cacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dossier_cache_lookups_total",
				Help: "Response cache lookups, labeled by result.",
			},
			[]string{"result"},
		)

		headlessPromotionsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dossier_headless_promotions_total",
				Help: "Listing pages re-fetched with the headless browser.",
			},
		)

		profilesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dossier_profiles_total",
				Help: "Profiles processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		renderedPagesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dossier_rendered_pages_total",
				Help: "PDF pages written across all profiles.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dossier_api_requests_total",
				Help: "API requests served, labeled by route pattern and status class.",
			},
			[]string{"route", "status_class"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dossier_api_request_duration_seconds",
				Help:    "API request latency by route pattern.",
				Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5},
			},
			[]string{"route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// StatusClass buckets an HTTP status code ("2xx", "4xx", ...). Zero means
// the request never produced a response.
func StatusClass(code int) string {
	if code <= 0 {
		return "error"
	}
	return strconv.Itoa(code/100) + "xx"
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// WriteTextfile dumps the default registry in the text exposition format,
// suitable for the node exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// ObserveFetch records one outbound attempt.
func ObserveFetch(rawURL string, code int, bytesFetched int, duration time.Duration) {
	site := SanitizeSite(rawURL)
	fetchRequestsTotal.WithLabelValues(site, StatusClass(code)).Inc()
	fetchDurationSeconds.WithLabelValues(site).Observe(duration.Seconds())
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveRetry counts a retried attempt.
func ObserveRetry(rawURL string) {
	fetchRetriesTotal.WithLabelValues(SanitizeSite(rawURL)).Inc()
}

// ObserveRateLimitDelay records the duration of a throttle wait.
func ObserveRateLimitDelay(site string, duration time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// ObserveCacheLookup counts a cache hit or miss.
func ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveHeadlessPromotion counts a browser re-fetch.
func ObserveHeadlessPromotion() {
	headlessPromotionsTotal.Inc()
}

// ObserveProfile counts a processed subject by outcome ("ok", "error").
func ObserveProfile(outcome string) {
	profilesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRenderedPages adds n to the rendered page counter.
func ObserveRenderedPages(n int) {
	if n > 0 {
		renderedPagesTotal.Add(float64(n))
	}
}

// ObserveHTTPRequest records one API request against its route pattern.
func ObserveHTTPRequest(route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(route, StatusClass(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(route).Observe(duration.Seconds())
}
