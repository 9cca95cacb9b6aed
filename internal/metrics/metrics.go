// Package metrics exposes Prometheus instrumentation for the visibility core.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "across_http_requests_total",
			Help: "Total number of HTTP requests to the ops listener.",
		},
		[]string{"path", "method", "code"},
	)

	ephemComputeSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "across_ephemeris_compute_seconds",
			Help:    "Time spent computing one ephemeris.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
		[]string{"satellite"},
	)

	ephemGridPointsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "across_ephemeris_grid_points_total",
		Help: "Grid instants propagated.",
	})

	staleElementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "across_stale_elements_total",
			Help: "Ephemerides computed from elements beyond the staleness threshold.",
		},
		[]string{"satellite"},
	)

	cacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "across_ephemeris_cache_hits_total",
		Help: "Ephemeris cache hits.",
	})

	cacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "across_ephemeris_cache_misses_total",
		Help: "Ephemeris cache misses.",
	})

	cacheEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "across_ephemeris_cache_evictions_total",
		Help: "Ephemeris cache entries evicted after expiry.",
	})

	cacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "across_ephemeris_cache_entries",
		Help: "Ephemerides currently cached.",
	})

	cacheSizeBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "across_ephemeris_cache_size_bytes",
		Help: "Estimated memory held by cached ephemerides.",
	})

	cacheComputeErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "across_ephemeris_cache_compute_errors_total",
		Help: "Ephemeris computations on cache miss that failed.",
	})

	tleFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "across_tle_fetch_total",
			Help: "TLE source fetches by result.",
		},
		[]string{"result"},
	)

	tleStoreAgeSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "across_tle_store_age_seconds",
		Help: "Seconds since element sets were last added to the store.",
	})

	queryDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "across_query_duration_seconds",
			Help:    "Visibility, SAA and FOV query duration.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	fovPixels = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "across_fov_pixels",
		Help:    "Non-zero HEALPix pixels integrated per FOV evaluation.",
		Buckets: prometheus.ExponentialBuckets(1, 8, 9),
	})
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		ephemComputeSeconds,
		ephemGridPointsTotal,
		staleElementsTotal,
		cacheHitsTotal,
		cacheMissesTotal,
		cacheEvictionsTotal,
		cacheEntries,
		cacheSizeBytes,
		cacheComputeErrorsTotal,
		tleFetchTotal,
		tleStoreAgeSeconds,
		queryDurationSeconds,
		fovPixels,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveEphemeris records one ephemeris computation.
func ObserveEphemeris(satellite string, d time.Duration, points int) {
	ephemComputeSeconds.WithLabelValues(satellite).Observe(d.Seconds())
	ephemGridPointsTotal.Add(float64(points))
}

func IncStaleElements(satellite string) { staleElementsTotal.WithLabelValues(satellite).Inc() }
func IncCacheHits() { cacheHitsTotal.Inc() }
func IncCacheMisses() { cacheMissesTotal.Inc() }
func AddCacheEvictions(n int) { cacheEvictionsTotal.Add(float64(n)) }
func SetCacheEntries(n int) { cacheEntries.Set(float64(n)) }
func SetCacheSizeBytes(n int64) { cacheSizeBytes.Set(float64(n)) }
func IncCacheComputeErrors() { cacheComputeErrorsTotal.Inc() }

// IncTLEFetch counts a TLE fetch; result is "ok" or "error".
func IncTLEFetch(result string) { tleFetchTotal.WithLabelValues(result).Inc() }

func SetTLEStoreAge(seconds float64) { tleStoreAgeSeconds.Set(seconds) }

// ObserveQuery records the duration of a query of the given kind
// ("windows", "saa", "fov", "trigger").
func ObserveQuery(kind string, d time.Duration) {
	queryDurationSeconds.WithLabelValues(kind).Observe(d.Seconds())
}

func ObserveFOVPixels(n int) { fovPixels.Observe(float64(n)) }

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// knownRoutes are the ops listener paths; anything else is labelled "other"
// to bound label cardinality.
var knownRoutes = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// Middleware records request count for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		httpRequestsTotal.WithLabelValues(normalizeRoute(r.URL.Path), r.Method, strconv.Itoa(rw.statusCode)).Inc()
	})
}
