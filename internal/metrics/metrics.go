// Package metrics provides Prometheus metrics for the fily server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fily_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fily_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Transfer metrics
	bytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fily_bytes_downloaded_total",
			Help: "Total bytes streamed out of download endpoints",
		},
	)

	bytesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fily_bytes_uploaded_total",
			Help: "Total bytes accepted by the upload endpoint",
		},
	)

	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fily_downloads_total",
			Help: "Total number of downloads (files and archives)",
		},
		[]string{"kind", "status"},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fily_uploads_total",
			Help: "Total number of uploads",
		},
		[]string{"status"},
	)

	// Mutation metrics
	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fily_mutations_total",
			Help: "Total filesystem mutations by operation",
		},
		[]string{"op", "status"},
	)

	// Auth metrics
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fily_auth_attempts_total",
			Help: "Total authentication attempts",
		},
		[]string{"result"},
	)

	registeredUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fily_registered_users",
			Help: "Number of user accounts",
		},
	)
)

// RecordDownload records a completed (or failed) download.
func RecordDownload(kind string, bytes int64, success bool) {
	bytesDownloaded.Add(float64(bytes))
	downloadsTotal.WithLabelValues(kind, boolToStatus(success)).Inc()
}

// RecordUpload records a completed (or failed) upload.
func RecordUpload(bytes int64, success bool) {
	bytesUploaded.Add(float64(bytes))
	uploadsTotal.WithLabelValues(boolToStatus(success)).Inc()
}

// RecordMutation records a mkdir/rename/move/delete outcome.
func RecordMutation(op string, success bool) {
	mutationsTotal.WithLabelValues(op, boolToStatus(success)).Inc()
}

// RecordAuthAttempt records a login or token validation outcome.
func RecordAuthAttempt(success bool) {
	authAttemptsTotal.WithLabelValues(boolToStatus(success)).Inc()
}

// SetRegisteredUsers updates the user count gauge.
func SetRegisteredUsers(count int64) {
	registeredUsers.Set(float64(count))
}

func boolToStatus(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// Handler returns the /metrics HTTP handler for the metrics listener.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// statusRecorder captures the response status for the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware instruments every request with count and duration.
// Paths are recorded by route prefix, not full path, to bound label
// cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)

		route := routeLabel(r.URL.Path)
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sr.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func routeLabel(path string) string {
	for _, prefix := range []string{
		"/api/v1/files/download",
		"/api/v1/files/upload",
		"/api/v1/files/mkdir",
		"/api/v1/files/rename",
		"/api/v1/files/move",
		"/api/v1/files/thumb",
		"/api/v1/files",
		"/api/v1/auth",
		"/api/v1/admin",
		"/app",
		"/health",
	} {
		if path == prefix || len(path) > len(prefix) && path[:len(prefix)+1] == prefix+"/" {
			return prefix
		}
	}
	return "other"
}
