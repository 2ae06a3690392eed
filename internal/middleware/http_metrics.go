package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// staticRoutes are served verbatim as metric labels.
var staticRoutes = map[string]bool{
	"/":                true,
	"/health":          true,
	"/ready":           true,
	"/metrics":         true,
	"/matches/compute": true,
	"/queue":           true,
	"/queue/sweep":     true,
}

// normalizePath maps dynamic path segments to route patterns so metric
// cardinality stays bounded. /students/3f2a.../matches becomes
// /students/{id}/matches.
func normalizePath(path string) string {
	if staticRoutes[path] {
		return path
	}

	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")

	// /students/{id}/matches, /students/{id}/invalidate and the listing twins.
	if len(parts) == 4 && (parts[1] == "students" || parts[1] == "listings") {
		if parts[3] == "matches" || parts[3] == "invalidate" {
			return "/" + parts[1] + "/{id}/" + parts[3]
		}
	}

	// /matches/{student_id}/{listing_id}/history
	if len(parts) == 5 && parts[1] == "matches" && parts[4] == "history" {
		return "/matches/{student_id}/{listing_id}/history"
	}

	// Unknown patterns pass through so new routes stay visible.
	return path
}

// metricsResponseWriter captures the status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// HTTPMetrics records request counts, durations and sizes per normalized
// route. Health probes are excluded; they would dominate the counters.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := newMetricsResponseWriter(w)

			requestSize := int64(0)
			if contentLength := r.Header.Get("Content-Length"); contentLength != "" {
				if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil {
					requestSize = size
				}
			}

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				requestSize,
				mrw.size,
			)
		})
	}
}
