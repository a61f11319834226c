package health

import (
	"encoding/json"
	"net/http"
	"runtime"

	"golang.org/x/time/rate"
)

// VersionInfo contains build and version information.
type VersionInfo struct {
	// Version is the semantic version (e.g., "1.0.0")
	Version string `json:"version"`

	// Commit is the git commit hash
	Commit string `json:"commit"`

	// BuildTime is when the binary was built
	BuildTime string `json:"build_time"`

	// GoVersion is the Go version used to build
	GoVersion string `json:"go_version"`
}

// NewVersionInfo fills GoVersion from the running binary.
func NewVersionInfo(version, commit, buildTime string) VersionInfo {
	return VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}
}

// LivenessHandler returns an HTTP handler for the liveness probe endpoint.
// It performs a simple check to verify the process is alive.
//
// Example response:
//
//	{
//	    "status": "ok",
//	    "timestamp": "2026-10-16T10:30:00Z"
//	}
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowed(w, r) {
			return
		}
		writeStatus(w, r, http.StatusOK, c.CheckLiveness(r.Context()))
	}
}

// ReadinessHandler returns an HTTP handler for the readiness probe endpoint.
// It performs all registered component health checks.
//
// Returns:
//   - 200 OK: every telemetry component is healthy
//   - 503 Service Unavailable: at least one component failed its check
//
// Example response (degraded):
//
//	{
//	    "status": "degraded",
//	    "checks": {
//	        "tracer": {"status": "unhealthy", "message": "span export: context deadline exceeded", "duration_ms": 5000},
//	        "system_sampler": {"status": "ok", "duration_ms": 0.01}
//	    },
//	    "timestamp": "2026-10-16T10:30:00Z"
//	}
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowed(w, r) {
			return
		}

		status := c.CheckReadiness(r.Context())
		code := http.StatusOK
		if !status.Ready() {
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, r, code, status)
	}
}

// VersionHandler returns an HTTP handler for the version information endpoint.
func VersionHandler(info VersionInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowed(w, r) {
			return
		}
		writeStatus(w, r, http.StatusOK, info)
	}
}

// Paths are the routes the health endpoints are served on.
type Paths struct {
	Liveness  string
	Readiness string
	Version   string
}

// DefaultPaths returns /health, /ready and /version.
func DefaultPaths() Paths {
	return Paths{Liveness: "/health", Readiness: "/ready", Version: "/version"}
}

// Register adds the health endpoints to mux. Empty paths are skipped.
//
// Usage:
//
//	mux := http.NewServeMux()
//	checker := health.New(5 * time.Second)
//	checker.Register(mux, health.DefaultPaths(), health.NewVersionInfo("1.0.0", "abc123", "2026-10-16"))
func (c *Checker) Register(mux *http.ServeMux, paths Paths, info VersionInfo) {
	if paths.Liveness != "" {
		mux.Handle(paths.Liveness, RateLimitedHandler(c.LivenessHandler(), DefaultProbeRate))
	}
	if paths.Readiness != "" {
		mux.Handle(paths.Readiness, RateLimitedHandler(c.ReadinessHandler(), DefaultProbeRate))
	}
	if paths.Version != "" {
		mux.Handle(paths.Version, VersionHandler(info))
	}
}

// DefaultProbeRate is the per-endpoint probe limit applied by Register.
const DefaultProbeRate = 50

// RateLimitedHandler wraps a handler with a token bucket of
// requestsPerSecond tokens. It keeps probe floods from running the
// readiness checks in a tight loop.
//
// Usage:
//
//	handler := RateLimitedHandler(checker.LivenessHandler(), 10) // 10 req/s
//	http.HandleFunc("/health", handler)
func RateLimitedHandler(handler http.HandlerFunc, requestsPerSecond int) http.HandlerFunc {
	if requestsPerSecond <= 0 {
		return handler
	}

	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)

	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		handler(w, r)
	}
}

// allowed accepts GET and HEAD only.
func allowed(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", "GET, HEAD")
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	return false
}

func writeStatus(w http.ResponseWriter, r *http.Request, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)

	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(body)
	}
}
