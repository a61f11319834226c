package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// Benchmark_Counter_Add benchmarks a cached counter increment
func Benchmark_Counter_Add(b *testing.B) {
	rec := NewRecorder(prometheus.NewRegistry(), RecorderOptions{})
	labels := Labels{"method": "GET", "route": "/users"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec.Counter("http_requests_total", "", "method", "route").Add(1, labels)
	}
}

// Benchmark_Counter_Add_Parallel benchmarks concurrent increments
func Benchmark_Counter_Add_Parallel(b *testing.B) {
	rec := NewRecorder(prometheus.NewRegistry(), RecorderOptions{})
	labels := Labels{"method": "GET", "route": "/users"}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			rec.Counter("http_requests_total", "", "method", "route").Add(1, labels)
		}
	})
}

// Benchmark_HTTPMetrics_RecordResponse benchmarks the per-request response path
func Benchmark_HTTPMetrics_RecordResponse(b *testing.B) {
	m := NewHTTPMetrics(NewRecorder(prometheus.NewRegistry(), RecorderOptions{}), 1000)
	resp := Response{Method: "GET", Route: "/users/{id}", StatusCode: 200, DurationMs: 12, RequestBytes: 0, ResponseBytes: 2048}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.RecordResponse(resp)
	}
}

// Benchmark_NormalizeName benchmarks instrument name normalization
func Benchmark_NormalizeName(b *testing.B) {
	for i := 0; i < b.N; i++ {
		NormalizeName("HTTP Request Duration (ms)")
	}
}

// Benchmark_CardinalityLimiter_Allow benchmarks the hot path for a known value
func Benchmark_CardinalityLimiter_Allow(b *testing.B) {
	cl := NewCardinalityLimiter(1000)
	cl.Allow("/users")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			cl.Allow("/users")
		}
	})
}
