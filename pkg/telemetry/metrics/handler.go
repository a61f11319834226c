package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
//
// It exposes every instrument registered with the recorder's registry, in
// OpenMetrics format when the scraper asks for it. Collection errors are
// logged and the remaining metrics are still served. Scrapes are counted in
// promhttp_metric_handler_requests_total.
//
// Example:
//
//	rec := metrics.NewRecorder(metrics.NewRegistry(true), metrics.RecorderOptions{})
//	mux.Handle("/metrics", rec.Handler(logger))
func (r *Recorder) Handler(logger *slog.Logger) http.Handler {
	opts := promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}
	if logger != nil {
		opts.ErrorLog = slogErrorLog{logger}
	}
	return r.HandlerWithOptions(opts)
}

// HandlerWithOptions returns an HTTP handler with custom options.
//
// Example:
//
//	handler := rec.HandlerWithOptions(promhttp.HandlerOpts{
//		Timeout:             10 * time.Second,
//		MaxRequestsInFlight: 5,
//		ErrorHandling:       promhttp.HTTPErrorOnError,
//	})
func (r *Recorder) HandlerWithOptions(opts promhttp.HandlerOpts) http.Handler {
	if opts.Registry == nil {
		opts.Registry = r.registry
	}
	return promhttp.InstrumentMetricHandler(r.registry, promhttp.HandlerFor(r.registry, opts))
}

// slogErrorLog adapts slog to promhttp.Logger.
type slogErrorLog struct {
	logger *slog.Logger
}

func (l slogErrorLog) Println(v ...any) {
	l.logger.Error("metrics collection failed", "detail", v)
}
