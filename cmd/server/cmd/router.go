package cmd

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"camera-relay/internal/platform/logger"
	"camera-relay/internal/platform/metrics"
	"camera-relay/internal/stream"
)

// newMetrics returns the relay metrics plus the Go runtime and process
// collectors.
func newMetrics() *metrics.Metrics {
	met := metrics.New()
	met.Registry().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return met
}

// newRouter assembles the HTTP surface: middleware, the metrics scrape
// endpoint, a liveness check and the relay routes.
func newRouter(log *slog.Logger, met *metrics.Metrics, sup *stream.Supervisor) http.Handler {
	h := stream.NewHandler(sup, log, met)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestID)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))

	r.Get(metrics.ScrapePath, func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveSessions(sup.ActiveCount()) }).ServeHTTP(w, r)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	h.Routes(r)

	return r
}
