package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type connChecker interface {
	IsConnected() bool
}

func newMetrics(registry *prometheus.Registry) (*prometheus.HistogramVec, *prometheus.GaugeVec) {
	responseTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "calc",
		Name:      "calculation_duration_seconds",
		Help:      "Duration of calculations",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, []string{"name", "op", "status"})

	errorCount := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "calc",
		Name:      "calculation_errors",
		Help:      "Number of failed calculations",
	}, []string{"name", "op", "status", "message"})

	registry.MustRegister(
		responseTime,
		errorCount,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return responseTime, errorCount
}

func newRouter(calc connChecker, registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		status, code := "healthy", http.StatusOK
		if !calc.IsConnected() {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
		respondJSON(w, code, map[string]string{"status": status})
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return r
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.S().Errorf("Encode response %v", err)
	}
}
