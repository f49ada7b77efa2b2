package health

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/devrev/chashring/internal/model"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RingView is the read-only ring surface the health endpoints report on
type RingView interface {
	NodeCount() int
	TotalVirtualNodes() int
	Summary() model.RingSummary
}

// HealthChecker provides health check endpoints
type HealthChecker struct {
	ring   RingView
	logger *zap.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp int64             `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(ring RingView, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		ring:   ring,
		logger: logger,
	}
}

// LivenessHandler handles liveness probe requests
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthStatus{
		Status:    "alive",
		Timestamp: time.Now().Unix(),
	})
}

// ReadinessHandler reports ready once the ring can resolve keys
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"physical_nodes": fmt.Sprintf("%d", h.ring.NodeCount()),
		"virtual_nodes":  fmt.Sprintf("%d", h.ring.TotalVirtualNodes()),
	}

	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now().Unix(),
		Checks:    checks,
	}
	code := http.StatusOK
	if h.ring.TotalVirtualNodes() == 0 {
		h.logger.Warn("Readiness check failed: ring is empty")
		status.Status = "not_ready"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, status)
}

// SummaryHandler returns the ring statistics
func (h *HealthChecker) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ring.Summary())
}

// Routes registers the health, summary and metrics endpoints on a new mux
func (h *HealthChecker) Routes(metricsPath string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", h.LivenessHandler)
	mux.HandleFunc("/health/ready", h.ReadinessHandler)
	mux.HandleFunc("/ring", h.SummaryHandler)
	if metricsPath != "" {
		mux.Handle(metricsPath, promhttp.Handler())
	}
	return mux
}

// StartServer serves Routes on port until the server fails
func StartServer(hc *HealthChecker, port int, metricsPath string, logger *zap.Logger) error {
	addr := fmt.Sprintf(":%d", port)
	logger.Info("Starting status server", zap.String("address", addr))

	server := &http.Server{
		Addr:         addr,
		Handler:      hc.Routes(metricsPath),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
