package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// LivenessHandler returns a handler for liveness probes.
func LivenessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker.Liveness() {
			writeHealth(w, logger, http.StatusOK, HealthResponse{Status: "alive"})
			return
		}
		writeHealth(w, logger, http.StatusServiceUnavailable, HealthResponse{Status: "not alive"})
	}
}

// ReadinessHandler returns a handler for readiness probes. The response
// carries the batch phase in its checks.
func ReadinessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{Status: "ready", Checks: checker.GetStatus()}
		statusCode := http.StatusOK

		if !checker.Readiness(r.Context()) {
			response.Status = "not ready"
			statusCode = http.StatusServiceUnavailable
		}

		writeHealth(w, logger, statusCode, response)
	}
}

func writeHealth(w http.ResponseWriter, logger *slog.Logger, statusCode int, response HealthResponse) {
	response.Timestamp = time.Now().UTC().Format(time.RFC3339)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("failed to encode health response", "error", err)
	}
}
