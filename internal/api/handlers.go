package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/BTreeMap/IntakeLine/internal/estimate"
	"github.com/BTreeMap/IntakeLine/internal/models"
	"github.com/BTreeMap/IntakeLine/internal/phone"
)

// healthHandler reports whether the call-state store is reachable.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	healthData := map[string]interface{}{
		"status":          "ok",
		"redis_connected": true,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}
	statusCode := http.StatusOK
	if s.kv == nil || s.kv.Ping(ctx) != nil {
		slog.Warn("Server.healthHandler: store unreachable")
		healthData["status"] = "degraded"
		healthData["redis_connected"] = false
		statusCode = http.StatusInternalServerError
	}
	writeJSONResponse(w, statusCode, healthData)
}

// liveCallsHandler lists in-progress intakes for a contractor number.
func (s *Server) liveCallsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	contractor := r.URL.Query().Get("contractor")
	if contractor == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("contractor query parameter is required"))
		return
	}
	contractor = phone.NormalizeE164(contractor)
	calls := s.machine.LiveCalls(r.Context(), contractor)
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"contractor": contractor,
		"calls":      calls,
		"count":      len(calls),
	}))
}

// estimateHandler answers a rough price-range query.
func (s *Server) estimateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Request must be JSON"))
		return
	}

	var req estimate.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.estimateHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	res := estimate.Estimate(req)
	slog.Debug("Server.estimateHandler", "service", res.ServiceMatched, "size", res.Size)
	writeJSONResponse(w, http.StatusOK, models.Success(res))
}
