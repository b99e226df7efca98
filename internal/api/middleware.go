package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/IntakeLine/internal/util"
)

// RequestIDHeader carries the request id on responses.
const RequestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withRequestLogging tags each request with an id and logs its outcome.
func withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(RequestIDHeader)
		if reqID == "" {
			reqID = util.GenerateRequestID()
		}
		w.Header().Set(RequestIDHeader, reqID)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("Server.request", "requestID", reqID, "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

// webhook parses the platform's form post and, when configured, checks its
// signature before calling h.
func (s *Server) webhook(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET, POST")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			slog.Warn("Server.webhook: bad form", "path", r.URL.Path, "error", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if s.validator != nil && !s.validator.Validate(r) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		h(w, r)
	})
}
