package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jmylchreest/livegate/internal/logger"
	"github.com/jmylchreest/livegate/internal/metrics"
	"github.com/jmylchreest/livegate/internal/output"
	"github.com/jmylchreest/livegate/internal/version"
	"github.com/jmylchreest/livegate/pkg/live"
	"github.com/jmylchreest/livegate/pkg/session"
)

type infoResponse struct {
	output.Record
	StatusText string `json:"status_text"`
}

func newInfoResponse(ref string, info *live.Info, d time.Duration) infoResponse {
	return infoResponse{
		Record:     output.NewRecord(ref, info, nil, d),
		StatusText: info.StatusText(),
	}
}

type sessionStatus struct {
	State     string     `json:"state"`
	Ready     bool       `json:"ready"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	Age       string     `json:"age,omitempty"`
	Cookies   []string   `json:"cookies,omitempty"`
}

func newSessionStatus(state session.State, s *session.Session, now time.Time) sessionStatus {
	st := sessionStatus{State: state.String()}
	if s == nil {
		return st
	}
	created := s.CreatedAt()
	st.Ready = true
	st.CreatedAt = &created
	st.Age = humanize.RelTime(created, now, "ago", "from now")
	st.Cookies = cookieNames(s)
	return st
}

type errorResponse struct {
	Error     string `json:"error"`
	Status    int    `json:"status"`
	Reason    string `json:"reason"`
	Timestamp string `json:"timestamp"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, errorResponse{
		Error:     err.Error(),
		Status:    status,
		Reason:    metrics.Reason(err),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func serverHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", version.UserAgentSuffix())
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.With(
			"request_id", middleware.GetReqID(r.Context()),
		).Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}
