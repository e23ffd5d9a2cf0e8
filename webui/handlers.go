package webui

import (
	"encoding/json"
	"net/http"
	"strconv"

	"fin_backend/core"
	"fin_backend/fimcp"
	"fin_backend/insights"

	"go.uber.org/zap"
)

// statusResponse is the GET /api/status payload.
type statusResponse struct {
	Running      bool                   `json:"scheduler_running"`
	Subject      string                 `json:"subject"`
	KnownSubject bool                   `json:"known_subject"`
	Scenario     string                 `json:"scenario,omitempty"`
	AuthState    string                 `json:"auth_state"`
	AuthWarning  *core.AgentError       `json:"auth_warning,omitempty"`
	SessionID    string                 `json:"session_id,omitempty"`
	Stats        interface{}            `json:"stats"`
	Quota        interface{}            `json:"quota"`
	InsightStats interface{}            `json:"insight_stats"`
	Config       map[string]interface{} `json:"config"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	session := s.session.Session()
	subject := s.session.Subject()

	insightStats, err := s.repo.InsightStats(r.Context())
	if err != nil {
		s.logger.Warn("insight stats query failed", zap.String("error", err.Error()))
	}

	authState := "unauthenticated"
	if session.SessionID != "" {
		authState = session.State.String()
	}

	// A synthetic session keeps the pipeline running but deserves a visible
	// warning on the status surface.
	var authWarning *core.AgentError
	if session.State == fimcp.AuthDegraded {
		authWarning = core.ErrAuthDegraded(subject)
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Running:      s.collector.IsRunning(),
		Subject:      subject,
		KnownSubject: fimcp.IsKnownSubject(subject),
		Scenario:     fimcp.DescribeSubject(subject),
		AuthState:    authState,
		AuthWarning:  authWarning,
		SessionID:    session.SessionID,
		Stats:        s.collector.Stats(),
		Quota:        s.quota.Usage(),
		InsightStats: insightStats,
		Config: map[string]interface{}{
			"provider_url":     s.config.ProviderURL,
			"interval_minutes": int(s.config.Interval.Minutes()),
		},
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	summary, err := s.repo.Summary(r.Context(), s.session.Subject())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be 1-100"})
			return
		}
		limit = parsed
	}

	var (
		rows interface{}
		err  error
	)
	if kind := r.URL.Query().Get("kind"); kind != "" {
		rows, err = s.repo.InsightsByKind(r.Context(), kind, limit)
	} else {
		rows, err = s.repo.RecentInsights(r.Context(), limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"insights": rows})
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	result := s.collector.Collect(r.Context())
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, result)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	force := r.URL.Query().Get("force") == "true"
	generated, err := s.coordinator.GenerateInsights(r.Context(), force)
	if err != nil {
		switch core.GetErrorCode(err) {
		case core.ErrCodeQuotaExceeded:
			writeError(w, http.StatusTooManyRequests, err)
		case core.ErrCodeNoData:
			writeError(w, http.StatusNotFound, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"generated": generated,
		"forced":    force,
	})
}

func (s *Server) handleSchedulerStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	s.collector.Start()
	writeJSON(w, http.StatusOK, map[string]bool{"running": s.collector.IsRunning()})
}

func (s *Server) handleSchedulerStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	s.collector.Stop()
	writeJSON(w, http.StatusOK, map[string]bool{"running": s.collector.IsRunning()})
}

// handleQuery classifies a free-text request into an analysis command.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}

	writeJSON(w, http.StatusOK, insights.ParseIntent(body.Message))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	payload := map[string]interface{}{"error": err.Error()}
	if agentErr, ok := core.IsAgentError(err); ok {
		payload["code"] = agentErr.Code
		payload["action"] = agentErr.Action
	}
	writeJSON(w, status, payload)
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}
