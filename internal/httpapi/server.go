// Package httpapi is the service's HTTP surface: investigation submission,
// task lookup, routing introspection, and live progress over SSE and
// WebSocket.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scamlens/orchestrator/internal/db"
	"github.com/scamlens/orchestrator/internal/routing"
	"github.com/scamlens/orchestrator/internal/streaming"
)

const maxTextLen = 50_000

// Server holds the handler dependencies.
type Server struct {
	router *routing.Router
	store  *db.Client
	events *streaming.Manager
	logger *zap.Logger
}

func NewServer(router *routing.Router, store *db.Client, events *streaming.Manager, logger *zap.Logger) *Server {
	return &Server{router: router, store: store, events: events, logger: logger}
}

// RegisterRoutes mounts all API endpoints on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/investigate", s.handleInvestigate)
	mux.HandleFunc("GET /api/v1/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("GET /api/v1/tasks/{id}/events", s.handleSSE)
	mux.HandleFunc("GET /api/v1/routing/decisions", s.handleDecisions)
	mux.HandleFunc("GET /ws", s.handleWS)
}

type investigateRequest struct {
	Text   string `json:"text"`
	TaskID string `json:"task_id,omitempty"`
}

type verdictView struct {
	RiskLevel   string   `json:"risk_level"`
	Confidence  float64  `json:"confidence"`
	Explanation string   `json:"explanation"`
	ToolsUsed   []string `json:"tools_used"`
	Method      string   `json:"method"`
}

type investigateResponse struct {
	TaskID         string       `json:"task_id"`
	Route          string       `json:"route"`
	FallbackReason string       `json:"fallback_reason,omitempty"`
	EntityCount    int          `json:"entity_count"`
	Status         string       `json:"status"`
	Verdict        *verdictView `json:"verdict,omitempty"`
}

func (s *Server) handleInvestigate(w http.ResponseWriter, r *http.Request) {
	var req investigateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if len(req.Text) > maxTextLen {
		s.writeError(w, http.StatusRequestEntityTooLarge, "text too long")
		return
	}
	taskID := req.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}

	outcome, err := s.router.Decide(r.Context(), taskID, req.Text)
	if err != nil {
		s.logger.Error("routing failed", zap.String("task_id", taskID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "routing failed")
		return
	}

	resp := investigateResponse{
		TaskID:         outcome.TaskID,
		Route:          outcome.Route,
		FallbackReason: outcome.FallbackReason,
		EntityCount:    outcome.EntityCount,
	}
	status := http.StatusOK
	if outcome.Route == routing.RouteAgent {
		resp.Status = db.StatusRunning
		status = http.StatusAccepted
	} else {
		resp.Status = db.StatusCompleted
		resp.Verdict = &verdictView{
			RiskLevel:   string(outcome.Verdict.RiskLevel),
			Confidence:  outcome.Verdict.Confidence,
			Explanation: outcome.Verdict.Explanation,
			ToolsUsed:   outcome.Verdict.ToolsUsed,
			Method:      string(outcome.Verdict.Method),
		}
	}
	s.writeJSON(w, status, resp)
}

type evidenceView struct {
	ToolName    string          `json:"tool_name"`
	EntityType  string          `json:"entity_type"`
	EntityValue string          `json:"entity_value"`
	Payload     json.RawMessage `json:"payload"`
	Success     bool            `json:"success"`
	Error       string          `json:"error,omitempty"`
	LatencyMs   int64           `json:"latency_ms"`
}

type taskResponse struct {
	TaskID      string         `json:"task_id"`
	Status      string         `json:"status"`
	RiskLevel   string         `json:"risk_level,omitempty"`
	Confidence  float64        `json:"confidence"`
	Explanation string         `json:"explanation,omitempty"`
	ToolsUsed   []string       `json:"tools_used"`
	Method      string         `json:"method,omitempty"`
	EntityCount int            `json:"entity_count"`
	Evidence    []evidenceView `json:"evidence"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")

	inv, err := s.store.GetInvestigation(r.Context(), taskID)
	if errors.Is(err, db.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		s.logger.Error("task lookup failed", zap.String("task_id", taskID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	records, err := s.store.GetEvidence(r.Context(), taskID)
	if err != nil {
		s.logger.Warn("evidence lookup failed", zap.String("task_id", taskID), zap.Error(err))
	}
	views := make([]evidenceView, 0, len(records))
	for _, rec := range records {
		views = append(views, evidenceView{
			ToolName:    rec.ToolName,
			EntityType:  rec.EntityType,
			EntityValue: rec.EntityValue,
			Payload:     json.RawMessage(rec.Payload),
			Success:     rec.Success,
			Error:       rec.Error,
			LatencyMs:   rec.LatencyMs,
		})
	}

	s.writeJSON(w, http.StatusOK, taskResponse{
		TaskID:      inv.TaskID,
		Status:      inv.Status,
		RiskLevel:   inv.RiskLevel,
		Confidence:  inv.Confidence,
		Explanation: inv.Explanation,
		ToolsUsed:   inv.ToolsUsed,
		Method:      inv.Method,
		EntityCount: inv.EntityCount,
		Evidence:    views,
		CreatedAt:   inv.CreatedAt,
		UpdatedAt:   inv.UpdatedAt,
	})
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"decisions": s.router.RecentDecisions(limit),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
