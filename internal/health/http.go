package health

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// HTTPHandler exposes health probes.
type HTTPHandler struct {
	manager *Manager
	logger  *zap.Logger
}

func NewHTTPHandler(manager *Manager, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{manager: manager, logger: logger}
}

// RegisterRoutes mounts the probe endpoints on mux.
func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", h.handleLiveness)
	mux.HandleFunc("/readyz", h.handleReadiness)
	mux.HandleFunc("/health/detailed", h.handleDetailed)
}

func (h *HTTPHandler) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"live": true})
}

func (h *HTTPHandler) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	detailed := h.manager.Check(r.Context())
	status := http.StatusOK
	if !detailed.Overall.Ready {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, map[string]interface{}{
		"ready":   detailed.Overall.Ready,
		"status":  detailed.Overall.Status.String(),
		"message": detailed.Overall.Message,
	})
}

func (h *HTTPHandler) handleDetailed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	detailed := h.manager.Check(r.Context())

	type componentView struct {
		Status   string                 `json:"status"`
		Message  string                 `json:"message,omitempty"`
		Error    string                 `json:"error,omitempty"`
		Details  map[string]interface{} `json:"details,omitempty"`
		Critical bool                   `json:"critical"`
	}
	components := make(map[string]componentView, len(detailed.Components))
	for name, c := range detailed.Components {
		components[name] = componentView{
			Status:   c.Status.String(),
			Message:  c.Message,
			Error:    c.Error,
			Details:  c.Details,
			Critical: c.Critical,
		}
	}

	status := http.StatusOK
	if detailed.Overall.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, map[string]interface{}{
		"status":     detailed.Overall.Status.String(),
		"message":    detailed.Overall.Message,
		"ready":      detailed.Overall.Ready,
		"components": components,
	})
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode health response", zap.Error(err))
	}
}
