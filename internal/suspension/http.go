// internal/suspension/http.go
package suspension

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"agentgate/pkg/middleware"
)

// Handler serves the emergency endpoints. Suspend and resume demand the
// strongest grant; status only needs endpoint access.
type Handler struct {
	state *State
	log   *zap.SugaredLogger
}

func NewHandler(state *State, log *zap.SugaredLogger) *Handler {
	return &Handler{state: state, log: log}
}

func (h *Handler) Mount(r chi.Router) {
	r.Post("/emergency/suspend", h.suspend)
	r.Post("/emergency/resume", h.resume)
	r.Get("/emergency/status", h.status)
}

func (h *Handler) suspend(w http.ResponseWriter, r *http.Request) {
	agent, ok := privileged(r)
	if !ok {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	if !h.state.Suspend(agent.ServiceID, body.Reason) {
		writeInfo(w, http.StatusConflict, h.state.Snapshot())
		return
	}
	h.log.Warnw("service suspended", "by", agent.ServiceID, "role", agent.Role, "reason", body.Reason)
	writeInfo(w, http.StatusOK, h.state.Snapshot())
}

func (h *Handler) resume(w http.ResponseWriter, r *http.Request) {
	agent, ok := privileged(r)
	if !ok {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if !h.state.Resume(agent.ServiceID) {
		writeInfo(w, http.StatusConflict, h.state.Snapshot())
		return
	}
	h.log.Warnw("service resumed", "by", agent.ServiceID, "role", agent.Role)
	writeInfo(w, http.StatusOK, h.state.Snapshot())
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	writeInfo(w, http.StatusOK, h.state.Snapshot())
}

// privileged requires the wildcard resource grant plus DELETE, the
// combination only the break-glass role carries.
func privileged(r *http.Request) (middleware.AgentAuthContext, bool) {
	agent, ok := middleware.AgentAuthFrom(r.Context())
	if !ok {
		return middleware.AgentAuthContext{}, false
	}
	wildcard, del := false, false
	for _, res := range agent.Resources {
		if res == "*" {
			wildcard = true
		}
	}
	for _, op := range agent.Operations {
		if op == "DELETE" {
			del = true
		}
	}
	return agent, wildcard && del
}

func writeInfo(w http.ResponseWriter, status int, info Info) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(info)
}
