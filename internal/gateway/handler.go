// internal/gateway/handler.go
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"agentgate/internal/contracts"
	"agentgate/internal/dsl"
	"agentgate/pkg/middleware"
	"agentgate/pkg/roles"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentgate_requests_total",
		Help: "Gateway requests by role and outcome.",
	}, []string{"role", "outcome"})
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentgate_operations_total",
		Help: "Executed operations by resource and kind.",
	}, []string{"resource", "operation"})
	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agentgate_request_duration_seconds",
		Help:    "End-to-end gateway request latency.",
		Buckets: prometheus.DefBuckets,
	})
)

type request struct {
	NaturalLanguage string `json:"natural_language"`
	Hints           *struct {
		Resources []string `json:"resources"`
	} `json:"hints"`
}

// Handler owns the gateway endpoint: capability filtering, interpretation,
// the write gate, validation, and execution.
type Handler struct {
	roles       roles.Provider
	interpreter Interpreter
	writePolicy *WritePolicy
	executor    *Executor
	execTimeout time.Duration
	log         *zap.SugaredLogger
}

func NewHandler(rp roles.Provider, interp Interpreter, wp *WritePolicy, ex *Executor, execTimeout time.Duration, log *zap.SugaredLogger) *Handler {
	return &Handler{
		roles:       rp,
		interpreter: interp,
		writePolicy: wp,
		executor:    ex,
		execTimeout: execTimeout,
		log:         log,
	}
}

// Mount attaches the gateway routes.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/agent/db", h.handle)
}

func (h *Handler) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { requestDuration.Observe(time.Since(start).Seconds()) }()

	agent, ok := middleware.AgentAuthFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	log := h.log.With("role", agent.Role, "request_id", middleware.RequestIDFrom(r.Context()))

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NaturalLanguage == "" {
		h.writeError(w, agent.Role, ErrorBody{
			Type:    ErrInvalidQuery,
			Message: "Request body must carry natural_language",
		})
		return
	}

	filtered := contracts.ForRole(contracts.All(), agent.Resources, agent.Operations)
	available := make([]string, 0, len(filtered))
	for name := range filtered {
		available = append(available, name)
	}

	var hints []string
	if req.Hints != nil {
		hints = req.Hints.Resources
	}
	route, err := h.interpreter.Route(r.Context(), req.NaturalLanguage, hints, available)
	if err != nil {
		log.Errorw("routing failed", "err", err)
		h.writeError(w, agent.Role, ErrorBody{Type: ErrExecutionFailed, Message: "operation failed"})
		return
	}

	if verr := h.writePolicy.Check(r.Context(), req.NaturalLanguage, agent.Role, route); verr != nil {
		body := ErrorBody{Type: verr.Type, Message: verr.Message}
		if verr.Type == ErrAmbiguousIntent {
			body.Clarification = Clarification(req.NaturalLanguage, route)
		}
		log.Infow("write gated", "intent", route.Intent, "confidence", route.Confidence)
		h.writeError(w, agent.Role, body)
		return
	}

	plan, err := h.interpreter.Plan(r.Context(), req.NaturalLanguage, route, filtered)
	if err != nil {
		var unsup *dsl.UnsupportedOpError
		if errors.As(err, &unsup) {
			log.Infow("unsupported operation proposed", "op", unsup.OpTag, "resource", unsup.Resource)
			h.writeError(w, agent.Role, ErrorBody{
				Type:    ErrUnauthorizedOperation,
				Message: unsup.OpTag + " operations are not allowed",
			})
			return
		}
		log.Errorw("planning failed", "err", err)
		h.writeError(w, agent.Role, ErrorBody{Type: ErrExecutionFailed, Message: "operation failed"})
		return
	}
	if len(plan.Steps) != 1 {
		h.writeError(w, agent.Role, ErrorBody{
			Type:    ErrInvalidQuery,
			Message: "Multi-step operations are not supported",
		})
		return
	}
	step := plan.Primary()

	if verr := Validate(step, filtered); verr != nil {
		log.Infow("plan rejected", "type", verr.Type, "message", verr.Message, "resource", verr.Resource)
		h.writeError(w, agent.Role, ErrorBody{
			Type:    verr.Type,
			Message: verr.Message,
			Details: errorDetails(verr),
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.execTimeout)
	defer cancel()
	result, execErr := h.executor.Execute(ctx, step, filtered)
	if execErr != nil {
		h.writeError(w, agent.Role, ErrorBody{Type: execErr.Type, Message: execErr.Message})
		return
	}

	operationsTotal.WithLabelValues(result.Resource, result.Operation).Inc()
	requestsTotal.WithLabelValues(agent.Role, "ok").Inc()
	log.Infow("operation executed", "operation", result.Operation, "resource", result.Resource, "count", result.Count)

	writeJSON(w, http.StatusOK, Envelope{
		OK:        true,
		Operation: result.Operation,
		Resource:  result.Resource,
		Data:      result.Rows,
		Count:     result.Count,
		Page:      result.Page,
	})
}

func errorDetails(verr *ValidationError) map[string]any {
	if verr.Field == "" {
		return nil
	}
	return map[string]any{"field": verr.Field}
}

func (h *Handler) writeError(w http.ResponseWriter, role string, body ErrorBody) {
	requestsTotal.WithLabelValues(role, string(body.Type)).Inc()
	writeJSON(w, body.Type.HTTPStatus(), errorEnvelope(body))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
