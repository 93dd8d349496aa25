// internal/gateway/writepolicy.go
package gateway

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/open-policy-agent/opa/rego"
	"go.uber.org/zap"
)

// WritePolicy gates write intents between routing and planning. A write
// below the confidence threshold is refused with a clarification question.
// An optional rego module can veto writes the threshold alone would pass.
type WritePolicy struct {
	threshold float64
	query     rego.PreparedEvalQuery
	hasRego   bool
	log       *zap.SugaredLogger
}

func NewWritePolicy(threshold float64, regoPath string, log *zap.SugaredLogger) (*WritePolicy, error) {
	p := &WritePolicy{threshold: threshold, log: log}
	if regoPath != "" {
		mod, err := os.ReadFile(regoPath)
		if err != nil {
			return nil, fmt.Errorf("write policy: read %s: %w", regoPath, err)
		}
		q, err := rego.New(
			rego.Query("data.gateway.decide"),
			rego.Module("gateway.rego", string(mod)),
		).PrepareForEval(context.Background())
		if err != nil {
			return nil, fmt.Errorf("write policy: compile %s: %w", regoPath, err)
		}
		p.query = q
		p.hasRego = true
		log.Infow("write policy module loaded", "path", regoPath)
	}
	return p, nil
}

// Check returns a non-nil ValidationError when the write must not proceed.
func (p *WritePolicy) Check(ctx context.Context, text string, role string, route RouteResult) *ValidationError {
	if route.Intent != "WRITE" {
		return nil
	}
	if route.Confidence < p.threshold {
		return &ValidationError{
			Type:    ErrAmbiguousIntent,
			Message: fmt.Sprintf("Write intent confidence %.2f below threshold %.2f", route.Confidence, p.threshold),
		}
	}
	if !p.hasRego {
		return nil
	}
	rs, err := p.query.Eval(ctx, rego.EvalInput(map[string]any{
		"text":       text,
		"role":       role,
		"resources":  route.Resources,
		"confidence": route.Confidence,
	}))
	if err != nil || len(rs) == 0 || len(rs[0].Expressions) == 0 {
		p.log.Errorw("write policy eval failed", "err", err)
		return &ValidationError{Type: ErrAmbiguousIntent, Message: "Write rejected by policy"}
	}
	if m, ok := rs[0].Expressions[0].Value.(map[string]any); ok {
		if allow, ok := m["allow"].(bool); ok && !allow {
			verr := &ValidationError{Type: ErrAmbiguousIntent, Message: "Write rejected by policy"}
			if reason, ok := m["reason"].(string); ok && reason != "" {
				verr.Message = reason
			}
			return verr
		}
	}
	return nil
}

// Clarification builds the follow-up question for an ambiguous request.
func Clarification(text string, route RouteResult) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "update") || strings.Contains(lower, "change"):
		return "Which specific record do you want to update? Please provide a unique identifier."
	case strings.Contains(lower, "create") || strings.Contains(lower, "add"):
		return "What specific information should be included in the new record?"
	case strings.Contains(lower, "status"):
		return "Do you want to view the current status or change it to a specific value?"
	default:
		return fmt.Sprintf("Are you looking to read information or make changes to %s?", strings.Join(route.Resources, ", "))
	}
}
