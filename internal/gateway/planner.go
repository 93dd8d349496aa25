// internal/gateway/planner.go
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	jmes "github.com/jmespath/go-jmespath"
	"go.uber.org/zap"

	"agentgate/internal/contracts"
	"agentgate/internal/dsl"
)

// RouteResult is the interpreter's reading of a natural-language request.
type RouteResult struct {
	Resources  []string `json:"resources"`
	Intent     string   `json:"intent"` // READ or WRITE
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason"`
}

// Interpreter is the untrusted natural-language collaborator. Everything
// it returns is re-validated before execution.
type Interpreter interface {
	Route(ctx context.Context, text string, hints []string, available []string) (RouteResult, error)
	Plan(ctx context.Context, text string, route RouteResult, filtered map[string]*contracts.ResourceContract) (*dsl.Plan, error)
}

// HTTPInterpreter talks to an external planning service over HTTP. The
// plan is pulled out of the response with a configurable JMESPath, so the
// service's envelope shape is not baked in here.
type HTTPInterpreter struct {
	baseURL  string
	planPath string
	client   *http.Client
	log      *zap.SugaredLogger
}

func NewHTTPInterpreter(baseURL, planPath string, log *zap.SugaredLogger) *HTTPInterpreter {
	return &HTTPInterpreter{
		baseURL:  baseURL,
		planPath: planPath,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}
}

func (p *HTTPInterpreter) Route(ctx context.Context, text string, hints []string, available []string) (RouteResult, error) {
	body := map[string]any{
		"natural_language":    text,
		"hints":               hints,
		"available_resources": available,
	}
	raw, err := p.post(ctx, "/route", body)
	if err != nil {
		return RouteResult{}, err
	}
	var out RouteResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return RouteResult{}, fmt.Errorf("planner: decode route: %w", err)
	}
	return out, nil
}

func (p *HTTPInterpreter) Plan(ctx context.Context, text string, route RouteResult, filtered map[string]*contracts.ResourceContract) (*dsl.Plan, error) {
	body := map[string]any{
		"natural_language": text,
		"resources":        route.Resources,
		"intent":           route.Intent,
		"contracts":        summarizeContracts(filtered),
	}
	raw, err := p.post(ctx, "/plan", body)
	if err != nil {
		return nil, err
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("planner: decode response: %w", err)
	}
	planDoc, err := jmes.Search(p.planPath, decoded)
	if err != nil || planDoc == nil {
		return nil, fmt.Errorf("planner: no plan at %q in response", p.planPath)
	}
	planRaw, err := json.Marshal(planDoc)
	if err != nil {
		return nil, fmt.Errorf("planner: re-encode plan: %w", err)
	}
	return dsl.DecodePlan(planRaw)
}

func (p *HTTPInterpreter) post(ctx context.Context, path string, body any) ([]byte, error) {
	u, err := url.JoinPath(p.baseURL, path)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		p.log.Warnw("planner returned non-200", "path", path, "status", resp.StatusCode)
		return nil, fmt.Errorf("planner: status %d", resp.StatusCode)
	}
	return raw, nil
}

// summarizeContracts strips contracts down to the schema view shared with
// the interpreter: readable fields only, no PII flags or enum internals
// beyond what planning needs.
func summarizeContracts(filtered map[string]*contracts.ResourceContract) map[string]any {
	out := map[string]any{}
	for name, c := range filtered {
		fields := []map[string]any{}
		for _, f := range c.Fields {
			if !f.Readable {
				continue
			}
			entry := map[string]any{
				"name":     f.Name,
				"type":     f.Type,
				"nullable": f.Nullable,
				"writable": f.Writable,
			}
			if len(f.Enum) > 0 {
				entry["enum"] = f.Enum
			}
			fields = append(fields, entry)
		}
		ops := make([]string, len(c.OpsAllowed))
		for i, op := range c.OpsAllowed {
			ops[i] = string(op)
		}
		out[name] = map[string]any{
			"version":         c.Version,
			"ops_allowed":     ops,
			"fields":          fields,
			"filters_allowed": c.FiltersAllowed,
			"order_allowed":   c.OrderAllowed,
			"limits": map[string]int{
				"max_rows":          c.Limits.MaxRows,
				"max_predicates":    c.Limits.MaxPredicates,
				"max_update_fields": c.Limits.MaxUpdateFields,
				"max_joins":         c.Limits.MaxJoins,
			},
		}
	}
	return out
}
