package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"agentgate/internal/contracts"
	"agentgate/internal/data"
	"agentgate/internal/dsl"
	"agentgate/internal/suspension"
	"agentgate/pkg/middleware"
	"agentgate/pkg/roles"
)

// staticInterpreter returns canned routes and plans keyed by request text.
type staticInterpreter struct {
	routes map[string]RouteResult
	plans  map[string]dsl.Step
	errs   map[string]error
}

func (s *staticInterpreter) Route(ctx context.Context, text string, hints, available []string) (RouteResult, error) {
	if r, ok := s.routes[text]; ok {
		return r, nil
	}
	return RouteResult{Resources: []string{"cases"}, Intent: "READ", Confidence: 0.95}, nil
}

func (s *staticInterpreter) Plan(ctx context.Context, text string, route RouteResult, filtered map[string]*contracts.ResourceContract) (*dsl.Plan, error) {
	if err, ok := s.errs[text]; ok {
		return nil, err
	}
	step, ok := s.plans[text]
	if !ok {
		return nil, context.Canceled
	}
	return &dsl.Plan{Steps: []dsl.Step{step}}, nil
}

type memStore struct {
	rows map[string]map[string]any
}

func (m *memStore) Read(ctx context.Context, q data.ReadQuery) ([]map[string]any, error) {
	out := []map[string]any{}
	for _, row := range m.rows {
		match := true
		for _, p := range q.Where {
			if row[p.Field] != p.Value {
				match = false
				break
			}
		}
		if match {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memStore) Update(ctx context.Context, where []data.Predicate, fields map[string]any) (map[string]any, error) {
	for _, row := range m.rows {
		match := true
		for _, p := range where {
			if row[p.Field] != p.Value {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		for k, v := range fields {
			row[k] = v
		}
		return row, nil
	}
	return nil, data.ErrNotFound
}

func (m *memStore) Create(ctx context.Context, values map[string]any) (map[string]any, error) {
	row := map[string]any{"case_id": "6d7f9f1e-58d9-4a52-a77e-0a4bd0123456"}
	for k, v := range values {
		row[k] = v
	}
	m.rows[row["case_id"].(string)] = row
	return row, nil
}

func testServer(t *testing.T, interp Interpreter, state *suspension.State) *httptest.Server {
	t.Helper()
	log := zap.NewNop().Sugar()
	rp, err := roles.NewMemoryProvider(log, "")
	if err != nil {
		t.Fatal(err)
	}
	store := &memStore{rows: map[string]map[string]any{}}
	ex := NewExecutor(func(resource, table string) data.Store { return store }, data.Tables(), log)
	wp, err := NewWritePolicy(0.80, "", log)
	if err != nil {
		t.Fatal(err)
	}
	h := NewHandler(rp, interp, wp, ex, 5*time.Second, log)

	verify := func(ctx context.Context, raw string) (middleware.AgentAuthContext, error) {
		perm, err := rp.Resolve(ctx, raw)
		if err != nil {
			return middleware.AgentAuthContext{}, err
		}
		return middleware.AgentAuthContext{
			Role:       perm.Role,
			ServiceID:  "svc-test",
			Endpoints:  perm.Endpoints,
			Resources:  perm.Resources,
			Operations: perm.Operations,
		}, nil
	}

	r := chi.NewRouter()
	r.Use(suspension.Gate(state))
	r.Use(middleware.AgentAuth(verify, log))
	h.Mount(r)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return httptest.NewServer(r)
}

// post sends a gateway request using the role name as the bearer token;
// the test verify func maps it straight to the role grant.
func post(t *testing.T, srv *httptest.Server, role, text string) (int, Envelope) {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"natural_language": text})
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/agent/db", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+role)
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, env
}

func TestCaseLifecycleScenario(t *testing.T) {
	const caseID = "6d7f9f1e-58d9-4a52-a77e-0a4bd0123456"
	interp := &staticInterpreter{
		routes: map[string]RouteResult{
			"open a case for Dana":            {Resources: []string{"cases"}, Intent: "WRITE", Confidence: 0.95},
			"close Dana's case":               {Resources: []string{"cases"}, Intent: "WRITE", Confidence: 0.92},
			"close Dana's case if still open": {Resources: []string{"cases"}, Intent: "WRITE", Confidence: 0.93},
			"delete Dana's case":              {Resources: []string{"cases"}, Intent: "WRITE", Confidence: 0.97},
			"show Dana's case":                {Resources: []string{"cases"}, Intent: "READ", Confidence: 0.99},
			"show Dana's case status":         {Resources: []string{"cases"}, Intent: "READ", Confidence: 0.99},
		},
		plans: map[string]dsl.Step{
			"open a case for Dana": &dsl.InsertOperation{
				Resource: "cases",
				Values:   map[string]any{"client_name": "Dana Ortiz", "client_email": "dana@example.com", "status": "OPEN"},
			},
			"show Dana's case": &dsl.ReadOperation{
				Resource: "cases",
				Select:   []string{"case_id", "client_name", "status"},
				Where:    []dsl.WhereClause{{Field: "case_id", Op: "=", Value: caseID}},
				Limit:    10,
			},
			"close Dana's case": &dsl.UpdateOperation{
				Resource: "cases",
				Where:    []dsl.WhereClause{{Field: "case_id", Op: "=", Value: caseID}},
				Update:   map[string]any{"status": "CLOSED"},
				Limit:    1,
			},
			"show Dana's case status": &dsl.ReadOperation{
				Resource: "cases",
				Select:   []string{"case_id", "status"},
				Where:    []dsl.WhereClause{{Field: "case_id", Op: "=", Value: caseID}},
				Limit:    10,
			},
			"close Dana's case if still open": &dsl.UpdateOperation{
				Resource: "cases",
				Where: []dsl.WhereClause{
					{Field: "case_id", Op: "=", Value: caseID},
					{Field: "status", Op: "=", Value: "OPEN"},
				},
				Update: map[string]any{"status": "CLOSED"},
				Limit:  1,
			},
		},
		errs: map[string]error{
			"delete Dana's case": &dsl.UnsupportedOpError{OpTag: "DELETE", Resource: "cases"},
		},
	}
	srv := testServer(t, interp, suspension.NewState())
	defer srv.Close()

	status, env := post(t, srv, "manager_agent", "open a case for Dana")
	if status != http.StatusOK || !env.OK || env.Operation != "INSERT" {
		t.Fatalf("create: status=%d env=%+v", status, env)
	}

	status, env = post(t, srv, "manager_agent", "show Dana's case")
	if status != http.StatusOK || env.Count != 1 || env.Data[0]["status"] != "OPEN" {
		t.Fatalf("read after create: status=%d env=%+v", status, env)
	}

	status, env = post(t, srv, "manager_agent", "close Dana's case")
	if status != http.StatusOK || env.Operation != "UPDATE" || env.Data[0]["status"] != "CLOSED" {
		t.Fatalf("update: status=%d env=%+v", status, env)
	}

	status, env = post(t, srv, "manager_agent", "show Dana's case status")
	if status != http.StatusOK || env.Data[0]["status"] != "CLOSED" {
		t.Fatalf("read after update: status=%d env=%+v", status, env)
	}

	// A guarded update against an already-closed case must match nothing.
	status, env = post(t, srv, "manager_agent", "close Dana's case if still open")
	if status != http.StatusNotFound || env.Error == nil || env.Error.Type != ErrResourceNotFound {
		t.Fatalf("guarded update on closed case: status=%d env=%+v", status, env)
	}

	status, env = post(t, srv, "manager_agent", "delete Dana's case")
	if status != http.StatusForbidden || env.Error == nil || env.Error.Type != ErrUnauthorizedOperation {
		t.Fatalf("delete: status=%d env=%+v", status, env)
	}
}

func TestLowConfidenceWriteGetsClarification(t *testing.T) {
	interp := &staticInterpreter{
		routes: map[string]RouteResult{
			"update something": {Resources: []string{"cases"}, Intent: "WRITE", Confidence: 0.40},
		},
	}
	srv := testServer(t, interp, suspension.NewState())
	defer srv.Close()

	status, env := post(t, srv, "manager_agent", "update something")
	if status != http.StatusUnprocessableEntity || env.Error == nil || env.Error.Type != ErrAmbiguousIntent {
		t.Fatalf("status=%d env=%+v", status, env)
	}
	if env.Error.Clarification == "" {
		t.Error("ambiguous write should carry a clarification question")
	}
}

func TestRoleCannotReachUngrantedResource(t *testing.T) {
	interp := &staticInterpreter{
		routes: map[string]RouteResult{
			"read documents": {Resources: []string{"documents"}, Intent: "READ", Confidence: 0.95},
		},
		plans: map[string]dsl.Step{
			"read documents": &dsl.ReadOperation{Resource: "documents", Select: []string{"document_id"}, Limit: 10},
		},
	}
	srv := testServer(t, interp, suspension.NewState())
	defer srv.Close()

	status, env := post(t, srv, "communications_agent", "read documents")
	if status != http.StatusNotFound || env.Error == nil || env.Error.Type != ErrResourceNotFound {
		t.Fatalf("status=%d env=%+v", status, env)
	}
}

func TestSuspensionGateBlocksGatewayNotLiveness(t *testing.T) {
	state := suspension.NewState()
	interp := &staticInterpreter{
		plans: map[string]dsl.Step{
			"anything": &dsl.ReadOperation{Resource: "cases", Select: []string{"case_id"}, Limit: 10},
		},
	}
	srv := testServer(t, interp, state)
	defer srv.Close()

	state.Suspend("svc-admin", "incident drill")

	status, _ := post(t, srv, "manager_agent", "anything")
	if status != http.StatusServiceUnavailable {
		t.Fatalf("gateway returned %d while suspended, want 503", status)
	}

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("liveness returned %d while suspended, want 200", resp.StatusCode)
	}

	state.Resume("svc-admin")
	status, env := post(t, srv, "manager_agent", "anything")
	if status != http.StatusOK || !env.OK {
		t.Fatalf("after resume: status=%d env=%+v", status, env)
	}
}

func TestMissingBearerRejected(t *testing.T) {
	srv := testServer(t, &staticInterpreter{}, suspension.NewState())
	defer srv.Close()

	body, _ := json.Marshal(map[string]any{"natural_language": "anything"})
	resp, err := srv.Client().Post(srv.URL+"/agent/db", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}
