package trust

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"agentgate/pkg/config"
	"agentgate/pkg/roles"
)

func tokenServer(t *testing.T, store IdentityStore, env string) (*httptest.Server, *AgentTokenService) {
	t.Helper()
	log := zap.NewNop().Sugar()
	rp, err := roles.NewMemoryProvider(log, "")
	if err != nil {
		t.Fatal(err)
	}
	profile := config.TokenProfile{
		Environment: env,
		Secret:      []byte("test-secret"),
		Issuer:      "agentgate-" + strings.ToLower(env),
		Audience:    "agentgate-api-" + strings.ToLower(env),
		TTL:         time.Hour,
	}
	tokens := NewAgentTokenService(profile, time.Minute, log)
	auth := NewServiceAuthenticator(store, testAudience, 15*time.Minute, time.Minute, log)
	h := NewTokenHandler(auth, tokens, rp, env, "", log)
	r := chi.NewRouter()
	h.Mount(r)
	return httptest.NewServer(r), tokens
}

func requestToken(t *testing.T, srv *httptest.Server, form url.Values) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := srv.Client().PostForm(srv.URL+"/oauth2/token", form)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp, body
}

func TestTokenEndpointIssuesAgentCredential(t *testing.T) {
	store := NewMemoryIdentityStore()
	priv := provision(t, store, "svc-reporting", "manager_agent", true)
	srv, tokens := tokenServer(t, store, "QA")
	defer srv.Close()

	assertion, err := MintAssertion("svc-reporting", testAudience, priv, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	resp, body := requestToken(t, srv, url.Values{
		"grant_type":            {"client_credentials"},
		"client_assertion_type": {assertionType},
		"client_assertion":      {assertion},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	if body["token_type"] != "Bearer" || body["scope"] != "agent:manager_agent" {
		t.Errorf("unexpected response: %v", body)
	}
	claims, err := tokens.Verify(body["access_token"].(string))
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.Role != "manager_agent" || claims.ServiceID != "svc-reporting" || claims.Environment != "QA" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestTokenEndpointRejectsWrongGrantType(t *testing.T) {
	srv, _ := tokenServer(t, NewMemoryIdentityStore(), "QA")
	defer srv.Close()

	resp, body := requestToken(t, srv, url.Values{
		"grant_type":            {"authorization_code"},
		"client_assertion_type": {assertionType},
		"client_assertion":      {"x"},
	})
	if resp.StatusCode != http.StatusBadRequest || body["error"] != "unsupported_grant_type" {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
}

func TestTokenEndpointCredentialFailuresAreOpaque(t *testing.T) {
	store := NewMemoryIdentityStore()
	priv := provision(t, store, "svc-a", "manager_agent", true)
	srv, _ := tokenServer(t, store, "QA")
	defer srv.Close()

	stale, _ := MintAssertion("svc-a", testAudience, priv, time.Now().Add(-30*time.Minute))
	unknown, _ := MintAssertion("svc-ghost", testAudience, priv, time.Now())

	for name, assertion := range map[string]string{
		"stale":   stale,
		"unknown": unknown,
		"garbage": "not-a-jwt",
	} {
		resp, body := requestToken(t, srv, url.Values{
			"grant_type":            {"client_credentials"},
			"client_assertion_type": {assertionType},
			"client_assertion":      {assertion},
		})
		if resp.StatusCode != http.StatusUnauthorized || body["error"] != "invalid_client" {
			t.Errorf("%s: status = %d, body = %v (all credential failures must look identical)", name, resp.StatusCode, body)
		}
	}
}

func TestTokenEndpointHonorsEnvironmentRestriction(t *testing.T) {
	store := NewMemoryIdentityStore()
	priv := provision(t, store, "svc-probe", "qa_probe", true)
	srv, _ := tokenServer(t, store, "PROD")
	defer srv.Close()

	assertion, _ := MintAssertion("svc-probe", testAudience, priv, time.Now())
	resp, body := requestToken(t, srv, url.Values{
		"grant_type":            {"client_credentials"},
		"client_assertion_type": {assertionType},
		"client_assertion":      {assertion},
	})
	if resp.StatusCode != http.StatusUnauthorized || body["error"] != "invalid_client" {
		t.Fatalf("qa_probe must not be issued in PROD: status = %d, body = %v", resp.StatusCode, body)
	}
}

func TestDiscoveryDocument(t *testing.T) {
	srv, _ := tokenServer(t, NewMemoryIdentityStore(), "QA")
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/.well-known/oauth-authorization-server")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var doc map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(doc["token_endpoint"].(string), "/oauth2/token") {
		t.Errorf("unexpected discovery document: %v", doc)
	}
}
