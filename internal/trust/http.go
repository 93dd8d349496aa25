// internal/trust/http.go
package trust

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"agentgate/pkg/roles"
)

const assertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// TokenHandler serves the client-credentials grant: a signed service
// assertion in, a short-lived agent token out.
type TokenHandler struct {
	auth      *ServiceAuthenticator
	tokens    *AgentTokenService
	roles     roles.Provider
	env       string
	publicURL string
	log       *zap.SugaredLogger
}

func NewTokenHandler(auth *ServiceAuthenticator, tokens *AgentTokenService, rp roles.Provider, env, publicURL string, log *zap.SugaredLogger) *TokenHandler {
	return &TokenHandler{auth: auth, tokens: tokens, roles: rp, env: env, publicURL: publicURL, log: log}
}

// Mount attaches the token and discovery routes.
func (h *TokenHandler) Mount(r chi.Router) {
	r.Post("/oauth2/token", h.token)
	r.Get("/.well-known/oauth-authorization-server", h.discovery)
}

func (h *TokenHandler) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		oauthError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if r.PostFormValue("grant_type") != "client_credentials" {
		oauthError(w, http.StatusBadRequest, "unsupported_grant_type")
		return
	}
	if r.PostFormValue("client_assertion_type") != assertionType {
		oauthError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	assertion := r.PostFormValue("client_assertion")
	if assertion == "" {
		oauthError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	identity, err := h.auth.Verify(r.Context(), assertion)
	if err != nil {
		oauthError(w, http.StatusUnauthorized, "invalid_client")
		return
	}

	// The role must exist and be permitted in this environment. Both
	// failures look identical from outside.
	perm, err := h.roles.Resolve(r.Context(), identity.Role)
	if err != nil {
		h.log.Errorw("provisioned role missing from role table", "service_id", identity.ServiceID, "role", identity.Role)
		oauthError(w, http.StatusUnauthorized, "invalid_client")
		return
	}
	if !perm.AllowsEnvironment(h.env) {
		h.log.Infow("role not allowed in environment", "role", identity.Role, "env", h.env)
		oauthError(w, http.StatusUnauthorized, "invalid_client")
		return
	}

	token, err := h.tokens.Issue(identity.Role, identity.ServiceID)
	if err != nil {
		h.log.Errorw("token mint failed", "err", err)
		oauthError(w, http.StatusInternalServerError, "server_error")
		return
	}
	h.log.Infow("agent token issued", "service_id", identity.ServiceID, "role", identity.Role)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int(h.tokens.TTL().Seconds()),
		"scope":        "agent:" + identity.Role,
	})
}

func (h *TokenHandler) discovery(w http.ResponseWriter, r *http.Request) {
	base := h.publicURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"issuer":                                base,
		"token_endpoint":                        base + "/oauth2/token",
		"grant_types_supported":                 []string{"client_credentials"},
		"token_endpoint_auth_methods_supported": []string{"private_key_jwt"},
	})
}

func oauthError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}

// VerifyAgent adapts the token service and role provider into the shape
// the auth middleware consumes.
func VerifyAgent(tokens *AgentTokenService, rp roles.Provider) func(ctx context.Context, raw string) (AgentClaims, roles.Permissions, error) {
	return func(ctx context.Context, raw string) (AgentClaims, roles.Permissions, error) {
		claims, err := tokens.Verify(raw)
		if err != nil {
			return AgentClaims{}, roles.Permissions{}, err
		}
		perm, err := rp.Resolve(ctx, claims.Role)
		if err != nil {
			return AgentClaims{}, roles.Permissions{}, ErrInvalidToken
		}
		return claims, perm, nil
	}
}
