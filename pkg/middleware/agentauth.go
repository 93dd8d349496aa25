// pkg/middleware/agentauth.go
package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// AgentAuthContext is the resolved caller identity for one request. It is
// built entirely from server-side role configuration; the token only
// contributes the role name and issuing service id.
type AgentAuthContext struct {
	Role        string
	ServiceID   string
	Environment string
	Endpoints   []string
	Resources   []string
	Operations  []string
}

type agentCtxKey string

const ctxAgentKey agentCtxKey = "agent"

// AgentAuthFrom returns the identity attached by AgentAuth, if any.
func AgentAuthFrom(ctx context.Context) (AgentAuthContext, bool) {
	a, ok := ctx.Value(ctxAgentKey).(AgentAuthContext)
	return a, ok
}

// VerifyFunc turns a raw bearer token into a caller identity. It lives in
// the trust layer; the middleware only applies the verdict.
type VerifyFunc func(ctx context.Context, raw string) (AgentAuthContext, error)

// AgentAuth verifies the bearer agent credential on every request and
// enforces the role's endpoint allow-list. Failures are uniformly 401 or
// 403 with no detail about which check failed.
func AgentAuth(verify VerifyFunc, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			raw := strings.TrimSpace(authz[len("Bearer "):])
			agent, err := verify(r.Context(), raw)
			if err != nil {
				log.Infow("agent auth rejected", "path", r.URL.Path, "request_id", r.Context().Value(CtxKeyRequestID))
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if !endpointAllowed(agent.Endpoints, r.URL.Path) {
				log.Infow("endpoint not in role grant", "path", r.URL.Path, "role", agent.Role)
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxAgentKey, agent)))
		})
	}
}

func publicPath(path string) bool {
	if path == "/healthz" || path == "/metrics" {
		return true
	}
	return strings.HasPrefix(path, "/oauth2/") || strings.HasPrefix(path, "/.well-known/")
}

func endpointAllowed(endpoints []string, path string) bool {
	for _, e := range endpoints {
		if strings.HasSuffix(e, "*") {
			if strings.HasPrefix(path, strings.TrimSuffix(e, "*")) {
				return true
			}
			continue
		}
		if e == path {
			return true
		}
	}
	return false
}
