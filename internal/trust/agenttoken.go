// internal/trust/agenttoken.go
package trust

import (
	"errors"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"

	"agentgate/pkg/config"
)

// ErrInvalidToken is the single externally visible failure for agent
// credential verification.
var ErrInvalidToken = errors.New("invalid agent token")

// AgentClaims is what a verified agent credential asserts. Permissions are
// resolved separately from server-side role configuration.
type AgentClaims struct {
	Role        string
	ServiceID   string
	Environment string
}

// AgentTokenService mints and verifies the short-lived HS256 tokens bound
// to one environment. Secret, issuer, audience and lifetime all come from
// the process's own TokenProfile, so a token from another environment can
// never verify here even if secrets were reused.
type AgentTokenService struct {
	profile   config.TokenProfile
	clockSkew time.Duration
	log       *zap.SugaredLogger
}

func NewAgentTokenService(profile config.TokenProfile, clockSkew time.Duration, log *zap.SugaredLogger) *AgentTokenService {
	return &AgentTokenService{profile: profile, clockSkew: clockSkew, log: log}
}

// TTL is the lifetime of tokens minted here.
func (s *AgentTokenService) TTL() time.Duration { return s.profile.TTL }

// Issue mints a token for role, recording the issuing service.
func (s *AgentTokenService) Issue(role, serviceID string) (string, error) {
	now := time.Now()
	tok, err := jwt.NewBuilder().
		Issuer(s.profile.Issuer).
		Subject(role).
		Audience([]string{s.profile.Audience}).
		IssuedAt(now).
		Expiration(now.Add(s.profile.TTL)).
		Claim("environment", s.profile.Environment).
		Claim("service_id", serviceID).
		Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.profile.Secret))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

// Verify checks signature, issuer, audience, expiry, required claims, and
// that the token's environment claim matches this process's environment.
func (s *AgentTokenService) Verify(raw string) (AgentClaims, error) {
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, s.profile.Secret),
		jwt.WithIssuer(s.profile.Issuer),
		jwt.WithAudience(s.profile.Audience),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(s.clockSkew),
		jwt.WithRequiredClaim("sub"),
		jwt.WithRequiredClaim("iat"),
		jwt.WithRequiredClaim("exp"),
		jwt.WithRequiredClaim("environment"),
	)
	if err != nil {
		s.log.Infow("agent token rejected", "reason", "signature or claims")
		return AgentClaims{}, ErrInvalidToken
	}
	envClaim, _ := tok.Get("environment")
	env, _ := envClaim.(string)
	if !strings.EqualFold(env, s.profile.Environment) {
		s.log.Infow("agent token rejected", "reason", "environment mismatch", "token_env", env)
		return AgentClaims{}, ErrInvalidToken
	}
	serviceID := ""
	if v, ok := tok.Get("service_id"); ok {
		serviceID, _ = v.(string)
	}
	return AgentClaims{
		Role:        tok.Subject(),
		ServiceID:   serviceID,
		Environment: env,
	}, nil
}
