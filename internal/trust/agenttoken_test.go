package trust

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"agentgate/pkg/config"
)

func qaProfile(secret string) config.TokenProfile {
	return config.TokenProfile{
		Environment: "QA",
		Secret:      []byte(secret),
		Issuer:      "agentgate-qa",
		Audience:    "agentgate-api-qa",
		TTL:         time.Hour,
	}
}

func prodProfile(secret string) config.TokenProfile {
	return config.TokenProfile{
		Environment: "PROD",
		Secret:      []byte(secret),
		Issuer:      "agentgate-prod",
		Audience:    "agentgate-api-prod",
		TTL:         time.Hour,
	}
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	svc := NewAgentTokenService(qaProfile("s3cret"), time.Minute, zap.NewNop().Sugar())
	raw, err := svc.Issue("manager_agent", "svc-reporting")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := svc.Verify(raw)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Role != "manager_agent" || claims.ServiceID != "svc-reporting" || claims.Environment != "QA" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestCrossEnvironmentTokenRejected(t *testing.T) {
	// Shared secret on purpose: the environment claim alone must block
	// replay across environments.
	qa := NewAgentTokenService(qaProfile("shared"), time.Minute, zap.NewNop().Sugar())
	prodShared := config.TokenProfile{
		Environment: "PROD",
		Secret:      []byte("shared"),
		Issuer:      "agentgate-qa",
		Audience:    "agentgate-api-qa",
		TTL:         time.Hour,
	}
	prod := NewAgentTokenService(prodShared, time.Minute, zap.NewNop().Sugar())

	raw, err := qa.Issue("manager_agent", "svc-x")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := prod.Verify(raw); err == nil {
		t.Fatal("QA token accepted by PROD verifier")
	}
}

func TestWrongIssuerRejected(t *testing.T) {
	qa := NewAgentTokenService(qaProfile("shared"), time.Minute, zap.NewNop().Sugar())
	prod := NewAgentTokenService(prodProfile("shared"), time.Minute, zap.NewNop().Sugar())
	raw, _ := qa.Issue("manager_agent", "svc-x")
	if _, err := prod.Verify(raw); err == nil {
		t.Fatal("token with foreign issuer accepted")
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	svc := NewAgentTokenService(qaProfile("s3cret"), time.Minute, zap.NewNop().Sugar())
	raw, _ := svc.Issue("manager_agent", "svc-x")
	tampered := raw[:len(raw)-2] + "xx"
	if _, err := svc.Verify(tampered); err == nil {
		t.Fatal("tampered token accepted")
	}
}

func TestWrongSecretRejected(t *testing.T) {
	minter := NewAgentTokenService(qaProfile("secret-a"), time.Minute, zap.NewNop().Sugar())
	verifier := NewAgentTokenService(qaProfile("secret-b"), time.Minute, zap.NewNop().Sugar())
	raw, _ := minter.Issue("manager_agent", "svc-x")
	if _, err := verifier.Verify(raw); err == nil {
		t.Fatal("token verified under wrong secret")
	}
}
