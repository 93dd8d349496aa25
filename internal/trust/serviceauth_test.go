package trust

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

const testAudience = "agentgate-token-endpoint"

func provision(t *testing.T, store IdentityStore, serviceID, role string, active bool) string {
	t.Helper()
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	err = store.Register(context.Background(), ServiceIdentity{
		ServiceID:    serviceID,
		ServiceName:  serviceID,
		Role:         role,
		PublicKeyPEM: pub,
		Active:       active,
	})
	if err != nil {
		t.Fatal(err)
	}
	return priv
}

func newAuth(store IdentityStore) *ServiceAuthenticator {
	return NewServiceAuthenticator(store, testAudience, 15*time.Minute, time.Minute, zap.NewNop().Sugar())
}

func TestVerifyAssertionHappyPath(t *testing.T) {
	store := NewMemoryIdentityStore()
	priv := provision(t, store, "svc-reporting", "manager_agent", true)

	assertion, err := MintAssertion("svc-reporting", testAudience, priv, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	identity, err := newAuth(store).Verify(context.Background(), assertion)
	if err != nil {
		t.Fatal(err)
	}
	if identity.ServiceID != "svc-reporting" || identity.Role != "manager_agent" {
		t.Errorf("unexpected identity: %+v", identity)
	}
}

func TestAssertionSignedByOtherServiceRejected(t *testing.T) {
	store := NewMemoryIdentityStore()
	privA := provision(t, store, "svc-a", "manager_agent", true)
	provision(t, store, "svc-b", "master", true)

	// Signed with A's key but claiming to be B. B's stored key must
	// refuse the signature.
	assertion, err := MintAssertion("svc-b", testAudience, privA, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := newAuth(store).Verify(context.Background(), assertion); err != ErrInvalidAssertion {
		t.Fatalf("err = %v, want ErrInvalidAssertion", err)
	}
}

func TestUnknownServiceRejected(t *testing.T) {
	store := NewMemoryIdentityStore()
	priv, _, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	assertion, _ := MintAssertion("svc-ghost", testAudience, priv, time.Now())
	if _, err := newAuth(store).Verify(context.Background(), assertion); err != ErrInvalidAssertion {
		t.Fatalf("err = %v, want ErrInvalidAssertion", err)
	}
}

func TestInactiveServiceRejected(t *testing.T) {
	store := NewMemoryIdentityStore()
	priv := provision(t, store, "svc-retired", "manager_agent", true)
	if err := store.Deactivate(context.Background(), "svc-retired"); err != nil {
		t.Fatal(err)
	}
	assertion, _ := MintAssertion("svc-retired", testAudience, priv, time.Now())
	if _, err := newAuth(store).Verify(context.Background(), assertion); err != ErrInvalidAssertion {
		t.Fatalf("err = %v, want ErrInvalidAssertion", err)
	}
}

func TestStaleAssertionRejected(t *testing.T) {
	store := NewMemoryIdentityStore()
	priv := provision(t, store, "svc-slow", "manager_agent", true)
	assertion, _ := MintAssertion("svc-slow", testAudience, priv, time.Now().Add(-30*time.Minute))
	if _, err := newAuth(store).Verify(context.Background(), assertion); err != ErrInvalidAssertion {
		t.Fatalf("err = %v, want ErrInvalidAssertion", err)
	}
}

func TestWrongAudienceRejected(t *testing.T) {
	store := NewMemoryIdentityStore()
	priv := provision(t, store, "svc-misdirected", "manager_agent", true)
	assertion, _ := MintAssertion("svc-misdirected", "some-other-audience", priv, time.Now())
	if _, err := newAuth(store).Verify(context.Background(), assertion); err != ErrInvalidAssertion {
		t.Fatalf("err = %v, want ErrInvalidAssertion", err)
	}
}
