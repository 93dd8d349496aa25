// internal/trust/serviceauth.go
package trust

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"
)

// ErrInvalidAssertion is the single externally visible failure for service
// authentication. Which check failed is logged, never returned.
var ErrInvalidAssertion = errors.New("invalid client assertion")

const assertionMaxAge = 15 * time.Minute

// ServiceAuthenticator verifies public-key client assertions against the
// identity store.
type ServiceAuthenticator struct {
	store     IdentityStore
	audience  string
	maxAge    time.Duration
	clockSkew time.Duration
	log       *zap.SugaredLogger
}

func NewServiceAuthenticator(store IdentityStore, audience string, maxAge, clockSkew time.Duration, log *zap.SugaredLogger) *ServiceAuthenticator {
	if maxAge <= 0 {
		maxAge = assertionMaxAge
	}
	return &ServiceAuthenticator{store: store, audience: audience, maxAge: maxAge, clockSkew: clockSkew, log: log}
}

// Verify runs the two-phase decode: an unverified peek extracts the
// claimed issuer, the stored public key for that issuer then has to accept
// the signature before any claim is trusted. The issuer claim never
// selects anything but the lookup key.
func (a *ServiceAuthenticator) Verify(ctx context.Context, assertion string) (ServiceIdentity, error) {
	peek, err := jwt.ParseInsecure([]byte(assertion))
	if err != nil {
		a.log.Infow("assertion rejected", "reason", "unparseable")
		return ServiceIdentity{}, ErrInvalidAssertion
	}
	claimedID := peek.Issuer()
	if claimedID == "" {
		a.log.Infow("assertion rejected", "reason", "no issuer")
		return ServiceIdentity{}, ErrInvalidAssertion
	}

	identity, err := a.store.Lookup(ctx, claimedID)
	if err != nil {
		a.log.Infow("assertion rejected", "reason", "unknown service", "service_id", claimedID)
		return ServiceIdentity{}, ErrInvalidAssertion
	}
	if !identity.Active {
		a.log.Infow("assertion rejected", "reason", "inactive service", "service_id", claimedID)
		return ServiceIdentity{}, ErrInvalidAssertion
	}

	pub, err := parsePublicKey(identity.PublicKeyPEM)
	if err != nil {
		a.log.Errorw("stored public key unusable", "service_id", claimedID, "err", err)
		return ServiceIdentity{}, ErrInvalidAssertion
	}

	tok, err := jwt.Parse([]byte(assertion),
		jwt.WithKey(jwa.RS256, pub),
		jwt.WithAudience(a.audience),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(a.clockSkew),
	)
	if err != nil {
		a.log.Infow("assertion rejected", "reason", "signature or claims", "service_id", claimedID)
		return ServiceIdentity{}, ErrInvalidAssertion
	}
	if tok.Issuer() != identity.ServiceID || tok.Subject() != identity.ServiceID {
		a.log.Infow("assertion rejected", "reason", "issuer/subject mismatch", "service_id", claimedID)
		return ServiceIdentity{}, ErrInvalidAssertion
	}
	iat := tok.IssuedAt()
	if iat.IsZero() || time.Since(iat) > a.maxAge+a.clockSkew {
		a.log.Infow("assertion rejected", "reason", "stale", "service_id", claimedID)
		return ServiceIdentity{}, ErrInvalidAssertion
	}
	return identity, nil
}

func parsePublicKey(pemText string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, errors.New("no PEM block")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unexpected key type %T", key)
	}
	return pub, nil
}

// GenerateKeyPair produces an RSA-2048 pair as PEM, private first.
func GenerateKeyPair() (privatePEM, publicPEM string, err error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return "", "", err
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", "", err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", "", err
	}
	privatePEM = string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}))
	publicPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))
	return privatePEM, publicPEM, nil
}

// MintAssertion signs a fresh client assertion for serviceID. Used by the
// provisioning tool and tests; production services sign their own.
func MintAssertion(serviceID, audience, privatePEM string, now time.Time) (string, error) {
	block, _ := pem.Decode([]byte(privatePEM))
	if block == nil {
		return "", errors.New("no PEM block in private key")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return "", err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return "", fmt.Errorf("unexpected key type %T", parsed)
	}
	tok, err := jwt.NewBuilder().
		Issuer(serviceID).
		Subject(serviceID).
		Audience([]string{audience}).
		IssuedAt(now).
		Expiration(now.Add(5 * time.Minute)).
		Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, key))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}
