// internal/trust/identity.go
//
// Package trust holds both credential flows: public-key service
// authentication and environment-scoped agent tokens.
package trust

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrIdentityNotFound covers unknown service ids. Callers collapse it into
// the opaque auth failure before anything reaches the wire.
var ErrIdentityNotFound = errors.New("service identity not found")

// ServiceIdentity is one provisioned backend caller.
type ServiceIdentity struct {
	ServiceID    string
	ServiceName  string
	Role         string
	PublicKeyPEM string
	Active       bool
	CreatedAt    time.Time
}

// IdentityStore is read on every service-credential verification and
// written only by provisioning.
type IdentityStore interface {
	Lookup(ctx context.Context, serviceID string) (ServiceIdentity, error)
	Register(ctx context.Context, id ServiceIdentity) error
	// Deactivate soft-deletes; identities are never removed.
	Deactivate(ctx context.Context, serviceID string) error
	List(ctx context.Context) ([]ServiceIdentity, error)
}

type memIdentityStore struct {
	mu  sync.RWMutex
	ids map[string]ServiceIdentity
}

func NewMemoryIdentityStore() IdentityStore {
	return &memIdentityStore{ids: map[string]ServiceIdentity{}}
}

func (m *memIdentityStore) Lookup(ctx context.Context, serviceID string) (ServiceIdentity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.ids[serviceID]; ok {
		return id, nil
	}
	return ServiceIdentity{}, ErrIdentityNotFound
}

func (m *memIdentityStore) Register(ctx context.Context, id ServiceIdentity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id.CreatedAt.IsZero() {
		id.CreatedAt = time.Now().UTC()
	}
	m.ids[id.ServiceID] = id
	return nil
}

func (m *memIdentityStore) Deactivate(ctx context.Context, serviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.ids[serviceID]
	if !ok {
		return ErrIdentityNotFound
	}
	id.Active = false
	m.ids[serviceID] = id
	return nil
}

func (m *memIdentityStore) List(ctx context.Context) ([]ServiceIdentity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ServiceIdentity, 0, len(m.ids))
	for _, id := range m.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceID < out[j].ServiceID })
	return out, nil
}

// pgIdentityStore implements IdentityStore backed by PostgreSQL.
type pgIdentityStore struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

func NewPostgresIdentityStore(dbPool *pgxpool.Pool, log *zap.SugaredLogger) IdentityStore {
	return &pgIdentityStore{dbPool: dbPool, log: log}
}

// EnsureIdentitySchema creates the identity table if absent. Safe to call
// repeatedly (idempotent).
func EnsureIdentitySchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS service_identities (
  service_id text PRIMARY KEY,
  service_name text NOT NULL,
  role text NOT NULL,
  public_key_pem text NOT NULL,
  active boolean NOT NULL DEFAULT true,
  created_at timestamptz NOT NULL DEFAULT NOW()
);
`)
	return err
}

func (p *pgIdentityStore) Lookup(ctx context.Context, serviceID string) (ServiceIdentity, error) {
	var id ServiceIdentity
	err := p.dbPool.QueryRow(ctx, `
SELECT service_id, service_name, role, public_key_pem, active, created_at
FROM service_identities WHERE service_id = $1`, serviceID).Scan(
		&id.ServiceID, &id.ServiceName, &id.Role, &id.PublicKeyPEM, &id.Active, &id.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ServiceIdentity{}, ErrIdentityNotFound
	}
	if err != nil {
		return ServiceIdentity{}, err
	}
	return id, nil
}

func (p *pgIdentityStore) Register(ctx context.Context, id ServiceIdentity) error {
	_, err := p.dbPool.Exec(ctx, `
INSERT INTO service_identities (service_id, service_name, role, public_key_pem, active)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (service_id) DO UPDATE SET
  service_name = EXCLUDED.service_name,
  role = EXCLUDED.role,
  public_key_pem = EXCLUDED.public_key_pem,
  active = EXCLUDED.active`,
		id.ServiceID, id.ServiceName, id.Role, id.PublicKeyPEM, id.Active)
	if err == nil {
		p.log.Infow("service identity registered", "service_id", id.ServiceID, "role", id.Role)
	}
	return err
}

func (p *pgIdentityStore) Deactivate(ctx context.Context, serviceID string) error {
	tag, err := p.dbPool.Exec(ctx, `UPDATE service_identities SET active = false WHERE service_id = $1`, serviceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdentityNotFound
	}
	p.log.Infow("service identity deactivated", "service_id", serviceID)
	return nil
}

func (p *pgIdentityStore) List(ctx context.Context) ([]ServiceIdentity, error) {
	rows, err := p.dbPool.Query(ctx, `
SELECT service_id, service_name, role, public_key_pem, active, created_at
FROM service_identities ORDER BY service_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ServiceIdentity
	for rows.Next() {
		var id ServiceIdentity
		if err := rows.Scan(&id.ServiceID, &id.ServiceName, &id.Role, &id.PublicKeyPEM, &id.Active, &id.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
