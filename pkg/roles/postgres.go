// pkg/roles/postgres.go
package roles

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheTTL = 5 * time.Minute

// pgProvider reads the role table from PostgreSQL, with an optional Redis
// read-through cache in front (rdb may be nil).
type pgProvider struct {
	dbPool *pgxpool.Pool
	rdb    *redis.Client
	log    *zap.SugaredLogger
}

func NewPostgresProvider(dbPool *pgxpool.Pool, rdb *redis.Client, log *zap.SugaredLogger) Provider {
	return &pgProvider{dbPool: dbPool, rdb: rdb, log: log}
}

// EnsureSchema creates the role table if absent. Safe to call repeatedly.
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS role_permissions (
  role text PRIMARY KEY,
  endpoints text[] NOT NULL DEFAULT '{}',
  resources text[] NOT NULL DEFAULT '{}',
  operations text[] NOT NULL DEFAULT '{}',
  environments text[] NOT NULL DEFAULT '{}',
  description text NOT NULL DEFAULT '',
  created_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
`)
	return err
}

// SeedDefaults inserts the built-in roles where missing. Existing rows are
// left untouched so operators can edit grants in place.
func SeedDefaults(ctx context.Context, dbPool *pgxpool.Pool, log *zap.SugaredLogger) error {
	for _, p := range Defaults() {
		tag, err := dbPool.Exec(ctx, `
INSERT INTO role_permissions (role, endpoints, resources, operations, environments, description)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (role) DO NOTHING`,
			p.Role, p.Endpoints, p.Resources, p.Operations, p.Environments, p.Description)
		if err != nil {
			return err
		}
		if tag.RowsAffected() > 0 {
			log.Infow("seeded role", "role", p.Role)
		}
	}
	return nil
}

func (p *pgProvider) Resolve(ctx context.Context, role string) (Permissions, error) {
	cacheKey := "roleperm:" + role
	if p.rdb != nil {
		if raw, err := p.rdb.Get(ctx, cacheKey).Bytes(); err == nil {
			var perm Permissions
			if json.Unmarshal(raw, &perm) == nil {
				return perm, nil
			}
		}
	}

	var perm Permissions
	err := p.dbPool.QueryRow(ctx, `
SELECT role, endpoints, resources, operations, environments, description
FROM role_permissions WHERE role = $1`, role).Scan(
		&perm.Role, &perm.Endpoints, &perm.Resources, &perm.Operations,
		&perm.Environments, &perm.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return Permissions{}, ErrUnknownRole
	}
	if err != nil {
		return Permissions{}, err
	}

	if p.rdb != nil {
		if raw, err := json.Marshal(perm); err == nil {
			if err := p.rdb.Set(ctx, cacheKey, raw, cacheTTL).Err(); err != nil {
				p.log.Debugw("role cache write failed", "role", role, "err", err)
			}
		}
	}
	return perm, nil
}

func (p *pgProvider) Roles(ctx context.Context) ([]string, error) {
	rows, err := p.dbPool.Query(ctx, `SELECT role FROM role_permissions ORDER BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
