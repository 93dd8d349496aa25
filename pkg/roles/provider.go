// pkg/roles/provider.go
package roles

import (
	"context"
	"errors"
)

// ErrUnknownRole is returned when no grant exists for a role name.
var ErrUnknownRole = errors.New("unknown role")

type Provider interface {
	// Resolve the grant bundle for a role name.
	Resolve(ctx context.Context, role string) (Permissions, error)
	// Roles lists every configured role name.
	Roles(ctx context.Context) ([]string, error)
}
