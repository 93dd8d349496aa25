// pkg/roles/model.go
package roles

import "strings"

// Permissions is the server-side grant bundle for one role. Tokens carry
// only the role name; everything else is resolved from here.
type Permissions struct {
	Role         string   `yaml:"role" json:"role"`
	Endpoints    []string `yaml:"endpoints" json:"endpoints"`
	Resources    []string `yaml:"resources" json:"resources"`
	Operations   []string `yaml:"operations" json:"operations"`
	Environments []string `yaml:"environments" json:"environments"`
	Description  string   `yaml:"description" json:"description"`
}

// CanAccessEndpoint matches path against the role's endpoint allow-list.
// Entries ending in "*" match by prefix, everything else exactly.
func (p Permissions) CanAccessEndpoint(path string) bool {
	for _, e := range p.Endpoints {
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

// AllowsEnvironment reports whether the role may be issued tokens in env.
// An empty list means every environment.
func (p Permissions) AllowsEnvironment(env string) bool {
	if len(p.Environments) == 0 {
		return true
	}
	for _, e := range p.Environments {
		if strings.EqualFold(e, env) {
			return true
		}
	}
	return false
}

// AllowsOperation checks the operation grant, honoring the "*" wildcard.
func (p Permissions) AllowsOperation(op string) bool {
	for _, o := range p.Operations {
		if o == "*" || o == op {
			return true
		}
	}
	return false
}

// AllowsResource checks the resource grant, honoring the "*" wildcard.
func (p Permissions) AllowsResource(resource string) bool {
	for _, r := range p.Resources {
		if r == "*" || r == resource {
			return true
		}
	}
	return false
}
