// pkg/roles/memory.go
package roles

import (
	"context"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type memProvider struct {
	log   *zap.SugaredLogger
	perms map[string]Permissions
}

// Defaults is the built-in role table. A YAML file (ROLE_CONFIG_PATH)
// extends or overrides it per deployment.
func Defaults() []Permissions {
	return []Permissions{
		{
			Role:        "manager_agent",
			Endpoints:   []string{"/agent/db"},
			Resources:   []string{"cases", "client_communications", "documents", "document_analysis"},
			Operations:  []string{"READ", "INSERT", "UPDATE"},
			Description: "Case manager: full read/write across case data",
		},
		{
			Role:        "communications_agent",
			Endpoints:   []string{"/agent/db"},
			Resources:   []string{"cases", "client_communications"},
			Operations:  []string{"READ", "INSERT", "UPDATE"},
			Description: "Client outreach: cases and communications only",
		},
		{
			Role:        "analysis_agent",
			Endpoints:   []string{"/agent/db"},
			Resources:   []string{"cases", "document_analysis"},
			Operations:  []string{"READ", "INSERT"},
			Description: "Document analysis writer: append-only analysis records",
		},
		{
			Role:        "document_pipeline",
			Endpoints:   []string{"/agent/db"},
			Resources:   []string{"documents"},
			Operations:  []string{"READ", "INSERT", "UPDATE"},
			Description: "Ingest pipeline: document lifecycle updates",
		},
		{
			Role:        "master",
			Endpoints:   []string{"/agent/db", "/emergency/*"},
			Resources:   []string{"*"},
			Operations:  []string{"READ", "INSERT", "UPDATE", "DELETE"},
			Description: "Break-glass administrative role",
		},
		{
			Role:         "qa_probe",
			Endpoints:    []string{"/agent/db"},
			Resources:    []string{"cases"},
			Operations:   []string{"READ"},
			Environments: []string{"QA", "DEV"},
			Description:  "Synthetic monitoring, never issued in production",
		},
	}
}

// NewMemoryProvider builds an in-process role table from the defaults,
// optionally overlaid with a YAML file at path (empty path skips the file).
func NewMemoryProvider(log *zap.SugaredLogger, path string) (Provider, error) {
	p := &memProvider{log: log, perms: map[string]Permissions{}}
	for _, perm := range Defaults() {
		p.perms[perm.Role] = perm
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("roles: read %s: %w", path, err)
		}
		var file struct {
			Roles []Permissions `yaml:"roles"`
		}
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("roles: parse %s: %w", path, err)
		}
		for _, perm := range file.Roles {
			if perm.Role == "" {
				return nil, fmt.Errorf("roles: %s: entry without role name", path)
			}
			p.perms[perm.Role] = perm
		}
		log.Infow("role config loaded", "path", path, "roles", len(file.Roles))
	}
	return p, nil
}

func (m *memProvider) Resolve(ctx context.Context, role string) (Permissions, error) {
	if p, ok := m.perms[role]; ok {
		return p, nil
	}
	return Permissions{}, ErrUnknownRole
}

func (m *memProvider) Roles(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(m.perms))
	for name := range m.perms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
