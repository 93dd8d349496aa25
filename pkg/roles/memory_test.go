package roles

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func TestMemoryProviderDefaults(t *testing.T) {
	p, err := NewMemoryProvider(testLogger(), "")
	if err != nil {
		t.Fatal(err)
	}
	perm, err := p.Resolve(context.Background(), "communications_agent")
	if err != nil {
		t.Fatal(err)
	}
	if !perm.AllowsResource("client_communications") || perm.AllowsResource("documents") {
		t.Errorf("unexpected resource grant: %v", perm.Resources)
	}
	if perm.AllowsOperation("DELETE") {
		t.Error("communications_agent must not hold DELETE")
	}
}

func TestMemoryProviderUnknownRole(t *testing.T) {
	p, _ := NewMemoryProvider(testLogger(), "")
	if _, err := p.Resolve(context.Background(), "nope"); err != ErrUnknownRole {
		t.Errorf("err = %v, want ErrUnknownRole", err)
	}
}

func TestMemoryProviderYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	data := `
roles:
  - role: reporting_agent
    endpoints: ["/agent/db"]
    resources: ["cases"]
    operations: ["READ"]
  - role: qa_probe
    endpoints: ["/agent/db"]
    resources: ["cases", "documents"]
    operations: ["READ"]
    environments: ["QA"]
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	p, err := NewMemoryProvider(testLogger(), path)
	if err != nil {
		t.Fatal(err)
	}

	perm, err := p.Resolve(context.Background(), "reporting_agent")
	if err != nil {
		t.Fatalf("file-defined role not resolvable: %v", err)
	}
	if !perm.AllowsResource("cases") {
		t.Error("reporting_agent should see cases")
	}

	// File entries override builtins of the same name.
	qa, _ := p.Resolve(context.Background(), "qa_probe")
	if !qa.AllowsResource("documents") {
		t.Error("qa_probe override not applied")
	}
	if qa.AllowsEnvironment("PROD") {
		t.Error("qa_probe must stay out of PROD")
	}
}

func TestCanAccessEndpointWildcard(t *testing.T) {
	perm := Permissions{Endpoints: []string{"/agent/db", "/emergency/*"}}
	for path, want := range map[string]bool{
		"/agent/db":         true,
		"/agent/db/other":   false,
		"/emergency/status": true,
		"/emergency/resume": true,
		"/oauth2/token":     false,
	} {
		if got := perm.CanAccessEndpoint(path); got != want {
			t.Errorf("CanAccessEndpoint(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestAllowsEnvironment(t *testing.T) {
	open := Permissions{}
	if !open.AllowsEnvironment("PROD") {
		t.Error("empty environment list should allow all")
	}
	scoped := Permissions{Environments: []string{"QA", "DEV"}}
	if scoped.AllowsEnvironment("PROD") {
		t.Error("scoped role leaked into PROD")
	}
	if !scoped.AllowsEnvironment("qa") {
		t.Error("environment match should be case-insensitive")
	}
}
