package contracts

import "testing"

func TestForRoleExcludesUngrantedResources(t *testing.T) {
	view := ForRole(All(), []string{"cases"}, []string{"READ", "INSERT", "UPDATE"})
	if _, ok := view["cases"]; !ok {
		t.Fatalf("cases missing from filtered view")
	}
	for _, name := range []string{"client_communications", "documents", "document_analysis"} {
		if _, ok := view[name]; ok {
			t.Fatalf("%s should not be visible", name)
		}
	}
}

func TestForRoleIntersectsOperations(t *testing.T) {
	view := ForRole(All(), []string{"document_analysis"}, []string{"READ", "INSERT"})
	c := view["document_analysis"]
	if c == nil {
		t.Fatal("document_analysis missing")
	}
	if c.OperationAllowed(OpUpdate) {
		t.Error("UPDATE should be removed by the role grant")
	}
	if !c.OperationAllowed(OpRead) || !c.OperationAllowed(OpInsert) {
		t.Error("READ and INSERT should survive")
	}
}

func TestForRoleNeverWidensContract(t *testing.T) {
	// The master role grants DELETE, but no contract allows it, so the
	// intersection must stay empty.
	view := ForRole(All(), []string{"*"}, []string{"READ", "INSERT", "UPDATE", "DELETE"})
	for name, c := range view {
		if c.OperationAllowed(OpDelete) {
			t.Errorf("%s: DELETE must not appear in any filtered view", name)
		}
	}
}

func TestForRoleDropsResourcesWithNoOperations(t *testing.T) {
	view := ForRole(All(), []string{"cases"}, []string{"DELETE"})
	if len(view) != 0 {
		t.Fatalf("expected empty view, got %d contracts", len(view))
	}
}

func TestForRoleStripsJoinsOutsideGrant(t *testing.T) {
	view := ForRole(All(), []string{"cases"}, []string{"READ"})
	c := view["cases"]
	if len(c.JoinsAllowed) != 0 {
		t.Fatalf("join to client_communications should be stripped, got %v", c.JoinsAllowed)
	}

	both := ForRole(All(), []string{"cases", "client_communications"}, []string{"READ"})
	if len(both["cases"].JoinsAllowed) != 1 {
		t.Fatal("join should survive when both sides are granted")
	}
}

func TestForRoleWildcardKeepsEverything(t *testing.T) {
	all := All()
	view := ForRole(all, []string{"*"}, []string{"READ", "INSERT", "UPDATE"})
	if len(view) != len(all) {
		t.Fatalf("wildcard view has %d contracts, want %d", len(view), len(all))
	}
}

func TestForRoleReturnsIndependentCopies(t *testing.T) {
	all := All()
	view := ForRole(all, []string{"*"}, []string{"READ", "INSERT", "UPDATE"})
	view["cases"].Fields[0].Name = "mutated"
	view["cases"].FiltersAllowed["status"] = nil
	if All()["cases"].Fields[0].Name == "mutated" {
		t.Error("filtered view aliases registry fields")
	}
	if len(All()["cases"].FiltersAllowed["status"]) == 0 {
		t.Error("filtered view aliases registry filter map")
	}
}

func TestPrimaryKeyField(t *testing.T) {
	for resource, want := range map[string]string{
		"cases":                 "case_id",
		"client_communications": "communication_id",
		"documents":             "document_id",
		"document_analysis":     "analysis_id",
	} {
		if got := All()[resource].PrimaryKeyField(); got != want {
			t.Errorf("%s: primary key = %q, want %q", resource, got, want)
		}
	}
}
