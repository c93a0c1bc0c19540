package core

import (
	"testing"

	"github.com/pipgrade/pipgrade/pep440"
)

func specs(t *testing.T, s string) pep440.SpecifierSet {
	t.Helper()
	set, err := pep440.ParseSpecifierSet(s)
	if err != nil {
		t.Fatal(err)
	}
	return set
}

func TestConflictKeyDedup(t *testing.T) {
	a := NewConflict("A", "1.0", "foo", specs(t, ">=2.0,<3.0"), "3.1")
	b := NewConflict("A", "1.0", "foo", specs(t, ">=2.0,<3.0"), "2.9")
	if a.Key() != b.Key() {
		t.Error("same declared constraint must dedup regardless of violating version")
	}

	c := NewConflict("B", "1.0", "foo", specs(t, ">=2.0,<3.0"), "3.1")
	if a.Key() == c.Key() {
		t.Error("different declarers are different conflicts")
	}
}

func TestConflictSetMaxCompatible(t *testing.T) {
	available := []string{"1.0", "2.0", "2.5", "2.9", "3.0", "3.1rc1"}

	cs := NewConflictSet("foo")
	cs.Add(NewConflict("a", "1.0", "foo", specs(t, ">=2.0,<3.0"), "3.0"))
	cs.Add(NewConflict("b", "1.0", "foo", specs(t, "<2.9"), "3.0"))

	if got := cs.MaxCompatible(available); got != "2.5" {
		t.Errorf("MaxCompatible = %q, want 2.5", got)
	}
	if got := cs.MaxCompatibleAtLeast(available, "2.0"); got != "2.5" {
		t.Errorf("MaxCompatibleAtLeast(2.0) = %q, want 2.5", got)
	}
	if got := cs.MaxCompatibleAtLeast(available, "2.6"); got != "" {
		t.Errorf("MaxCompatibleAtLeast(2.6) = %q, want none", got)
	}

	impossible := NewConflictSet("foo")
	impossible.Add(NewConflict("a", "1.0", "foo", specs(t, "<2.0"), "2.5"))
	impossible.Add(NewConflict("b", "1.0", "foo", specs(t, ">=3.0"), "2.5"))
	if got := impossible.MaxCompatible(available); got != "" {
		t.Errorf("mutually exclusive specs yielded %q, want none", got)
	}
}

func TestPackageUpdate(t *testing.T) {
	p := &Package{Name: "requests", CurrentVersion: "2.28.0", RecommendedVersion: "2.32.0", LatestVersion: "3.0.0"}
	if !p.HasUpdate() {
		t.Error("2.28.0 -> 2.32.0 is an update")
	}
	if p.IsDowngrade() {
		t.Error("not a downgrade")
	}
	if p.Update() != UpdateMinor {
		t.Errorf("Update() = %s, want minor", p.Update())
	}
}
