package core

import (
	"fmt"

	"github.com/pipgrade/pipgrade/pep440"
)

// Conflict is an immutable record of one incompatibility: Declarer at
// DeclarerVersion imposes Spec on Target, which Violating does not
// satisfy.
type Conflict struct {
	Declarer        string
	DeclarerVersion string
	Target          string
	Spec            pep440.SpecifierSet
	Violating       string
}

// NewConflict builds a conflict with both package names normalized.
func NewConflict(declarer, declarerVersion, target string, spec pep440.SpecifierSet, violating string) Conflict {
	return Conflict{
		Declarer:        pep440.NormalizeName(declarer),
		DeclarerVersion: declarerVersion,
		Target:          pep440.NormalizeName(target),
		Spec:            spec,
		Violating:       violating,
	}
}

// Key returns a stable signature used to deduplicate repeated sightings
// of the same conflict across resolution passes. The violating version
// is deliberately excluded: the same declared incompatibility observed
// against a different assignment is still one conflict.
func (c Conflict) Key() string {
	return fmt.Sprintf("%s==%s|%s%s", c.Declarer, c.DeclarerVersion, c.Target, c.Spec)
}

func (c Conflict) String() string {
	declarer := c.Declarer
	if c.DeclarerVersion != "" {
		declarer = fmt.Sprintf("%s==%s", c.Declarer, c.DeclarerVersion)
	}
	return fmt.Sprintf("%s requires %s%s", declarer, c.Target, c.Spec)
}

// ConflictSet aggregates every conflict affecting one package.
type ConflictSet struct {
	Name      string
	Conflicts []Conflict
}

// NewConflictSet creates an empty set for the named package.
func NewConflictSet(name string) *ConflictSet {
	return &ConflictSet{Name: pep440.NormalizeName(name)}
}

// Add appends a conflict.
func (cs *ConflictSet) Add(c Conflict) {
	cs.Conflicts = append(cs.Conflicts, c)
}

// HasConflicts reports whether the set is non-empty.
func (cs *ConflictSet) HasConflicts() bool { return len(cs.Conflicts) > 0 }

// Len returns the number of recorded conflicts.
func (cs *ConflictSet) Len() int { return len(cs.Conflicts) }

// Combined returns the intersection of every conflict's specifier set.
func (cs *ConflictSet) Combined() pep440.SpecifierSet {
	var combined pep440.SpecifierSet
	for _, c := range cs.Conflicts {
		combined = combined.Intersect(c.Spec)
	}
	return combined
}

// MaxCompatible returns the highest stable version from available that
// satisfies every conflict's specifier, or "" when none does. Available
// versions may be in any order; pre-releases are skipped.
func (cs *ConflictSet) MaxCompatible(available []string) string {
	if !cs.HasConflicts() {
		return ""
	}
	combined := cs.Combined()

	var best pep440.Version
	bestRaw := ""
	for _, raw := range available {
		v, err := pep440.Parse(raw)
		if err != nil || v.IsPrerelease() {
			continue
		}
		if !combined.Check(v) {
			continue
		}
		if bestRaw == "" || v.Compare(best) > 0 {
			best, bestRaw = v, raw
		}
	}
	return bestRaw
}

// MaxCompatibleAtLeast is MaxCompatible with a floor: candidates that
// order below min are rejected. An unparseable or empty min disables
// the floor.
func (cs *ConflictSet) MaxCompatibleAtLeast(available []string, min string) string {
	compatible := cs.MaxCompatible(available)
	if compatible == "" || min == "" {
		return compatible
	}
	floor, err := pep440.Parse(min)
	if err != nil {
		return compatible
	}
	v, err := pep440.Parse(compatible)
	if err != nil || v.Compare(floor) < 0 {
		return ""
	}
	return compatible
}
