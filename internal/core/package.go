// Package core provides the shared data model for the upgrade pipeline.
package core

import (
	"fmt"

	"github.com/pipgrade/pipgrade/pep440"
)

// UpdateType classifies the jump from a package's current version to its
// recommended version.
type UpdateType string

const (
	UpdateMajor     UpdateType = "major"
	UpdateMinor     UpdateType = "minor"
	UpdatePatch     UpdateType = "patch"
	UpdateNew       UpdateType = "new"  // no prior current version
	UpdateSame      UpdateType = "same" // recommendation equals current
	UpdateDowngrade UpdateType = "downgrade"
)

// Package is one package's working state through recommendation and
// resolution. The recommendation engine creates it; the conflict
// resolver adjusts RecommendedVersion and attaches conflicts in place.
type Package struct {
	Name               string
	CurrentVersion     string // empty when unknown
	LatestVersion      string // informational; may cross the major boundary
	RecommendedVersion string // safe in-boundary target, empty when none exists

	// RequiresRuntime is the latest version's minimum-runtime
	// requirement string (PyPI requires_python), when published.
	RequiresRuntime string

	// Dependencies holds the latest version's direct dependency
	// specifiers, informational only.
	Dependencies []string

	// Err records why registry data could not be obtained for this
	// package (not found, transport failure). Nil for healthy packages.
	Err error

	// Conflicts accumulated during resolution.
	Conflicts []Conflict
}

// HasUpdate reports whether the recommendation moves off the current
// version.
func (p *Package) HasUpdate() bool {
	return p.RecommendedVersion != "" && p.RecommendedVersion != p.CurrentVersion
}

// IsDowngrade reports whether the recommendation orders below the
// current version. This legitimately happens when resolution forces a
// package down to satisfy a sibling's constraint.
func (p *Package) IsDowngrade() bool {
	return p.Update() == UpdateDowngrade
}

// Update classifies the current → recommended jump by comparing version
// components.
func (p *Package) Update() UpdateType {
	if p.CurrentVersion == "" {
		if p.RecommendedVersion == "" {
			return UpdateSame
		}
		return UpdateNew
	}
	if p.RecommendedVersion == "" || p.RecommendedVersion == p.CurrentVersion {
		return UpdateSame
	}

	cur, err := pep440.Parse(p.CurrentVersion)
	if err != nil {
		return UpdateNew
	}
	rec, err := pep440.Parse(p.RecommendedVersion)
	if err != nil {
		return UpdateSame
	}

	switch c := rec.Compare(cur); {
	case c == 0:
		return UpdateSame
	case c < 0:
		return UpdateDowngrade
	case rec.Major() != cur.Major():
		return UpdateMajor
	case rec.Minor() != cur.Minor():
		return UpdateMinor
	default:
		return UpdatePatch
	}
}

// SetConflicts replaces the package's conflict list.
func (p *Package) SetConflicts(conflicts []Conflict) {
	p.Conflicts = conflicts
}

// HasConflicts reports whether any conflicts were recorded.
func (p *Package) HasConflicts() bool { return len(p.Conflicts) > 0 }

func (p *Package) String() string {
	return fmt.Sprintf("%s (current=%s recommended=%s latest=%s)",
		p.Name, orDash(p.CurrentVersion), orDash(p.RecommendedVersion), orDash(p.LatestVersion))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
