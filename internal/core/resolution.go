package core

// ResolutionStatus is the terminal state of one package after conflict
// resolution.
type ResolutionStatus string

const (
	// StatusKeptRecommended means the original recommendation already
	// satisfied every constraint.
	StatusKeptRecommended ResolutionStatus = "kept_recommended"

	// StatusUpgraded means a higher in-boundary version satisfied all
	// constraints and the recommendation was raised.
	StatusUpgraded ResolutionStatus = "upgraded"

	// StatusDowngraded means the original recommendation was excluded
	// by a sibling's constraint and a lower in-boundary version was
	// chosen instead.
	StatusDowngraded ResolutionStatus = "downgraded"

	// StatusConstrained means the chosen version differs from the
	// unconstrained recommendation only because a sibling pinned the
	// allowed range more narrowly.
	StatusConstrained ResolutionStatus = "constrained"

	// StatusKeptCurrent means no version satisfied every constraint and
	// the current version was left untouched, with the unresolved
	// conflicts recorded for visibility.
	StatusKeptCurrent ResolutionStatus = "kept_current"
)

// PackageResolution is the per-package outcome of one resolution run.
type PackageResolution struct {
	Name     string
	Original string // version proposed going into resolution
	Resolved string // final version after resolution
	Status   ResolutionStatus

	// Conflicts observed for this package across all passes.
	Conflicts []Conflict

	// CompatibleAlternative is the highest version satisfying every
	// recorded conflict (at or above the current version), when one
	// exists. Informational.
	CompatibleAlternative string
}

// Changed reports whether resolution moved the package off its original
// proposal.
func (r PackageResolution) Changed() bool { return r.Original != r.Resolved }

// HasConflicts reports whether conflicts were recorded for the package.
func (r PackageResolution) HasConflicts() bool { return len(r.Conflicts) > 0 }

// Result is the outcome of one conflict-resolution run.
type Result struct {
	Resolutions map[string]PackageResolution

	TotalPackages         int
	PackagesWithConflicts int
	Iterations            int

	// Converged is true when an iteration produced no version changes
	// before the iteration cap was reached. A false value is a warning
	// for the caller, never an error.
	Converged bool
}

// Changed returns the resolutions whose final version differs from the
// original proposal.
func (r *Result) Changed() []PackageResolution {
	var out []PackageResolution
	for _, res := range r.Resolutions {
		if res.Changed() {
			out = append(out, res)
		}
	}
	return out
}

// Conflicted returns the resolutions that carry recorded conflicts.
func (r *Result) Conflicted() []PackageResolution {
	var out []PackageResolution
	for _, res := range r.Resolutions {
		if res.HasConflicts() {
			out = append(out, res)
		}
	}
	return out
}
