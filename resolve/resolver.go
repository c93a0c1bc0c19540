// Package resolve reconciles upgrade recommendations against the
// packages' own declared dependencies.
//
// Upgrading one package can violate a specifier another package
// declares on it, and moving a package to a different version can
// change what that package declares in turn. The resolver runs a
// bounded fixed-point loop: find violations under the current version
// assignment, reconcile each conflicted package to the best version its
// constraints allow, repeat until an iteration changes nothing or the
// cap is hit.
package resolve

import (
	"context"
	"io"
	"sort"

	"github.com/charmbracelet/log"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/pipgrade/pipgrade"
	"github.com/pipgrade/pipgrade/internal/core"
	"github.com/pipgrade/pipgrade/pep440"
	"github.com/pipgrade/pipgrade/registry"
)

// DefaultMaxIterations caps the fixed-point loop.
const DefaultMaxIterations = 10

// Resolver adjusts a batch of recommendations until they are mutually
// compatible, or reports the packages that cannot be reconciled.
type Resolver struct {
	store         *registry.Store
	maxIterations int
	logger        *log.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxIterations sets the fixed-point iteration cap. Values below 1
// keep the default.
func WithMaxIterations(n int) Option {
	return func(r *Resolver) {
		if n >= 1 {
			r.maxIterations = n
		}
	}
}

// WithLogger sets the resolver's logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// NewResolver creates a resolver backed by the given metadata store.
func NewResolver(store *registry.Store, opts ...Option) *Resolver {
	r := &Resolver{
		store:         store,
		maxIterations: DefaultMaxIterations,
		logger:        log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// workItem is one package's mutable state across iterations.
type workItem struct {
	pkg      *pipgrade.Package
	current  string // version to fall back to, may be ""
	original string // proposal going into resolution
	assigned string // current working assignment

	// conflict accumulation, deduplicated by Conflict.Key
	seen        mapset.Set[string]
	conflicts   []core.Conflict
	unsolvable  bool   // last reconciliation found no satisfying version
	alternative string // best version ignoring the major boundary
}

func (w *workItem) addConflict(c core.Conflict) {
	if w.seen.Add(c.Key()) {
		w.conflicts = append(w.conflicts, c)
	}
}

// skip reports whether the package cannot participate in the graph:
// its metadata fetch failed earlier, or it has no version to pin down.
func (w *workItem) skip() bool {
	return w.pkg.Err != nil || w.assigned == ""
}

// Resolve runs the fixed-point loop over the batch and returns the
// per-package outcomes. Packages passed in are also mutated in place:
// RecommendedVersion moves to the resolved version and discovered
// conflicts are attached. One irreconcilable package never aborts the
// batch; only cancellation or a store-level failure returns an error.
func (r *Resolver) Resolve(ctx context.Context, pkgs []*pipgrade.Package) (*pipgrade.Result, error) {
	items := make(map[string]*workItem, len(pkgs))
	names := make([]string, 0, len(pkgs))
	for _, pkg := range pkgs {
		if _, ok := items[pkg.Name]; ok {
			continue
		}
		assigned := pkg.RecommendedVersion
		if assigned == "" {
			assigned = pkg.CurrentVersion
		}
		items[pkg.Name] = &workItem{
			pkg:      pkg,
			current:  pkg.CurrentVersion,
			original: assigned,
			assigned: assigned,
			seen:     mapset.NewSet[string](),
		}
		names = append(names, pkg.Name)
	}
	sort.Strings(names)

	if err := r.store.Prefetch(ctx, names); err != nil {
		return nil, err
	}

	iterations := 0
	converged := false
	for iterations < r.maxIterations {
		iterations++

		changed, err := r.iterate(ctx, names, items)
		if err != nil {
			return nil, err
		}
		if !changed {
			converged = true
			break
		}
	}

	if !converged {
		r.logger.Warn("resolution did not converge", "iterations", iterations)
	}

	result := &pipgrade.Result{
		Resolutions:   make(map[string]pipgrade.PackageResolution, len(items)),
		TotalPackages: len(items),
		Iterations:    iterations,
		Converged:     converged,
	}
	for _, name := range names {
		item := items[name]

		item.pkg.RecommendedVersion = item.assigned
		item.pkg.SetConflicts(item.conflicts)
		if len(item.conflicts) > 0 {
			result.PackagesWithConflicts++
		}

		result.Resolutions[name] = pipgrade.PackageResolution{
			Name:                  name,
			Original:              item.original,
			Resolved:              item.assigned,
			Status:                r.status(item),
			Conflicts:             item.conflicts,
			CompatibleAlternative: item.alternative,
		}
	}
	return result, nil
}

// declaration is one package's dependency constraint on another, under
// the declarer's currently assigned version.
type declaration struct {
	declarer string
	version  string
	specs    pep440.SpecifierSet
}

// iterate runs one pass: rebuild the constraint graph under the current
// assignment, then reconcile every conflicted package. Returns whether
// any assignment changed.
func (r *Resolver) iterate(ctx context.Context, names []string, items map[string]*workItem) (bool, error) {
	declared := make(map[string][]declaration)
	conflicted := mapset.NewThreadUnsafeSet[string]()

	for _, declarer := range names {
		item := items[declarer]
		if item.skip() {
			continue
		}

		deps, err := r.store.VersionDependencies(ctx, declarer, item.assigned)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			r.logger.Debug("dependency fetch failed", "package", declarer, "version", item.assigned, "err", err)
			continue
		}

		for _, raw := range deps {
			dep, err := pep440.ParseDependency(raw)
			if err != nil {
				continue
			}
			target, ok := items[dep.Name]
			if !ok || target.skip() || len(dep.Specs) == 0 {
				continue
			}

			declared[dep.Name] = append(declared[dep.Name], declaration{
				declarer: declarer,
				version:  item.assigned,
				specs:    dep.Specs,
			})
			if !dep.Specs.CheckString(target.assigned) {
				target.addConflict(core.NewConflict(declarer, item.assigned, dep.Name, dep.Specs, target.assigned))
				conflicted.Add(dep.Name)
				r.logger.Debug("conflict",
					"declarer", declarer+"=="+item.assigned,
					"target", dep.Name,
					"spec", dep.Specs.String(),
					"violating", target.assigned)
			}
		}
	}

	changed := false
	targets := conflicted.ToSlice()
	sort.Strings(targets)
	for _, name := range targets {
		item := items[name]

		data, err := r.store.Fetch(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			continue
		}

		var combined pep440.SpecifierSet
		for _, decl := range declared[name] {
			combined = combined.Intersect(decl.specs)
		}

		best := data.MaxSatisfying(combined, majorOf(item.current))
		switch {
		case best == "":
			// Mutually exclusive constraints: leave the current version
			// untouched and record every declarer's side of the
			// deadlock for visibility.
			item.unsolvable = true
			for _, decl := range declared[name] {
				item.addConflict(core.NewConflict(decl.declarer, decl.version, name, decl.specs, item.assigned))
			}
			item.alternative = r.compatibleAlternative(item, data)
			if item.assigned != item.current {
				item.assigned = item.current
				changed = true
			}
		case best != item.assigned:
			item.unsolvable = false
			item.assigned = best
			changed = true
		default:
			item.unsolvable = false
		}
	}

	return changed, nil
}

// compatibleAlternative finds the best version satisfying every
// recorded conflict, ignoring the major boundary. Surfaced so callers
// can report "a compatible version exists, but taking it means a major
// jump".
func (r *Resolver) compatibleAlternative(item *workItem, data *registry.PackageData) string {
	cs := core.NewConflictSet(item.pkg.Name)
	for _, c := range item.conflicts {
		cs.Add(c)
	}
	if item.current != "" {
		return cs.MaxCompatibleAtLeast(data.Versions(), item.current)
	}
	return cs.MaxCompatible(data.Versions())
}

// status labels the terminal state of one package.
func (r *Resolver) status(item *workItem) pipgrade.ResolutionStatus {
	if item.unsolvable {
		return pipgrade.StatusKeptCurrent
	}
	if item.assigned == item.original {
		return pipgrade.StatusKeptRecommended
	}

	final, errF := pep440.Parse(item.assigned)
	orig, errO := pep440.Parse(item.original)
	if errF != nil || errO != nil {
		return pipgrade.StatusConstrained
	}
	if orig.LessThan(final) {
		return pipgrade.StatusUpgraded
	}

	// Lowered. DOWNGRADED when a conflicting declarer's specifier shuts
	// out the original proposal; CONSTRAINED when the proposal merely
	// stopped being the maximum allowed.
	for _, c := range item.conflicts {
		if !c.Spec.Check(orig) {
			return pipgrade.StatusDowngraded
		}
	}
	return pipgrade.StatusConstrained
}

func majorOf(version string) int {
	if version == "" {
		return -1
	}
	v, err := pep440.Parse(version)
	if err != nil {
		return -1
	}
	return v.Major()
}
