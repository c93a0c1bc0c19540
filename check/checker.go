// Package check computes upgrade recommendations for parsed
// requirements against index metadata.
//
// A recommendation never crosses the current version's major boundary:
// for requests==2.28.0 with 2.32.0 and 3.0.0 available, the
// recommendation is 2.32.0. The newer major is reported through
// LatestVersion only.
package check

import (
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/pipgrade/pipgrade"
	"github.com/pipgrade/pipgrade/manifest"
	"github.com/pipgrade/pipgrade/pep440"
	"github.com/pipgrade/pipgrade/registry"
)

// Checker recommends upgrade targets for requirements.
type Checker struct {
	store           *registry.Store
	inferFromRange  bool
	allowPrerelease bool
	runtime         *pep440.Version
	logger          *log.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithInferFromRange controls whether a `>=`, `>`, or `~=` lower bound
// counts as the current version when there is no exact pin. On by
// default.
func WithInferFromRange(enabled bool) Option {
	return func(c *Checker) {
		c.inferFromRange = enabled
	}
}

// WithPrereleases includes prerelease and dev versions as candidates.
func WithPrereleases(enabled bool) Option {
	return func(c *Checker) {
		c.allowPrerelease = enabled
	}
}

// WithRuntimeVersion enables interpreter-compatibility gating: versions
// whose requires-python constraint rejects the given interpreter
// version are skipped as candidates.
func WithRuntimeVersion(version string) Option {
	return func(c *Checker) {
		if v, err := pep440.Parse(version); err == nil {
			c.runtime = &v
		}
	}
}

// WithLogger sets the checker's logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Checker) {
		c.logger = l
	}
}

// NewChecker creates a checker backed by the given metadata store.
func NewChecker(store *registry.Store, opts ...Option) *Checker {
	c := &Checker{
		store:          store,
		inferFromRange: true,
		logger:         log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CurrentVersion determines the version a requirement currently holds.
// An exact pin wins; otherwise, when infer-from-range is enabled, the
// lower bound of the first `>=`, `>`, or `~=` specifier is used.
// Returns "" when nothing can be inferred.
func (c *Checker) CurrentVersion(req *manifest.Requirement) string {
	if pin := req.Pinned(); pin != "" {
		return pin
	}
	if !c.inferFromRange {
		return ""
	}
	for _, spec := range req.Specs {
		switch spec.Op {
		case ">=", ">", "~=":
			if !strings.HasSuffix(spec.Version, ".*") {
				return spec.Version
			}
		}
	}
	return ""
}

// Recommend fetches index metadata for one requirement and computes its
// upgrade assessment.
func (c *Checker) Recommend(ctx context.Context, req *manifest.Requirement) (*pipgrade.Package, error) {
	data, err := c.store.Fetch(ctx, req.Name)
	if err != nil {
		return nil, err
	}

	current := c.CurrentVersion(req)
	pkg := &pipgrade.Package{
		Name:            data.Name,
		CurrentVersion:  current,
		RequiresRuntime: data.LatestRequiresPython,
		Dependencies:    data.LatestDependencies,
	}

	candidates := c.candidates(data)
	if len(candidates) > 0 {
		pkg.LatestVersion = candidates[0].String()
	} else {
		pkg.LatestVersion = data.LatestVersion
	}

	pkg.RecommendedVersion = c.recommend(current, candidates)

	c.logger.Debug("recommendation",
		"package", pkg.Name,
		"current", orUnknown(current),
		"latest", pkg.LatestVersion,
		"recommended", orUnknown(pkg.RecommendedVersion),
		"update", pkg.Update())
	return pkg, nil
}

// RecommendBatch assesses requirements concurrently. Results preserve
// input order. A failed fetch never aborts siblings: that entry comes
// back as a stub Package with Err set.
func (c *Checker) RecommendBatch(ctx context.Context, reqs []*manifest.Requirement) ([]*pipgrade.Package, error) {
	pkgs := make([]*pipgrade.Package, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			pkg, err := c.Recommend(gctx, req)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.logger.Warn("recommendation failed", "package", req.Name, "err", err)
				pkg = &pipgrade.Package{
					Name:           req.Name,
					CurrentVersion: c.CurrentVersion(req),
					Err:            err,
				}
			}
			pkgs[i] = pkg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pkgs, nil
}

// candidates returns selectable versions, newest first. Prereleases are
// excluded unless opted in, and versions rejecting the configured
// runtime are dropped.
func (c *Checker) candidates(data *registry.PackageData) []pep440.Version {
	var raw []string
	if c.allowPrerelease {
		raw = data.AllVersions()
	} else {
		raw = data.Versions()
	}

	out := make([]pep440.Version, 0, len(raw))
	for _, s := range raw {
		if c.runtime != nil && !data.RuntimeCompatible(s, *c.runtime) {
			continue
		}
		v, err := pep440.Parse(s)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// recommend selects the highest candidate within the current version's
// major component. With no known current version it returns the newest
// candidate overall; with no candidate inside the boundary it returns
// "".
func (c *Checker) recommend(current string, candidates []pep440.Version) string {
	if len(candidates) == 0 {
		return ""
	}
	if current == "" {
		return candidates[0].String()
	}

	cur, err := pep440.Parse(current)
	if err != nil {
		return candidates[0].String()
	}

	for _, v := range candidates {
		if v.Major() == cur.Major() {
			return v.String()
		}
	}
	return ""
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
