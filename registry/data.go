package registry

import (
	"sort"
	"sync"

	"github.com/pipgrade/pipgrade/pep440"
)

// PackageData holds the index metadata for one package: its release
// versions sorted newest-first, per-version interpreter requirements,
// and a lazily populated per-version dependency cache.
type PackageData struct {
	// Name is the normalized package name.
	Name string

	// LatestVersion is the version the index reports as current.
	LatestVersion string

	// LatestRequiresPython is the interpreter constraint of the latest
	// version, empty when the package declares none.
	LatestRequiresPython string

	// LatestDependencies are the runtime dependency strings of the
	// latest version, with extra-gated entries removed.
	LatestDependencies []string

	// RequiresPython maps version string to that release's interpreter
	// constraint.
	RequiresPython map[string]string

	stable []pep440.Version
	all    []pep440.Version

	mu          sync.RWMutex
	versionDeps map[string][]string
}

func newPackageData(name string) *PackageData {
	return &PackageData{
		Name:           pep440.NormalizeName(name),
		RequiresPython: make(map[string]string),
		versionDeps:    make(map[string][]string),
	}
}

// setVersions parses and sorts the release list. Unparseable version
// strings are dropped.
func (d *PackageData) setVersions(raw []string) {
	d.all = d.all[:0]
	d.stable = d.stable[:0]

	for _, s := range raw {
		v, err := pep440.Parse(s)
		if err != nil {
			continue
		}
		d.all = append(d.all, v)
		if !v.IsPrerelease() {
			d.stable = append(d.stable, v)
		}
	}

	sort.Slice(d.all, func(i, j int) bool {
		return d.all[j].LessThan(d.all[i])
	})
	sort.Slice(d.stable, func(i, j int) bool {
		return d.stable[j].LessThan(d.stable[i])
	})
}

// Versions returns stable release versions, newest first.
func (d *PackageData) Versions() []string {
	return versionStrings(d.stable)
}

// AllVersions returns every release version including prereleases,
// newest first.
func (d *PackageData) AllVersions() []string {
	return versionStrings(d.all)
}

func versionStrings(versions []pep440.Version) []string {
	out := make([]string, len(versions))
	for i, v := range versions {
		out[i] = v.String()
	}
	return out
}

// LatestStable returns the newest stable version, or "" when every
// release is a prerelease.
func (d *PackageData) LatestStable() string {
	if len(d.stable) == 0 {
		return ""
	}
	return d.stable[0].String()
}

// VersionsInMajor returns stable versions sharing the given major
// component, newest first.
func (d *PackageData) VersionsInMajor(major int) []string {
	var out []string
	for _, v := range d.stable {
		if v.Major() == major {
			out = append(out, v.String())
		}
	}
	return out
}

// MaxSatisfying returns the highest stable version satisfying specs
// with a major component no greater than maxMajor. A negative maxMajor
// disables the major bound. Returns "" when nothing qualifies.
func (d *PackageData) MaxSatisfying(specs pep440.SpecifierSet, maxMajor int) string {
	for _, v := range d.stable {
		if maxMajor >= 0 && v.Major() > maxMajor {
			continue
		}
		if specs.Check(v) {
			return v.String()
		}
	}
	return ""
}

// RuntimeCompatible reports whether the given release accepts the
// runtime interpreter version. Releases without a declared constraint
// are treated as compatible.
func (d *PackageData) RuntimeCompatible(version string, runtime pep440.Version) bool {
	constraint, ok := d.RequiresPython[version]
	if !ok || constraint == "" {
		return true
	}
	specs, err := pep440.ParseSpecifierSet(constraint)
	if err != nil {
		return true
	}
	return specs.Check(runtime)
}

// Dependencies returns the cached dependency strings for a version, if
// previously fetched or seeded.
func (d *PackageData) Dependencies(version string) ([]string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	deps, ok := d.versionDeps[version]
	return deps, ok
}

func (d *PackageData) setDependencies(version string, deps []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.versionDeps[version] = deps
}
