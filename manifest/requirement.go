// Package manifest parses pip-style requirements files into structured
// requirement records, honoring include (-r) and constraint (-c)
// directive chains.
package manifest

import (
	"strings"

	"github.com/pipgrade/pipgrade/pep440"
)

// Requirement is one parsed manifest entry. It is created once per line
// by the Parser and never mutated afterwards.
type Requirement struct {
	// Name is the normalized (PEP 503) package name.
	Name string

	// Specs is the ordered list of version constraints on the line,
	// possibly narrowed by constraint-file entries. Empty means
	// unconstrained.
	Specs pep440.SpecifierSet

	// Extras are the bracketed extras, e.g. requests[socks].
	Extras []string

	// Marker is the raw environment-marker expression after ";", kept
	// opaque for external evaluation.
	Marker string

	// URL is the direct URL or VCS locator, when the line is not a
	// plain index requirement. Local paths are resolved to file:// URLs.
	URL string

	// Editable marks -e lines.
	Editable bool

	// Hashes holds --hash=algo:digest tokens in order of appearance.
	Hashes []string

	// Comment is the inline comment text without the leading "#".
	Comment string

	// Line and Raw preserve the origin for error reporting and
	// round-trip reconstruction.
	Line int
	Raw  string
}

// String renders the canonical requirements-file representation.
func (r *Requirement) String() string {
	return r.render(true, true)
}

// UpdateVersion renders the requirement with all version constraints
// replaced by ">=version". Hashes are omitted since they no longer
// match the new release.
func (r *Requirement) UpdateVersion(version string) string {
	updated := *r
	updated.Specs = pep440.SpecifierSet{{Op: ">=", Version: version}}
	updated.Hashes = nil
	return updated.render(false, true)
}

func (r *Requirement) render(includeHashes, includeComment bool) string {
	var b strings.Builder

	if r.Editable {
		b.WriteString("-e ")
	}
	if r.URL != "" {
		b.WriteString(r.URL)
	} else {
		b.WriteString(r.Name)
	}
	if len(r.Extras) > 0 {
		b.WriteString("[")
		b.WriteString(strings.Join(r.Extras, ","))
		b.WriteString("]")
	}
	if r.URL == "" && len(r.Specs) > 0 {
		b.WriteString(r.Specs.String())
	}
	if r.Marker != "" {
		b.WriteString(" ; ")
		b.WriteString(r.Marker)
	}
	if includeHashes {
		for _, h := range r.Hashes {
			b.WriteString(" --hash=")
			b.WriteString(h)
		}
	}
	if includeComment && r.Comment != "" {
		b.WriteString("  # ")
		b.WriteString(r.Comment)
	}
	return b.String()
}

// Pinned returns the exact-pin version when the requirement consists of
// a single "==" specifier, and "" otherwise.
func (r *Requirement) Pinned() string {
	if len(r.Specs) == 1 && r.Specs[0].Op == "==" && !strings.HasSuffix(r.Specs[0].Version, ".*") {
		return r.Specs[0].Version
	}
	return ""
}
