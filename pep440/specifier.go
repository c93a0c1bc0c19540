package pep440

import (
	"fmt"
	"regexp"
	"strings"
)

// Specifier is a single (operator, version) constraint such as ">=2.0".
type Specifier struct {
	Op      string
	Version string
}

var specifierRe = regexp.MustCompile(`^(==|!=|>=|<=|~=|>|<)\s*([\w.*+!-]+)$`)

// ParseSpecifier parses one constraint, e.g. "==2.28.0" or ">= 1.0".
func ParseSpecifier(s string) (Specifier, error) {
	m := specifierRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Specifier{}, fmt.Errorf("invalid specifier %q", s)
	}

	spec := Specifier{Op: m[1], Version: m[2]}
	if strings.HasSuffix(spec.Version, ".*") {
		if spec.Op != "==" && spec.Op != "!=" {
			return Specifier{}, fmt.Errorf("invalid specifier %q: wildcard requires == or !=", s)
		}
	} else if _, err := Parse(spec.Version); err != nil {
		return Specifier{}, fmt.Errorf("invalid specifier %q: %w", s, err)
	}
	return spec, nil
}

// String renders the specifier in canonical form, e.g. ">=2.0".
func (s Specifier) String() string { return s.Op + s.Version }

// Check reports whether v satisfies the constraint.
func (s Specifier) Check(v Version) bool {
	if strings.HasSuffix(s.Version, ".*") {
		matched := prefixMatch(v, strings.TrimSuffix(s.Version, ".*"))
		if s.Op == "!=" {
			return !matched
		}
		return matched
	}

	bound, err := Parse(s.Version)
	if err != nil {
		// Unparseable bound: be permissive, mirroring pip.
		return true
	}

	switch s.Op {
	case "==":
		return v.Equal(bound)
	case "!=":
		return !v.Equal(bound)
	case ">=":
		return v.Compare(bound) >= 0
	case "<=":
		return v.Compare(bound) <= 0
	case ">":
		return v.Compare(bound) > 0
	case "<":
		return v.Compare(bound) < 0
	case "~=":
		// Compatible release: >= bound, sharing all but the last
		// release component ("~=2.2" means ">=2.2, ==2.*").
		if v.Compare(bound) < 0 {
			return false
		}
		if len(bound.release) < 2 {
			return true
		}
		for i := 0; i < len(bound.release)-1; i++ {
			if v.component(i) != bound.release[i] {
				return false
			}
		}
		return true
	}
	return false
}

// prefixMatch reports whether v's release starts with the dotted numeric
// prefix, as in "==2.1.*".
func prefixMatch(v Version, prefix string) bool {
	want, err := Parse(prefix)
	if err != nil {
		return false
	}
	for i := range want.release {
		if v.component(i) != want.release[i] {
			return false
		}
	}
	return true
}

// SpecifierSet is the conjunction of zero or more specifiers. An empty
// set matches every version.
type SpecifierSet []Specifier

// ParseSpecifierSet parses a comma-separated constraint list such as
// ">=1.0,<2.0". An empty string yields an empty (match-all) set.
func ParseSpecifierSet(s string) (SpecifierSet, error) {
	s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "()"))
	if s == "" {
		return nil, nil
	}

	var set SpecifierSet
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		spec, err := ParseSpecifier(part)
		if err != nil {
			return nil, err
		}
		set = append(set, spec)
	}
	return set, nil
}

// Check reports whether v satisfies every specifier in the set.
func (set SpecifierSet) Check(v Version) bool {
	for _, s := range set {
		if !s.Check(v) {
			return false
		}
	}
	return true
}

// CheckString parses raw and checks it against the set. Unparseable
// versions never satisfy a non-empty set.
func (set SpecifierSet) CheckString(raw string) bool {
	if len(set) == 0 {
		return true
	}
	v, err := Parse(raw)
	if err != nil {
		return false
	}
	return set.Check(v)
}

// Intersect returns the conjunction of both sets.
func (set SpecifierSet) Intersect(other SpecifierSet) SpecifierSet {
	if len(other) == 0 {
		return set
	}
	merged := make(SpecifierSet, 0, len(set)+len(other))
	merged = append(merged, set...)
	merged = append(merged, other...)
	return merged
}

// String renders the set as a comma-separated list, e.g. ">=1.0,<2.0".
func (set SpecifierSet) String() string {
	parts := make([]string, len(set))
	for i, s := range set {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}

var requirementRe = regexp.MustCompile(
	`^([A-Za-z0-9][A-Za-z0-9._-]*)` + // name
		`(?:\[([^\]]*)\])?` + // extras
		`\s*([^;]*?)` + // specifiers
		`\s*(?:;\s*(.*))?$`, // environment marker
)

// Dependency is a parsed dependency declaration from registry metadata,
// e.g. "werkzeug[watchdog]>=2.0; python_version >= '3.8'".
type Dependency struct {
	Name   string // normalized
	Extras []string
	Specs  SpecifierSet
	Marker string
}

// ParseDependency parses a PEP 508-style dependency line. Extras and
// markers are retained but play no role in version selection.
func ParseDependency(s string) (Dependency, error) {
	m := requirementRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Dependency{}, fmt.Errorf("invalid dependency %q", s)
	}

	dep := Dependency{
		Name:   NormalizeName(m[1]),
		Marker: strings.TrimSpace(m[4]),
	}
	if m[2] != "" {
		for _, extra := range strings.Split(m[2], ",") {
			if e := strings.TrimSpace(extra); e != "" {
				dep.Extras = append(dep.Extras, e)
			}
		}
	}

	specs, err := ParseSpecifierSet(m[3])
	if err != nil {
		return Dependency{}, fmt.Errorf("invalid dependency %q: %w", s, err)
	}
	dep.Specs = specs
	return dep, nil
}
