// Package pep440 implements version ordering and specifier matching for
// PyPI-style version numbers.
//
// The grammar is the commonly used subset of PEP 440: an optional epoch
// ("1!2.0"), a dotted release segment of arbitrary length, an optional
// pre-release tag (a/b/c/rc/alpha/beta/preview/pre), an optional
// ".postN" segment, and an optional ".devN" segment. Local version
// labels ("+local") are parsed and ignored for ordering, matching pip.
package pep440

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var versionRe = regexp.MustCompile(
	`^(?:(\d+)!)?` + // epoch
		`(\d+(?:\.\d+)*)` + // release
		`(?:[._-]?(a|b|c|rc|alpha|beta|preview|pre)[._-]?(\d*))?` + // pre-release
		`(?:[._-]?(post|rev|r)[._-]?(\d*))?` + // post-release
		`(?:[._-]?(dev)[._-]?(\d*))?` + // dev-release
		`(?:\+([a-zA-Z0-9._-]+))?$`, // local label (ignored)
)

// preRank orders pre-release phases: alpha < beta < release candidate.
var preRank = map[string]int{
	"a": 1, "alpha": 1,
	"b": 2, "beta": 2,
	"c": 3, "rc": 3, "preview": 3, "pre": 3,
}

// Version is a parsed, comparable package version.
type Version struct {
	original string
	epoch    int
	release  []int
	pre      int // phase rank, 0 when absent
	preNum   int
	post     int // -1 when absent
	dev      int // -1 when absent
}

// Parse parses a version string. Strings outside the accepted grammar
// (e.g. date-stamped or wildly non-standard tags) return an error and
// should normally just be skipped by the caller.
func Parse(s string) (Version, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "v")

	m := versionRe.FindStringSubmatch(trimmed)
	if m == nil {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}

	v := Version{original: s, post: -1, dev: -1}

	if m[1] != "" {
		v.epoch, _ = strconv.Atoi(m[1])
	}
	for _, part := range strings.Split(m[2], ".") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q", s)
		}
		v.release = append(v.release, n)
	}
	if m[3] != "" {
		v.pre = preRank[strings.ToLower(m[3])]
		if m[4] != "" {
			v.preNum, _ = strconv.Atoi(m[4])
		}
	}
	if m[5] != "" {
		v.post = 0
		if m[6] != "" {
			v.post, _ = strconv.Atoi(m[6])
		}
	}
	if m[7] != "" {
		v.dev = 0
		if m[8] != "" {
			v.dev, _ = strconv.Atoi(m[8])
		}
	}

	return v, nil
}

// MustParse is Parse for static version literals; it panics on error.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version exactly as it was parsed.
func (v Version) String() string { return v.original }

// Major returns the leading release component.
func (v Version) Major() int { return v.component(0) }

// Minor returns the second release component, or 0 when absent.
func (v Version) Minor() int { return v.component(1) }

// Patch returns the third release component, or 0 when absent.
func (v Version) Patch() int { return v.component(2) }

func (v Version) component(i int) int {
	if i < len(v.release) {
		return v.release[i]
	}
	return 0
}

// IsPrerelease reports whether the version carries a pre-release or dev
// segment. Post-releases are considered stable.
func (v Version) IsPrerelease() bool { return v.pre != 0 || v.dev >= 0 }

// Compare returns -1, 0, or +1 ordering v against w. Missing release
// components compare as zero, so "2.0" == "2.0.0".
func (v Version) Compare(w Version) int {
	if v.epoch != w.epoch {
		return cmpInt(v.epoch, w.epoch)
	}

	n := len(v.release)
	if len(w.release) > n {
		n = len(w.release)
	}
	for i := 0; i < n; i++ {
		if c := cmpInt(v.component(i), w.component(i)); c != 0 {
			return c
		}
	}

	// Same numeric release: dev < pre < final < post.
	if c := cmpInt(v.phase(), w.phase()); c != 0 {
		return c
	}
	if c := cmpInt(v.preNum, w.preNum); c != 0 {
		return c
	}
	if c := cmpInt(v.post, w.post); c != 0 {
		return c
	}
	return cmpInt(devKey(v.dev), devKey(w.dev))
}

// LessThan reports whether v orders before w.
func (v Version) LessThan(w Version) bool { return v.Compare(w) < 0 }

// Equal reports whether v and w order identically.
func (v Version) Equal(w Version) bool { return v.Compare(w) == 0 }

// phase collapses the pre/post segments into a single orderable rank.
func (v Version) phase() int {
	switch {
	case v.pre != 0:
		return v.pre // 1..3
	case v.post >= 0:
		return 5
	case v.dev >= 0:
		return 0
	default:
		return 4 // final
	}
}

func devKey(dev int) int {
	if dev < 0 {
		return 1 << 30 // releases without .dev sort after those with it
	}
	return dev
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

var nameSeparators = regexp.MustCompile(`[-_.]+`)

// NormalizeName canonicalizes a package name per PEP 503: lower-case
// with every run of ".", "-", "_" collapsed to a single hyphen.
func NormalizeName(name string) string {
	return strings.ToLower(nameSeparators.ReplaceAllString(name, "-"))
}
