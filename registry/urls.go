package registry

import (
	"fmt"
	"strings"
)

// IndexURLs builds the JSON API and human-facing URLs of one package
// index.
type IndexURLs struct {
	base string
}

// NewIndexURLs creates a builder for the given index base URL; an empty
// base falls back to the public index.
func NewIndexURLs(base string) *IndexURLs {
	if base == "" {
		base = DefaultIndexURL
	}
	return &IndexURLs{base: strings.TrimSuffix(base, "/")}
}

// PackageJSON returns the metadata endpoint for a package.
func (u *IndexURLs) PackageJSON(name string) string {
	return fmt.Sprintf("%s/pypi/%s/json", u.base, name)
}

// VersionJSON returns the metadata endpoint for one release.
func (u *IndexURLs) VersionJSON(name, version string) string {
	return fmt.Sprintf("%s/pypi/%s/%s/json", u.base, name, version)
}

// Project returns the browsable project page, for presentation layers.
func (u *IndexURLs) Project(name, version string) string {
	if version != "" {
		return fmt.Sprintf("%s/project/%s/%s/", u.base, name, version)
	}
	return fmt.Sprintf("%s/project/%s/", u.base, name)
}
