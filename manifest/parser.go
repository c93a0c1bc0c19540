package manifest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/pipgrade/pipgrade/pep440"
)

// Recognized VCS and network URL schemes, checked in order.
var urlSchemes = []string{
	"git+https://", "git+http://", "git+ssh://", "git+git://",
	"bzr+https://", "bzr+http://", "bzr+ssh://",
	"hg+https://", "hg+http://", "hg+ssh://",
	"svn+https://", "svn+http://", "svn+ssh://",
	"https://", "http://", "file://",
}

var hashTokenRe = regexp.MustCompile(`--hash[=\s]+(\S+)`)

// Parser is a stateful parser for pip-style requirements files.
//
// Two pieces of state persist across calls: the include stack, used to
// detect circular -r chains, and the constraint map populated by -c
// directives. Call Reset before reusing the parser on an unrelated
// manifest set.
type Parser struct {
	includeStack []string
	constraints  map[string]pep440.SpecifierSet
	logger       *log.Logger
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithLogger sets the parser's logger.
func WithLogger(l *log.Logger) ParserOption {
	return func(p *Parser) {
		p.logger = l
	}
}

// NewParser creates a parser with empty state.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		constraints: make(map[string]pep440.SpecifierSet),
		logger:      log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Reset clears the include stack and constraint map so the parser can
// be reused on a new, unrelated set of files.
func (p *Parser) Reset() {
	p.includeStack = nil
	p.constraints = make(map[string]pep440.SpecifierSet)
}

// Constraints returns a copy of the constraint map accumulated from -c
// directives, keyed by normalized package name.
func (p *Parser) Constraints() map[string]pep440.SpecifierSet {
	out := make(map[string]pep440.SpecifierSet, len(p.constraints))
	for name, specs := range p.constraints {
		out[name] = specs
	}
	return out
}

// Parse parses requirements from raw text. sourceID identifies the text
// for error messages and include-cycle detection; when it is a file
// path, -r and -c targets resolve relative to its directory.
func (p *Parser) Parse(text, sourceID string) ([]*Requirement, error) {
	dir := "."
	if sourceID != "" {
		dir = filepath.Dir(sourceID)
	}

	p.includeStack = append(p.includeStack, sourceID)
	reqs, err := p.parse(text, sourceID, dir, false)
	p.includeStack = p.includeStack[:len(p.includeStack)-1]
	if err != nil {
		return nil, err
	}

	p.applyConstraints(reqs)
	return reqs, nil
}

// ParseFile parses a requirements file from disk, following -r and -c
// directives relative to the including file.
func (p *Parser) ParseFile(path string) ([]*Requirement, error) {
	reqs, err := p.parseFile(path, "", false)
	if err != nil {
		return nil, err
	}

	p.applyConstraints(reqs)
	return reqs, nil
}

func (p *Parser) parseFile(path, parentDir string, asConstraint bool) ([]*Requirement, error) {
	resolved := path
	if parentDir != "" && !filepath.IsAbs(path) {
		resolved = filepath.Join(parentDir, path)
	}
	if abs, err := filepath.Abs(resolved); err == nil {
		resolved = abs
	}

	for _, onStack := range p.includeStack {
		if onStack == resolved {
			chain := append(append([]string{}, p.includeStack...), resolved)
			return nil, &CircularIncludeError{Chain: chain}
		}
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("reading requirements file: %w", err)
	}

	p.logger.Debug("parsing file", "path", resolved, "constraint", asConstraint)

	p.includeStack = append(p.includeStack, resolved)
	reqs, err := p.parse(string(content), resolved, filepath.Dir(resolved), asConstraint)
	p.includeStack = p.includeStack[:len(p.includeStack)-1]
	return reqs, err
}

func (p *Parser) parse(text, source, dir string, asConstraint bool) ([]*Requirement, error) {
	var reqs []*Requirement

	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		lineNo := i + 1
		line := strings.TrimRight(lines[i], "\r")

		// Backslash continuations are joined and otherwise ignored.
		for strings.HasSuffix(strings.TrimSpace(line), `\`) && i+1 < len(lines) {
			line = strings.TrimSuffix(strings.TrimSpace(line), `\`) + " " + strings.TrimRight(lines[i+1], "\r")
			i++
		}

		parsed, err := p.parseLine(line, lineNo, source, dir, asConstraint)
		if err != nil {
			return nil, err
		}

		for _, req := range parsed {
			if asConstraint {
				p.constraints[req.Name] = req.Specs
				p.logger.Debug("stored constraint", "name", req.Name, "specs", req.Specs.String())
			} else {
				reqs = append(reqs, req)
			}
		}
	}

	return reqs, nil
}

// parseLine handles a single logical line. It returns zero requirements
// for blanks, comments, and -c directives, one for requirement lines,
// and the flattened include result for -r directives.
func (p *Parser) parseLine(line string, lineNo int, source, dir string, asConstraint bool) ([]*Requirement, error) {
	stripped := strings.TrimSpace(line)
	if stripped == "" || strings.HasPrefix(stripped, "#") {
		return nil, nil
	}

	spec, comment := splitInlineComment(stripped)

	if arg, ok := directiveArg(spec, "-r", "--requirement"); ok {
		included, err := p.parseFile(arg, dir, asConstraint)
		if err != nil {
			return nil, includeErr(err, source, lineNo, spec)
		}
		return included, nil
	}

	if arg, ok := directiveArg(spec, "-c", "--constraint"); ok {
		if _, err := p.parseFile(arg, dir, true); err != nil {
			return nil, includeErr(err, source, lineNo, spec)
		}
		return nil, nil
	}

	spec, err := stripQuotes(spec)
	if err != nil {
		return nil, &ParseError{File: source, Line: lineNo, Content: line, Msg: err.Error()}
	}

	editable := false
	if arg, ok := directiveArg(spec, "-e", "--editable"); ok {
		editable = true
		spec = arg
	}

	var hashes []string
	if matches := hashTokenRe.FindAllStringSubmatch(spec, -1); matches != nil {
		for _, m := range matches {
			hashes = append(hashes, m[1])
		}
		spec = strings.TrimSpace(hashTokenRe.ReplaceAllString(spec, ""))
	}

	var req *Requirement
	switch {
	case matchesURLScheme(spec):
		req, err = p.buildURLRequirement(spec, lineNo)
	case isLocalPath(spec):
		req, err = p.buildPathRequirement(spec, dir, lineNo)
	case strings.HasPrefix(spec, "-"):
		err = fmt.Errorf("unknown directive %q", strings.Fields(spec)[0])
	default:
		req, err = p.buildStandardRequirement(spec, lineNo)
	}
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.File, pe.Line, pe.Content = source, lineNo, line
			return nil, pe
		}
		return nil, &ParseError{File: source, Line: lineNo, Content: line, Msg: err.Error(), Err: err}
	}

	req.Editable = editable
	req.Hashes = hashes
	req.Comment = comment
	req.Line = lineNo
	req.Raw = line
	return []*Requirement{req}, nil
}

func (p *Parser) buildStandardRequirement(spec string, lineNo int) (*Requirement, error) {
	dep, err := pep440.ParseDependency(spec)
	if err != nil {
		return nil, &ParseError{Msg: "invalid requirement syntax", Err: err}
	}
	return &Requirement{
		Name:   dep.Name,
		Specs:  dep.Specs,
		Extras: dep.Extras,
		Marker: dep.Marker,
	}, nil
}

func (p *Parser) buildURLRequirement(spec string, lineNo int) (*Requirement, error) {
	name := eggFragment(spec)
	if name == "" {
		name = inferNameFromURL(spec)
		if name == "" {
			return nil, fmt.Errorf("URL requirement needs #egg=<name> or an inferable package name")
		}
		p.logger.Warn("URL without #egg=, inferred name", "line", lineNo, "name", name)
	}
	return &Requirement{
		Name: pep440.NormalizeName(name),
		URL:  spec,
	}, nil
}

func (p *Parser) buildPathRequirement(spec, dir string, lineNo int) (*Requirement, error) {
	path := spec
	name := eggFragment(spec)
	if idx := strings.Index(path, "#egg="); idx >= 0 {
		path = path[:idx]
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	if name == "" {
		name = inferNameFromPath(path)
	}
	return &Requirement{
		Name: pep440.NormalizeName(name),
		URL:  "file://" + filepath.ToSlash(path),
	}, nil
}

// applyConstraints intersects constraint-map specifiers into every
// matching requirement. Constraints narrow, never widen.
func (p *Parser) applyConstraints(reqs []*Requirement) {
	for _, req := range reqs {
		if specs, ok := p.constraints[req.Name]; ok && len(specs) > 0 {
			req.Specs = req.Specs.Intersect(specs)
		}
	}
}

// includeErr keeps circular-include errors unwrapped so callers can
// detect them with errors.As; everything else gains line context.
func includeErr(err error, source string, lineNo int, line string) error {
	if _, ok := err.(*CircularIncludeError); ok {
		return err
	}
	if _, ok := err.(*ParseError); ok {
		return err
	}
	return &ParseError{File: source, Line: lineNo, Content: line, Msg: "include failed", Err: err}
}

// directiveArg matches "-r path" / "--requirement path" style lines and
// returns the argument.
func directiveArg(line string, short, long string) (string, bool) {
	for _, prefix := range []string{long, short} {
		if line == prefix {
			return "", true
		}
		if strings.HasPrefix(line, prefix+" ") || strings.HasPrefix(line, prefix+"\t") {
			return strings.TrimSpace(line[len(prefix):]), true
		}
		if strings.HasPrefix(line, prefix+"=") {
			return strings.TrimSpace(line[len(prefix)+1:]), true
		}
	}
	return "", false
}

func stripQuotes(s string) (string, error) {
	if len(s) == 0 || (s[0] != '"' && s[0] != '\'') {
		return s, nil
	}
	if len(s) < 2 || s[len(s)-1] != s[0] {
		return "", fmt.Errorf("unterminated quote")
	}
	return s[1 : len(s)-1], nil
}

func matchesURLScheme(s string) bool {
	for _, scheme := range urlSchemes {
		if strings.HasPrefix(s, scheme) {
			return true
		}
	}
	return false
}

func isLocalPath(s string) bool {
	switch {
	case s == "." || strings.HasPrefix(s, ".#"):
		return true
	case strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../"):
		return true
	case strings.HasPrefix(s, ".\\") || strings.HasPrefix(s, "..\\"):
		return true
	case strings.HasPrefix(s, "/"):
		return true
	case len(s) >= 3 && s[1] == ':' && s[2] == '\\':
		return true
	}
	return false
}

// eggFragment extracts the name from a #egg= URL fragment.
func eggFragment(s string) string {
	idx := strings.Index(s, "#egg=")
	if idx < 0 {
		return ""
	}
	egg := s[idx+len("#egg="):]
	if amp := strings.IndexByte(egg, '&'); amp >= 0 {
		egg = egg[:amp]
	}
	if fields := strings.Fields(egg); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

func inferNameFromURL(rawURL string) string {
	path := rawURL
	if idx := strings.Index(path, "://"); idx >= 0 {
		path = path[idx+3:]
	}
	path = strings.TrimRight(path, "/")
	path = strings.TrimSuffix(path, ".git")

	segments := strings.Split(strings.ReplaceAll(path, "\\", "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if seg := segments[i]; seg != "" && seg != "#" && seg != "?" {
			return seg
		}
	}
	return ""
}

func inferNameFromPath(path string) string {
	name := filepath.Base(path)
	for _, ext := range []string{".tar.gz", ".tar.bz2", ".zip", ".whl"} {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

// splitInlineComment separates a trailing "# comment" from the requirement. A
// "#" that begins a URL fragment (#egg=, #subdirectory=, digests) or
// sits inside a URL is not a comment delimiter.
func splitInlineComment(line string) (spec, comment string) {
	for i := 0; i < len(line); i++ {
		if line[i] != '#' {
			continue
		}

		before, after := line[:i], line[i+1:]
		if strings.HasPrefix(after, "egg=") ||
			strings.HasPrefix(after, "subdirectory=") ||
			strings.HasPrefix(after, "sha1=") ||
			strings.HasPrefix(after, "sha256=") {
			continue
		}

		// Inside a URL when a "://" precedes with no space after it.
		if idx := strings.LastIndex(before, "://"); idx >= 0 && !strings.Contains(before[idx:], " ") {
			continue
		}

		return strings.TrimSpace(before), strings.TrimSpace(after)
	}
	return line, ""
}
