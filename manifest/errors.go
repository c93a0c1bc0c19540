package manifest

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCircularInclude is the sentinel wrapped by CircularIncludeError.
var ErrCircularInclude = errors.New("circular include")

// ParseError reports a malformed manifest line. Parsing a file stops at
// the first ParseError since downstream data would be meaningless.
type ParseError struct {
	File    string
	Line    int
	Content string
	Msg     string
	Err     error
}

func (e *ParseError) Error() string {
	where := ""
	if e.File != "" {
		where = e.File + ":"
	}
	if e.Line > 0 {
		where = fmt.Sprintf("%s%d: ", where, e.Line)
	} else if where != "" {
		where += " "
	}
	if e.Content != "" {
		return fmt.Sprintf("%s%s (line %q)", where, e.Msg, e.Content)
	}
	return where + e.Msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// CircularIncludeError reports an include directive cycle. Chain lists
// the files on the include stack, ending with the repeated one.
type CircularIncludeError struct {
	Chain []string
}

func (e *CircularIncludeError) Error() string {
	return fmt.Sprintf("circular include detected: %s", strings.Join(e.Chain, " -> "))
}

func (e *CircularIncludeError) Unwrap() error { return ErrCircularInclude }
