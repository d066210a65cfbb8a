package kayero

import (
	"bytes"
	"fmt"
	"strings"
)

// contextLines is how many source lines are shown either side of a
// parse error.
const contextLines = 2

// ParseError reports a notebook that could not be parsed, pointing at the
// offending line with a short excerpt of the surrounding source.
type ParseError struct {
	File    string
	Line    int // 1-indexed, counted from the top of the file including frontmatter
	Message string
	Hint    string

	source []byte
}

func newParseError(file string, source []byte, line int, message, hint string) *ParseError {
	return &ParseError{File: file, Line: line, Message: message, Hint: hint, source: source}
}

func (e *ParseError) Error() string {
	return e.Format()
}

// Format renders the error for a terminal:
//
//	Error in notebook.md
//
//	Line 7: unknown block option "later"
//
//	   5 | # Test
//	   6 |
//	   7 | ```graph; later
//
//	Tip: Valid options are: runnable, auto, hidden
func (e *ParseError) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error in %s\n\nLine %d: %s\n", e.File, e.Line, e.Message)
	e.writeExcerpt(&b)
	if e.Hint != "" {
		fmt.Fprintf(&b, "\nTip: %s\n", e.Hint)
	}
	return b.String()
}

func (e *ParseError) writeExcerpt(b *strings.Builder) {
	lines := bytes.Split(bytes.TrimSuffix(e.source, []byte("\n")), []byte("\n"))
	if len(e.source) == 0 || e.Line < 1 || e.Line > len(lines) {
		return
	}

	b.WriteByte('\n')
	first := max(1, e.Line-contextLines)
	last := min(len(lines), e.Line+contextLines)
	for n := first; n <= last; n++ {
		fmt.Fprintf(b, "  %2d | %s\n", n, lines[n-1])
	}
}
