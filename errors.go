package patternview

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoContent is returned when a viewer is requested for a stub pattern.
var ErrNoContent = errors.New("pattern content is missing")

// ParseError represents a catalog entry that could not be read, with enough
// context to point the author at the offending line.
type ParseError struct {
	File    string // Source file path
	Line    int    // Line number (1-indexed)
	Column  int    // Column number (1-indexed, optional)
	Message string // Error message
	Hint    string // Helpful suggestion
	Related string // Related information (e.g., "first defined in part 2")
	Err     error  // Underlying error, if any
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return e.Format()
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Format returns a nicely formatted error message with context.
func (e *ParseError) Format() string {
	var b strings.Builder

	if e.File != "" {
		b.WriteString(fmt.Sprintf("❌ Error in %s\n\n", e.File))
	}

	if e.Line > 0 {
		b.WriteString(fmt.Sprintf("Line %d: %s\n", e.Line, e.Message))
	} else {
		b.WriteString(e.Message + "\n")
	}

	if context := e.getCodeContext(); context != "" {
		b.WriteString(context)
	}

	if e.Hint != "" {
		b.WriteString(fmt.Sprintf("\n💡 Tip: %s\n", e.Hint))
	}

	if e.Related != "" {
		b.WriteString(fmt.Sprintf("\n🔗 %s\n", e.Related))
	}

	return b.String()
}

// getCodeContext reads the source file and extracts context around the error line.
func (e *ParseError) getCodeContext() string {
	if e.File == "" || e.Line < 1 {
		return ""
	}

	file, err := os.Open(e.File)
	if err != nil {
		return ""
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	if e.Line > len(lines) {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")

	// Show 2 lines before, the error line, and 2 lines after
	start := max(1, e.Line-2)
	end := min(len(lines), e.Line+2)

	for i := start; i <= end; i++ {
		prefix := fmt.Sprintf("  %2d | ", i)
		b.WriteString(prefix + lines[i-1] + "\n")

		if i == e.Line && e.Column > 0 {
			spaces := strings.Repeat(" ", len(prefix)+e.Column-1)
			b.WriteString(spaces + "^\n")
		}
	}

	return b.String()
}

// NewParseError creates a new ParseError.
func NewParseError(file string, line int, message string) *ParseError {
	return &ParseError{
		File:    file,
		Line:    line,
		Message: message,
	}
}

// WithColumn adds column information to the error.
func (e *ParseError) WithColumn(col int) *ParseError {
	e.Column = col
	return e
}

// WithHint adds a helpful hint to the error.
func (e *ParseError) WithHint(hint string) *ParseError {
	e.Hint = hint
	return e
}

// WithRelated adds related information to the error.
func (e *ParseError) WithRelated(related string) *ParseError {
	e.Related = related
	return e
}

// WithErr records the underlying error.
func (e *ParseError) WithErr(err error) *ParseError {
	e.Err = err
	return e
}

var yamlLine = regexp.MustCompile(`line (\d+)`)

// yamlErrorLine extracts the first line number from a yaml.v3 error,
// shifted by offset lines. It returns 0 when none is present.
func yamlErrorLine(err error, offset int) int {
	m := yamlLine.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	n, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return 0
	}
	return n + offset
}
