package mypy

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/peterebden/go-deferred-regex"

	"github.com/mypyrun/mypyrun/src/cli"
	"github.com/mypyrun/mypyrun/src/core"
)

// issueRegex matches anything shaped like a diagnostic: path, optional line & column, a
// one-word severity and the message, e.g.
//
//	pkg/mod.py:12:5: error: Incompatible return value type (got "int", expected "str")
//
// Whether the severity is one we know is decided afterwards.
var issueRegex = deferredregex.DeferredRegex{Re: `^([^\s:]+):(?:(\d+):)?(?:(\d+):)? ([A-Za-z]+):(.*)$`}

// severityTokens are the severities as mypy prints them, for suggestions.
var severityTokens = []string{"error", "warning", "note"}

// maxLineLength is the longest line of output we accept. Long reveal_type() output can get big.
const maxLineLength = 1024 * 1024

// A Parser reads issues from mypy's output one at a time.
// It consumes its input once and cannot be restarted.
type Parser struct {
	scanner    *bufio.Scanner
	issue      core.Issue
	err        error
	lineNumber int
}

// NewParser returns a new Parser reading from the given reader.
func NewParser(r io.Reader) *Parser {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineLength)
	return &Parser{scanner: scanner}
}

// Next advances to the next issue, which is then available through Issue.
// It returns false at the end of the input or on error; Err distinguishes the two.
// Lines that aren't diagnostics are skipped.
func (p *Parser) Next() bool {
	if p.err != nil {
		return false
	}
	for p.scanner.Scan() {
		p.lineNumber++
		issue, ok, err := parseLine(p.scanner.Text(), p.lineNumber)
		if err != nil {
			p.err = err
			return false
		} else if ok {
			p.issue = issue
			return true
		}
	}
	p.err = p.scanner.Err()
	return false
}

// Issue returns the most recent issue found by Next.
func (p *Parser) Issue() core.Issue {
	return p.issue
}

// Err returns the first error encountered, if any.
func (p *Parser) Err() error {
	return p.err
}

// Parse reads all issues from the given reader.
// On error it returns the issues found up to that point as well as the error.
func Parse(r io.Reader) ([]core.Issue, error) {
	issues := []core.Issue{}
	p := NewParser(r)
	for p.Next() {
		issues = append(issues, p.Issue())
	}
	return issues, p.Err()
}

// parseLine parses a single line of output. It returns false if the line is not a diagnostic.
func parseLine(line string, lineNumber int) (core.Issue, bool, error) {
	matches := issueRegex.FindStringSubmatch(line)
	if matches == nil {
		return core.Issue{}, false, nil
	}
	severity, err := core.ParseSeverity(matches[4])
	if err != nil {
		if matches[2] == "" {
			// Without a line number this is more likely prose that happens to contain colons
			// (e.g. "RuntimeError: invalid: ...") than a diagnostic we don't understand.
			return core.Issue{}, false, nil
		}
		token := strings.ToLower(matches[4])
		return core.Issue{}, false, &core.ParseError{
			Line:       line,
			LineNumber: lineNumber,
			Token:      matches[4],
			Suggestion: cli.PrettyPrintSuggestion(token, severityTokens, 4),
		}
	}
	return core.Issue{
		Path:     matches[1],
		Line:     atoi(matches[2], 1),
		Column:   column(matches[3]),
		Severity: severity,
		Message:  strings.TrimSpace(matches[5]),
	}, true, nil
}

// column converts mypy's 1-indexed column to a 0-indexed one.
// When mypy doesn't give a column the result is 1, not 0.
func column(s string) int {
	if s == "" {
		return 1
	}
	return atoi(s, 1) - 1
}

func atoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def // Only possible on overflow, the regex only admits digits.
	}
	return i
}
