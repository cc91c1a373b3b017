package core

import (
	"fmt"
	"strings"
)

// A Severity is the level mypy attaches to a diagnostic.
type Severity string

// The severities mypy can report.
const (
	Error   Severity = "ERROR"
	Warning Severity = "WARNING"
	Note    Severity = "NOTE"
)

// Severities lists every known severity, in decreasing order of importance.
var Severities = []Severity{Error, Warning, Note}

// ParseSeverity converts a token as printed by mypy (e.g. "error") into a Severity.
// The comparison is case-insensitive.
func ParseSeverity(token string) (Severity, error) {
	s := Severity(strings.ToUpper(strings.TrimSpace(token)))
	for _, known := range Severities {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown severity %q", token)
}

// Lower returns the severity as mypy prints it.
func (s Severity) Lower() string {
	return strings.ToLower(string(s))
}

// An Issue is a single diagnostic extracted from the checker's output.
type Issue struct {
	// The file the issue was reported against, exactly as mypy printed it.
	Path string `json:"path"`
	// The line it occurred on (1-indexed)
	Line int `json:"line"`
	// The column it occurred on (0-indexed)
	Column int `json:"column"`
	// How serious it is.
	Severity Severity `json:"severity"`
	// The message of what's going wrong
	Message string `json:"message"`
}

// String implements the fmt.Stringer interface.
// The column is printed 1-indexed to match mypy's own output.
func (i Issue) String() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", i.Path, i.Line, i.Column+1, i.Severity.Lower(), i.Message)
}
