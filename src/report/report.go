// Package report prints issues for people and machines to read.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize/english"
	"github.com/fatih/color"

	"github.com/mypyrun/mypyrun/src/core"
)

// Print writes the given issues to w in the given format.
// filesChecked is the number of files that were scanned, for the summary.
func Print(w io.Writer, format string, issues []core.Issue, filesChecked int, colour bool) error {
	switch format {
	case "json":
		return printJSON(w, issues)
	case "github":
		return printGitHub(w, issues)
	case "text", "":
		return printText(w, issues, filesChecked, colour)
	}
	return fmt.Errorf("Unknown output format %s", format)
}

// ErrorCount returns the number of issues with error severity, and the number of files they're in.
func ErrorCount(issues []core.Issue) (errors, files int) {
	seen := map[string]bool{}
	for _, issue := range issues {
		if issue.Severity == core.Error {
			errors++
			if !seen[issue.Path] {
				seen[issue.Path] = true
				files++
			}
		}
	}
	return errors, files
}

// Summary returns a one-line summary of the scan, in the same form mypy uses.
func Summary(issues []core.Issue, filesChecked int) string {
	errors, files := ErrorCount(issues)
	checked := english.Plural(filesChecked, "source file", "source files")
	if errors == 0 {
		return "Success: no issues found in " + checked
	}
	return fmt.Sprintf("Found %s in %s (checked %s)", english.Plural(errors, "error", "errors"), english.Plural(files, "file", "files"), checked)
}

type palette struct {
	path, summary, success *color.Color
	severities             map[core.Severity]*color.Color
}

func newPalette(colour bool) *palette {
	p := &palette{
		path:    color.New(color.Bold),
		summary: color.New(color.FgRed, color.Bold),
		success: color.New(color.FgGreen, color.Bold),
		severities: map[core.Severity]*color.Color{
			core.Error:   color.New(color.FgRed),
			core.Warning: color.New(color.FgYellow),
			core.Note:    color.New(color.FgBlue),
		},
	}
	for _, c := range append([]*color.Color{p.path, p.summary, p.success}, p.severities[core.Error], p.severities[core.Warning], p.severities[core.Note]) {
		if colour {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func printText(w io.Writer, issues []core.Issue, filesChecked int, colour bool) error {
	p := newPalette(colour)
	for _, issue := range issues {
		if _, err := fmt.Fprintf(w, "%s:%d:%d: %s: %s\n", p.path.Sprint(issue.Path), issue.Line, issue.Column+1, p.severities[issue.Severity].Sprint(issue.Severity.Lower()), issue.Message); err != nil {
			return err
		}
	}
	summary := Summary(issues, filesChecked)
	if errors, _ := ErrorCount(issues); errors > 0 {
		summary = p.summary.Sprint(summary)
	} else {
		summary = p.success.Sprint(summary)
	}
	_, err := fmt.Fprintln(w, summary)
	return err
}

func printJSON(w io.Writer, issues []core.Issue) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(issues)
}

// githubLevels maps our severities onto workflow command names.
var githubLevels = map[core.Severity]string{
	core.Error:   "error",
	core.Warning: "warning",
	core.Note:    "notice",
}

// printGitHub writes issues as GitHub Actions workflow commands, which are shown as annotations.
func printGitHub(w io.Writer, issues []core.Issue) error {
	for _, issue := range issues {
		if _, err := fmt.Fprintf(w, "::%s file=%s,line=%d,col=%d::%s\n", githubLevels[issue.Severity], escapeProperty(issue.Path), issue.Line, issue.Column+1, escapeData(issue.Message)); err != nil {
			return err
		}
	}
	return nil
}

var dataEscaper = strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A")
var propertyEscaper = strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A", ":", "%3A", ",", "%2C")

func escapeData(s string) string {
	return dataEscaper.Replace(s)
}

func escapeProperty(s string) string {
	return propertyEscaper.Replace(s)
}
