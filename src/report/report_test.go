package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mypyrun/mypyrun/src/core"
)

var issues = []core.Issue{
	{Path: "a.py", Line: 10, Column: 4, Severity: core.Error, Message: "Incompatible types"},
	{Path: "a.py", Line: 11, Column: 0, Severity: core.Error, Message: "Missing return"},
	{Path: "b.py", Line: 2, Column: 1, Severity: core.Note, Message: "100% sure, see: here"},
}

func TestText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, "text", issues, 3, false))
	assert.Equal(t, `a.py:10:5: error: Incompatible types
a.py:11:1: error: Missing return
b.py:2:2: note: 100% sure, see: here
Found 2 errors in 1 file (checked 3 source files)
`, buf.String())
}

func TestTextColour(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, "text", issues[:1], 1, true))
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "Success: no issues found in 1 source file", Summary(nil, 1))
	assert.Equal(t, "Success: no issues found in 2 source files", Summary(issues[2:], 2))
	assert.Equal(t, "Found 1 error in 1 file (checked 1 source file)", Summary(issues[:1], 1))
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, "json", issues, 3, false))
	var decoded []core.Issue
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, issues, decoded)
	assert.Contains(t, buf.String(), `"severity": "ERROR"`)
}

func TestGitHub(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, "github", issues[1:], 3, false))
	assert.Equal(t, `::error file=a.py,line=11,col=1::Missing return
::notice file=b.py,line=2,col=2::100%25 sure, see: here
`, buf.String())
}

func TestGitHubEscapesPath(t *testing.T) {
	assert.Equal(t, "C%3A/x%2Cy.py", escapeProperty("C:/x,y.py"))
	assert.Equal(t, "line1%0Aline2", escapeData("line1\nline2"))
}

func TestUnknownFormat(t *testing.T) {
	assert.Error(t, Print(&bytes.Buffer{}, "xml", issues, 3, false))
}
