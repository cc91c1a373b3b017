package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/mypyrun/mypyrun/src/core"
)

var issues = []core.Issue{
	{Path: "a.py", Line: 1, Severity: core.Error, Message: "one"},
	{Path: "a.py", Line: 2, Severity: core.Error, Message: "two"},
	{Path: "b.py", Line: 3, Severity: core.Note, Message: "three"},
}

func TestNoMetrics(t *testing.T) {
	m := New("", time.Second)
	assert.Nil(t, m)
	// None of these should panic.
	m.RecordRun(time.Second, issues, nil)
	m.RecordLookups(1, 2)
	m.RecordScan(time.Second, 3, Success)
	m.Push()
}

func TestRecord(t *testing.T) {
	m := newMetrics("http://localhost:9999", time.Second)
	m.RecordRun(time.Second, issues, nil)
	m.RecordRun(time.Second, nil, errors.New("bang"))
	m.RecordLookups(5, 2)
	m.RecordScan(2*time.Second, 7, Success)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runCounter.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runCounter.WithLabelValues("false")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.issueCounter.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.issueCounter.WithLabelValues("note")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.probeCounter.WithLabelValues("true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.probeCounter.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scanCounter.WithLabelValues(Success)))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.fileCounter.WithLabelValues()))
}

func TestPush(t *testing.T) {
	var body string
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := newMetrics(server.URL, 5*time.Second)
	m.RecordScan(time.Second, 3, Cancelled)
	m.Push()
	assert.True(t, strings.HasPrefix(path, "/metrics/job/mypyrun/instance/"), path)
	assert.NotEmpty(t, body)
}

func TestPushFailureIsNotFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()
	m := newMetrics(server.URL, 5*time.Second)
	m.RecordScan(time.Second, 3, Failure)
	m.Push()
}
