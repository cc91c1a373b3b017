// Package metrics contains support for reporting metrics to an external server,
// currently a Prometheus pushgateway. Because mypyrun runs as a transient process
// we can't wait around for Prometheus to call us, we've got to push to them.
package metrics

import (
	"context"
	"os"
	"os/user"
	"runtime"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/mypyrun/mypyrun/src/cli"
	"github.com/mypyrun/mypyrun/src/cli/logging"
	"github.com/mypyrun/mypyrun/src/core"
)

var log = logging.Log

// jobName is the job we push under.
const jobName = "mypyrun"

// Outcomes of a scan, as recorded in the scans counter.
const (
	Success     = "success"
	Failure     = "failure"
	Cancelled   = "cancelled"
	Unavailable = "unavailable"
)

// Metrics records what happens during a scan and pushes it once the scan is done.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	url      string
	timeout  time.Duration
	registry *prometheus.Registry
	client   *retryablehttp.Client

	scanCounter, runCounter, issueCounter *prometheus.CounterVec
	fileCounter, probeCounter             *prometheus.CounterVec
	scanHistogram, runHistogram           prometheus.Histogram
}

// New creates a new Metrics that pushes to the given pushgateway.
// It returns nil if the url is empty.
func New(url string, timeout time.Duration) *Metrics {
	if url == "" {
		return nil
	}
	return newMetrics(url, timeout)
}

func newMetrics(url string, timeout time.Duration) *Metrics {
	u, err := user.Current()
	if err != nil {
		log.Warning("Can't determine current user name for metrics")
		u = &user.User{Username: "unknown"}
	}
	constLabels := prometheus.Labels{
		"user": u.Username,
		"arch": runtime.GOOS + "_" + runtime.GOARCH,
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.Logger = &cli.HTTPLogWrapper{Log: log}

	m := &Metrics{
		url:      url,
		timeout:  timeout,
		registry: prometheus.NewRegistry(),
		client:   client,
	}

	// Count of scans by how they ended.
	m.scanCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "mypyrun_scans",
		Help:        "Count of scans by outcome",
		ConstLabels: constLabels,
	}, []string{"outcome"})

	// Count of mypy invocations, one per bucket.
	m.runCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "mypyrun_mypy_runs",
		Help:        "Count of mypy invocations",
		ConstLabels: constLabels,
	}, []string{"success"})

	// Count of issues by severity.
	m.issueCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "mypyrun_issues",
		Help:        "Count of issues reported by mypy",
		ConstLabels: constLabels,
	}, []string{"severity"})

	// Count of files checked.
	m.fileCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "mypyrun_files",
		Help:        "Count of source files checked",
		ConstLabels: constLabels,
	}, []string{})

	// Count of directory lookups, by whether the cache answered them.
	m.probeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "mypyrun_environment_lookups",
		Help:        "Count of environment lookups per directory",
		ConstLabels: constLabels,
	}, []string{"cached"})

	m.scanHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "mypyrun_scan_durations_histogram",
		Help:        "Durations of whole scans",
		Buckets:     prometheus.ExponentialBuckets(0.1, 2, 14),
		ConstLabels: constLabels,
	})

	m.runHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "mypyrun_mypy_durations_histogram",
		Help:        "Durations of individual mypy invocations",
		Buckets:     prometheus.ExponentialBuckets(0.1, 2, 14),
		ConstLabels: constLabels,
	})

	m.registry.MustRegister(m.scanCounter, m.runCounter, m.issueCounter, m.fileCounter, m.probeCounter, m.scanHistogram, m.runHistogram)
	return m
}

// RecordRun records a single mypy invocation.
func (m *Metrics) RecordRun(duration time.Duration, issues []core.Issue, err error) {
	if m == nil {
		return
	}
	m.runCounter.WithLabelValues(b(err == nil)).Inc()
	m.runHistogram.Observe(duration.Seconds())
	for _, issue := range issues {
		m.issueCounter.WithLabelValues(issue.Severity.Lower()).Inc()
	}
}

// RecordLookups records how many directory lookups were answered from the cache.
func (m *Metrics) RecordLookups(hits, misses int) {
	if m == nil {
		return
	}
	m.probeCounter.WithLabelValues("true").Add(float64(hits))
	m.probeCounter.WithLabelValues("false").Add(float64(misses))
}

// RecordScan records the end of a whole scan.
func (m *Metrics) RecordScan(duration time.Duration, files int, outcome string) {
	if m == nil {
		return
	}
	m.scanCounter.WithLabelValues(outcome).Inc()
	m.fileCounter.WithLabelValues().Add(float64(files))
	m.scanHistogram.Observe(duration.Seconds())
}

// Push sends everything recorded so far to the pushgateway.
// Failures are logged; metrics are never important enough to fail a scan for.
func (m *Metrics) Push() {
	if m == nil {
		return
	}
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if err := m.pusher().AddContext(ctx); err != nil {
		log.Warning("Could not push metrics to %s: %s", m.url, err)
		return
	}
	log.Debug("Pushed metrics in %0.3fs", time.Since(start).Seconds())
}

func (m *Metrics) pusher() *push.Pusher {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return push.New(m.url, jobName).Gatherer(m.registry).Grouping("instance", hostname).Client(m.client.StandardClient())
}

func b(value bool) string {
	if value {
		return "true"
	}
	return "false"
}
