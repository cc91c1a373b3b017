// Package scan runs mypy over a set of files, each with the mypy that applies to it.
package scan

import (
	"context"
	"errors"
	"time"

	"github.com/coreos/go-semver/semver"
	"github.com/google/shlex"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mypyrun/mypyrun/src/cli"
	"github.com/mypyrun/mypyrun/src/cli/logging"
	"github.com/mypyrun/mypyrun/src/core"
	"github.com/mypyrun/mypyrun/src/fs"
	"github.com/mypyrun/mypyrun/src/metrics"
	"github.com/mypyrun/mypyrun/src/notify"
	"github.com/mypyrun/mypyrun/src/toolchain"
	"github.com/mypyrun/mypyrun/src/venv"
)

var log = logging.Log

var tracer = otel.Tracer("mypyrun/scan")

// A Runner runs mypy.
type Runner interface {
	// Validate returns true if the given mypy can be run.
	Validate(ctx context.Context, executable string) bool
	// Version returns the version of the given mypy.
	Version(ctx context.Context, executable string) (*semver.Version, error)
	// Run checks one bucket of files and returns the issues found.
	Run(ctx context.Context, bucket *core.Bucket, workDir string, extraArgs []string) ([]core.Issue, error)
}

// Options are the less essential settings for a Scanner.
type Options struct {
	// NumThreads is the number of buckets checked at once.
	NumThreads int
	// IsolateSpecialFiles checks __init__.py etc. on their own as well.
	IsolateSpecialFiles bool
	// Version is the mypy version required, if set.
	Version cli.Version
}

// A Scanner runs scans. It holds no state between them, so one can run several concurrently.
type Scanner struct {
	config   core.ToolchainConfig
	runner   Runner
	prober   venv.Prober
	notifier notify.Notifier
	metrics  *metrics.Metrics
	opts     Options
}

// New creates a new Scanner. The metrics may be nil.
func New(config core.ToolchainConfig, runner Runner, prober venv.Prober, notifier notify.Notifier, m *metrics.Metrics, opts Options) *Scanner {
	if opts.NumThreads < 1 {
		opts.NumThreads = 1
	}
	return &Scanner{
		config:   config,
		runner:   runner,
		prober:   prober,
		notifier: notifier,
		metrics:  m,
		opts:     opts,
	}
}

// Scan checks the given files and returns all the issues mypy found in them.
// Issues from each bucket are returned together, in the order the buckets were created.
// If mypy isn't available, the notifier is told and nothing is returned.
// If the context is cancelled, its error is returned.
func (s *Scanner) Scan(ctx context.Context, files []string) (issues []core.Issue, err error) {
	start := time.Now()
	outcome := metrics.Success
	id := scanID()
	ctx, span := tracer.Start(ctx, "Scan", trace.WithAttributes(
		attribute.String("scan.id", id),
		attribute.Int("scan.files", len(files)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if core.IsCancelled(err) {
				outcome = metrics.Cancelled
			} else {
				outcome = metrics.Failure
			}
		}
		span.SetAttributes(attribute.String("scan.outcome", outcome), attribute.Int("scan.issues", len(issues)))
		span.End()
		s.metrics.RecordScan(time.Since(start), len(files), outcome)
	}()

	if len(files) == 0 {
		return nil, core.NewConfigurationError("No files to scan")
	}
	extraArgs, err := shlex.Split(s.config.ExtraArguments)
	if err != nil {
		return nil, core.NewConfigurationError("Invalid mypy arguments %q: %s", s.config.ExtraArguments, err)
	}
	if available, err := s.Available(ctx); err != nil {
		return nil, err
	} else if !available {
		outcome = metrics.Unavailable
		return []core.Issue{}, nil
	}

	resolver := toolchain.NewResolver(s.config, s.prober)
	partitionStart := time.Now()
	buckets, err := Partition(ctx, files, resolver)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordLookups(resolver.Cache().Stats())
	if s.config.AutodetectEnvironments {
		log.Info("Scan %s: mapping %d source files in %d directories to environments took %s", id, len(files), resolver.Cache().Len(), time.Since(partitionStart).Round(time.Millisecond))
	}
	if s.opts.IsolateSpecialFiles {
		buckets = IsolateSpecialFiles(buckets)
	}

	runStart := time.Now()
	issues, err = s.runAll(ctx, buckets, extraArgs)
	if err != nil {
		return nil, err
	}
	log.Info("Scan %s: running mypy took %s to run %d times on %d files and found %d issues", id, time.Since(runStart).Round(time.Millisecond), len(buckets), len(files), len(issues))
	return issues, nil
}

// scanID returns an identifier for a single scan, so its log lines and spans can be told apart
// from those of concurrent scans.
func scanID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		log.Warning("Unable to generate scan id: %s", err)
		return "-"
	}
	return id.String()
}

// Available returns true if the project's mypy can be run.
// If it can't, the notifier is told why.
// An error is returned if the context is cancelled or the mypy is the wrong version.
func (s *Scanner) Available(ctx context.Context) (bool, error) {
	exe := s.config.ProjectExecutable
	if exe != "" && s.runner.Validate(ctx, exe) {
		return true, s.checkVersion(ctx, exe)
	} else if err := ctx.Err(); err != nil {
		return false, err
	}
	if s.config.Interpreter == "" || !fs.FileExists(s.config.Interpreter) {
		s.notifier.NoInterpreter()
	} else {
		s.notifier.InstallChecker(s.config.Interpreter)
	}
	return false, nil
}

func (s *Scanner) checkVersion(ctx context.Context, exe string) error {
	if !s.opts.Version.IsSet {
		return nil
	}
	v, err := s.runner.Version(ctx, exe)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return core.NewConfigurationError("Can't determine version of %s: %s", exe, err)
	} else if !s.opts.Version.Matches(*v) {
		return core.NewConfigurationError("%s is version %s, but %s is required", exe, v, s.opts.Version)
	}
	return nil
}

// runAll runs each bucket, up to NumThreads at once, and merges their issues in bucket order.
// The first failure stops the rest.
func (s *Scanner) runAll(ctx context.Context, buckets []*core.Bucket, extraArgs []string) ([]core.Issue, error) {
	results := make([][]core.Issue, len(buckets))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.NumThreads)
	for i, bucket := range buckets {
		i, bucket := i, bucket
		g.Go(func() error {
			start := time.Now()
			issues, err := s.runner.Run(ctx, bucket, s.config.RepoRoot, extraArgs)
			s.metrics.RecordRun(time.Since(start), issues, err)
			if err != nil {
				var toolErr *core.ToolExecutionError
				if errors.As(err, &toolErr) {
					s.notifier.AbnormalExit(toolErr.Stderr)
				}
				return err
			}
			results[i] = issues
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	n := 0
	for _, r := range results {
		n += len(r)
	}
	issues := make([]core.Issue, 0, n)
	for _, r := range results {
		issues = append(issues, r...)
	}
	return issues, nil
}
