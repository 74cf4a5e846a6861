package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	v1 "github.com/infracollect/archivist/apis/v1"
	"github.com/infracollect/archivist/internal/archiver"
	"github.com/infracollect/archivist/internal/engine"
	"github.com/infracollect/archivist/internal/engine/sinks"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	defaultValidator = validator.New(validator.WithRequiredStructEnabled())
)

// ParseBundleJob parses a YAML or JSON job file and validates it. It returns
// a validated BundleJob or an error if parsing or validation fails.
func ParseBundleJob(data []byte) (v1.BundleJob, error) {
	var job v1.BundleJob
	if err := yaml.Unmarshal(data, &job); err != nil {
		return v1.BundleJob{}, fmt.Errorf("failed to unmarshal job data: %w", err)
	}

	if err := defaultValidator.Struct(job); err != nil {
		return v1.BundleJob{}, fmt.Errorf("failed to validate job: %w", err)
	}

	return job, nil
}

// Options configures a Runner. Zero values fall back to the process
// environment.
type Options struct {
	// AllowedEnv lists the environment variables exec entries inherit.
	AllowedEnv []string
	// Fs is read by file and glob entries (default: OS filesystem).
	Fs afero.Fs
	// Stdout receives the archive for the stdout sink (default: os.Stdout).
	Stdout io.Writer
	// StallWarning logs entries that take longer than this (default: off).
	StallWarning time.Duration
	// Sink replaces the sink built from the job output spec.
	Sink engine.Sink
}

// Result summarizes a finished build.
type Result struct {
	Archive string
	Sink    string
	Entries int
	Failed  int
	Bytes   int64
}

type Runner struct {
	logger   *zap.Logger
	job      v1.BundleJob
	pipeline *engine.Pipeline
	archiver *archiver.Archiver
	sink     *sinks.ArchiveSink
	sinkName string
	name     string
}

// Check builds every entry and the archive format of job without resolving
// any entry or creating the sink.
func Check(ctx context.Context, logger *zap.Logger, job v1.BundleJob, opts Options) error {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	registry := BuildRegistry(logger.Named("registry"), opts.Fs, opts.AllowedEnv)
	if _, err := buildPipeline(ctx, logger.Named("pipeline"), registry, job); err != nil {
		return err
	}
	if _, err := buildFormat(ctx, registry, job.Spec.Output); err != nil {
		return err
	}
	return nil
}

func New(ctx context.Context, logger *zap.Logger, job v1.BundleJob, opts Options) (*Runner, error) {
	logger.Info("creating runner", zap.String("job_name", job.Metadata.Name))

	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	registry := BuildRegistry(logger.Named("registry"), opts.Fs, opts.AllowedEnv)

	pipeline, err := buildPipeline(ctx, logger.Named("pipeline"), registry, job)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	format, err := buildFormat(ctx, registry, job.Spec.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to build format: %w", err)
	}

	sink := opts.Sink
	if sink == nil {
		sink, err = buildSink(ctx, logger.Named("sink"), job.Spec.Output, opts.Stdout)
		if err != nil {
			return nil, fmt.Errorf("failed to build sink: %w", err)
		}
	}

	name := archiveName(job, format)
	a := archiver.New(format,
		archiver.WithLogger(logger.Named("archiver")),
		archiver.WithContext(ctx),
		archiver.WithClock(pipeline.Date),
		archiver.WithStallWarning(opts.StallWarning),
	)

	return &Runner{
		logger:   logger,
		job:      job,
		pipeline: pipeline,
		archiver: a,
		sink:     sinks.NewArchiveSink(sink, a, name, logger.Named("sink")),
		sinkName: sink.Name(),
		name:     name,
	}, nil
}

// Run resolves every entry, queues them in job order and writes the archive
// to the sink. Entries that fail are left out of the archive and reported
// together once the archive is complete.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	result := Result{Archive: r.name, Sink: r.sinkName}

	entries, err := r.pipeline.Resolve(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to resolve entries: %w", err)
	}
	result.Entries = len(entries)
	r.logger.Info("resolved entries", zap.Int("entries", len(entries)), zap.String("archive", r.name))

	failures := make([]error, len(entries))
	g, gctx := errgroup.WithContext(ctx)

	for i, entry := range entries {
		done := make(chan error, 1)
		if err := r.sink.Add(gctx, entry.Source, entry.Metadata, func(err error) { done <- err }); err != nil {
			failures[i] = err
			continue
		}

		g.Go(func() error {
			select {
			case err := <-done:
				failures[i] = err
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	g.Go(func() error {
		return r.sink.Close(gctx)
	})

	runErr := g.Wait()
	result.Bytes = r.archiver.Offset()

	var entryErrs []error
	for _, failure := range failures {
		if failure != nil {
			result.Failed++
			entryErrs = append(entryErrs, failure)
		}
	}

	if runErr != nil {
		return result, fmt.Errorf("failed to write archive: %w", errors.Join(append([]error{runErr}, entryErrs...)...))
	}

	r.logger.Info("build finished",
		zap.String("archive", r.name),
		zap.Int("entries", result.Entries),
		zap.Int("failed", result.Failed),
		zap.Int64("bytes", result.Bytes),
	)

	if len(entryErrs) > 0 {
		return result, fmt.Errorf("%d of %d entries failed: %w", result.Failed, result.Entries, errors.Join(entryErrs...))
	}

	return result, nil
}

// Close reports engine.ErrPrematureTermination if the archive was not
// written to its end, for example because Run was never called or was
// interrupted.
func (r *Runner) Close() error {
	return r.archiver.Close()
}

func (r *Runner) ArchiveName() string {
	return r.name
}
