package runner

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	v1 "github.com/infracollect/archivist/apis/v1"
	"github.com/infracollect/archivist/internal/engine"
	"github.com/infracollect/archivist/internal/engine/archivers"
	"github.com/infracollect/archivist/internal/engine/sinks"
	"github.com/infracollect/archivist/internal/engine/sources"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// BuildRegistry creates a registry with every entry kind and archive format.
func BuildRegistry(logger *zap.Logger, fs afero.Fs, allowedEnv []string) *engine.Registry {
	registry := engine.NewRegistry(logger)

	sources.Register(registry, fs, allowedEnv)
	archivers.Register(registry)

	return registry
}

func buildPipeline(ctx context.Context, logger *zap.Logger, registry *engine.Registry, job v1.BundleJob) (*engine.Pipeline, error) {
	pipeline := engine.NewPipeline(job.Metadata.Name)

	for _, entrySpec := range job.Spec.Entries {
		resolved, err := ResolveEntrySpec(entrySpec)
		if err != nil {
			return nil, err
		}

		meta, err := entryMetadata(entrySpec)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", entrySpec.ID, err)
		}

		resolver, err := registry.CreateResolver(ctx, resolved.Kind, entrySpec.ID, meta, resolved.Spec)
		if err != nil {
			return nil, fmt.Errorf("failed to create entry %q: %w", entrySpec.ID, err)
		}

		if err := pipeline.AddResolver(entrySpec.ID, resolver); err != nil {
			return nil, fmt.Errorf("failed to add entry: %w", err)
		}

		logger.Debug("created entry", zap.String("entry_id", entrySpec.ID), zap.String("kind", resolved.Kind))
	}

	return pipeline, nil
}

// entryMetadata converts the shared entry fields. Unset fields stay zero so
// the resolvers and the archiver can fill in their defaults.
func entryMetadata(e v1.Entry) (engine.EntryMetadata, error) {
	meta := engine.EntryMetadata{
		Name:    e.Name,
		Comment: lo.FromPtr(e.Comment),
	}

	if e.Date != nil {
		date, err := time.Parse(time.RFC3339, *e.Date)
		if err != nil {
			return engine.EntryMetadata{}, fmt.Errorf("invalid date %q: %w", *e.Date, err)
		}
		meta.Date = date
	}

	if e.Mode != nil {
		mode, err := strconv.ParseUint(*e.Mode, 8, 32)
		if err != nil {
			return engine.EntryMetadata{}, fmt.Errorf("invalid mode %q: %w", *e.Mode, err)
		}
		meta.Mode = fs.FileMode(mode).Perm()
	}

	return meta, nil
}

func buildFormat(ctx context.Context, registry *engine.Registry, output *v1.OutputSpec) (engine.Format, error) {
	var formatSpec *v1.FormatSpec
	if output != nil {
		formatSpec = output.Format
	}

	resolved, err := ResolveFormatSpec(formatSpec)
	if err != nil {
		return nil, err
	}

	return registry.CreateFormat(ctx, resolved.Kind, resolved.Spec)
}

// archiveName returns the configured archive name or the job name with the
// format extension.
func archiveName(job v1.BundleJob, format engine.Format) string {
	if job.Spec.Output != nil && job.Spec.Output.Name != nil && *job.Spec.Output.Name != "" {
		return *job.Spec.Output.Name
	}
	return job.Metadata.Name + format.Extension()
}

// buildSink creates the sink the finished archive is written to.
//
// Default behavior:
//   - No output spec: stdout sink
//   - No sink specified: stdout sink
//   - Explicit stdout sink: stdout sink
//   - Explicit filesystem sink: filesystem sink
//   - Explicit s3 sink: s3 sink
func buildSink(ctx context.Context, logger *zap.Logger, output *v1.OutputSpec, stdout io.Writer) (engine.Sink, error) {
	if output != nil && output.Sink != nil {
		s := output.Sink
		if lo.Count([]bool{s.Stdout != nil, s.Filesystem != nil, s.S3 != nil}, true) > 1 {
			return nil, fmt.Errorf("output sink has more than one destination specified")
		}
	}

	if output == nil || output.Sink == nil || output.Sink.Stdout != nil {
		return sinks.NewStreamSink("stdout", stdout), nil
	}

	if output.Sink.Filesystem != nil {
		return buildFilesystemSink(output.Sink.Filesystem)
	}

	if output.Sink.S3 != nil {
		return buildS3Sink(ctx, logger, output.Sink.S3)
	}

	return nil, fmt.Errorf("invalid sink configuration: no sink type specified")
}

func buildFilesystemSink(spec *v1.FilesystemSinkSpec) (engine.Sink, error) {
	path := lo.FromPtr(spec.Path)
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		path = wd
	}

	return sinks.NewFilesystemSinkFromPath(path, lo.FromPtr(spec.Prefix))
}

func buildS3Sink(ctx context.Context, logger *zap.Logger, spec *v1.S3SinkSpec) (engine.Sink, error) {
	cfg := sinks.S3Config{
		Bucket:         spec.Bucket,
		Region:         lo.FromPtr(spec.Region),
		Endpoint:       lo.FromPtr(spec.Endpoint),
		Prefix:         lo.FromPtr(spec.Prefix),
		ForcePathStyle: spec.ForcePathStyle,
	}

	if spec.Credentials != nil {
		cfg.AccessKeyID = spec.Credentials.AccessKeyID
		cfg.SecretAccessKey = spec.Credentials.SecretAccessKey
	}

	return sinks.NewS3Sink(ctx, logger, cfg)
}
