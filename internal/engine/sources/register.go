package sources

import (
	"context"
	"time"

	v1 "github.com/infracollect/archivist/apis/v1"
	"github.com/infracollect/archivist/internal/engine"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Register adds every entry kind to registry. File and glob entries read
// from fs. allowedEnv lists the environment variables exec entries inherit
// besides the safe defaults.
func Register(registry *engine.Registry, fs afero.Fs, allowedEnv []string) {
	registry.RegisterResolver(InlineKind, engine.NewResolverFactory(InlineKind,
		func(_ context.Context, _ *zap.Logger, id string, meta engine.EntryMetadata, spec *v1.InlineEntry) (engine.Resolver, error) {
			return NewInlineResolver(id, meta, spec.Content), nil
		}))

	registry.RegisterResolver(FileKind, engine.NewResolverFactory(FileKind,
		func(_ context.Context, _ *zap.Logger, id string, meta engine.EntryMetadata, spec *v1.FileEntry) (engine.Resolver, error) {
			return NewFileResolver(id, fs, meta, spec.Path)
		}))

	registry.RegisterResolver(GlobKind, engine.NewResolverFactory(GlobKind,
		func(_ context.Context, logger *zap.Logger, id string, meta engine.EntryMetadata, spec *v1.GlobEntry) (engine.Resolver, error) {
			return NewGlobResolver(id, logger, fs, meta, GlobConfig{Pattern: spec.Pattern, Root: spec.Root})
		}))

	registry.RegisterResolver(HTTPKind, engine.NewResolverFactory(HTTPKind,
		func(_ context.Context, logger *zap.Logger, id string, meta engine.EntryMetadata, spec *v1.HTTPEntry) (engine.Resolver, error) {
			return NewHTTPResolver(id, logger, meta, HTTPConfig{
				URL:      spec.URL,
				Headers:  spec.Headers,
				Timeout:  time.Duration(lo.FromPtr(spec.Timeout)) * time.Second,
				Insecure: spec.Insecure,
			})
		}))

	registry.RegisterResolver(ExecKind, engine.NewResolverFactory(ExecKind,
		func(_ context.Context, logger *zap.Logger, id string, meta engine.EntryMetadata, spec *v1.ExecEntry) (engine.Resolver, error) {
			return NewExecResolver(id, logger, meta, ExecConfig{
				Program:    spec.Program,
				WorkingDir: spec.WorkingDir,
				Timeout:    spec.Timeout,
				Env:        spec.Env,
				AllowedEnv: allowedEnv,
			})
		}))
}
