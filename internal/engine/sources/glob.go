package sources

import (
	"context"
	"fmt"
	"path"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/infracollect/archivist/internal/engine"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const GlobKind = "glob"

type GlobConfig struct {
	Pattern string
	// Root is the directory the pattern is matched in. Matches are named
	// relative to it.
	Root *string
}

// NewGlobResolver stores every regular file matching a doublestar pattern.
// Matches are placed under meta.Name, sorted by path. Directories are
// skipped. Dates and modes come from the files unless meta sets them.
func NewGlobResolver(id string, logger *zap.Logger, fs afero.Fs, meta engine.EntryMetadata, cfg GlobConfig) (engine.Resolver, error) {
	if !doublestar.ValidatePattern(cfg.Pattern) {
		return nil, fmt.Errorf("invalid glob pattern %q", cfg.Pattern)
	}

	if cfg.Root != nil && *cfg.Root != "" {
		fs = afero.NewBasePathFs(fs, *cfg.Root)
	}

	return engine.ResolverFunction(id, GlobKind, func(ctx context.Context) ([]engine.Entry, error) {
		matches, err := doublestar.Glob(afero.NewIOFS(fs), cfg.Pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("failed to match %q: %w", cfg.Pattern, err)
		}
		slices.Sort(matches)

		logger.Debug("glob matched files",
			zap.String("entry", id),
			zap.String("pattern", cfg.Pattern),
			zap.Int("matches", len(matches)),
		)

		entries := make([]engine.Entry, 0, len(matches))
		for _, match := range matches {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			info, err := fs.Stat(match)
			if err != nil {
				return nil, fmt.Errorf("failed to stat %s: %w", match, err)
			}

			entryMeta := meta
			entryMeta.Name = path.Join(meta.Name, match)
			if entryMeta.Date.IsZero() {
				entryMeta.Date = info.ModTime()
			}
			if entryMeta.Mode == 0 {
				entryMeta.Mode = info.Mode().Perm()
			}

			entries = append(entries, engine.Entry{Metadata: entryMeta, Source: openFile(fs, match)})
		}

		return entries, nil
	}), nil
}
