package sources

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"

	"github.com/infracollect/archivist/internal/engine"
	"github.com/spf13/afero"
)

const FileKind = "file"

// NewFileResolver stores one file from fs. The file is only opened when the
// archive gets to it. Name, date and mode default to the file's base name,
// modification time and permissions.
func NewFileResolver(id string, fs afero.Fs, meta engine.EntryMetadata, filePath string) (engine.Resolver, error) {
	if filePath == "" {
		return nil, fmt.Errorf("path is required")
	}

	return engine.ResolverFunction(id, FileKind, func(ctx context.Context) ([]engine.Entry, error) {
		info, err := fs.Stat(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", filePath, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory, use a glob entry instead", filePath)
		}

		entryMeta := meta
		if entryMeta.Name == "" {
			entryMeta.Name = path.Base(filepath.ToSlash(filePath))
		}
		if entryMeta.Date.IsZero() {
			entryMeta.Date = info.ModTime()
		}
		if entryMeta.Mode == 0 {
			entryMeta.Mode = info.Mode().Perm()
		}

		return []engine.Entry{{Metadata: entryMeta, Source: openFile(fs, filePath)}}, nil
	}), nil
}

func openFile(fs afero.Fs, name string) engine.Source {
	return engine.FromOpener(func() (io.ReadCloser, error) {
		return fs.Open(name)
	})
}
