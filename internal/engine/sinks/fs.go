package sinks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/infracollect/archivist/internal/engine"
	"github.com/spf13/afero"
)

const FilesystemSinkKind = "filesystem"

// FilesystemSink writes the archive below a directory. The file is written
// to a temporary name and renamed once complete.
type FilesystemSink struct {
	fs     afero.Fs
	prefix string
}

func NewFilesystemSink(fs afero.Fs, prefix string) engine.Sink {
	return &FilesystemSink{fs: fs, prefix: prefix}
}

func NewFilesystemSinkFromPath(dir, prefix string) (engine.Sink, error) {
	cleanPath := filepath.Clean(dir)

	if err := os.MkdirAll(cleanPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", cleanPath, err)
	}

	return NewFilesystemSink(afero.NewBasePathFs(afero.NewOsFs(), cleanPath), prefix), nil
}

func (s *FilesystemSink) Name() string {
	return fmt.Sprintf("%s(%s)", FilesystemSinkKind, s.fs.Name())
}

func (s *FilesystemSink) Kind() string {
	return FilesystemSinkKind
}

func (s *FilesystemSink) Write(ctx context.Context, name string, data io.Reader) (err error) {
	target := path.Join(s.prefix, name)

	dir := path.Dir(target)
	if dir != "" && dir != "." {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	partial := target + ".partial"
	f, err := s.fs.Create(partial)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = s.fs.Remove(partial)
		}
	}()

	if _, err = io.Copy(f, contextReader{ctx: ctx, r: data}); err != nil {
		return errors.Join(fmt.Errorf("failed to write to file: %w", err), f.Close())
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err = s.fs.Rename(partial, target); err != nil {
		return fmt.Errorf("failed to move archive into place: %w", err)
	}

	return nil
}

func (s *FilesystemSink) Close(context.Context) error {
	return nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
