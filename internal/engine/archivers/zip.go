package archivers

import (
	"context"
	"fmt"
	"io"
	"io/fs"

	"github.com/infracollect/archivist/internal/engine"
	"github.com/klauspost/compress/zip"
)

// ZipEncoder streams entries as a zip archive. Entry sizes and checksums go
// into data descriptors, so the output never needs to be seekable.
type ZipEncoder struct {
	store     bool
	comment   string
	zipWriter *zip.Writer
	closed    bool
}

// NewZipEncoder creates a zip encoder. Entries are deflated unless store is
// set. comment becomes the archive comment.
func NewZipEncoder(store bool, comment string) *ZipEncoder {
	return &ZipEncoder{store: store, comment: comment}
}

func (e *ZipEncoder) EncodeEntry(ctx context.Context, out io.Writer, meta engine.EntryMetadata, data io.Reader, done engine.DoneFunc) {
	done(e.encode(ctx, out, meta, data))
}

func (e *ZipEncoder) encode(ctx context.Context, out io.Writer, meta engine.EntryMetadata, data io.Reader) error {
	if e.closed {
		return fmt.Errorf("archiver is closed")
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	zw := e.writer(out)

	header := &zip.FileHeader{
		Name:     meta.Name,
		Modified: meta.Date,
		Comment:  meta.Comment,
		Method:   zip.Deflate,
	}
	if e.store {
		header.Method = zip.Store
	}

	mode := meta.Mode
	if meta.IsDir() {
		header.Name += "/"
		header.Method = zip.Store
		mode |= fs.ModeDir
	}
	header.SetMode(mode)

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create zip entry %s: %w", meta.Name, err)
	}

	if !meta.IsDir() {
		if _, err := io.Copy(w, data); err != nil {
			return fmt.Errorf("failed to write zip content: %w", err)
		}
	}

	// Push the entry out instead of holding it in the zip writer's buffer.
	if err := zw.Flush(); err != nil {
		return fmt.Errorf("failed to flush zip writer: %w", err)
	}

	return nil
}

// Finish writes the central directory.
func (e *ZipEncoder) Finish(_ context.Context, out io.Writer) error {
	if e.closed {
		return fmt.Errorf("archiver already closed")
	}

	zw := e.writer(out)
	e.closed = true

	if e.comment != "" {
		if err := zw.SetComment(e.comment); err != nil {
			return fmt.Errorf("failed to set zip comment: %w", err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to close zip writer: %w", err)
	}

	return nil
}

func (e *ZipEncoder) Extension() string {
	return ".zip"
}

func (e *ZipEncoder) writer(out io.Writer) *zip.Writer {
	if e.zipWriter == nil {
		e.zipWriter = zip.NewWriter(out)
	}
	return e.zipWriter
}
