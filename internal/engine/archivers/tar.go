package archivers

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/infracollect/archivist/internal/engine"
)

// TarEncoder streams entries as a tar archive with optional compression.
// The tar and compression writers are created on the first write so they
// wrap the archive output.
type TarEncoder struct {
	compression CompressionType
	compressor  io.WriteCloser
	tarWriter   *tar.Writer
	closed      bool
}

// NewTarEncoder creates a tar encoder with the specified compression.
// Supported compression types: "gzip", "zstd", "br", "none".
// If compression is empty, defaults to "gzip".
func NewTarEncoder(compression string) (*TarEncoder, error) {
	ct, err := ParseCompression(compression)
	if err != nil {
		return nil, err
	}
	return &TarEncoder{compression: ct}, nil
}

func (e *TarEncoder) EncodeEntry(ctx context.Context, out io.Writer, meta engine.EntryMetadata, data io.Reader, done engine.DoneFunc) {
	done(e.encode(ctx, out, meta, data))
}

func (e *TarEncoder) encode(ctx context.Context, out io.Writer, meta engine.EntryMetadata, data io.Reader) error {
	if e.closed {
		return fmt.Errorf("archiver is closed")
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	tw, err := e.writer(out)
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    meta.Name,
		Mode:    int64(meta.Mode.Perm()),
		ModTime: meta.Date,
		Format:  tar.FormatPAX,
	}

	if meta.IsDir() {
		header.Typeflag = tar.TypeDir
		header.Name += "/"
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header: %w", err)
		}
		return nil
	}

	header.Typeflag = tar.TypeReg
	if sized, ok := data.(engine.SizedReader); ok {
		header.Size = int64(sized.Len())
	} else {
		// Tar headers carry the size up front, so unsized entries are read fully first.
		content, err := io.ReadAll(data)
		if err != nil {
			return fmt.Errorf("failed to read entry data: %w", err)
		}
		header.Size = int64(len(content))
		data = bytes.NewReader(content)
	}

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header: %w", err)
	}

	if _, err := io.Copy(tw, data); err != nil {
		return fmt.Errorf("failed to write tar content: %w", err)
	}

	return nil
}

// Finish writes the tar end blocks and flushes the compressor.
func (e *TarEncoder) Finish(_ context.Context, out io.Writer) error {
	if e.closed {
		return fmt.Errorf("archiver already closed")
	}

	tw, err := e.writer(out)
	if err != nil {
		return err
	}
	e.closed = true

	// Close tar writer first
	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to close tar writer: %w", err)
	}

	if err := e.compressor.Close(); err != nil {
		return fmt.Errorf("failed to close compressor: %w", err)
	}

	return nil
}

// Extension returns the file extension for this archive type.
func (e *TarEncoder) Extension() string {
	return ".tar" + e.compression.Extension()
}

func (e *TarEncoder) writer(out io.Writer) (*tar.Writer, error) {
	if e.tarWriter != nil {
		return e.tarWriter, nil
	}

	compressor, err := newCompressor(e.compression, out)
	if err != nil {
		return nil, err
	}

	e.compressor = compressor
	e.tarWriter = tar.NewWriter(compressor)
	return e.tarWriter, nil
}
