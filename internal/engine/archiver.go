package engine

import (
	"context"
	"io"
)

// DoneFunc signals that an encoder finished with an entry. It must be called
// exactly once per EncodeEntry call, with nil on success.
type DoneFunc func(error)

// EntryEncoder serializes one entry into the archive output.
//
// EncodeEntry must consume data, write every byte belonging to the entry to
// out and then call done. It may write any number of chunks before calling
// done, and may call done synchronously or from another goroutine.
type EntryEncoder interface {
	EncodeEntry(ctx context.Context, out io.Writer, meta EntryMetadata, data io.Reader, done DoneFunc)
}

// Finisher is implemented by encoders that need to write a trailer once the
// last entry was encoded.
type Finisher interface {
	Finish(ctx context.Context, out io.Writer) error
}

// Format is a concrete archive format such as tar or zip.
type Format interface {
	EntryEncoder
	Finisher

	// Extension returns the file extension for this archive type (e.g., ".tar.gz").
	Extension() string
}

// EncoderFunc adapts a synchronous encode function to EntryEncoder.
type EncoderFunc func(ctx context.Context, out io.Writer, meta EntryMetadata, data io.Reader) error

func (f EncoderFunc) EncodeEntry(ctx context.Context, out io.Writer, meta EntryMetadata, data io.Reader, done DoneFunc) {
	done(f(ctx, out, meta, data))
}

// UnimplementedEncoder rejects every entry. Concrete formats replace it.
type UnimplementedEncoder struct{}

func (UnimplementedEncoder) EncodeEntry(_ context.Context, _ io.Writer, _ EntryMetadata, _ io.Reader, done DoneFunc) {
	done(ErrEncoderNotImplemented)
}
