package sinks

import (
	"context"
	"fmt"
	"io"

	"github.com/infracollect/archivist/internal/engine"
)

const StreamSinkKind = "stream"

// StreamSink copies the archive to a writer, usually standard output. The
// archive name is ignored.
type StreamSink struct {
	name string
	w    io.Writer
}

func NewStreamSink(name string, w io.Writer) engine.Sink {
	return &StreamSink{name: name, w: w}
}

func (s *StreamSink) Name() string {
	return fmt.Sprintf("%s(%s)", StreamSinkKind, s.name)
}

func (s *StreamSink) Kind() string {
	return StreamSinkKind
}

func (s *StreamSink) Write(ctx context.Context, _ string, data io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := io.Copy(s.w, data); err != nil {
		return fmt.Errorf("failed to copy archive to %s: %w", s.name, err)
	}
	return nil
}

func (s *StreamSink) Close(context.Context) error {
	return nil
}
