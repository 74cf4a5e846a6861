package sinks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/infracollect/archivist/internal/archiver"
	"github.com/infracollect/archivist/internal/engine"
	"go.uber.org/zap"
)

const ArchiveSinkKind = "archive"

// ArchiveSink streams an archive into an inner sink while entries are still
// being added. The inner sink receives a single file named archiveName and
// reads it straight from the archiver.
type ArchiveSink struct {
	inner       engine.Sink
	archiver    *archiver.Archiver
	archiveName string
	logger      *zap.Logger

	startOnce sync.Once
	written   chan error
}

// NewArchiveSink wraps inner. Entries go through a; the sink owns its output.
func NewArchiveSink(inner engine.Sink, a *archiver.Archiver, archiveName string, logger *zap.Logger) *ArchiveSink {
	return &ArchiveSink{
		inner:       inner,
		archiver:    a,
		archiveName: archiveName,
		logger:      logger,
		written:     make(chan error, 1),
	}
}

func (s *ArchiveSink) Name() string {
	return fmt.Sprintf("%s(%s)->%s", ArchiveSinkKind, s.archiveName, s.inner.Name())
}

func (s *ArchiveSink) Kind() string {
	return ArchiveSinkKind
}

// Start begins writing the archive to the inner sink in the background.
// Calling it again has no effect. Add, Write and Close start the sink if
// needed.
func (s *ArchiveSink) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.logger.Debug("streaming archive", zap.String("archive", s.archiveName), zap.String("sink", s.inner.Name()))
		go func() {
			err := s.inner.Write(ctx, s.archiveName, s.archiver)
			if err != nil {
				// Nobody reads the archive anymore: fail the remaining entries
				// instead of leaving the encoder blocked.
				_ = s.archiver.Close()
			}
			s.written <- err
		}()
	})
}

// Add queues an entry without waiting for it. done receives its outcome.
func (s *ArchiveSink) Add(ctx context.Context, src engine.Source, meta engine.EntryMetadata, done func(error)) error {
	s.Start(ctx)
	return s.archiver.Append(src, meta, done)
}

// Write adds data as an entry named path and waits until it was encoded.
func (s *ArchiveSink) Write(ctx context.Context, path string, data io.Reader) error {
	s.Start(ctx)
	if err := s.archiver.AppendWait(ctx, engine.FromReader(data), engine.EntryMetadata{Name: path}); err != nil {
		return fmt.Errorf("failed to add file to archive: %w", err)
	}
	return nil
}

// Close finalizes the archive, waits until the inner sink consumed all of it
// and closes the inner sink.
func (s *ArchiveSink) Close(ctx context.Context) error {
	s.Start(ctx)
	s.archiver.Finalize(nil)

	var writeErr error
	select {
	case writeErr = <-s.written:
	case <-ctx.Done():
		return errors.Join(ctx.Err(), s.archiver.Close())
	}
	if writeErr != nil {
		writeErr = fmt.Errorf("failed to write archive to sink: %w", writeErr)
	}

	total, err := s.archiver.Wait(ctx)
	if err != nil {
		err = fmt.Errorf("failed to finalize archive: %w", err)
	}

	if guardErr := s.archiver.Close(); guardErr != nil {
		err = errors.Join(err, guardErr)
	}

	if closeErr := s.inner.Close(ctx); closeErr != nil {
		err = errors.Join(err, fmt.Errorf("failed to close inner sink: %w", closeErr))
	}

	if err == nil && writeErr == nil {
		s.logger.Info("archive written",
			zap.String("archive", s.archiveName),
			zap.String("sink", s.inner.Name()),
			zap.Int64("bytes", total),
		)
	}

	return errors.Join(writeErr, err, s.archiver.Err())
}
