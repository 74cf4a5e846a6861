// Package archiver sequences archive entries into a single output stream.
//
// Entries are appended from any goroutine and queued in submission order.
// Exactly one entry is handed to the encoder at a time; the next one is only
// dequeued after the encoder signalled completion. Finalize drains the queue,
// lets the encoder write its trailer and closes the output. The Archiver is
// itself the io.Reader of the finished archive.
package archiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/infracollect/archivist/internal/engine"
	"go.uber.org/zap"
)

// FinalizeFunc receives the total archive size once the output was read to
// its end, or the error that ended it.
type FinalizeFunc func(total int64, err error)

type request struct {
	source engine.Source
	meta   engine.EntryMetadata
	done   func(error)
}

type Archiver struct {
	logger       *zap.Logger
	ctx          context.Context
	encoder      engine.EntryEncoder
	now          func() time.Time
	onError      func(error)
	stallWarning time.Duration

	mu        sync.Mutex
	state     state
	queue     *Queue[*request]
	current   *request
	callbacks []FinalizeFunc
	errs      []error
	endErr    error

	out    *Output
	writer *io.PipeWriter
	reader *io.PipeReader
	guard  *Guard
	ended  chan struct{}
}

// New creates an archive encoded by encoder. A nil encoder rejects every
// entry with ErrEncoderNotImplemented.
func New(encoder engine.EntryEncoder, opts ...Option) *Archiver {
	if encoder == nil {
		encoder = engine.UnimplementedEncoder{}
	}

	reader, writer := io.Pipe()
	a := &Archiver{
		logger:  zap.NewNop(),
		ctx:     context.Background(),
		encoder: encoder,
		now:     time.Now,
		queue:   NewQueue[*request](),
		writer:  writer,
		reader:  reader,
		out:     NewOutput(writer),
		ended:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.onError == nil {
		a.onError = func(err error) {
			a.logger.Error("archive entry failed", zap.Error(err))
		}
	}
	a.guard = NewGuard(a.logger)

	return a
}

// Append queues one entry. An unusable name or an archive that is already
// finalized or ended is reported as the returned error; such entries never
// reach the encoder and neither done nor the error handler is called for
// them, so callers that only watch done must check the returned error too.
// Otherwise done, when not nil, receives the outcome of encoding the entry.
// Entries appended without done report failures to the error handler.
func (a *Archiver) Append(src engine.Source, meta engine.EntryMetadata, done func(error)) error {
	meta, err := engine.NormalizeMetadata(meta, a.now)
	if err != nil {
		return err
	}

	a.mu.Lock()
	if a.state.finalized || a.state.ended {
		a.mu.Unlock()
		return fmt.Errorf("failed to append %q: %w", meta.Name, engine.ErrAlreadyFinalized)
	}
	a.queue.Enqueue(&request{source: src, meta: meta, done: done})
	a.mu.Unlock()

	a.advance(false)
	return nil
}

// AppendWait appends an entry and blocks until it was encoded or ctx is done.
// Cancelling ctx does not remove the entry from the archive.
func (a *Archiver) AppendWait(ctx context.Context, src engine.Source, meta engine.EntryMetadata) error {
	result := make(chan error, 1)
	if err := a.Append(src, meta, func(err error) { result <- err }); err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finalize stops accepting entries once the queue is drained. cb, when not
// nil, fires after the output was read to its end. Calling Finalize again
// only registers another callback.
func (a *Archiver) Finalize(cb FinalizeFunc) {
	a.mu.Lock()
	if a.state.ended {
		err := a.endErr
		a.mu.Unlock()
		if cb != nil {
			cb(a.out.Offset(), err)
		}
		return
	}

	if cb != nil {
		a.callbacks = append(a.callbacks, cb)
	}
	if !a.state.finalized {
		a.state.finalizeRequested = true
	}
	a.mu.Unlock()

	a.advance(false)
}

// Wait blocks until the output ended and returns the archive size.
func (a *Archiver) Wait(ctx context.Context) (int64, error) {
	select {
	case <-a.ended:
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.out.Offset(), a.endErr
	case <-ctx.Done():
		return a.out.Offset(), ctx.Err()
	}
}

// Read reads the archive bytes. It returns io.EOF after the archive was
// finalized and everything was consumed.
func (a *Archiver) Read(p []byte) (int, error) {
	n, err := a.reader.Read(p)
	if err != nil {
		a.end(err)
	}
	return n, err
}

// Offset returns the number of archive bytes emitted so far.
func (a *Archiver) Offset() int64 {
	return a.out.Offset()
}

// Pending returns the number of queued entries, excluding the one in flight.
func (a *Archiver) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.queue.Len()
}

func (a *Archiver) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.phase()
}

// Err returns the entry errors that were reported to the error handler.
func (a *Archiver) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return errors.Join(a.errs...)
}

// Close must be called by the owner before it shuts down. It returns
// ErrPrematureTermination, once, if the output has not been read cleanly to
// its end, and releases any encoder blocked on the output.
func (a *Archiver) Close() error {
	err := a.guard.Check()
	if err == nil {
		return nil
	}

	_ = a.reader.CloseWithError(err)
	a.end(err)

	a.mu.Lock()
	endErr := a.endErr
	a.mu.Unlock()
	if endErr != nil && !errors.Is(endErr, err) {
		return errors.Join(err, endErr)
	}
	return err
}

// advance is the scheduler. It is called after every append, finalize and
// entry completion, and decides what happens next.
func (a *Archiver) advance(previousCompleted bool) {
	a.mu.Lock()

	if previousCompleted {
		a.state.processing = false
		a.current = nil
	}

	if a.state.processing {
		a.mu.Unlock()
		return
	}

	if req, ok := a.queue.Dequeue(); ok {
		a.state.processing = true
		a.current = req
		a.mu.Unlock()

		go a.process(req)
		return
	}

	if !a.state.finalized && a.state.finalizeRequested {
		a.state.finalizeRequested = false
		a.state.finalized = true
	}

	if a.state.finalized && !a.state.outputClosed {
		a.state.outputClosed = true
		a.mu.Unlock()

		go a.closeOutput()
		return
	}

	a.mu.Unlock()
}

func (a *Archiver) process(req *request) {
	logger := a.logger.With(zap.String("entry", req.meta.Name))
	logger.Debug("encoding entry",
		zap.String("source", req.source.Kind().String()),
		zap.Int64("size", req.source.Size()),
	)

	start := time.Now()
	var stall *time.Timer
	if a.stallWarning > 0 {
		stall = time.AfterFunc(a.stallWarning, func() {
			logger.Warn("entry still in flight", zap.Duration("elapsed", time.Since(start)))
		})
	}

	var data io.ReadCloser
	var once sync.Once
	done := func(err error) {
		completed := false
		once.Do(func() {
			completed = true
			if stall != nil {
				stall.Stop()
			}
			if data != nil {
				if cerr := data.Close(); cerr != nil {
					logger.Debug("failed to close entry source", zap.Error(cerr))
				}
			}
			a.complete(logger, req, err, time.Since(start))
		})
		if !completed {
			logger.Warn("entry completion signalled more than once", zap.Error(err))
		}
	}

	var err error
	data, err = req.source.Open()
	if err != nil {
		done(err)
		return
	}

	a.encoder.EncodeEntry(a.ctx, a.out, req.meta, data, done)
}

func (a *Archiver) complete(logger *zap.Logger, req *request, err error, elapsed time.Duration) {
	if err != nil {
		err = &engine.EncoderError{Entry: req.meta.Name, Err: err}
		logger.Debug("entry failed", zap.Duration("elapsed", elapsed), zap.Error(err))
	} else {
		logger.Debug("entry encoded", zap.Duration("elapsed", elapsed), zap.Int64("offset", a.out.Offset()))
	}

	switch {
	case req.done != nil:
		req.done(err)
	case err != nil:
		a.mu.Lock()
		a.errs = append(a.errs, err)
		a.mu.Unlock()
		a.onError(err)
	}

	a.advance(true)
}

func (a *Archiver) closeOutput() {
	var err error
	if finisher, ok := a.encoder.(engine.Finisher); ok {
		if ferr := finisher.Finish(a.ctx, a.out); ferr != nil {
			err = fmt.Errorf("failed to finish archive: %w", ferr)
			a.logger.Error("failed to finish archive", zap.Error(ferr))
		}
	}

	a.logger.Debug("closing archive output", zap.Int64("bytes", a.out.Offset()))
	_ = a.writer.CloseWithError(err)
}

func (a *Archiver) end(err error) {
	if errors.Is(err, io.EOF) {
		err = nil
	}

	a.mu.Lock()
	if a.state.ended {
		a.mu.Unlock()
		return
	}
	a.state.ended = true
	a.endErr = err
	callbacks := a.callbacks
	a.callbacks = nil
	a.mu.Unlock()

	if err == nil {
		a.guard.Disarm()
	}
	close(a.ended)

	total := a.out.Offset()
	if err == nil {
		a.logger.Info("archive complete", zap.Int64("bytes", total))
	}
	for _, cb := range callbacks {
		cb(total, err)
	}
}
