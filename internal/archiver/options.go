package archiver

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Option func(*Archiver)

func WithLogger(logger *zap.Logger) Option {
	return func(a *Archiver) {
		a.logger = logger
	}
}

// WithContext sets the context handed to the encoder for every entry.
// Cancelling it does not abort an entry that is already in flight.
func WithContext(ctx context.Context) Option {
	return func(a *Archiver) {
		a.ctx = ctx
	}
}

// WithClock replaces time.Now for entries without a date.
func WithClock(now func() time.Time) Option {
	return func(a *Archiver) {
		a.now = now
	}
}

// WithErrorHandler receives entry errors for entries appended without a
// completion callback.
func WithErrorHandler(handler func(error)) Option {
	return func(a *Archiver) {
		a.onError = handler
	}
}

// WithStallWarning logs a warning for every entry still in flight after d.
// The entry keeps running.
func WithStallWarning(d time.Duration) Option {
	return func(a *Archiver) {
		a.stallWarning = d
	}
}
