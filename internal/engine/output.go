package engine

import (
	"context"
	"io"
)

// Sink is a destination for the finished archive.
type Sink interface {
	Named
	Closer
	Write(ctx context.Context, path string, data io.Reader) error
}
