package archiver

import (
	"io"
	"sync/atomic"
)

// Output forwards archive bytes downstream unchanged and keeps a running
// count of everything the downstream accepted.
type Output struct {
	w      io.Writer
	offset atomic.Int64
}

func NewOutput(w io.Writer) *Output {
	return &Output{w: w}
}

func (o *Output) Write(p []byte) (int, error) {
	n, err := o.w.Write(p)
	o.offset.Add(int64(n))
	return n, err
}

// Offset returns the number of bytes emitted so far.
func (o *Output) Offset() int64 {
	return o.offset.Load()
}
