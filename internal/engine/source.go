package engine

import (
	"bytes"
	"fmt"
	"io"
)

// SourceKind tags the variant held by a Source.
type SourceKind int

const (
	SourceBytes SourceKind = iota + 1
	SourceReader
	SourceOpener
)

func (k SourceKind) String() string {
	switch k {
	case SourceBytes:
		return "bytes"
	case SourceReader:
		return "reader"
	case SourceOpener:
		return "opener"
	default:
		return "unknown"
	}
}

// OpenFunc lazily opens the data of an entry.
type OpenFunc func() (io.ReadCloser, error)

// Source is the data of one entry. It is either an owned byte buffer, a
// reader handed over by the caller, or an opener that is only invoked once
// the entry is being encoded. Nothing is read from a Source before that.
type Source struct {
	kind   SourceKind
	data   []byte
	reader io.Reader
	open   OpenFunc
}

// FromBytes wraps b. The caller must not modify b afterwards.
func FromBytes(b []byte) Source {
	return Source{kind: SourceBytes, data: b}
}

// FromString stores s as UTF-8 bytes.
func FromString(s string) Source {
	return Source{kind: SourceBytes, data: []byte(s)}
}

// FromReader hands r to the archive. If r is an io.Closer it is closed after
// the entry was encoded.
func FromReader(r io.Reader) Source {
	return Source{kind: SourceReader, reader: r}
}

// FromOpener defers opening the data until the entry is dequeued.
func FromOpener(open OpenFunc) Source {
	return Source{kind: SourceOpener, open: open}
}

func (s Source) Kind() SourceKind {
	return s.kind
}

// Size returns the length of a bytes source, or -1 when unknown.
func (s Source) Size() int64 {
	if s.kind == SourceBytes {
		return int64(len(s.data))
	}
	return -1
}

// SizedReader reads the data of a bytes source. Its remaining length is
// known before anything is read.
type SizedReader struct {
	*bytes.Reader
}

func (SizedReader) Close() error { return nil }

// Open returns a reader over the source data. Bytes sources open as a
// SizedReader.
func (s Source) Open() (io.ReadCloser, error) {
	switch s.kind {
	case SourceBytes:
		return SizedReader{bytes.NewReader(s.data)}, nil
	case SourceReader:
		if s.reader == nil {
			return nil, fmt.Errorf("reader source is nil")
		}
		if rc, ok := s.reader.(io.ReadCloser); ok {
			return rc, nil
		}
		return io.NopCloser(s.reader), nil
	case SourceOpener:
		if s.open == nil {
			return nil, fmt.Errorf("opener source is nil")
		}
		rc, err := s.open()
		if err != nil {
			return nil, fmt.Errorf("failed to open source: %w", err)
		}
		return rc, nil
	default:
		return nil, fmt.Errorf("empty source")
	}
}
