package archivers

import (
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// CompressionType defines supported compression algorithms.
type CompressionType string

const (
	CompressionGzip   CompressionType = "gzip"
	CompressionZstd   CompressionType = "zstd"
	CompressionBrotli CompressionType = "br"
	CompressionNone   CompressionType = "none"
)

// ParseCompression validates a compression name. Empty defaults to gzip.
func ParseCompression(compression string) (CompressionType, error) {
	ct := CompressionType(compression)
	switch ct {
	case "":
		return CompressionGzip, nil
	case CompressionGzip, CompressionZstd, CompressionBrotli, CompressionNone:
		return ct, nil
	default:
		return "", fmt.Errorf("unsupported compression type: %s", compression)
	}
}

// Extension returns the suffix appended after ".tar".
func (c CompressionType) Extension() string {
	switch c {
	case CompressionGzip:
		return ".gz"
	case CompressionZstd:
		return ".zst"
	case CompressionBrotli:
		return ".br"
	default:
		return ""
	}
}

func newCompressor(ct CompressionType, w io.Writer) (io.WriteCloser, error) {
	switch ct {
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	case CompressionZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		return zw, nil
	case CompressionBrotli:
		return brotli.NewWriter(w), nil
	case CompressionNone:
		return &nopWriteCloser{w}, nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", ct)
	}
}

// nopWriteCloser wraps a Writer to provide a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (n *nopWriteCloser) Close() error {
	return nil
}
