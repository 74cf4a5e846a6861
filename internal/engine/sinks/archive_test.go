package sinks

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/infracollect/archivist/internal/archiver"
	"github.com/infracollect/archivist/internal/engine"
	"github.com/infracollect/archivist/internal/engine/archivers"
)

// mockSink records all writes for verification.
type mockSink struct {
	mu       sync.Mutex
	writes   map[string][]byte
	closed   bool
	writeErr error
}

func newMockSink() *mockSink {
	return &mockSink{writes: make(map[string][]byte)}
}

func (m *mockSink) Name() string { return "mock" }
func (m *mockSink) Kind() string { return "mock" }

func (m *mockSink) Write(_ context.Context, path string, data io.Reader) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	content, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.writes[path] = content
	m.mu.Unlock()
	return nil
}

func (m *mockSink) Close(_ context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

type tarFile struct {
	name    string
	content string
}

// readGzipTar decompresses gzip'd tar data and returns the files in order.
func readGzipTar(data []byte) ([]tarFile, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close()
	tr := tar.NewReader(gr)
	var found []tarFile
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}
		found = append(found, tarFile{name: h.Name, content: string(content)})
	}
	return found, nil
}

func newArchiveSinkWithGzip(t *testing.T, archiveName string) (*ArchiveSink, *mockSink) {
	t.Helper()
	encoder, err := archivers.NewTarEncoder("gzip")
	require.NoError(t, err)
	mock := newMockSink()
	a := archiver.New(encoder, archiver.WithContext(t.Context()))
	return NewArchiveSink(mock, a, archiveName, zap.NewNop()), mock
}

func TestArchiveSink_SingleFile(t *testing.T) {
	sink, mockInner := newArchiveSinkWithGzip(t, "output.tar.gz")
	ctx := t.Context()

	err := sink.Write(ctx, "test.json", bytes.NewReader([]byte(`{"key":"value"}`)))
	require.NoError(t, err)

	err = sink.Close(ctx)
	require.NoError(t, err)

	assert.Len(t, mockInner.writes, 1)
	require.Contains(t, mockInner.writes, "output.tar.gz")
	found, err := readGzipTar(mockInner.writes["output.tar.gz"])
	require.NoError(t, err)
	assert.Equal(t, []tarFile{{name: "test.json", content: `{"key":"value"}`}}, found)
	assert.True(t, mockInner.closed, "inner sink should be closed")
}

func TestArchiveSink_AddKeepsOrder(t *testing.T) {
	sink, mockInner := newArchiveSinkWithGzip(t, "bundle.tar.gz")
	ctx := t.Context()

	var mu sync.Mutex
	var completed []string
	for _, name := range []string{"step1.json", "step2.json", "step3.json"} {
		err := sink.Add(ctx, engine.FromString(name), engine.EntryMetadata{Name: name}, func(err error) {
			assert.NoError(t, err)
			mu.Lock()
			completed = append(completed, name)
			mu.Unlock()
		})
		require.NoError(t, err)
	}

	require.NoError(t, sink.Close(ctx))
	assert.Equal(t, []string{"step1.json", "step2.json", "step3.json"}, completed)

	found, err := readGzipTar(mockInner.writes["bundle.tar.gz"])
	require.NoError(t, err)
	assert.Equal(t, []tarFile{
		{name: "step1.json", content: "step1.json"},
		{name: "step2.json", content: "step2.json"},
		{name: "step3.json", content: "step3.json"},
	}, found)
}

func TestArchiveSink_EmptyArchive(t *testing.T) {
	sink, mockInner := newArchiveSinkWithGzip(t, "empty.tar.gz")

	require.NoError(t, sink.Close(t.Context()))

	found, err := readGzipTar(mockInner.writes["empty.tar.gz"])
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestArchiveSink_InnerWriteFails(t *testing.T) {
	sink, mockInner := newArchiveSinkWithGzip(t, "output.tar.gz")
	mockInner.writeErr = errors.New("disk full")
	ctx := t.Context()

	result := make(chan error, 1)
	require.NoError(t, sink.Add(ctx, engine.FromString("data"), engine.EntryMetadata{Name: "a.txt"}, func(err error) {
		result <- err
	}))

	err := sink.Close(ctx)
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk full")
	assert.ErrorIs(t, err, engine.ErrPrematureTermination)
	// The entry still completes, whatever its outcome.
	<-result
	assert.True(t, mockInner.closed)
}

func TestArchiveSink_NameAndKind(t *testing.T) {
	sink, _ := newArchiveSinkWithGzip(t, "output.tar.gz")
	assert.Equal(t, "archive(output.tar.gz)->mock", sink.Name())
	assert.Equal(t, "archive", sink.Kind())
}
