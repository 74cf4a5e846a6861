package runner

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	v1 "github.com/infracollect/archivist/apis/v1"
	"github.com/infracollect/archivist/internal/engine"
)

const sampleJob = `
kind: BundleJob
metadata:
  name: snapshot
spec:
  entries:
    - id: readme
      name: README.md
      inline:
        content: "# snapshot"
    - id: configs
      name: etc
      glob:
        pattern: "**/*.yaml"
        root: config
    - id: hosts
      file:
        path: hosts.txt
      mode: "0600"
      date: "2024-05-01T12:00:00Z"
  output:
    format:
      tar:
        compression: none
`

func TestParseBundleJob(t *testing.T) {
	t.Run("valid job", func(t *testing.T) {
		job, err := ParseBundleJob([]byte(sampleJob))
		require.NoError(t, err)
		assert.Equal(t, "snapshot", job.Metadata.Name)
		require.Len(t, job.Spec.Entries, 3)
		assert.Equal(t, "**/*.yaml", job.Spec.Entries[1].Glob.Pattern)
		assert.Equal(t, "none", job.Spec.Output.Format.Tar.Compression)
	})

	tests := []struct {
		name        string
		data        string
		errContains string
	}{
		{
			name:        "invalid yaml",
			data:        "kind: [",
			errContains: "failed to unmarshal job data",
		},
		{
			name:        "wrong kind",
			data:        "kind: CollectJob\nmetadata: {name: x}\nspec: {entries: [{id: a, inline: {content: x}}]}",
			errContains: "failed to validate job",
		},
		{
			name:        "no entries",
			data:        "kind: BundleJob\nmetadata: {name: x}\nspec: {entries: []}",
			errContains: "Entries",
		},
		{
			name:        "entry without id",
			data:        "kind: BundleJob\nmetadata: {name: x}\nspec: {entries: [{inline: {content: x}}]}",
			errContains: "ID",
		},
		{
			name:        "bad compression",
			data:        "kind: BundleJob\nmetadata: {name: x}\nspec: {entries: [{id: a, inline: {content: x}}], output: {format: {tar: {compression: lz4}}}}",
			errContains: "Compression",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBundleJob([]byte(tt.data))
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.errContains)
		})
	}
}

func TestResolveEntrySpec(t *testing.T) {
	resolved, err := ResolveEntrySpec(v1.Entry{ID: "a", Glob: &v1.GlobEntry{Pattern: "*"}})
	require.NoError(t, err)
	assert.Equal(t, "glob", resolved.Kind)

	_, err = ResolveEntrySpec(v1.Entry{ID: "none"})
	assert.ErrorContains(t, err, `entry "none" has no source specified`)

	_, err = ResolveEntrySpec(v1.Entry{ID: "both", Inline: &v1.InlineEntry{}, File: &v1.FileEntry{Path: "x"}})
	assert.ErrorContains(t, err, "more than one source")
}

func TestResolveFormatSpec(t *testing.T) {
	resolved, err := ResolveFormatSpec(nil)
	require.NoError(t, err)
	assert.Equal(t, "tar", resolved.Kind)

	resolved, err = ResolveFormatSpec(&v1.FormatSpec{Zip: &v1.ZipFormat{Store: true}})
	require.NoError(t, err)
	assert.Equal(t, "zip", resolved.Kind)

	_, err = ResolveFormatSpec(&v1.FormatSpec{Tar: &v1.TarFormat{}, Zip: &v1.ZipFormat{}})
	assert.Error(t, err)
}

func TestEntryMetadata(t *testing.T) {
	meta, err := entryMetadata(v1.Entry{
		Name:    "bin/run.sh",
		Mode:    lo.ToPtr("0755"),
		Date:    lo.ToPtr("2024-05-01T12:00:00Z"),
		Comment: lo.ToPtr("entrypoint"),
	})
	require.NoError(t, err)
	assert.Equal(t, engine.EntryMetadata{
		Name:    "bin/run.sh",
		Mode:    0755,
		Date:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Comment: "entrypoint",
	}, meta)

	_, err = entryMetadata(v1.Entry{Mode: lo.ToPtr("0999")})
	assert.ErrorContains(t, err, "invalid mode")

	_, err = entryMetadata(v1.Entry{Date: lo.ToPtr("yesterday")})
	assert.ErrorContains(t, err, "invalid date")
}

// readTar returns the headers by name and the member names in archive order.
func readTar(t *testing.T, data []byte) (map[string]*tar.Header, []string) {
	t.Helper()
	headers := map[string]*tar.Header{}
	var order []string
	tr := tar.NewReader(bytes.NewReader(data))
	for {
		h, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		headers[h.Name] = h
		order = append(order, h.Name)
	}
	return headers, order
}

func newTestFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "config/b.yaml", []byte("b: 1"), 0644))
	require.NoError(t, afero.WriteFile(fs, "config/a.yaml", []byte("a: 1"), 0644))
	require.NoError(t, afero.WriteFile(fs, "hosts.txt", []byte("127.0.0.1 localhost"), 0644))
	return fs
}

func TestRunner_Run(t *testing.T) {
	job, err := ParseBundleJob([]byte(sampleJob))
	require.NoError(t, err)

	var out bytes.Buffer
	r, err := New(t.Context(), zap.NewNop(), job, Options{Fs: newTestFs(t), Stdout: &out})
	require.NoError(t, err)
	assert.Equal(t, "snapshot.tar", r.ArchiveName())

	result, err := r.Run(t.Context())
	require.NoError(t, err)
	require.NoError(t, r.Close())

	assert.Equal(t, 4, result.Entries)
	assert.Zero(t, result.Failed)
	assert.EqualValues(t, out.Len(), result.Bytes)
	assert.Equal(t, "stream(stdout)", result.Sink)

	headers, order := readTar(t, out.Bytes())
	assert.Equal(t, []string{"README.md", "etc/a.yaml", "etc/b.yaml", "hosts.txt"}, order)
	assert.EqualValues(t, 0600, headers["hosts.txt"].Mode)
	assert.True(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Equal(headers["hosts.txt"].ModTime))
	assert.EqualValues(t, len("# snapshot"), headers["README.md"].Size)
}

func TestRunner_EntryFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok.txt" {
			_, _ = w.Write([]byte("ok"))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	job := v1.BundleJob{
		Kind:     "BundleJob",
		Metadata: v1.Metadata{Name: "partial"},
		Spec: v1.BundleJobSpec{
			Entries: []v1.Entry{
				{ID: "ok", HTTP: &v1.HTTPEntry{URL: server.URL + "/ok.txt"}},
				{ID: "missing", HTTP: &v1.HTTPEntry{URL: server.URL + "/missing.txt"}},
				{ID: "after", Inline: &v1.InlineEntry{Content: "still here"}},
			},
			Output: &v1.OutputSpec{Format: &v1.FormatSpec{Tar: &v1.TarFormat{Compression: "none"}}},
		},
	}

	var out bytes.Buffer
	r, err := New(t.Context(), zap.NewNop(), job, Options{Fs: afero.NewMemMapFs(), Stdout: &out})
	require.NoError(t, err)

	result, err := r.Run(t.Context())
	require.Error(t, err)
	assert.ErrorContains(t, err, "1 of 3 entries failed")
	assert.ErrorContains(t, err, "missing.txt")
	assert.Equal(t, 1, result.Failed)

	var encErr *engine.EncoderError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, "missing.txt", encErr.Entry)

	_, order := readTar(t, out.Bytes())
	assert.Equal(t, []string{"ok.txt", "after"}, order)
}

func TestRunner_ResolveFailure(t *testing.T) {
	job := v1.BundleJob{
		Kind:     "BundleJob",
		Metadata: v1.Metadata{Name: "broken"},
		Spec: v1.BundleJobSpec{
			Entries: []v1.Entry{{ID: "gone", File: &v1.FileEntry{Path: "gone.txt"}}},
		},
	}

	var out bytes.Buffer
	r, err := New(t.Context(), zap.NewNop(), job, Options{Fs: afero.NewMemMapFs(), Stdout: &out})
	require.NoError(t, err)

	_, err = r.Run(t.Context())
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to resolve entries")
	assert.Zero(t, out.Len())

	// The archive was never written.
	assert.ErrorIs(t, r.Close(), engine.ErrPrematureTermination)
}

func TestRunner_NewErrors(t *testing.T) {
	tests := []struct {
		name        string
		job         v1.BundleJob
		errContains string
	}{
		{
			name: "duplicate entry ids",
			job: v1.BundleJob{Spec: v1.BundleJobSpec{Entries: []v1.Entry{
				{ID: "a", Inline: &v1.InlineEntry{}},
				{ID: "a", Inline: &v1.InlineEntry{}},
			}}},
			errContains: "entry a already exists",
		},
		{
			name: "invalid exec timeout",
			job: v1.BundleJob{Spec: v1.BundleJobSpec{Entries: []v1.Entry{
				{ID: "x", Exec: &v1.ExecEntry{Program: []string{"true"}, Timeout: lo.ToPtr("soon")}},
			}}},
			errContains: "invalid timeout",
		},
		{
			name: "both formats",
			job: v1.BundleJob{Spec: v1.BundleJobSpec{
				Entries: []v1.Entry{{ID: "a", Inline: &v1.InlineEntry{}}},
				Output:  &v1.OutputSpec{Format: &v1.FormatSpec{Tar: &v1.TarFormat{}, Zip: &v1.ZipFormat{}}},
			}},
			errContains: "failed to build format",
		},
		{
			name: "two sinks",
			job: v1.BundleJob{Spec: v1.BundleJobSpec{
				Entries: []v1.Entry{{ID: "a", Inline: &v1.InlineEntry{}}},
				Output: &v1.OutputSpec{Sink: &v1.SinkSpec{
					Stdout:     &v1.StdoutSinkSpec{},
					Filesystem: &v1.FilesystemSinkSpec{},
				}},
			}},
			errContains: "more than one destination",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(t.Context(), zap.NewNop(), tt.job, Options{Fs: afero.NewMemMapFs(), Stdout: io.Discard})
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.errContains)
		})
	}
}

func TestArchiveName(t *testing.T) {
	job := v1.BundleJob{Metadata: v1.Metadata{Name: "nightly"}}
	registry := BuildRegistry(zap.NewNop(), afero.NewMemMapFs(), nil)

	format, err := buildFormat(t.Context(), registry, &v1.OutputSpec{Format: &v1.FormatSpec{Zip: &v1.ZipFormat{}}})
	require.NoError(t, err)
	assert.Equal(t, "nightly.zip", archiveName(job, format))

	format, err = buildFormat(t.Context(), registry, nil)
	require.NoError(t, err)
	assert.Equal(t, "nightly.tar.gz", archiveName(job, format))

	job.Spec.Output = &v1.OutputSpec{Name: lo.ToPtr("custom.tgz")}
	assert.Equal(t, "custom.tgz", archiveName(job, format))
}

func TestCheck(t *testing.T) {
	job, err := ParseBundleJob([]byte(sampleJob))
	require.NoError(t, err)

	// Nothing is resolved, so missing files are not an error yet.
	require.NoError(t, Check(t.Context(), zap.NewNop(), job, Options{Fs: afero.NewMemMapFs()}))

	job.Spec.Entries[0].Mode = lo.ToPtr("9")
	assert.ErrorContains(t, Check(t.Context(), zap.NewNop(), job, Options{Fs: afero.NewMemMapFs()}), "invalid mode")
}
