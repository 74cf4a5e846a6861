package engine

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "a.txt", want: "a.txt"},
		{in: "dir/b.txt", want: "dir/b.txt"},
		{in: "/abs/path.txt", want: "abs/path.txt"},
		{in: "///many/slashes", want: "many/slashes"},
		{in: `windows\style\file.txt`, want: "windows/style/file.txt"},
		{in: `C:\Users\file.txt`, want: "Users/file.txt"},
		{in: "../../etc/passwd", want: "etc/passwd"},
		{in: "a/./b/../c", want: "a/c"},
		{in: "dir/", want: "dir"},
		{in: "", want: ""},
		{in: "   ", want: ""},
		{in: "/", want: ""},
		{in: ".", want: ""},
		{in: "..", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizePath(tt.in))
		})
	}
}

func TestNormalizeMetadata(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return fixed }

	t.Run("defaults", func(t *testing.T) {
		meta, err := NormalizeMetadata(EntryMetadata{Name: "/a.txt"}, now)
		require.NoError(t, err)
		assert.Equal(t, "a.txt", meta.Name)
		assert.Equal(t, fixed, meta.Date)
		assert.Equal(t, EntryTypeFile, meta.Type)
		assert.Equal(t, DefaultFileMode, meta.Mode)
	})

	t.Run("trailing slash marks a directory", func(t *testing.T) {
		meta, err := NormalizeMetadata(EntryMetadata{Name: "logs/"}, now)
		require.NoError(t, err)
		assert.Equal(t, "logs", meta.Name)
		assert.True(t, meta.IsDir())
		assert.Equal(t, DefaultDirectoryMode, meta.Mode)
	})

	t.Run("explicit values are kept", func(t *testing.T) {
		date := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
		meta, err := NormalizeMetadata(EntryMetadata{Name: "run.sh", Date: date, Mode: 0755}, now)
		require.NoError(t, err)
		assert.Equal(t, date, meta.Date)
		assert.EqualValues(t, 0755, meta.Mode)
	})

	t.Run("empty name is rejected", func(t *testing.T) {
		_, err := NormalizeMetadata(EntryMetadata{Name: ""}, now)
		require.ErrorIs(t, err, ErrInvalidEntryName)

		_, err = NormalizeMetadata(EntryMetadata{Name: "/"}, now)
		require.ErrorIs(t, err, ErrInvalidEntryName)
	})
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestSource(t *testing.T) {
	t.Run("string is utf-8 bytes", func(t *testing.T) {
		src := FromString("héllo")
		assert.Equal(t, SourceBytes, src.Kind())
		assert.EqualValues(t, len("héllo"), src.Size())

		rc, err := src.Open()
		require.NoError(t, err)
		sized, ok := rc.(SizedReader)
		require.True(t, ok)
		assert.Equal(t, len("héllo"), sized.Len())

		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "héllo", string(data))
	})

	t.Run("reader keeps its closer", func(t *testing.T) {
		tracker := &closeTracker{Reader: strings.NewReader("x")}
		src := FromReader(tracker)
		assert.EqualValues(t, -1, src.Size())

		rc, err := src.Open()
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.True(t, tracker.closed)
	})

	t.Run("opener is lazy", func(t *testing.T) {
		calls := 0
		src := FromOpener(func() (io.ReadCloser, error) {
			calls++
			return io.NopCloser(strings.NewReader("lazy")), nil
		})
		assert.Equal(t, 0, calls)

		rc, err := src.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "lazy", string(data))
		assert.Equal(t, 1, calls)
	})

	t.Run("opener error is wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := FromOpener(func() (io.ReadCloser, error) { return nil, boom }).Open()
		require.ErrorIs(t, err, boom)
	})

	t.Run("zero source fails", func(t *testing.T) {
		_, err := Source{}.Open()
		require.Error(t, err)
	})
}

func TestUnimplementedEncoder(t *testing.T) {
	var got error
	UnimplementedEncoder{}.EncodeEntry(context.Background(), io.Discard, EntryMetadata{Name: "a"}, strings.NewReader(""), func(err error) {
		got = err
	})
	require.ErrorIs(t, got, ErrEncoderNotImplemented)
}

func TestEncoderError(t *testing.T) {
	cause := errors.New("disk full")
	err := error(&EncoderError{Entry: "a.txt", Err: cause})

	require.ErrorIs(t, err, cause)
	assert.Equal(t, `failed to encode entry "a.txt": disk full`, err.Error())
}
