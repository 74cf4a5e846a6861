package engine

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Mock types for testing

type mockFormat struct {
	UnimplementedEncoder
	ext string
}

func (m *mockFormat) Finish(context.Context, io.Writer) error { return nil }
func (m *mockFormat) Extension() string                      { return m.ext }

type testEntrySpec struct {
	Value string
}

type wrongSpec struct{}

func TestNewResolverFactory(t *testing.T) {
	logger := zap.NewNop()
	ctx := t.Context()

	t.Run("correct spec type returns resolver", func(t *testing.T) {
		expected := ResolverFunction("test", "test_kind", func(context.Context) ([]Entry, error) { return nil, nil })

		factory := NewResolverFactory("test_kind", func(_ context.Context, _ *zap.Logger, id string, meta EntryMetadata, spec testEntrySpec) (Resolver, error) {
			assert.Equal(t, "entry_id", id)
			assert.Equal(t, "a.txt", meta.Name)
			assert.Equal(t, "test_value", spec.Value)
			return expected, nil
		})

		resolver, err := factory(ctx, logger, "entry_id", EntryMetadata{Name: "a.txt"}, testEntrySpec{Value: "test_value"})

		require.NoError(t, err)
		assert.Equal(t, expected, resolver)
	})

	t.Run("wrong spec type returns error", func(t *testing.T) {
		factory := NewResolverFactory("test_kind", func(_ context.Context, _ *zap.Logger, _ string, _ EntryMetadata, _ testEntrySpec) (Resolver, error) {
			t.Fatal("factory should not be called with wrong spec type")
			return nil, nil
		})

		resolver, err := factory(ctx, logger, "entry_id", EntryMetadata{}, wrongSpec{})

		require.Error(t, err)
		assert.Nil(t, resolver)
		assert.ErrorContains(t, err, "test_kind")
		assert.ErrorContains(t, err, "entry_id")
		assert.ErrorContains(t, err, "wrongSpec")
	})
}

func TestNewFormatFactory(t *testing.T) {
	logger := zap.NewNop()
	ctx := t.Context()

	t.Run("correct spec type returns format", func(t *testing.T) {
		expected := &mockFormat{ext: ".test"}

		factory := NewFormatFactory("test_kind", func(_ context.Context, _ *zap.Logger, spec testEntrySpec) (Format, error) {
			assert.Equal(t, "test_value", spec.Value)
			return expected, nil
		})

		format, err := factory(ctx, logger, testEntrySpec{Value: "test_value"})

		require.NoError(t, err)
		assert.Equal(t, expected, format)
	})

	t.Run("wrong spec type returns error", func(t *testing.T) {
		factory := NewFormatFactory("test_kind", func(_ context.Context, _ *zap.Logger, _ testEntrySpec) (Format, error) {
			t.Fatal("factory should not be called with wrong spec type")
			return nil, nil
		})

		format, err := factory(ctx, logger, wrongSpec{})

		require.Error(t, err)
		assert.Nil(t, format)
		assert.ErrorContains(t, err, "test_kind")
		assert.ErrorContains(t, err, "wrongSpec")
	})
}

func TestRegistry(t *testing.T) {
	ctx := t.Context()

	t.Run("unknown resolver lists available kinds", func(t *testing.T) {
		registry := NewRegistry(zap.NewNop())
		registry.RegisterResolver("zeta", nil)
		registry.RegisterResolver("alpha", nil)

		_, err := registry.CreateResolver(ctx, "missing", "id", EntryMetadata{}, nil)

		var unsupported *UnsupportedTypeError
		require.ErrorAs(t, err, &unsupported)
		assert.Equal(t, "entry", unsupported.Category)
		assert.Equal(t, []string{"alpha", "zeta"}, unsupported.Available)
		assert.Equal(t, `unsupported entry type "missing" (available: [alpha zeta])`, err.Error())
	})

	t.Run("unknown format without registrations", func(t *testing.T) {
		registry := NewRegistry(zap.NewNop())

		_, err := registry.CreateFormat(ctx, "rar", nil)

		require.Error(t, err)
		assert.Equal(t, `unsupported format type "rar": no format types registered`, err.Error())
	})

	t.Run("registered kinds are created", func(t *testing.T) {
		registry := NewRegistry(zap.NewNop())
		registry.RegisterFormat("mock", NewFormatFactory("mock", func(_ context.Context, _ *zap.Logger, spec testEntrySpec) (Format, error) {
			return &mockFormat{ext: spec.Value}, nil
		}))
		registry.RegisterResolver("mock", NewResolverFactory("mock", func(_ context.Context, _ *zap.Logger, id string, _ EntryMetadata, _ testEntrySpec) (Resolver, error) {
			return ResolverFunction(id, "mock", func(context.Context) ([]Entry, error) { return nil, nil }), nil
		}))

		format, err := registry.CreateFormat(ctx, "mock", testEntrySpec{Value: ".mock"})
		require.NoError(t, err)
		assert.Equal(t, ".mock", format.Extension())

		resolver, err := registry.CreateResolver(ctx, "mock", "first", EntryMetadata{}, testEntrySpec{})
		require.NoError(t, err)
		assert.Equal(t, "first", resolver.Name())
		assert.Equal(t, []string{"mock"}, registry.AvailableFormats())
		assert.Equal(t, []string{"mock"}, registry.AvailableResolvers())
	})
}
