package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

type ResolverFactory func(ctx context.Context, logger *zap.Logger, id string, meta EntryMetadata, input any) (Resolver, error)
type FormatFactory func(ctx context.Context, logger *zap.Logger, input any) (Format, error)

// TypedResolverFactory is a strongly-typed resolver factory.
// T is the concrete spec type (e.g. *v1.FileEntry).
// meta carries the entry fields shared by every kind (name, date, mode).
type TypedResolverFactory[T any] func(ctx context.Context, logger *zap.Logger, id string, meta EntryMetadata, spec T) (Resolver, error)

// TypedFormatFactory is a strongly-typed format factory.
// T is the concrete spec type (e.g. *v1.TarFormat).
type TypedFormatFactory[T any] func(ctx context.Context, logger *zap.Logger, spec T) (Format, error)

// NewResolverFactory wraps a typed resolver factory into a generic ResolverFactory.
// It centralizes the unsafe cast from any → T and provides a clear error if the type mismatches.
func NewResolverFactory[T any](kind string, f TypedResolverFactory[T]) ResolverFactory {
	return func(ctx context.Context, logger *zap.Logger, id string, meta EntryMetadata, input any) (Resolver, error) {
		spec, ok := input.(T)
		if !ok {
			return nil, fmt.Errorf("invalid entry spec for kind %q with id %s: %T", kind, id, input)
		}
		return f(ctx, logger, id, meta, spec)
	}
}

// NewFormatFactory wraps a typed format factory into a generic FormatFactory.
func NewFormatFactory[T any](kind string, f TypedFormatFactory[T]) FormatFactory {
	return func(ctx context.Context, logger *zap.Logger, input any) (Format, error) {
		spec, ok := input.(T)
		if !ok {
			return nil, fmt.Errorf("invalid format spec for kind %q: %T", kind, input)
		}
		return f(ctx, logger, spec)
	}
}

// UnsupportedTypeError is returned when a resolver or format kind is not registered.
type UnsupportedTypeError struct {
	Category  string   // "entry" or "format"
	Kind      string   // the requested kind
	Available []string // registered kinds
}

func (e *UnsupportedTypeError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unsupported %s type %q: no %s types registered", e.Category, e.Kind, e.Category)
	}
	return fmt.Sprintf("unsupported %s type %q (available: %v)", e.Category, e.Kind, e.Available)
}

type Registry struct {
	mu        sync.RWMutex
	resolvers map[string]ResolverFactory
	formats   map[string]FormatFactory
	logger    *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		resolvers: make(map[string]ResolverFactory),
		formats:   make(map[string]FormatFactory),
		logger:    logger,
	}
}

func (r *Registry) RegisterResolver(kind string, factory ResolverFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[kind] = factory
}

func (r *Registry) RegisterFormat(kind string, factory FormatFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formats[kind] = factory
}

func (r *Registry) CreateResolver(ctx context.Context, kind string, id string, meta EntryMetadata, spec any) (Resolver, error) {
	r.mu.RLock()
	factory, ok := r.resolvers[kind]
	available := sortedKeys(r.resolvers)
	r.mu.RUnlock()
	if !ok {
		return nil, &UnsupportedTypeError{Category: "entry", Kind: kind, Available: available}
	}
	return factory(ctx, r.logger.Named(kind), id, meta, spec)
}

func (r *Registry) CreateFormat(ctx context.Context, kind string, spec any) (Format, error) {
	r.mu.RLock()
	factory, ok := r.formats[kind]
	available := sortedKeys(r.formats)
	r.mu.RUnlock()
	if !ok {
		return nil, &UnsupportedTypeError{Category: "format", Kind: kind, Available: available}
	}
	return factory(ctx, r.logger.Named(kind), spec)
}

func (r *Registry) AvailableResolvers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.resolvers)
}

func (r *Registry) AvailableFormats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.formats)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}
