package archivers

import (
	"context"

	v1 "github.com/infracollect/archivist/apis/v1"
	"github.com/infracollect/archivist/internal/engine"
	"go.uber.org/zap"
)

const (
	TarFormatKind = "tar"
	ZipFormatKind = "zip"
)

func Register(registry *engine.Registry) {
	registry.RegisterFormat(
		TarFormatKind,
		engine.NewFormatFactory(TarFormatKind, newTarFormat),
	)

	registry.RegisterFormat(
		ZipFormatKind,
		engine.NewFormatFactory(ZipFormatKind, newZipFormat),
	)
}

func newTarFormat(_ context.Context, _ *zap.Logger, spec *v1.TarFormat) (engine.Format, error) {
	encoder, err := NewTarEncoder(spec.Compression)
	if err != nil {
		return nil, err
	}
	return encoder, nil
}

func newZipFormat(_ context.Context, _ *zap.Logger, spec *v1.ZipFormat) (engine.Format, error) {
	return NewZipEncoder(spec.Store, spec.Comment), nil
}
