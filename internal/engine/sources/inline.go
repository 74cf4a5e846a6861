package sources

import (
	"context"

	"github.com/infracollect/archivist/internal/engine"
)

const InlineKind = "inline"

// NewInlineResolver stores content as a single entry. The entry is named
// after id unless meta carries a name.
func NewInlineResolver(id string, meta engine.EntryMetadata, content string) engine.Resolver {
	if meta.Name == "" {
		meta.Name = id
	}

	return engine.ResolverFunction(id, InlineKind, func(context.Context) ([]engine.Entry, error) {
		return []engine.Entry{{Metadata: meta, Source: engine.FromString(content)}}, nil
	})
}
