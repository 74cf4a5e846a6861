package runner

import (
	"fmt"

	v1 "github.com/infracollect/archivist/apis/v1"
	"github.com/infracollect/archivist/internal/engine/archivers"
	"github.com/infracollect/archivist/internal/engine/sources"
	"github.com/samber/lo"
)

// ResolvedSpec holds a kind identifier and the spec for that kind.
type ResolvedSpec struct {
	Kind string
	Spec any
}

// ResolveEntrySpec extracts the kind and spec from a v1.Entry.
// Returns an error unless exactly one source is set.
func ResolveEntrySpec(e v1.Entry) (ResolvedSpec, error) {
	candidates := []ResolvedSpec{}
	if e.Inline != nil {
		candidates = append(candidates, ResolvedSpec{Kind: sources.InlineKind, Spec: e.Inline})
	}
	if e.File != nil {
		candidates = append(candidates, ResolvedSpec{Kind: sources.FileKind, Spec: e.File})
	}
	if e.Glob != nil {
		candidates = append(candidates, ResolvedSpec{Kind: sources.GlobKind, Spec: e.Glob})
	}
	if e.HTTP != nil {
		candidates = append(candidates, ResolvedSpec{Kind: sources.HTTPKind, Spec: e.HTTP})
	}
	if e.Exec != nil {
		candidates = append(candidates, ResolvedSpec{Kind: sources.ExecKind, Spec: e.Exec})
	}

	switch len(candidates) {
	case 0:
		return ResolvedSpec{}, fmt.Errorf("entry %q has no source specified", e.ID)
	case 1:
		return candidates[0], nil
	default:
		kinds := lo.Map(candidates, func(c ResolvedSpec, _ int) string { return c.Kind })
		return ResolvedSpec{}, fmt.Errorf("entry %q has more than one source specified: %v", e.ID, kinds)
	}
}

// ResolveFormatSpec extracts the kind and spec of the archive format.
// A missing format means tar with gzip compression.
func ResolveFormatSpec(f *v1.FormatSpec) (ResolvedSpec, error) {
	switch {
	case f == nil || (f.Tar == nil && f.Zip == nil):
		return ResolvedSpec{Kind: archivers.TarFormatKind, Spec: &v1.TarFormat{}}, nil
	case f.Tar != nil && f.Zip != nil:
		return ResolvedSpec{}, fmt.Errorf("output format has both tar and zip specified")
	case f.Zip != nil:
		return ResolvedSpec{Kind: archivers.ZipFormatKind, Spec: f.Zip}, nil
	default:
		return ResolvedSpec{Kind: archivers.TarFormatKind, Spec: f.Tar}, nil
	}
}
