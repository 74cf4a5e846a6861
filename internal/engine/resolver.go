package engine

import "context"

// Resolver turns one configured job entry into the archive entries it stands
// for. A glob resolves to many entries, most other kinds to exactly one.
type Resolver interface {
	Named
	Resolve(ctx context.Context) ([]Entry, error)
}

type resolverFunc struct {
	name    string
	kind    string
	resolve func(ctx context.Context) ([]Entry, error)
}

func (r *resolverFunc) Name() string { return r.name }
func (r *resolverFunc) Kind() string { return r.kind }

func (r *resolverFunc) Resolve(ctx context.Context) ([]Entry, error) {
	return r.resolve(ctx)
}

// ResolverFunction builds a Resolver from a plain function.
func ResolverFunction(name, kind string, resolve func(ctx context.Context) ([]Entry, error)) Resolver {
	return &resolverFunc{name: name, kind: kind, resolve: resolve}
}
