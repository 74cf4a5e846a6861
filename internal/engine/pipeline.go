package engine

import (
	"context"
	"fmt"
	"time"
)

// ResolverEntry holds a resolver with its ID for ordered resolution.
type ResolverEntry struct {
	ID       string
	Resolver Resolver
}

// Pipeline keeps the configured entries of a job in submission order.
type Pipeline struct {
	name      string
	date      time.Time
	resolvers []ResolverEntry
}

func NewPipeline(name string) *Pipeline {
	return &Pipeline{
		name: name,
		date: time.Now().UTC(),
	}
}

func (p *Pipeline) Name() string {
	return p.name
}

func (p *Pipeline) AddResolver(id string, resolver Resolver) error {
	for _, entry := range p.resolvers {
		if entry.ID == id {
			return fmt.Errorf("entry %s already exists", id)
		}
	}

	p.resolvers = append(p.resolvers, ResolverEntry{ID: id, Resolver: resolver})
	return nil
}

func (p *Pipeline) Date() time.Time {
	return p.date
}

// Resolve expands every resolver in order. The returned entries keep the
// order in which the resolvers were added.
func (p *Pipeline) Resolve(ctx context.Context) ([]Entry, error) {
	var entries []Entry

	for _, re := range p.resolvers {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled while resolving entry '%s': %w", re.ID, err)
		}

		resolved, err := re.Resolver.Resolve(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve entry '%s': %w", re.ID, err)
		}

		entries = append(entries, resolved...)
	}

	return entries, nil
}
