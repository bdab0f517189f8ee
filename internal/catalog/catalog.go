// Package catalog keeps the category tree and product membership
// consistent: it guards structural changes, maintains the denormalized
// product counts, and serves tree views.
package catalog

// Service wires the engine components over one store.
type Service struct {
	Resolver *Resolver
	Counts   *CountSynchronizer
	Mutator  *Mutator
	Reader   *Reader
}

// New builds a Service. cache and audit may be nil.
func New(store CatalogStore, cache TreeCache, audit RecomputeLogger) *Service {
	if cache != nil {
		cache = &generationCache{TreeCache: cache}
	}
	resolver := NewResolver(store)
	counts := NewCountSynchronizer(store, resolver, cache, audit)
	return &Service{
		Resolver: resolver,
		Counts:   counts,
		Mutator:  NewMutator(store, resolver, counts, cache),
		Reader:   NewReader(store, resolver, cache),
	}
}
