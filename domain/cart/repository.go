package cart

import "github.com/codewandler/cartes-go/core/es"

type Repository = es.Repository[*Cart, Event]

// NewRepository binds the generic repository to carts.
func NewRepository(store es.EventStore, opts ...es.RepositoryOption) *Repository {
	return es.NewRepository[*Cart, Event](Kind, store, NewRegistry(), ReconstructSeq, opts...)
}
