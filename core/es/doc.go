// Package es provides the event sourcing core: an append-only, per-stream
// event log with optimistic concurrency, an event registry to decode stored
// records, and a generic repository that folds streams into aggregate state.
//
// # Streams and revisions
//
// Every aggregate instance owns one stream, named "<kind>-<id>" (see
// [StreamName]). Events in a stream carry a 0-based [Revision] assigned by the
// store. Appends are conditioned on an [ExpectedRevision]:
//
//	res, err := store.Append(ctx, "shopping_cart-42", es.NoStream, events)
//	_, err = store.Append(ctx, "shopping_cart-42", es.ExactRevision(res.Revision), more)
//
// A mismatch fails with a [*ConflictError], which matches
// [ErrConcurrencyConflict] and reports the actual stream state.
//
// # Reading
//
// [EventStore.ReadStream] returns a lazy [Records] sequence. Breaking out of
// the range loop stops the read:
//
//	records, err := store.ReadStream(ctx, stream, es.FromRevision(3), es.MaxCount(10))
//	for rec, err := range records {
//	    ...
//	}
//
// # Repository
//
// [Repository] is generic over the aggregate state S and the event sum type E.
// Load folds the stream through a [FoldFunc]; Save encodes events with their
// type tags and appends them. The repository never retries conflicts.
//
//	repo := es.NewRepository[*cart.Cart, cart.Event]("shopping_cart", store, registry, cart.ReconstructSeq)
//	c, rev, err := repo.Load(ctx, id)
//	_, err = repo.Save(ctx, id, es.ExactRevision(rev), newEvents)
//
// # Errors
//
// Errors wrap exactly one category: [ErrDomainViolation], [ErrConcurrencyConflict],
// [ErrNotFound] or [ErrTransient]. Match them with errors.Is.
//
// # Implementations
//
// [InMemoryStore] lives here. NATS JetStream, SQLite and Redis stores live in
// the adapters packages and are verified against the same conformance suite
// in package estests.
package es
