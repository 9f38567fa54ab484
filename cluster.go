// Package cluster implements an in-memory relation engine with deferred
// commits.
//
// A Record is the in-memory form of one entity row. A record may own
// one Collection per declared relation, holding its to-many children
// entirely in memory: children can be added, removed, replaced and
// queried with no storage round-trips, and the whole graph is committed
// as one related batch on Save. The reconciler diffs the in-memory
// listing against the persisted baseline by identity and applies the
// resulting inserts, updates and deletions, assigning back-references
// and explicit order values along the way.
//
// # Building a graph
//
//	band, err := cluster.New(bandEntity,
//	    cluster.WithValues(map[string]any{"name": "The Beatles"}),
//	    cluster.WithChildren("members",
//	        john, paul,
//	    ),
//	)
//
// # Committing
//
//	store := sql.NewStore(drv)
//	if err := band.SaveTo(ctx, store); err != nil { ... }
//
// Records are request-scoped and not safe for concurrent mutation. The
// reconciler runs every statement on the store it is given; pass a
// transaction-scoped store to make a graph commit atomic.
//
// # Serialization
//
// A whole graph round-trips through a portable tree form:
//
//	data, _ := band.EncodeJSON(ctx)
//	again, _ := cluster.DecodeJSON(bandEntity, data)
package cluster

import (
	"context"

	"github.com/syssam/cluster/schema"
)

// Row is one persisted row surfaced by a Store: its identity plus its
// column values (identity excluded).
type Row struct {
	ID     any
	Values map[string]any
}

// Store is the narrow persistence contract consumed by the engine. The
// dialect/sql package provides the SQL implementation; tests may supply
// fakes. Implementations do not open transactions: the caller scopes
// the store to an ambient transaction when atomicity is required.
type Store interface {
	// Insert persists one row and returns its identity. When values
	// carries the identity column, that identity is used as-is.
	Insert(ctx context.Context, e *schema.Entity, values map[string]any) (any, error)
	// Update persists the given column values for the identified row.
	Update(ctx context.Context, e *schema.Entity, id any, values map[string]any) error
	// Delete removes the identified rows.
	Delete(ctx context.Context, e *schema.Entity, ids []any) error
	// Get returns the identified row, or a NotFoundError.
	Get(ctx context.Context, e *schema.Entity, id any) (Row, error)
	// Children returns the rows whose back-reference column equals
	// owner, ordered by orderBy when non-empty.
	Children(ctx context.Context, e *schema.Entity, backref string, owner any, orderBy string) ([]Row, error)
}

// Load fetches a persisted record by identity from the store and binds
// the returned record to it. Relation collections start in their
// materialized state and defer to the store until first mutated.
func Load(ctx context.Context, store Store, e *schema.Entity, id any) (*Record, error) {
	row, err := store.Get(ctx, e, id)
	if err != nil {
		return nil, err
	}
	return fromRow(e, row, store)
}
