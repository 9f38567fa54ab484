package cluster

import (
	"context"

	"github.com/syssam/cluster/schema"
)

// Save commits the record and its whole in-memory graph to the store
// it is bound to. See SaveTo.
func (r *Record) Save(ctx context.Context) error {
	return r.SaveTo(ctx, r.store)
}

// SaveTo commits the record and its whole in-memory graph to the given
// store, binding the record to it: field defaults are applied, the root
// row is persisted first, then every relation collection is reconciled
// against its persisted baseline: deletions first, then inserts and
// updates in listing order, walking nested graphs so grandchildren are
// reconciled once their parent row exists.
//
// If persisting the root fails no collection is touched. Later
// failures abort the remaining steps and leave the in-memory graph in
// the state the failure point reached. For atomicity across steps,
// pass a transaction-scoped store.
//
// After a successful commit every reconciled collection returns to its
// materialized state, so subsequent reads observe storage.
func (r *Record) SaveTo(ctx context.Context, store Store) error {
	if store == nil {
		return ErrNoStore
	}
	r.store = store
	r.Normalize()
	if err := saveRoot(ctx, store, r); err != nil {
		return err
	}
	stack := []*Record{r}
	for len(stack) > 0 {
		rec := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, rd := range rec.entity.Relations() {
			children, err := reconcile(ctx, store, rec, rd.Name)
			if err != nil {
				return err
			}
			// LIFO; reversing keeps sibling reconciliation in
			// declaration order.
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, children[i])
			}
		}
	}
	return nil
}

// saveRoot persists the root row itself: insert when the record has no
// identity, update otherwise. Updates of unchanged, previously loaded
// records are skipped.
func saveRoot(ctx context.Context, store Store, r *Record) error {
	cur := r.snapshot()
	switch {
	case !r.Persisted():
		id, err := store.Insert(ctx, r.entity, r.columnValues())
		if err != nil {
			return NewMutationError(r.entity.Name(), "insert", err)
		}
		r.id = id
	case r.pristine == nil:
		// Caller-assigned identity on a record never loaded from this
		// store. The row may not exist yet.
		_, err := store.Get(ctx, r.entity, r.id)
		switch {
		case IsNotFound(err):
			values := r.columnValues()
			values[r.entity.IDColumn()] = r.id
			if _, err := store.Insert(ctx, r.entity, values); err != nil {
				return NewMutationError(r.entity.Name(), "insert", err)
			}
		case err != nil:
			return NewQueryError(r.entity.Name(), "get", err)
		default:
			if err := store.Update(ctx, r.entity, r.id, r.columnValues()); err != nil {
				return NewMutationError(r.entity.Name(), "update", err)
			}
		}
	case Classify(r.pristine, cur) != Unchanged:
		if err := store.Update(ctx, r.entity, r.id, r.columnValues()); err != nil {
			return NewMutationError(r.entity.Name(), "update", err)
		}
	}
	r.pristine = cur
	return nil
}

// reconcile diffs one overridden collection against its persisted
// baseline and applies the result. It returns the final listing so the
// caller can walk into nested graphs. Collections still in their
// materialized state have nothing staged and are skipped.
func reconcile(ctx context.Context, store Store, owner *Record, relation string) ([]*Record, error) {
	c, ok := owner.rels[relation]
	if !ok || !c.overridden {
		return nil, nil
	}
	child := c.child
	listing := make([]*Record, len(c.items))
	copy(listing, c.items)
	c.sortListing(listing)

	// Assign back-references and explicit order values before diffing,
	// so both participate in the change classification.
	orderField, hasOrder := c.desc.OrderColumn()
	for i, m := range listing {
		if m.backref == nil {
			m.backref = owner.id
		}
		m.store = store
		if hasOrder {
			if err := m.Set(orderField, int64(i+1)); err != nil {
				return nil, err
			}
		}
	}

	orderBy := ""
	if hasOrder {
		if fd, ok := child.Field(orderField); ok {
			orderBy = fd.Column()
		}
	}
	rows, err := store.Children(ctx, child, c.desc.BackRef, owner.id, orderBy)
	if err != nil {
		return nil, NewQueryError(child.Name(), "children", err)
	}
	baseline := make(map[string]Row, len(rows))
	for _, row := range rows {
		baseline[identityKey(row.ID)] = row
	}
	listed := make(map[string]bool, len(listing))
	for _, m := range listing {
		if m.Persisted() {
			listed[identityKey(m.ID())] = true
		}
	}

	// Deletions first: baseline rows no longer referenced, plus the
	// staged deletion set.
	var toDelete []any
	deleted := make(map[string]bool)
	for key, row := range baseline {
		if !listed[key] {
			toDelete = append(toDelete, row.ID)
			deleted[key] = true
		}
	}
	for key, id := range c.deleted {
		if !listed[key] && !deleted[key] {
			toDelete = append(toDelete, id)
			deleted[key] = true
		}
	}
	if err := deleteGraph(ctx, store, child, toDelete); err != nil {
		return nil, err
	}

	// Upserts in listing order.
	for _, m := range listing {
		values := m.columnValues()
		values[c.desc.BackRef] = m.backref
		cur := m.snapshot()
		switch {
		case !m.Persisted():
			id, err := store.Insert(ctx, child, values)
			if err != nil {
				return nil, NewMutationError(child.Name(), "insert", err)
			}
			m.id = id
		default:
			key := identityKey(m.ID())
			row, inBaseline := baseline[key]
			if !inBaseline {
				// Identity unknown to this relation's baseline:
				// treated as new, keeping the caller-assigned identity.
				values[child.IDColumn()] = m.ID()
				if _, err := store.Insert(ctx, child, values); err != nil {
					return nil, NewMutationError(child.Name(), "insert", err)
				}
				break
			}
			base, err := snapshotRow(child, row)
			if err != nil {
				return nil, err
			}
			if Classify(base, cur) == Unchanged {
				break
			}
			if err := store.Update(ctx, child, m.ID(), values); err != nil {
				return nil, NewMutationError(child.Name(), "update", err)
			}
		}
		m.pristine = cur
	}

	// Reconciled: return to the materialized state so reads observe
	// storage again.
	c.items = nil
	c.deleted = nil
	c.overridden = false
	return listing, nil
}

// deleteGraph removes the identified rows and, depth-first, every
// persisted descendant reachable through their declared relations.
// A deleted child must not leave orphans behind.
func deleteGraph(ctx context.Context, store Store, e *schema.Entity, ids []any) error {
	if len(ids) == 0 {
		return nil
	}
	for _, rd := range e.Relations() {
		child, _ := e.ChildOf(rd.Name)
		var childIDs []any
		for _, id := range ids {
			rows, err := store.Children(ctx, child, rd.BackRef, id, "")
			if err != nil {
				return NewQueryError(child.Name(), "children", err)
			}
			for _, row := range rows {
				childIDs = append(childIDs, row.ID)
			}
		}
		if err := deleteGraph(ctx, store, child, childIDs); err != nil {
			return err
		}
	}
	if err := store.Delete(ctx, e, ids); err != nil {
		return NewMutationError(e.Name(), "delete", err)
	}
	return nil
}

// columnValues maps every declared field to its storage column. Unset
// fields map to nil so a cleared field is written back as NULL.
func (r *Record) columnValues() map[string]any {
	out := make(map[string]any, len(r.entity.Fields()))
	for _, fd := range r.entity.Fields() {
		out[fd.Column()] = r.values[fd.Name]
	}
	return out
}
