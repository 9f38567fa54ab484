package cluster

import (
	"context"
	"sort"

	"github.com/syssam/cluster/schema"
	"github.com/syssam/cluster/schema/rel"
)

// A Collection is the in-memory, mutable stand-in for one to-many
// relation on a record. It starts in its materialized state: when the
// owner is persisted and bound to a store, reads defer to a live
// storage query. The first mutation snapshots the live listing and the
// collection operates purely in memory until the next commit
// (its overridden state).
//
// Membership is keyed by the child's identity when persisted, and by
// reference when not.
type Collection struct {
	owner *Record
	desc  *rel.Descriptor
	child *schema.Entity

	// Overridden state. items are kept in insertion order; listings
	// are sorted by the declared order column on the way out.
	overridden bool
	items      []*Record
	deleted    map[string]any // identities staged for deletion.
}

// Name returns the relation name.
func (c *Collection) Name() string { return c.desc.Name }

// Child returns the child entity descriptor.
func (c *Collection) Child() *schema.Entity { return c.child }

// Overridden reports whether the collection has diverged from storage
// and operates in memory.
func (c *Collection) Overridden() bool { return c.overridden }

// All returns the children in invariant order: non-decreasing by the
// declared order column when one exists (ties and unset values keep
// insertion order), insertion order otherwise. The returned slice is a
// copy; iterating it is restartable.
func (c *Collection) All(ctx context.Context) ([]*Record, error) {
	items, err := c.listing(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Record, len(items))
	copy(out, items)
	c.sortListing(out)
	return out, nil
}

// Add appends a child to the collection. Adding a record of the wrong
// entity type fails immediately with a TypeError. Adding a child
// already listed (same reference, or same identity when persisted) is
// idempotent: the existing entry is replaced in place.
func (c *Collection) Add(ctx context.Context, child *Record) error {
	if err := c.check(child); err != nil {
		return err
	}
	if err := c.override(ctx); err != nil {
		return err
	}
	if child.Persisted() {
		delete(c.deleted, identityKey(child.ID()))
	}
	if i := c.indexOf(child); i >= 0 {
		c.items[i] = child
		return nil
	}
	c.items = append(c.items, child)
	return nil
}

// Remove removes a child from the collection: by identity when
// persisted, by reference otherwise. Removing an absent child is a
// no-op. A removed persisted child is staged for deletion on the next
// commit.
func (c *Collection) Remove(ctx context.Context, child *Record) error {
	if err := c.check(child); err != nil {
		return err
	}
	if err := c.override(ctx); err != nil {
		return err
	}
	i := c.indexOf(child)
	if i < 0 {
		return nil
	}
	c.stageDeletion(c.items[i])
	c.items = append(c.items[:i], c.items[i+1:]...)
	return nil
}

// Set replaces the whole listing. Previously listed persisted children
// absent from the new listing are staged for deletion on the next
// commit.
func (c *Collection) Set(ctx context.Context, children ...*Record) error {
	for _, child := range children {
		if err := c.check(child); err != nil {
			return err
		}
	}
	if err := c.override(ctx); err != nil {
		return err
	}
	return c.replace(children)
}

// setLocal is Set without store access: the staging baseline is
// whatever listing is already in memory. Used during construction and
// deserialization.
func (c *Collection) setLocal(children []*Record) error {
	for _, child := range children {
		if err := c.check(child); err != nil {
			return err
		}
	}
	c.overridden = true
	return c.replace(children)
}

func (c *Collection) replace(children []*Record) error {
	keep := make(map[string]bool, len(children))
	for _, child := range children {
		if child.Persisted() {
			keep[identityKey(child.ID())] = true
		}
	}
	for _, prev := range c.items {
		if prev.Persisted() && !keep[identityKey(prev.ID())] {
			c.stageDeletion(prev)
		}
	}
	for _, child := range children {
		if child.Persisted() {
			delete(c.deleted, identityKey(child.ID()))
		}
	}
	c.items = append(c.items[:0:0], children...)
	return nil
}

// Count returns the number of children.
func (c *Collection) Count(ctx context.Context) (int, error) {
	items, err := c.listing(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Filter returns the children matching every given predicate, in
// invariant order.
func (c *Collection) Filter(ctx context.Context, ps ...Predicate) ([]*Record, error) {
	return c.filter(ctx, And(ps...))
}

// Exclude returns the children matching none of the given predicates,
// in invariant order.
func (c *Collection) Exclude(ctx context.Context, ps ...Predicate) ([]*Record, error) {
	return c.filter(ctx, Not(And(ps...)))
}

// Exists reports whether any child matches every given predicate.
func (c *Collection) Exists(ctx context.Context, ps ...Predicate) (bool, error) {
	matches, err := c.Filter(ctx, ps...)
	if err != nil {
		return false, err
	}
	return len(matches) > 0, nil
}

// Get returns the single child matching every given predicate. It
// returns a NotFoundError when none matches and a NotSingularError
// when more than one does.
func (c *Collection) Get(ctx context.Context, ps ...Predicate) (*Record, error) {
	matches, err := c.Filter(ctx, ps...)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, NewNotFoundError(c.child.Name())
	default:
		return nil, NewNotSingularErrorWithCount(c.child.Name(), len(matches))
	}
}

// First returns the first child in invariant order, or a NotFoundError
// when the collection is empty.
func (c *Collection) First(ctx context.Context) (*Record, error) {
	items, err := c.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, NewNotFoundError(c.child.Name())
	}
	return items[0], nil
}

func (c *Collection) filter(ctx context.Context, p Predicate) ([]*Record, error) {
	items, err := c.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Record
	for _, item := range items {
		if p(item) {
			out = append(out, item)
		}
	}
	return out, nil
}

// check validates the child's entity type against the relation.
func (c *Collection) check(child *Record) error {
	if child == nil || child.entity != c.child {
		got := "nil"
		if child != nil {
			got = child.entity.Name()
		}
		return NewTypeError(c.desc.Name, c.child.Name(), got)
	}
	return nil
}

// listing returns the current in-memory items, materializing from the
// live store query when the collection has not been overridden.
func (c *Collection) listing(ctx context.Context) ([]*Record, error) {
	if c.overridden {
		return c.items, nil
	}
	return c.materialize(ctx)
}

// override snapshots the live listing (if any) into memory; every
// mutation goes through it.
func (c *Collection) override(ctx context.Context) error {
	if c.overridden {
		return nil
	}
	items, err := c.materialize(ctx)
	if err != nil {
		return err
	}
	c.items = items
	c.overridden = true
	return nil
}

// materialize fetches the persisted listing. An unbound or unpersisted
// owner has an empty one.
func (c *Collection) materialize(ctx context.Context) ([]*Record, error) {
	if c.owner.store == nil || !c.owner.Persisted() {
		return nil, nil
	}
	var orderBy string
	if name, ok := c.desc.OrderColumn(); ok {
		if fd, ok := c.child.Field(name); ok {
			orderBy = fd.Column()
		}
	}
	rows, err := c.owner.store.Children(ctx, c.child, c.desc.BackRef, c.owner.id, orderBy)
	if err != nil {
		return nil, NewQueryError(c.child.Name(), "children", err)
	}
	items := make([]*Record, 0, len(rows))
	for _, row := range rows {
		child, err := fromRow(c.child, row, c.owner.store)
		if err != nil {
			return nil, err
		}
		child.backref = c.owner.id
		items = append(items, child)
	}
	return items, nil
}

func (c *Collection) stageDeletion(child *Record) {
	if !child.Persisted() {
		return
	}
	if c.deleted == nil {
		c.deleted = make(map[string]any)
	}
	c.deleted[identityKey(child.ID())] = child.ID()
}

// indexOf locates a child per the membership rule: identity when
// persisted, reference otherwise.
func (c *Collection) indexOf(child *Record) int {
	for i, item := range c.items {
		if item == child {
			return i
		}
		if child.Persisted() && item.Persisted() && identityKey(item.ID()) == identityKey(child.ID()) {
			return i
		}
	}
	return -1
}

// sortListing applies the invariant order in place: stable,
// non-decreasing by the order column's value, entries without a value
// last.
func (c *Collection) sortListing(items []*Record) {
	col, ok := c.desc.OrderColumn()
	if !ok {
		return
	}
	name := col
	if fd, ok := c.child.Field(col); ok {
		name = fd.Name
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Get(name), items[j].Get(name)
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		cmp, ok := compareValues(a, b)
		return ok && cmp < 0
	})
}
