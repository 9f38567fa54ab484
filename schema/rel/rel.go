// Package rel provides fluent builders for declaring to-many child
// relations between entities.
//
//	rel.To("members", member).
//	    BackRef("band_id")
//
//	rel.To("albums", album).
//	    BackRef("band_id").
//	    OrderBy("sort_order")
//
// The second argument to To is the child's *schema.Entity. It is typed
// as any here to keep this package free of a dependency on the schema
// package; schema.New resolves and checks it.
package rel

// A Descriptor for relation configuration.
type Descriptor struct {
	Name    string // relation name.
	Child   any    // child entity (*schema.Entity).
	BackRef string // child column holding the owner's identity.
	OrderBy string // optional child column controlling listing order.
	Comment string // descriptor comment.
}

// builder is the builder for to-many relations.
type builder struct {
	desc *Descriptor
}

// To returns a new relation builder for a to-many relation with the
// given name targeting the given child entity.
func To(name string, child any) *builder {
	return &builder{desc: &Descriptor{Name: name, Child: child}}
}

// BackRef sets the child column that holds the owning entity's identity.
// If unset, it defaults to "<owner>_id".
func (b *builder) BackRef(column string) *builder {
	b.desc.BackRef = column
	return b
}

// OrderBy declares an explicit order column on the child. When set,
// collection iteration is non-decreasing by this column (ties keep
// insertion order) and the reconciler writes sequential values into it
// on commit so storage reproduces the in-memory order.
func (b *builder) OrderBy(column string) *builder {
	b.desc.OrderBy = column
	return b
}

// Comment sets the descriptor comment.
func (b *builder) Comment(c string) *builder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the cluster.Relation interface by returning its descriptor.
func (b *builder) Descriptor() *Descriptor {
	return b.desc
}

// OrderColumn reports the order column declared for the relation, if any.
func (d *Descriptor) OrderColumn() (string, bool) {
	return d.OrderBy, d.OrderBy != ""
}
