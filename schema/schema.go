// Package schema provides explicit entity descriptors for the cluster
// engine.
//
// An Entity enumerates an entity type's scalar fields and to-many child
// relations at config time. There is no runtime reflection: everything
// the engine knows about an entity comes from its descriptor.
//
//	member := schema.MustNew("band_member",
//	    schema.Fields(
//	        field.String("name").NotEmpty(),
//	    ),
//	)
//
//	band := schema.MustNew("band",
//	    schema.Fields(
//	        field.String("name").NotEmpty(),
//	    ),
//	    schema.Relations(
//	        rel.To("members", member).BackRef("band_id"),
//	    ),
//	)
//
// Entities may also be declared in YAML and loaded with LoadYAML.
package schema

import (
	"fmt"

	"github.com/go-openapi/inflect"

	"github.com/syssam/cluster/schema/field"
	"github.com/syssam/cluster/schema/rel"
)

// Field is the interface implemented by field builders.
type Field interface {
	Descriptor() *field.Descriptor
}

// Relation is the interface implemented by relation builders.
type Relation interface {
	Descriptor() *rel.Descriptor
}

// An Entity describes one entity type: its identity column, scalar
// fields and to-many child relations. Entities are immutable after New.
type Entity struct {
	name      string
	table     string
	idColumn  string
	fields    []*field.Descriptor
	fieldIdx  map[string]*field.Descriptor
	relations []*rel.Descriptor
	relIdx    map[string]*rel.Descriptor
}

// Option configures an Entity under construction.
type Option func(*Entity)

// Fields declares the entity's scalar fields.
func Fields(fs ...Field) Option {
	return func(e *Entity) {
		for _, f := range fs {
			e.fields = append(e.fields, f.Descriptor())
		}
	}
}

// Relations declares the entity's to-many child relations.
func Relations(rs ...Relation) Option {
	return func(e *Entity) {
		for _, r := range rs {
			e.relations = append(e.relations, r.Descriptor())
		}
	}
}

// Table overrides the storage table name. The default is the
// pluralized entity name.
func Table(name string) Option {
	return func(e *Entity) { e.table = name }
}

// IDColumn overrides the identity column name. The default is "id".
func IDColumn(name string) Option {
	return func(e *Entity) { e.idColumn = name }
}

// New constructs an Entity descriptor with the given name and options.
// It validates that field and relation names are unique, that every
// relation targets a *schema.Entity, and that a relation's order column
// is a declared integer field on the child.
func New(name string, opts ...Option) (*Entity, error) {
	if name == "" {
		return nil, fmt.Errorf("schema: entity name is required")
	}
	e := &Entity{
		name:     name,
		idColumn: "id",
		fieldIdx: make(map[string]*field.Descriptor),
		relIdx:   make(map[string]*rel.Descriptor),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.table == "" {
		e.table = inflect.Pluralize(name)
	}
	for _, fd := range e.fields {
		if !fd.Type.Valid() {
			return nil, fmt.Errorf("schema: entity %q: field %q has invalid type", name, fd.Name)
		}
		if _, ok := e.fieldIdx[fd.Name]; ok {
			return nil, fmt.Errorf("schema: entity %q: duplicate field %q", name, fd.Name)
		}
		e.fieldIdx[fd.Name] = fd
	}
	for _, rd := range e.relations {
		if _, ok := e.relIdx[rd.Name]; ok {
			return nil, fmt.Errorf("schema: entity %q: duplicate relation %q", name, rd.Name)
		}
		child, ok := rd.Child.(*Entity)
		if !ok || child == nil {
			return nil, fmt.Errorf("schema: entity %q: relation %q does not target a *schema.Entity", name, rd.Name)
		}
		if rd.BackRef == "" {
			rd.BackRef = name + "_id"
		}
		if col, ok := rd.OrderColumn(); ok {
			fd, declared := child.fieldIdx[col]
			if !declared {
				return nil, fmt.Errorf("schema: entity %q: relation %q: order column %q is not a field of %q", name, rd.Name, col, child.name)
			}
			if fd.Type != field.TypeInt {
				return nil, fmt.Errorf("schema: entity %q: relation %q: order column %q must be an int field", name, rd.Name, col)
			}
		}
		e.relIdx[rd.Name] = rd
	}
	return e, nil
}

// MustNew is like New but panics on error. Intended for package-level
// entity declarations.
func MustNew(name string, opts ...Option) *Entity {
	e, err := New(name, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// Name returns the entity name.
func (e *Entity) Name() string { return e.name }

// Table returns the storage table name.
func (e *Entity) Table() string { return e.table }

// IDColumn returns the identity column name.
func (e *Entity) IDColumn() string { return e.idColumn }

// Fields returns the declared fields in declaration order.
// The returned slice must not be mutated.
func (e *Entity) Fields() []*field.Descriptor { return e.fields }

// Field returns the descriptor of the named field.
func (e *Entity) Field(name string) (*field.Descriptor, bool) {
	fd, ok := e.fieldIdx[name]
	return fd, ok
}

// Relations returns the declared relations in declaration order.
// The returned slice must not be mutated.
func (e *Entity) Relations() []*rel.Descriptor { return e.relations }

// Relation returns the descriptor of the named relation.
func (e *Entity) Relation(name string) (*rel.Descriptor, bool) {
	rd, ok := e.relIdx[name]
	return rd, ok
}

// ChildOf returns the child entity targeted by the named relation.
func (e *Entity) ChildOf(relation string) (*Entity, bool) {
	rd, ok := e.relIdx[relation]
	if !ok {
		return nil, false
	}
	child, _ := rd.Child.(*Entity)
	return child, child != nil
}
