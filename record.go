package cluster

import (
	"fmt"

	"github.com/syssam/cluster/schema"
)

// A Record is the in-memory form of one entity row: a nullable
// identity, scalar field values and one Collection per declared
// relation. A record may be bound to a Store, in which case its
// collections materialize against storage until mutated; an unbound
// record lives entirely in memory.
type Record struct {
	entity   *schema.Entity
	id       any
	backref  any // owning root identity, assigned by the reconciler.
	values   map[string]any
	rels     map[string]*Collection
	store    Store
	pristine []byte // snapshot at load time; nil for records never loaded.
}

// RecordOption configures a record under construction.
type RecordOption func(*Record) error

// WithStore binds the record to a store.
func WithStore(s Store) RecordOption {
	return func(r *Record) error {
		r.store = s
		return nil
	}
}

// WithID sets the record's identity. A record carrying an identity is
// treated as referring to a potentially existing persisted row.
func WithID(id any) RecordOption {
	return func(r *Record) error {
		r.id = id
		return nil
	}
}

// WithValues sets scalar field values. Values are coerced and
// validated per the entity's field descriptors.
func WithValues(values map[string]any) RecordOption {
	return func(r *Record) error {
		return r.SetValues(values)
	}
}

// WithChildren replaces the listing of the named relation, with Set
// semantics: previously listed persisted children absent from the new
// listing are staged for deletion on the next commit.
func WithChildren(relation string, children ...*Record) RecordOption {
	return func(r *Record) error {
		c, err := r.relation(relation)
		if err != nil {
			return err
		}
		return c.setLocal(children)
	}
}

// New constructs a record of the given entity type.
func New(e *schema.Entity, opts ...RecordOption) (*Record, error) {
	r := &Record{
		entity: e,
		values: make(map[string]any),
		rels:   make(map[string]*Collection),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustNew is like New but panics on error. Intended for fixtures and
// tests.
func MustNew(e *schema.Entity, opts ...RecordOption) *Record {
	r, err := New(e, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// fromRow builds a record from a persisted row, taking its pristine
// snapshot so unchanged records are skipped on the next commit.
func fromRow(e *schema.Entity, row Row, store Store) (*Record, error) {
	r := &Record{
		entity: e,
		id:     row.ID,
		values: make(map[string]any, len(row.Values)),
		rels:   make(map[string]*Collection),
		store:  store,
	}
	for _, fd := range e.Fields() {
		raw, ok := row.Values[fd.Column()]
		if !ok || raw == nil {
			continue
		}
		v, err := Coerce(fd.Type, raw)
		if err != nil {
			return nil, NewValidationError(fd.Name, err)
		}
		r.values[fd.Name] = v
	}
	r.pristine = r.snapshot()
	return r, nil
}

// Entity returns the record's entity descriptor.
func (r *Record) Entity() *schema.Entity { return r.entity }

// ID returns the record's identity, or nil if the record has never
// been persisted.
func (r *Record) ID() any { return r.id }

// SetID sets the record's identity.
func (r *Record) SetID(id any) { r.id = id }

// Persisted reports whether the record carries an identity.
func (r *Record) Persisted() bool { return r.id != nil }

// BackRef returns the identity of the owning root assigned to this
// record, or nil if none has been assigned yet. The reconciler assigns
// it at commit time for every child lacking one.
func (r *Record) BackRef() any { return r.backref }

// SetBackRef sets the back-reference to the owning root's identity.
func (r *Record) SetBackRef(id any) { r.backref = id }

// Get returns the value of the named field, or nil when unset.
func (r *Record) Get(name string) any { return r.values[name] }

// Set coerces and validates v per the named field's descriptor and
// stores it. Setting nil clears the field.
func (r *Record) Set(name string, v any) error {
	fd, ok := r.entity.Field(name)
	if !ok {
		return NewValidationError(name, fmt.Errorf("unknown field on entity %q", r.entity.Name()))
	}
	cv, err := Coerce(fd.Type, v)
	if err != nil {
		return NewValidationError(name, err)
	}
	if cv != nil {
		for _, validate := range fd.Validators {
			if err := validate(cv); err != nil {
				return NewValidationError(name, err)
			}
		}
	}
	if cv == nil {
		delete(r.values, name)
		return nil
	}
	r.values[name] = cv
	return nil
}

// SetValues sets multiple field values, collecting all failures.
func (r *Record) SetValues(values map[string]any) error {
	var errs []error
	for _, fd := range r.entity.Fields() {
		v, ok := values[fd.Name]
		if !ok {
			continue
		}
		errs = append(errs, r.Set(fd.Name, v))
	}
	for name := range values {
		if _, ok := r.entity.Field(name); !ok {
			errs = append(errs, NewValidationError(name, fmt.Errorf("unknown field on entity %q", r.entity.Name())))
		}
	}
	return NewAggregateError(errs...)
}

// Values returns a copy of the record's field values keyed by field name.
func (r *Record) Values() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Relation returns the collection of the named relation. It panics if
// the relation is not declared on the record's entity; use
// Entity().Relation to probe.
func (r *Record) Relation(name string) *Collection {
	c, err := r.relation(name)
	if err != nil {
		panic(err)
	}
	return c
}

func (r *Record) relation(name string) (*Collection, error) {
	if c, ok := r.rels[name]; ok {
		return c, nil
	}
	rd, ok := r.entity.Relation(name)
	if !ok {
		return nil, fmt.Errorf("cluster: entity %q has no relation %q", r.entity.Name(), name)
	}
	child, _ := r.entity.ChildOf(name)
	c := &Collection{owner: r, desc: rd, child: child}
	r.rels[name] = c
	return c, nil
}

// Normalize applies declared field defaults to unset fields, on the
// record and recursively on every in-memory child. It performs no
// persistence; it is the commit=false half of a save.
func (r *Record) Normalize() {
	for _, fd := range r.entity.Fields() {
		if !fd.HasDefault {
			continue
		}
		if _, ok := r.values[fd.Name]; !ok {
			r.values[fd.Name] = fd.Default
		}
	}
	for _, rd := range r.entity.Relations() {
		c, ok := r.rels[rd.Name]
		if !ok || !c.overridden {
			continue
		}
		for _, child := range c.items {
			child.Normalize()
		}
	}
}

// Bind binds the record and its in-memory children to a store without
// persisting anything.
func (r *Record) Bind(store Store) {
	r.store = store
	for _, c := range r.rels {
		for _, child := range c.items {
			child.Bind(store)
		}
	}
}

// Store returns the store the record is bound to, or nil.
func (r *Record) Store() Store { return r.store }
