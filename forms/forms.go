// Package forms binds HTML form submissions onto in-memory record
// graphs.
//
// A Binder declares one top-level form for a record's scalar fields
// plus one nested formset per configured relation. On validation it
// merges submitted rows into the record's relation collections by row
// identity, honors deletion and ordering markers, and defers all
// persistence to the record's own Save:
//
//	binder, err := forms.New(bandEntity, forms.Config{
//	    Fields:   []string{"name"},
//	    Formsets: []string{"members", "albums"},
//	})
//	binder.Bind(req.PostForm, band)
//	if binder.IsValid(ctx) {
//	    band, err = binder.Save(ctx, true)
//	}
//
// # Submission contract
//
// Formset keys are namespaced by the relation name (or a configured
// alternate FormsetName). Each formset carries a management block
//
//	members-TOTAL_FORMS, members-INITIAL_FORMS, members-MAX_NUM_FORMS
//
// and per-row keys
//
//	members-0-name, members-0-id, members-0-DELETE, members-0-ORDER
//
// with nested formsets extending the row prefix (albums-0-songs-...).
// A missing or malformed management block for a configured relation is
// always a validation failure, never a panic.
//
// Rows flagged DELETE are exempt from field validation and excluded
// from the merged listing; if they carry an identity the reconciler
// deletes the persisted row on save. Rows with an ORDER marker are
// merged in marker order regardless of submission order.
package forms

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/syssam/cluster"
	"github.com/syssam/cluster/schema"
	"github.com/syssam/cluster/schema/field"
	"github.com/syssam/cluster/schema/rel"
)

// ErrNotValid is returned by Save when the bound submission did not
// validate.
var ErrNotValid = errors.New("forms: submission did not validate")

// ErrNotBound is returned when validation or save is attempted before
// Bind.
var ErrNotBound = errors.New("forms: binder is not bound to a submission")

// A Widget selects the rendered input kind for one field.
type Widget uint8

// Available widgets. WidgetAuto picks per field type: text for
// strings, number for ints and floats, date for times, checkbox for
// bools.
const (
	WidgetAuto Widget = iota
	TextInput
	Textarea
	NumberInput
	DateInput
	CheckboxInput
	HiddenInput
)

// RowForm customizes per-row handling for one relation, the custom
// form class of the row. Clean runs after field parsing on the parsed
// row values; returning an error attaches it to the row.
type RowForm interface {
	Clean(values map[string]any) error
}

// RowFormFunc adapts a function to the RowForm interface.
type RowFormFunc func(map[string]any) error

// Clean calls f.
func (f RowFormFunc) Clean(values map[string]any) error { return f(values) }

// FormsetConfig configures one relation's nested formset.
type FormsetConfig struct {
	// Fields restricts the child fields bound by the formset.
	// nil means all declared fields.
	Fields []string
	// Widgets overrides rendered inputs per child field.
	Widgets map[string]Widget
	// FormsetName sets an alternate submission namespace. The default
	// is the relation name.
	FormsetName string
	// Extra is the number of blank rows rendered for unbound forms.
	// Zero means the default of 3.
	Extra int
	// MaxForms caps the number of submitted rows honored. Zero means
	// the default of 1000.
	MaxForms int
	// InheritArgs names the binder options propagated into this
	// formset's forms. By default no options propagate.
	InheritArgs []string
	// Form is an optional custom row form.
	Form RowForm
	// Formsets restricts which of the child's own relations get nested
	// formsets. nil means all of them.
	Formsets []string
}

// Config configures a Binder.
type Config struct {
	// Fields names the root scalar fields bound by the form.
	Fields []string
	// Widgets overrides rendered inputs per root field.
	Widgets map[string]Widget
	// Formsets is the include-list of relations receiving nested
	// formsets. When nil, the keys of FormsetConfigs are used; when
	// those are empty too, ExcludeFormsets (all declared relations
	// minus the listed ones) applies; otherwise no formsets are built.
	Formsets []string
	// ExcludeFormsets excludes relations when no include-list is given.
	ExcludeFormsets []string
	// FormsetConfigs carries per-relation configuration.
	FormsetConfigs map[string]FormsetConfig
}

// Option is a binder constructor argument. Options apply to the
// top-level form only; they propagate into a nested formset's forms
// when named by that formset's InheritArgs.
type Option func(*binderOptions)

type binderOptions struct {
	labelSuffix *string
}

// OptionLabelSuffix is the option name for WithLabelSuffix, for use in
// FormsetConfig.InheritArgs.
const OptionLabelSuffix = "label_suffix"

// WithLabelSuffix overrides the suffix appended to rendered labels.
// The default is ":".
func WithLabelSuffix(s string) Option {
	return func(o *binderOptions) { o.labelSuffix = &s }
}

// inherit returns the subset of options named in keep.
func (o binderOptions) inherit(keep []string) binderOptions {
	var out binderOptions
	for _, name := range keep {
		if name == OptionLabelSuffix {
			out.labelSuffix = o.labelSuffix
		}
	}
	return out
}

func (o binderOptions) suffix() string {
	if o.labelSuffix != nil {
		return *o.labelSuffix
	}
	return ":"
}

// Defaults applied to formset configuration.
const (
	defaultExtra    = 3
	defaultMaxForms = 1000
)

// formsetDef is one resolved formset declaration.
type formsetDef struct {
	relName  string
	name     string // submission namespace.
	rel      *rel.Descriptor
	child    *schema.Entity
	fields   []*field.Descriptor
	widgets  map[string]Widget
	extra    int
	maxForms int
	form     RowForm
	opts     binderOptions
	nested   []*formsetDef
}

// A Binder is the binding surface for one record graph: a top-level
// form over the root entity's scalar fields plus one formset per
// configured relation. Its lifecycle is unbound, bound (after Bind),
// validated (after IsValid) and saved.
type Binder struct {
	entity  *schema.Entity
	fields  []*field.Descriptor
	widgets map[string]Widget
	defs    []*formsetDef
	opts    binderOptions

	bound     bool
	data      url.Values
	instance  *cluster.Record
	validated bool
	valid     bool
	errs      *Errors
	values    map[string]any
	plans     []*formsetPlan
}

// New builds a Binder for the given entity and configuration.
func New(e *schema.Entity, cfg Config, opts ...Option) (*Binder, error) {
	b := &Binder{entity: e, widgets: cfg.Widgets}
	for _, opt := range opts {
		opt(&b.opts)
	}
	for _, name := range cfg.Fields {
		fd, ok := e.Field(name)
		if !ok {
			return nil, fmt.Errorf("forms: entity %q has no field %q", e.Name(), name)
		}
		b.fields = append(b.fields, fd)
	}
	included, err := includedRelations(e, cfg)
	if err != nil {
		return nil, err
	}
	seen := map[*schema.Entity]bool{e: true}
	for _, relName := range included {
		fcfg := cfg.FormsetConfigs[relName]
		def, err := buildDef(e, relName, fcfg, b.opts, seen)
		if err != nil {
			return nil, err
		}
		b.defs = append(b.defs, def)
	}
	return b, nil
}

// includedRelations resolves which relations get formsets, preserving
// the entity's declaration order.
func includedRelations(e *schema.Entity, cfg Config) ([]string, error) {
	switch {
	case cfg.Formsets != nil:
		for _, name := range cfg.Formsets {
			if _, ok := e.Relation(name); !ok {
				return nil, fmt.Errorf("forms: entity %q has no relation %q", e.Name(), name)
			}
		}
		return cfg.Formsets, nil
	case len(cfg.FormsetConfigs) > 0:
		var out []string
		for _, rd := range e.Relations() {
			if _, ok := cfg.FormsetConfigs[rd.Name]; ok {
				out = append(out, rd.Name)
			}
		}
		if len(out) != len(cfg.FormsetConfigs) {
			for name := range cfg.FormsetConfigs {
				if _, ok := e.Relation(name); !ok {
					return nil, fmt.Errorf("forms: entity %q has no relation %q", e.Name(), name)
				}
			}
		}
		return out, nil
	case cfg.ExcludeFormsets != nil:
		excluded := make(map[string]bool, len(cfg.ExcludeFormsets))
		for _, name := range cfg.ExcludeFormsets {
			excluded[name] = true
		}
		var out []string
		for _, rd := range e.Relations() {
			if !excluded[rd.Name] {
				out = append(out, rd.Name)
			}
		}
		return out, nil
	default:
		return nil, nil
	}
}

// buildDef resolves one formset declaration, recursing into the
// child's own relations. seen guards against schema cycles.
func buildDef(e *schema.Entity, relName string, cfg FormsetConfig, parent binderOptions, seen map[*schema.Entity]bool) (*formsetDef, error) {
	rd, ok := e.Relation(relName)
	if !ok {
		return nil, fmt.Errorf("forms: entity %q has no relation %q", e.Name(), relName)
	}
	child, _ := e.ChildOf(relName)
	def := &formsetDef{
		relName:  relName,
		name:     relName,
		rel:      rd,
		child:    child,
		widgets:  cfg.Widgets,
		extra:    cfg.Extra,
		maxForms: cfg.MaxForms,
		form:     cfg.Form,
		opts:     parent.inherit(cfg.InheritArgs),
	}
	if cfg.FormsetName != "" {
		def.name = cfg.FormsetName
	}
	if def.extra == 0 {
		def.extra = defaultExtra
	}
	if def.maxForms == 0 {
		def.maxForms = defaultMaxForms
	}
	if cfg.Fields != nil {
		for _, name := range cfg.Fields {
			fd, ok := child.Field(name)
			if !ok {
				return nil, fmt.Errorf("forms: entity %q has no field %q", child.Name(), name)
			}
			def.fields = append(def.fields, fd)
		}
	} else {
		def.fields = child.Fields()
	}
	if seen[child] {
		return def, nil
	}
	seen[child] = true
	defer delete(seen, child)
	nested := cfg.Formsets
	if nested == nil {
		for _, crd := range child.Relations() {
			nested = append(nested, crd.Name)
		}
	}
	for _, name := range nested {
		// Nested formsets inherit this formset's effective options and
		// use the child relation's defaults.
		nd, err := buildDef(child, name, FormsetConfig{InheritArgs: []string{OptionLabelSuffix}}, def.opts, seen)
		if err != nil {
			return nil, err
		}
		def.nested = append(def.nested, nd)
	}
	return def, nil
}

// FormsetNames returns the submission namespaces of the configured
// formsets, in configuration order.
func (b *Binder) FormsetNames() []string {
	out := make([]string, len(b.defs))
	for i, def := range b.defs {
		out[i] = def.name
	}
	return out
}

// HasFormsets reports whether any formset is configured.
func (b *Binder) HasFormsets() bool { return len(b.defs) > 0 }

// Instance returns the record the binder operates on. It is nil until
// Bind, and for a bind without an instance it is created on Save.
func (b *Binder) Instance() *cluster.Record { return b.instance }

// Bind binds a submission and an optional existing record to the
// binder. A nil instance means the submission creates a fresh record
// on Save.
func (b *Binder) Bind(data url.Values, instance *cluster.Record) error {
	if instance != nil && instance.Entity() != b.entity {
		return fmt.Errorf("forms: binder for %q bound to a %q record", b.entity.Name(), instance.Entity().Name())
	}
	b.data = data
	b.instance = instance
	b.bound = true
	b.validated = false
	b.valid = false
	b.errs = nil
	return nil
}

// IsValid validates the bound submission: the top-level form and every
// configured formset, including nested ones. Ordinary submission
// errors are collected in Errors rather than raised; IsValid is false
// until Bind.
func (b *Binder) IsValid(ctx context.Context) bool {
	if !b.bound {
		return false
	}
	if !b.validated {
		b.validate(ctx)
	}
	return b.valid
}

// Errors returns the validation errors of the last IsValid run.
func (b *Binder) Errors() *Errors {
	if b.errs == nil {
		b.errs = newErrors()
	}
	return b.errs
}

// validate parses root fields and binds every formset.
func (b *Binder) validate(ctx context.Context) {
	b.errs = newErrors()
	b.values = make(map[string]any, len(b.fields))
	for _, fd := range b.fields {
		raw := b.data.Get(fd.Name)
		v, err := parseField(fd, raw)
		if err != nil {
			b.errs.Fields[fd.Name] = append(b.errs.Fields[fd.Name], err.Error())
			continue
		}
		b.values[fd.Name] = v
	}
	b.plans = b.plans[:0]
	for _, def := range b.defs {
		fe := newFormsetErrors()
		b.errs.Formsets[def.name] = fe
		plan := bindFormset(ctx, def, def.name, b.data, b.instance, fe)
		b.plans = append(b.plans, plan)
	}
	b.validated = true
	b.valid = b.errs.Empty()
}

// Save writes the validated scalar fields onto the record and each
// formset's merged listing onto the corresponding relation collection,
// then delegates to the record's Save when commit is true, or applies
// in-memory normalization only when commit is false. The record is
// returned in either case.
func (b *Binder) Save(ctx context.Context, commit bool) (*cluster.Record, error) {
	if !b.bound {
		return nil, ErrNotBound
	}
	if !b.IsValid(ctx) {
		return nil, ErrNotValid
	}
	if b.instance == nil {
		instance, err := cluster.New(b.entity)
		if err != nil {
			return nil, err
		}
		b.instance = instance
	}
	for _, fd := range b.fields {
		if v, ok := b.values[fd.Name]; ok {
			if err := b.instance.Set(fd.Name, v); err != nil {
				return nil, err
			}
		}
	}
	for _, plan := range b.plans {
		if err := plan.apply(ctx, b.instance); err != nil {
			return nil, err
		}
	}
	if !commit {
		b.instance.Normalize()
		return b.instance, nil
	}
	if err := b.instance.Save(ctx); err != nil {
		return nil, err
	}
	return b.instance, nil
}

// parseField parses one submitted raw value per the field descriptor.
// An empty submission is nil; required fields reject it.
func parseField(fd *field.Descriptor, raw string) (any, error) {
	if raw == "" {
		if !fd.Optional {
			return nil, fmt.Errorf("this field is required")
		}
		return nil, nil
	}
	v, err := cluster.Coerce(fd.Type, raw)
	if err != nil {
		return nil, fmt.Errorf("enter a valid %s value", fd.Type)
	}
	for _, validate := range fd.Validators {
		if err := validate(v); err != nil {
			return nil, err
		}
	}
	return v, nil
}
