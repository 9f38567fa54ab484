package schema

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/syssam/cluster/schema/field"
	"github.com/syssam/cluster/schema/rel"
)

// yamlSchema mirrors the YAML schema declaration file.
type yamlSchema struct {
	Entities []yamlEntity `yaml:"entities"`
}

type yamlEntity struct {
	Name      string         `yaml:"name"`
	Table     string         `yaml:"table"`
	IDColumn  string         `yaml:"id_column"`
	Fields    []yamlField    `yaml:"fields"`
	Relations []yamlRelation `yaml:"relations"`
}

type yamlField struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Required bool   `yaml:"required"`
	Default  any    `yaml:"default"`
	Column   string `yaml:"column"`
	Comment  string `yaml:"comment"`
}

type yamlRelation struct {
	Name    string `yaml:"name"`
	Entity  string `yaml:"entity"`
	BackRef string `yaml:"backref"`
	OrderBy string `yaml:"order_by"`
	Comment string `yaml:"comment"`
}

// LoadYAML reads a YAML schema declaration and returns the declared
// entities keyed by name. Entities may reference each other in any
// declaration order; reference cycles are an error.
//
// Declaration form:
//
//	entities:
//	  - name: band_member
//	    fields:
//	      - {name: name, type: string, required: true}
//	  - name: band
//	    fields:
//	      - {name: name, type: string, required: true}
//	    relations:
//	      - {name: members, entity: band_member, backref: band_id}
func LoadYAML(r io.Reader) (map[string]*Entity, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("schema: read declaration: %w", err)
	}
	var doc yamlSchema
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schema: decode declaration: %w", err)
	}
	decls := make(map[string]*yamlEntity, len(doc.Entities))
	for i := range doc.Entities {
		d := &doc.Entities[i]
		if d.Name == "" {
			return nil, fmt.Errorf("schema: entity %d has no name", i)
		}
		if _, ok := decls[d.Name]; ok {
			return nil, fmt.Errorf("schema: duplicate entity %q", d.Name)
		}
		decls[d.Name] = d
	}
	l := &loader{decls: decls, built: make(map[string]*Entity), visiting: make(map[string]bool)}
	for _, d := range doc.Entities {
		if _, err := l.build(d.Name); err != nil {
			return nil, err
		}
	}
	return l.built, nil
}

type loader struct {
	decls    map[string]*yamlEntity
	built    map[string]*Entity
	visiting map[string]bool
}

func (l *loader) build(name string) (*Entity, error) {
	if e, ok := l.built[name]; ok {
		return e, nil
	}
	if l.visiting[name] {
		return nil, fmt.Errorf("schema: entity reference cycle through %q", name)
	}
	d, ok := l.decls[name]
	if !ok {
		return nil, fmt.Errorf("schema: unknown entity %q", name)
	}
	l.visiting[name] = true
	defer delete(l.visiting, name)

	var opts []Option
	if d.Table != "" {
		opts = append(opts, Table(d.Table))
	}
	if d.IDColumn != "" {
		opts = append(opts, IDColumn(d.IDColumn))
	}
	fs := make([]Field, 0, len(d.Fields))
	for _, fd := range d.Fields {
		f, err := buildField(name, fd)
		if err != nil {
			return nil, err
		}
		fs = append(fs, f)
	}
	opts = append(opts, Fields(fs...))
	rs := make([]Relation, 0, len(d.Relations))
	for _, rd := range d.Relations {
		if rd.Entity == "" {
			return nil, fmt.Errorf("schema: entity %q: relation %q has no target entity", name, rd.Name)
		}
		child, err := l.build(rd.Entity)
		if err != nil {
			return nil, err
		}
		b := rel.To(rd.Name, child)
		if rd.BackRef != "" {
			b = b.BackRef(rd.BackRef)
		}
		if rd.OrderBy != "" {
			b = b.OrderBy(rd.OrderBy)
		}
		if rd.Comment != "" {
			b = b.Comment(rd.Comment)
		}
		rs = append(rs, b)
	}
	opts = append(opts, Relations(rs...))
	e, err := New(name, opts...)
	if err != nil {
		return nil, err
	}
	l.built[name] = e
	return e, nil
}

// descField adapts a hand-assembled descriptor to the Field interface.
type descField struct {
	desc *field.Descriptor
}

func (f descField) Descriptor() *field.Descriptor { return f.desc }

func buildField(entity string, d yamlField) (Field, error) {
	t := field.TypeOf(d.Type)
	if !t.Valid() {
		return nil, fmt.Errorf("schema: entity %q: field %q has unknown type %q", entity, d.Name, d.Type)
	}
	fd := &field.Descriptor{
		Name:       d.Name,
		Type:       t,
		Optional:   !d.Required,
		StorageKey: d.Column,
		Comment:    d.Comment,
	}
	if d.Default != nil {
		v, err := normalizeDefault(t, d.Default)
		if err != nil {
			return nil, fmt.Errorf("schema: entity %q: field %q: %w", entity, d.Name, err)
		}
		fd.Default, fd.HasDefault = v, true
	}
	return descField{desc: fd}, nil
}

// normalizeDefault coerces a YAML default value to the field's carrier type.
func normalizeDefault(t field.Type, v any) (any, error) {
	switch t {
	case field.TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case field.TypeInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		}
	case field.TypeFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		}
	case field.TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("default %v is not valid for a %s field", v, t)
}
