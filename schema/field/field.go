// Package field provides fluent builders for declaring entity fields.
//
// Field names follow database conventions (snake_case) and double as the
// storage column name unless overridden with StorageKey:
//
//	field.String("name")
//	field.Int("sort_order")
//	field.Time("release_date")
//
// # Field Types
//
//	field.String("name")
//	field.Int("count")
//	field.Float("price")
//	field.Bool("is_active")
//	field.Time("created_at")
//	field.UUID("external_ref")
//
// # Field Options
//
//	field.String("name").
//	    NotEmpty().            // Reject the empty string
//	    Optional().            // Not required on input
//	    Default("unknown").    // Default value applied on normalization
//	    Comment("Band name")   // Descriptor comment
//
// Builders are consumed once via Descriptor(); descriptors are plain data
// and carry no behavior beyond their validators.
package field

import (
	"fmt"

	"github.com/google/uuid"
)

// A Type represents the semantic type of a field value.
type Type uint8

// List of field types.
const (
	TypeInvalid Type = iota
	TypeString
	TypeInt
	TypeFloat
	TypeBool
	TypeTime
	TypeUUID
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeString:  "string",
	TypeInt:     "int",
	TypeFloat:   "float",
	TypeBool:    "bool",
	TypeTime:    "time",
	TypeUUID:    "uuid",
}

// String returns the string representation of the type.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("invalid(%d)", t)
}

// Valid reports if the given type is a declared field type.
func (t Type) Valid() bool {
	return t > TypeInvalid && t <= TypeUUID
}

// TypeOf returns the field type for the given name, or TypeInvalid
// if the name does not match a declared type. Used by config-time
// schema loading.
func TypeOf(name string) Type {
	for t, n := range typeNames {
		if n == name {
			return Type(t)
		}
	}
	return TypeInvalid
}

// A Descriptor for field configuration.
type Descriptor struct {
	Name       string              // field/column name.
	Type       Type                // semantic type.
	Optional   bool                // not required on input.
	Default    any                 // default value on normalization.
	HasDefault bool                // a default was declared (nil is a valid default).
	StorageKey string              // column name override.
	Comment    string              // descriptor comment.
	Validators []func(any) error   // value validators, run in order.
}

// Column returns the storage column name for the field.
func (d *Descriptor) Column() string {
	if d.StorageKey != "" {
		return d.StorageKey
	}
	return d.Name
}

// stringBuilder is the builder for string fields.
type stringBuilder struct {
	desc *Descriptor
}

// String returns a new string field builder with the given name.
func String(name string) *stringBuilder {
	return &stringBuilder{desc: &Descriptor{Name: name, Type: TypeString}}
}

// NotEmpty adds a validator that rejects the empty string.
func (b *stringBuilder) NotEmpty() *stringBuilder {
	return b.Validate(func(v any) error {
		if s, _ := v.(string); s == "" {
			return fmt.Errorf("value is empty")
		}
		return nil
	})
}

// MaxLen adds a validator that rejects strings longer than i.
func (b *stringBuilder) MaxLen(i int) *stringBuilder {
	return b.Validate(func(v any) error {
		if s, _ := v.(string); len(s) > i {
			return fmt.Errorf("value is greater than the max length %d", i)
		}
		return nil
	})
}

// MinLen adds a validator that rejects strings shorter than i.
func (b *stringBuilder) MinLen(i int) *stringBuilder {
	return b.Validate(func(v any) error {
		if s, _ := v.(string); len(s) < i {
			return fmt.Errorf("value is less than the min length %d", i)
		}
		return nil
	})
}

// Validate adds a custom validator to the field.
func (b *stringBuilder) Validate(fn func(any) error) *stringBuilder {
	b.desc.Validators = append(b.desc.Validators, fn)
	return b
}

// Optional marks the field as not required on input.
func (b *stringBuilder) Optional() *stringBuilder {
	b.desc.Optional = true
	return b
}

// Default sets the default value applied on normalization.
func (b *stringBuilder) Default(s string) *stringBuilder {
	b.desc.Default, b.desc.HasDefault = s, true
	return b
}

// StorageKey overrides the storage column name.
func (b *stringBuilder) StorageKey(key string) *stringBuilder {
	b.desc.StorageKey = key
	return b
}

// Comment sets the descriptor comment.
func (b *stringBuilder) Comment(c string) *stringBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the cluster.Field interface by returning its descriptor.
func (b *stringBuilder) Descriptor() *Descriptor {
	return b.desc
}

// intBuilder is the builder for int fields.
type intBuilder struct {
	desc *Descriptor
}

// Int returns a new integer field builder with the given name.
// Integer values are carried as int64.
func Int(name string) *intBuilder {
	return &intBuilder{desc: &Descriptor{Name: name, Type: TypeInt}}
}

// Positive adds a validator that rejects values < 1.
func (b *intBuilder) Positive() *intBuilder {
	return b.Validate(func(v any) error {
		if i, _ := v.(int64); i < 1 {
			return fmt.Errorf("value is not positive")
		}
		return nil
	})
}

// NonNegative adds a validator that rejects values < 0.
func (b *intBuilder) NonNegative() *intBuilder {
	return b.Validate(func(v any) error {
		if i, _ := v.(int64); i < 0 {
			return fmt.Errorf("value is negative")
		}
		return nil
	})
}

// Range adds a validator that rejects values outside [i, j].
func (b *intBuilder) Range(i, j int64) *intBuilder {
	return b.Validate(func(v any) error {
		if n, _ := v.(int64); n < i || n > j {
			return fmt.Errorf("value is out of range [%d, %d]", i, j)
		}
		return nil
	})
}

// Validate adds a custom validator to the field.
func (b *intBuilder) Validate(fn func(any) error) *intBuilder {
	b.desc.Validators = append(b.desc.Validators, fn)
	return b
}

// Optional marks the field as not required on input.
func (b *intBuilder) Optional() *intBuilder {
	b.desc.Optional = true
	return b
}

// Default sets the default value applied on normalization.
func (b *intBuilder) Default(i int64) *intBuilder {
	b.desc.Default, b.desc.HasDefault = i, true
	return b
}

// StorageKey overrides the storage column name.
func (b *intBuilder) StorageKey(key string) *intBuilder {
	b.desc.StorageKey = key
	return b
}

// Comment sets the descriptor comment.
func (b *intBuilder) Comment(c string) *intBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the cluster.Field interface by returning its descriptor.
func (b *intBuilder) Descriptor() *Descriptor {
	return b.desc
}

// floatBuilder is the builder for float fields.
type floatBuilder struct {
	desc *Descriptor
}

// Float returns a new float field builder with the given name.
// Float values are carried as float64.
func Float(name string) *floatBuilder {
	return &floatBuilder{desc: &Descriptor{Name: name, Type: TypeFloat}}
}

// Positive adds a validator that rejects values <= 0.
func (b *floatBuilder) Positive() *floatBuilder {
	return b.Validate(func(v any) error {
		if f, _ := v.(float64); f <= 0 {
			return fmt.Errorf("value is not positive")
		}
		return nil
	})
}

// Validate adds a custom validator to the field.
func (b *floatBuilder) Validate(fn func(any) error) *floatBuilder {
	b.desc.Validators = append(b.desc.Validators, fn)
	return b
}

// Optional marks the field as not required on input.
func (b *floatBuilder) Optional() *floatBuilder {
	b.desc.Optional = true
	return b
}

// Default sets the default value applied on normalization.
func (b *floatBuilder) Default(f float64) *floatBuilder {
	b.desc.Default, b.desc.HasDefault = f, true
	return b
}

// StorageKey overrides the storage column name.
func (b *floatBuilder) StorageKey(key string) *floatBuilder {
	b.desc.StorageKey = key
	return b
}

// Comment sets the descriptor comment.
func (b *floatBuilder) Comment(c string) *floatBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the cluster.Field interface by returning its descriptor.
func (b *floatBuilder) Descriptor() *Descriptor {
	return b.desc
}

// boolBuilder is the builder for bool fields.
type boolBuilder struct {
	desc *Descriptor
}

// Bool returns a new bool field builder with the given name.
func Bool(name string) *boolBuilder {
	return &boolBuilder{desc: &Descriptor{Name: name, Type: TypeBool}}
}

// Optional marks the field as not required on input.
func (b *boolBuilder) Optional() *boolBuilder {
	b.desc.Optional = true
	return b
}

// Default sets the default value applied on normalization.
func (b *boolBuilder) Default(v bool) *boolBuilder {
	b.desc.Default, b.desc.HasDefault = v, true
	return b
}

// StorageKey overrides the storage column name.
func (b *boolBuilder) StorageKey(key string) *boolBuilder {
	b.desc.StorageKey = key
	return b
}

// Comment sets the descriptor comment.
func (b *boolBuilder) Comment(c string) *boolBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the cluster.Field interface by returning its descriptor.
func (b *boolBuilder) Descriptor() *Descriptor {
	return b.desc
}

// timeBuilder is the builder for time fields.
type timeBuilder struct {
	desc *Descriptor
}

// Time returns a new time field builder with the given name.
// Time values are carried as time.Time and transported in RFC 3339 form.
func Time(name string) *timeBuilder {
	return &timeBuilder{desc: &Descriptor{Name: name, Type: TypeTime}}
}

// Optional marks the field as not required on input.
func (b *timeBuilder) Optional() *timeBuilder {
	b.desc.Optional = true
	return b
}

// Validate adds a custom validator to the field.
func (b *timeBuilder) Validate(fn func(any) error) *timeBuilder {
	b.desc.Validators = append(b.desc.Validators, fn)
	return b
}

// StorageKey overrides the storage column name.
func (b *timeBuilder) StorageKey(key string) *timeBuilder {
	b.desc.StorageKey = key
	return b
}

// Comment sets the descriptor comment.
func (b *timeBuilder) Comment(c string) *timeBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the cluster.Field interface by returning its descriptor.
func (b *timeBuilder) Descriptor() *Descriptor {
	return b.desc
}

// uuidBuilder is the builder for UUID fields.
type uuidBuilder struct {
	desc *Descriptor
}

// UUID returns a new UUID field builder with the given name.
// UUID values are carried as uuid.UUID and transported in canonical
// string form.
func UUID(name string) *uuidBuilder {
	return &uuidBuilder{desc: &Descriptor{Name: name, Type: TypeUUID}}
}

// Optional marks the field as not required on input.
func (b *uuidBuilder) Optional() *uuidBuilder {
	b.desc.Optional = true
	return b
}

// Default sets the default value applied on normalization.
func (b *uuidBuilder) Default(id uuid.UUID) *uuidBuilder {
	b.desc.Default, b.desc.HasDefault = id, true
	return b
}

// StorageKey overrides the storage column name.
func (b *uuidBuilder) StorageKey(key string) *uuidBuilder {
	b.desc.StorageKey = key
	return b
}

// Comment sets the descriptor comment.
func (b *uuidBuilder) Comment(c string) *uuidBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the cluster.Field interface by returning its descriptor.
func (b *uuidBuilder) Descriptor() *Descriptor {
	return b.desc
}
