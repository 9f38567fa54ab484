package cluster

import "strings"

// A Predicate selects records by field comparison. Predicates are
// evaluated purely in memory; no store access is required.
type Predicate func(*Record) bool

// And groups predicates with the AND operator. And() matches everything.
func And(ps ...Predicate) Predicate {
	return func(r *Record) bool {
		for _, p := range ps {
			if !p(r) {
				return false
			}
		}
		return true
	}
}

// Or groups predicates with the OR operator.
func Or(ps ...Predicate) Predicate {
	return func(r *Record) bool {
		for _, p := range ps {
			if p(r) {
				return true
			}
		}
		return false
	}
}

// Not negates a predicate.
func Not(p Predicate) Predicate {
	return func(r *Record) bool {
		return !p(r)
	}
}

// coerced converts the probe value against the record's declared field
// type, so FieldEQ("age", 30) matches an int64(30) carrier.
func coerced(r *Record, name string, v any) (any, bool) {
	fd, ok := r.entity.Field(name)
	if !ok {
		return nil, false
	}
	cv, err := Coerce(fd.Type, v)
	if err != nil {
		return nil, false
	}
	return cv, true
}

// FieldEQ returns a predicate that checks if the field equals the given value.
func FieldEQ(name string, v any) Predicate {
	return func(r *Record) bool {
		cv, ok := coerced(r, name, v)
		return ok && equalValues(r.Get(name), cv)
	}
}

// FieldNEQ returns a predicate that checks if the field does not equal the given value.
func FieldNEQ(name string, v any) Predicate {
	return Not(FieldEQ(name, v))
}

// FieldIn returns a predicate that checks if the field value is in the given list.
func FieldIn(name string, vs ...any) Predicate {
	return func(r *Record) bool {
		for _, v := range vs {
			if cv, ok := coerced(r, name, v); ok && equalValues(r.Get(name), cv) {
				return true
			}
		}
		return false
	}
}

// FieldNotIn returns a predicate that checks if the field value is not in the given list.
func FieldNotIn(name string, vs ...any) Predicate {
	return Not(FieldIn(name, vs...))
}

func fieldCompare(name string, v any, match func(int) bool) Predicate {
	return func(r *Record) bool {
		cv, ok := coerced(r, name, v)
		if !ok {
			return false
		}
		cmp, ok := compareValues(r.Get(name), cv)
		return ok && match(cmp)
	}
}

// FieldGT returns a predicate that checks if the field is greater than the given value.
func FieldGT(name string, v any) Predicate {
	return fieldCompare(name, v, func(c int) bool { return c > 0 })
}

// FieldGTE returns a predicate that checks if the field is greater than or equal to the given value.
func FieldGTE(name string, v any) Predicate {
	return fieldCompare(name, v, func(c int) bool { return c >= 0 })
}

// FieldLT returns a predicate that checks if the field is less than the given value.
func FieldLT(name string, v any) Predicate {
	return fieldCompare(name, v, func(c int) bool { return c < 0 })
}

// FieldLTE returns a predicate that checks if the field is less than or equal to the given value.
func FieldLTE(name string, v any) Predicate {
	return fieldCompare(name, v, func(c int) bool { return c <= 0 })
}

func fieldString(name string, match func(string) bool) Predicate {
	return func(r *Record) bool {
		s, ok := r.Get(name).(string)
		return ok && match(s)
	}
}

// FieldContains returns a predicate that checks if the field contains the given substring.
func FieldContains(name, v string) Predicate {
	return fieldString(name, func(s string) bool { return strings.Contains(s, v) })
}

// FieldContainsFold returns a predicate that checks if the field contains the given substring (case-insensitive).
func FieldContainsFold(name, v string) Predicate {
	return fieldString(name, func(s string) bool {
		return strings.Contains(strings.ToLower(s), strings.ToLower(v))
	})
}

// FieldHasPrefix returns a predicate that checks if the field has the given prefix.
func FieldHasPrefix(name, v string) Predicate {
	return fieldString(name, func(s string) bool { return strings.HasPrefix(s, v) })
}

// FieldHasSuffix returns a predicate that checks if the field has the given suffix.
func FieldHasSuffix(name, v string) Predicate {
	return fieldString(name, func(s string) bool { return strings.HasSuffix(s, v) })
}

// FieldEqualFold returns a predicate that checks if the field equals the given value (case-insensitive).
func FieldEqualFold(name, v string) Predicate {
	return fieldString(name, func(s string) bool { return strings.EqualFold(s, v) })
}

// FieldIsNull returns a predicate that checks if the field is unset.
func FieldIsNull(name string) Predicate {
	return func(r *Record) bool { return r.Get(name) == nil }
}

// FieldNotNull returns a predicate that checks if the field is set.
func FieldNotNull(name string) Predicate {
	return Not(FieldIsNull(name))
}

// IDEQ returns a predicate that checks if the record's identity equals
// the given value.
func IDEQ(id any) Predicate {
	return func(r *Record) bool {
		return r.Persisted() && identityKey(r.ID()) == identityKey(id)
	}
}
