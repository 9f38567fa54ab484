package cluster

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/cluster/schema/field"
)

// Time layouts accepted when coercing strings into time values. Values
// are always emitted in RFC 3339 form; the date-only layout exists for
// form input.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Coerce converts v to the canonical carrier type for a field type:
// string, int64, float64, bool, time.Time or uuid.UUID. nil passes
// through. Coercion is strict about meaning, lenient about carrier:
// "7" coerces to int64(7) for an int field, but "abc" does not.
func Coerce(t field.Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case field.TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case field.TypeInt:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case uint64:
			return int64(n), nil
		case uint:
			return int64(n), nil
		case int8:
			return int64(n), nil
		case int16:
			return int64(n), nil
		case uint8:
			return int64(n), nil
		case uint16:
			return int64(n), nil
		case uint32:
			return int64(n), nil
		case float64:
			if n == float64(int64(n)) {
				return int64(n), nil
			}
		case string:
			if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
				return i, nil
			}
		}
	case field.TypeFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case int:
			return float64(n), nil
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return f, nil
			}
		}
	case field.TypeBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case int64:
			return b != 0, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(b)) {
			case "true", "1", "on", "yes":
				return true, nil
			case "false", "0", "off", "no", "":
				return false, nil
			}
		}
	case field.TypeTime:
		switch ts := v.(type) {
		case time.Time:
			return ts, nil
		case string:
			for _, layout := range timeLayouts {
				if tv, err := time.Parse(layout, strings.TrimSpace(ts)); err == nil {
					return tv, nil
				}
			}
		}
	case field.TypeUUID:
		switch id := v.(type) {
		case uuid.UUID:
			return id, nil
		case string:
			if u, err := uuid.Parse(strings.TrimSpace(id)); err == nil {
				return u, nil
			}
		case []byte:
			if u, err := uuid.ParseBytes(id); err == nil {
				return u, nil
			}
		}
	}
	return nil, fmt.Errorf("cannot coerce %T(%v) to %s", v, v, t)
}

// equalValues reports whether two canonical values are equal.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	return a == b
}

// compareValues orders two canonical values of the same kind. The
// second result is false when the values are not comparable.
func compareValues(a, b any) (int, bool) {
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv), true
		}
	case int64:
		if bv, ok := b.(int64); ok {
			switch {
			case av < bv:
				return -1, true
			case av > bv:
				return 1, true
			}
			return 0, true
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1, true
			case av > bv:
				return 1, true
			}
			return 0, true
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv), true
		}
	}
	return 0, false
}

// identityKey returns the map key used to track an identity in
// baseline and deletion sets. Identities of different carrier types
// that print alike compare alike, which is intended: "1" submitted by
// a form refers to int64(1) in storage.
func identityKey(id any) string {
	return fmt.Sprint(id)
}
