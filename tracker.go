package cluster

import (
	"bytes"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/cluster/schema"
)

// A Change classifies how one logical child differs between the
// persisted baseline and the in-memory listing.
type Change uint8

// Possible change classifications.
const (
	// Unchanged: identity present on both sides with equal field values.
	Unchanged Change = iota
	// Updated: identity present on both sides with differing field values.
	Updated
	// Added: new child with no identity, or an identity absent from
	// the persisted baseline.
	Added
	// Deleted: identity present in the baseline but absent from the
	// in-memory listing, or staged in the deletion set.
	Deleted
)

var changeNames = [...]string{
	Unchanged: "unchanged",
	Updated:   "updated",
	Added:     "new",
	Deleted:   "deleted",
}

// String returns the name of the classification.
func (c Change) String() string {
	if int(c) < len(changeNames) {
		return changeNames[c]
	}
	return "invalid"
}

// Classify compares two pristine snapshots of the same logical child.
// A nil baseline means the identity was absent from the persisted
// baseline; a nil current means the child is absent from the in-memory
// listing. Classify is a pure function with no side effects.
func Classify(baseline, current []byte) Change {
	switch {
	case baseline == nil && current != nil:
		return Added
	case baseline != nil && current == nil:
		return Deleted
	case bytes.Equal(baseline, current):
		return Unchanged
	default:
		return Updated
	}
}

// snapshot returns the canonical serialized form of the record's
// scalar state: a msgpack sequence of its field values in declaration
// order. Identity and back-reference are tracked separately and
// excluded here.
func (r *Record) snapshot() []byte {
	fields := r.entity.Fields()
	vals := make([]any, len(fields))
	for i, fd := range fields {
		vals[i] = canonicalValue(r.values[fd.Name])
	}
	return mustMarshal(vals)
}

// snapshotRow returns the canonical snapshot of a persisted baseline
// row, in the same form as Record.snapshot so the two are directly
// comparable.
func snapshotRow(e *schema.Entity, row Row) ([]byte, error) {
	fields := e.Fields()
	vals := make([]any, len(fields))
	for i, fd := range fields {
		raw := row.Values[fd.Column()]
		if raw == nil {
			continue
		}
		v, err := Coerce(fd.Type, raw)
		if err != nil {
			return nil, NewValidationError(fd.Name, err)
		}
		vals[i] = canonicalValue(v)
	}
	return mustMarshal(vals), nil
}

// canonicalValue flattens carrier types with multiple encodings (time,
// uuid) into one deterministic form.
func canonicalValue(v any) any {
	switch v := v.(type) {
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case uuid.UUID:
		return v.String()
	default:
		return v
	}
}

func mustMarshal(v any) []byte {
	data, err := msgpack.Marshal(v)
	if err != nil {
		// Only reachable if a non-canonical value slipped past Coerce.
		panic(err)
	}
	return data
}
