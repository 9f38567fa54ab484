package forms

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/syssam/cluster"
)

// Management block key suffixes.
const (
	totalFormsKey   = "TOTAL_FORMS"
	initialFormsKey = "INITIAL_FORMS"
	maxFormsKey     = "MAX_NUM_FORMS"
	deleteKey       = "DELETE"
	orderKey        = "ORDER"
	idKey           = "id"
)

const managementErr = "management form data is missing or has been tampered with"

// formsetPlan is the validated outcome of one formset binding: the
// kept rows in final listing order. It is applied to the relation
// collection at save time, never during validation.
type formsetPlan struct {
	def  *formsetDef
	rows []*rowPlan
}

// rowPlan is one kept submitted row. target is the existing in-memory
// child matched by identity, nil for a new row.
type rowPlan struct {
	target *cluster.Record
	id     any
	values map[string]any
	order  *int64
	nested []*formsetPlan
}

// bindFormset parses one formset's management block and rows against
// the owner's current relation listing. owner is nil when the parent
// row itself is new. Errors go into fe; the returned plan holds only
// the kept rows.
func bindFormset(ctx context.Context, def *formsetDef, prefix string, data url.Values, owner *cluster.Record, fe *FormsetErrors) *formsetPlan {
	plan := &formsetPlan{def: def}
	total, ok1 := managementValue(data, prefix, totalFormsKey)
	_, ok2 := managementValue(data, prefix, initialFormsKey)
	if !ok1 || !ok2 {
		fe.NonForm = append(fe.NonForm, managementErr)
		return plan
	}
	if total > def.maxForms {
		total = def.maxForms
	}
	var current []*cluster.Record
	if owner != nil {
		listing, err := owner.Relation(def.relName).All(ctx)
		if err != nil {
			fe.NonForm = append(fe.NonForm, err.Error())
			return plan
		}
		current = listing
	}
	byID := make(map[string]*cluster.Record, len(current))
	for _, rec := range current {
		if rec.Persisted() {
			byID[fmt.Sprint(rec.ID())] = rec
		}
	}
	for i := 0; i < total; i++ {
		rp := prefix + "-" + strconv.Itoa(i)
		idRaw := data.Get(rp + "-" + idKey)
		if data.Get(rp+"-"+deleteKey) != "" {
			// Deleted rows are exempt from validation and excluded
			// from the listing.
			continue
		}
		if idRaw == "" && blankRow(def, rp, data) {
			continue
		}
		row := &rowPlan{values: make(map[string]any, len(def.fields))}
		if idRaw != "" {
			row.id = parseIdentity(idRaw)
			row.target = byID[idRaw]
		}
		for _, fd := range def.fields {
			v, err := parseField(fd, data.Get(rp+"-"+fd.Name))
			if err != nil {
				fe.row(i).Fields[fd.Name] = append(fe.row(i).Fields[fd.Name], err.Error())
				continue
			}
			row.values[fd.Name] = v
		}
		if raw := data.Get(rp + "-" + orderKey); raw != "" {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				fe.row(i).Fields[orderKey] = append(fe.row(i).Fields[orderKey], "enter a whole number")
			} else {
				row.order = &n
			}
		}
		if def.form != nil {
			if err := def.form.Clean(row.values); err != nil {
				fe.row(i).NonField = append(fe.row(i).NonField, err.Error())
			}
		}
		for _, nd := range def.nested {
			nfe := newFormsetErrors()
			fe.row(i).Formsets[nd.name] = nfe
			row.nested = append(row.nested, bindFormset(ctx, nd, rp+"-"+nd.name, data, row.target, nfe))
		}
		plan.rows = append(plan.rows, row)
	}
	// ORDER markers win over submission order; unmarked rows sort last
	// keeping their submitted order.
	sort.SliceStable(plan.rows, func(i, j int) bool {
		a, b := plan.rows[i].order, plan.rows[j].order
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
	return plan
}

// managementValue reads one required management integer.
func managementValue(data url.Values, prefix, key string) (int, bool) {
	raw, ok := data[prefix+"-"+key]
	if !ok || len(raw) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(raw[0])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// blankRow reports whether every bound field of the row is empty.
// Blank unidentified rows come from extra blank forms and are skipped.
func blankRow(def *formsetDef, rowPrefix string, data url.Values) bool {
	for _, fd := range def.fields {
		if data.Get(rowPrefix+"-"+fd.Name) != "" {
			return false
		}
	}
	return true
}

// parseIdentity parses a submitted row identity. Integral identities
// are carried as int64 to match storage-assigned ids.
func parseIdentity(raw string) any {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	return raw
}

// apply merges the plan into the owner's relation collection: matched
// rows are updated in place, unmatched rows become new child records,
// and everything absent from the plan is dropped from the listing.
func (p *formsetPlan) apply(ctx context.Context, owner *cluster.Record) error {
	listing := make([]*cluster.Record, 0, len(p.rows))
	for _, row := range p.rows {
		rec := row.target
		if rec == nil {
			var opts []cluster.RecordOption
			if row.id != nil {
				opts = append(opts, cluster.WithID(row.id))
			}
			var err error
			rec, err = cluster.New(p.def.child, opts...)
			if err != nil {
				return err
			}
		}
		for name, v := range row.values {
			if err := rec.Set(name, v); err != nil {
				return err
			}
		}
		if orderField, ok := p.def.rel.OrderColumn(); ok && row.order != nil {
			if err := rec.Set(orderField, *row.order); err != nil {
				return err
			}
		}
		for _, np := range row.nested {
			if err := np.apply(ctx, rec); err != nil {
				return err
			}
		}
		listing = append(listing, rec)
	}
	return owner.Relation(p.def.relName).Set(ctx, listing...)
}
