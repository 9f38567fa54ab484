package forms

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/syssam/cluster"
	"github.com/syssam/cluster/schema/field"
)

var titleCaser = cases.Title(language.English)

// RenderP renders the form as a sequence of paragraph-wrapped inputs:
// the root fields, then one section per formset with its hidden
// management block, the existing rows and the configured number of
// blank extra rows. Validation errors from the last IsValid run are
// rendered as error lists next to the offending inputs.
func (b *Binder) RenderP(ctx context.Context) (string, error) {
	var w strings.Builder
	for _, fd := range b.fields {
		var errs []string
		if b.validated {
			errs = b.Errors().Fields[fd.Name]
		}
		renderInput(&w, inputSpec{
			name:   fd.Name,
			label:  inflect.Humanize(fd.Name) + b.opts.suffix(),
			widget: widgetFor(fd, b.widgets),
			value:  b.fieldValue(fd.Name),
			errs:   errs,
		})
	}
	for _, def := range b.defs {
		var fe *FormsetErrors
		if b.validated {
			fe = b.Errors().Formsets[def.name]
		}
		if err := renderFormset(ctx, &w, def, def.name, b.instance, fe); err != nil {
			return "", err
		}
	}
	return w.String(), nil
}

func (b *Binder) fieldValue(name string) any {
	if b.instance == nil {
		return nil
	}
	return b.instance.Get(name)
}

// renderFormset renders one formset section: heading, management
// block, existing rows and extra blank rows.
func renderFormset(ctx context.Context, w *strings.Builder, def *formsetDef, prefix string, owner *cluster.Record, fe *FormsetErrors) error {
	var listing []*cluster.Record
	if owner != nil {
		var err error
		if listing, err = owner.Relation(def.relName).All(ctx); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "<h2>%s</h2>\n", html.EscapeString(titleCaser.String(inflect.Humanize(def.relName))))
	if fe != nil {
		for _, msg := range fe.NonForm {
			fmt.Fprintf(w, "<ul class=\"errorlist nonform\"><li>%s</li></ul>\n", html.EscapeString(msg))
		}
	}
	initial := 0
	for _, rec := range listing {
		if rec.Persisted() {
			initial++
		}
	}
	total := len(listing) + def.extra
	renderHidden(w, prefix+"-"+totalFormsKey, strconv.Itoa(total))
	renderHidden(w, prefix+"-"+initialFormsKey, strconv.Itoa(initial))
	renderHidden(w, prefix+"-"+maxFormsKey, strconv.Itoa(def.maxForms))
	_, ordered := def.rel.OrderColumn()
	for i := 0; i < total; i++ {
		var rec *cluster.Record
		if i < len(listing) {
			rec = listing[i]
		}
		var re *RowErrors
		if fe != nil {
			re = fe.Rows[i]
		}
		if err := renderRow(ctx, w, def, prefix+"-"+strconv.Itoa(i), rec, ordered, i, re); err != nil {
			return err
		}
	}
	return nil
}

// renderRow renders one row's field inputs, its nested formsets and
// the row controls. rec is nil for blank extra rows.
func renderRow(ctx context.Context, w *strings.Builder, def *formsetDef, prefix string, rec *cluster.Record, ordered bool, index int, re *RowErrors) error {
	for _, fd := range def.fields {
		var value any
		if rec != nil {
			value = rec.Get(fd.Name)
		}
		var errs []string
		if re != nil {
			errs = re.Fields[fd.Name]
		}
		renderInput(w, inputSpec{
			name:   prefix + "-" + fd.Name,
			label:  inflect.Humanize(fd.Name) + def.opts.suffix(),
			widget: widgetFor(fd, def.widgets),
			value:  value,
			errs:   errs,
		})
	}
	if re != nil {
		for _, msg := range re.NonField {
			fmt.Fprintf(w, "<ul class=\"errorlist nonfield\"><li>%s</li></ul>\n", html.EscapeString(msg))
		}
	}
	for _, nd := range def.nested {
		var nfe *FormsetErrors
		if re != nil {
			nfe = re.Formsets[nd.name]
		}
		if err := renderFormset(ctx, w, nd, prefix+"-"+nd.name, rec, nfe); err != nil {
			return err
		}
	}
	if ordered {
		var order any
		if orderField, ok := def.rel.OrderColumn(); ok && rec != nil {
			order = rec.Get(orderField)
		}
		renderInput(w, inputSpec{
			name:   prefix + "-" + orderKey,
			label:  "Order" + def.opts.suffix(),
			widget: NumberInput,
			value:  order,
		})
	}
	renderInput(w, inputSpec{
		name:   prefix + "-" + deleteKey,
		label:  "Delete" + def.opts.suffix(),
		widget: CheckboxInput,
	})
	var id any
	if rec != nil {
		id = rec.ID()
	}
	renderHidden(w, prefix+"-"+idKey, formatValue(id, HiddenInput))
	return nil
}

type inputSpec struct {
	name   string
	label  string
	widget Widget
	value  any
	errs   []string
}

func renderInput(w *strings.Builder, in inputSpec) {
	for _, msg := range in.errs {
		fmt.Fprintf(w, "<ul class=\"errorlist\"><li>%s</li></ul>\n", html.EscapeString(msg))
	}
	id := "id_" + in.name
	value := formatValue(in.value, in.widget)
	fmt.Fprintf(w, "<p><label for=%q>%s</label> ", id, html.EscapeString(in.label))
	switch in.widget {
	case Textarea:
		fmt.Fprintf(w, "<textarea name=%q id=%q>%s</textarea>", in.name, id, html.EscapeString(value))
	case CheckboxInput:
		checked := ""
		if b, ok := in.value.(bool); ok && b {
			checked = " checked"
		}
		fmt.Fprintf(w, "<input type=\"checkbox\" name=%q id=%q%s>", in.name, id, checked)
	default:
		attr := ""
		if value != "" {
			attr = fmt.Sprintf(" value=%q", html.EscapeString(value))
		}
		fmt.Fprintf(w, "<input type=%q name=%q%s id=%q>", inputType(in.widget), in.name, attr, id)
	}
	w.WriteString("</p>\n")
}

func renderHidden(w *strings.Builder, name, value string) {
	attr := ""
	if value != "" {
		attr = fmt.Sprintf(" value=%q", html.EscapeString(value))
	}
	fmt.Fprintf(w, "<input type=\"hidden\" name=%q%s id=\"id_%s\">\n", name, attr, name)
}

func inputType(wd Widget) string {
	switch wd {
	case NumberInput:
		return "number"
	case DateInput:
		return "date"
	case HiddenInput:
		return "hidden"
	default:
		return "text"
	}
}

// widgetFor resolves the effective widget for a field: the configured
// override, or a default per field type.
func widgetFor(fd *field.Descriptor, overrides map[string]Widget) Widget {
	if wd, ok := overrides[fd.Name]; ok && wd != WidgetAuto {
		return wd
	}
	switch fd.Type {
	case field.TypeInt, field.TypeFloat:
		return NumberInput
	case field.TypeTime:
		return DateInput
	case field.TypeBool:
		return CheckboxInput
	default:
		return TextInput
	}
}

// formatValue renders a field value as an input value attribute.
func formatValue(v any, wd Widget) string {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		if wd == DateInput {
			return t.Format("2006-01-02")
		}
		return t.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
