package forms

// Errors collects the validation errors of one bound submission.
// Field errors are keyed by root field name; formset errors are keyed
// by the formset's submission namespace.
type Errors struct {
	Fields   map[string][]string
	Formsets map[string]*FormsetErrors
}

func newErrors() *Errors {
	return &Errors{
		Fields:   make(map[string][]string),
		Formsets: make(map[string]*FormsetErrors),
	}
}

// Empty reports whether no error was recorded.
func (e *Errors) Empty() bool {
	if len(e.Fields) > 0 {
		return false
	}
	for _, fe := range e.Formsets {
		if !fe.Empty() {
			return false
		}
	}
	return true
}

// FormsetErrors collects the errors of one formset: errors not tied to
// any row (such as a broken management block) and per-row errors keyed
// by submission index.
type FormsetErrors struct {
	NonForm []string
	Rows    map[int]*RowErrors
}

func newFormsetErrors() *FormsetErrors {
	return &FormsetErrors{Rows: make(map[int]*RowErrors)}
}

// Empty reports whether no error was recorded.
func (e *FormsetErrors) Empty() bool {
	if len(e.NonForm) > 0 {
		return false
	}
	for _, re := range e.Rows {
		if !re.Empty() {
			return false
		}
	}
	return true
}

// row returns the error bucket for index i, creating it on demand.
func (e *FormsetErrors) row(i int) *RowErrors {
	re, ok := e.Rows[i]
	if !ok {
		re = &RowErrors{
			Fields:   make(map[string][]string),
			Formsets: make(map[string]*FormsetErrors),
		}
		e.Rows[i] = re
	}
	return re
}

// RowErrors collects the errors of one formset row: per-field errors,
// row-level errors from a custom row form, and the errors of nested
// formsets keyed by their submission namespace.
type RowErrors struct {
	Fields   map[string][]string
	NonField []string
	Formsets map[string]*FormsetErrors
}

// Empty reports whether no error was recorded.
func (e *RowErrors) Empty() bool {
	if len(e.Fields) > 0 || len(e.NonField) > 0 {
		return false
	}
	for _, fe := range e.Formsets {
		if !fe.Empty() {
			return false
		}
	}
	return true
}
