// Package validation evaluates declarative field rules against raw form
// input.
//
// A Schema is a table of fields. Each field names a coercion from the raw
// string to a typed value and an ordered list of checks on that value.
// Validate walks every field, never stopping at the first failure, so a
// caller can highlight all invalid inputs at once.
package validation

import "sort"

// Values is the raw input accessor; url.Values satisfies it.
type Values interface {
	Get(key string) string
}

// Coerce turns a raw string into a typed value. A non-nil error is reported
// as a message on the field, never returned to the caller.
type Coerce func(raw string) (any, error)

// Check is a single predicate with the message shown when it fails.
type Check struct {
	Message string
	Valid   func(v any) bool
}

// Field describes one input: its name, coercion and constraints.
type Field struct {
	Name string
	// Coerce defaults to Trimmed when nil.
	Coerce Coerce
	// CoerceMessage is reported when Coerce fails. Falls back to the
	// coercion error text.
	CoerceMessage string
	Checks        []Check
}

// Schema is an ordered set of fields plus the summary message reported
// alongside field errors.
type Schema struct {
	Fields         []Field
	FailureMessage string
}

// Errors maps a field name to every message raised for it.
type Errors map[string][]string

// Add appends msg to the messages of field.
func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// Has reports whether field has at least one message.
func (e Errors) Has(field string) bool {
	return len(e[field]) > 0
}

// First returns the first message for field, or "".
func (e Errors) First(field string) string {
	if msgs := e[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// FieldNames returns the failing field names in sorted order.
func (e Errors) FieldNames() []string {
	names := make([]string, 0, len(e))
	for k := range e {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Result is the tagged outcome of Validate: either Fields is populated and
// Errors is empty, or Errors is non-empty and Message summarises it.
type Result struct {
	Fields  map[string]any
	Errors  Errors
	Message string
}

// OK reports whether every field passed.
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// String returns the coerced string value of name.
func (r Result) String(name string) string {
	s, _ := r.Fields[name].(string)
	return s
}

// Int64 returns the coerced int64 value of name.
func (r Result) Int64(name string) int64 {
	n, _ := r.Fields[name].(int64)
	return n
}

// Validate evaluates every field of schema against raw.
func Validate(schema Schema, raw Values) Result {
	res := Result{Fields: make(map[string]any, len(schema.Fields))}
	errs := Errors{}

	for _, f := range schema.Fields {
		coerce := f.Coerce
		if coerce == nil {
			coerce = Trimmed
		}
		v, err := coerce(raw.Get(f.Name))
		if err != nil {
			msg := f.CoerceMessage
			if msg == "" {
				msg = err.Error()
			}
			errs.Add(f.Name, msg)
			continue
		}
		failed := false
		for _, c := range f.Checks {
			if !c.Valid(v) {
				errs.Add(f.Name, c.Message)
				failed = true
			}
		}
		if !failed {
			res.Fields[f.Name] = v
		}
	}

	if len(errs) > 0 {
		return Result{Errors: errs, Message: schema.FailureMessage}
	}
	return res
}
