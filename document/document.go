// Package document models the JSON documents exchanged with the remote
// entity service: a top-level object carrying either primary data (one
// resource or a list of them) or a list of error objects.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
)

// Entity is one remote resource. It is treated as immutable once it leaves
// the transport; use Clone before changing attributes.
type Entity struct {
	ID         string         `json:"id"`
	Type       string         `json:"type,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Attr returns a single attribute.
func (e Entity) Attr(key string) (any, bool) {
	v, ok := e.Attributes[key]
	return v, ok
}

// Clone returns a copy whose attribute map is not shared with e.
func (e Entity) Clone() Entity {
	e.Attributes = maps.Clone(e.Attributes)
	return e
}

// Document is a decoded response body.
type Document struct {
	// Status is the HTTP status the document arrived with. Zero when the
	// document was built in memory.
	Status int

	Meta map[string]any

	data      []Entity
	single    bool
	errors    any
	hasErrors bool
	degraded  *string
}

// New returns a document whose primary data is a list of entities.
func New(entities ...Entity) *Document {
	return &Document{data: entities}
}

// NewSingle returns a document whose primary data is one entity.
func NewSingle(e Entity) *Document {
	return &Document{data: []Entity{e}, single: true}
}

// WithErrors returns a document reporting errors. errs is the raw value of
// the "errors" member and may have any shape.
func WithErrors(status int, errs any) *Document {
	return &Document{Status: status, errors: errs, hasErrors: true}
}

// Degraded returns the sentinel handed back when a known benign upstream
// error is swallowed. It serialises as {"error": message}.
func Degraded(message string) *Document {
	return &Document{degraded: &message}
}

// Parse decodes a response body.
func Parse(body []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// HasErrors reports whether the document carries an error report instead of
// (or next to) primary data.
func (d *Document) HasErrors() bool {
	return d != nil && d.hasErrors
}

// Errors returns the raw error objects. A non-list "errors" member is
// returned as a one-element list.
func (d *Document) Errors() []any {
	if !d.HasErrors() || d.errors == nil {
		return nil
	}
	if list, ok := d.errors.([]any); ok {
		return list
	}
	return []any{d.errors}
}

// ErrorPayload returns the error report in its original shape, wrapped as
// {"errors": ...}, ready for normalization.
func (d *Document) ErrorPayload() *Object {
	obj := NewObject()
	if d.HasErrors() {
		obj.Set("errors", d.errors)
	}
	return obj
}

// Data returns the primary data as a list.
func (d *Document) Data() []Entity {
	if d == nil {
		return nil
	}
	return append([]Entity(nil), d.data...)
}

// IsSingle reports whether the primary data was a single resource object.
func (d *Document) IsSingle() bool {
	return d != nil && d.single
}

// IsDegraded reports whether d is the sentinel built by Degraded.
func (d *Document) IsDegraded() bool {
	return d != nil && d.degraded != nil
}

// DegradedMessage returns the swallowed error message of a degraded document.
func (d *Document) DegradedMessage() string {
	if !d.IsDegraded() {
		return ""
	}
	return *d.degraded
}

type wireDocument struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors json.RawMessage `json:"errors,omitempty"`
	Meta   map[string]any  `json:"meta,omitempty"`
}

// UnmarshalJSON decodes a top-level document. The "errors" member is kept in
// its original shape with key order preserved.
func (d *Document) UnmarshalJSON(b []byte) error {
	var w wireDocument
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	*d = Document{Status: d.Status, Meta: w.Meta}

	data := bytes.TrimSpace(w.Data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
	case data[0] == '[':
		if err := json.Unmarshal(data, &d.data); err != nil {
			return fmt.Errorf("document: decode data: %w", err)
		}
	case data[0] == '{':
		var e Entity
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("document: decode data: %w", err)
		}
		d.data = []Entity{e}
		d.single = true
	default:
		return fmt.Errorf("document: unexpected data member %q", data)
	}

	if w.Errors != nil {
		errs, err := Decode(w.Errors)
		if err != nil {
			return fmt.Errorf("document: decode errors: %w", err)
		}
		d.errors = errs
		d.hasErrors = reportsErrors(errs, len(d.data) > 0)
	}
	return nil
}

// reportsErrors decides whether a decoded "errors" member is an actual error
// report. An empty list never is; null only counts when there is no data.
func reportsErrors(errs any, hasData bool) bool {
	switch v := errs.(type) {
	case nil:
		return !hasData
	case []any:
		return len(v) > 0
	default:
		return true
	}
}

// MarshalJSON writes the document back in wire form.
func (d *Document) MarshalJSON() ([]byte, error) {
	if d.IsDegraded() {
		return json.Marshal(map[string]string{"error": *d.degraded})
	}

	out := NewObject()
	switch {
	case d.single && len(d.data) == 1:
		out.Set("data", d.data[0])
	case d.data != nil:
		out.Set("data", d.data)
	}
	if d.hasErrors {
		out.Set("errors", d.errors)
	}
	if len(d.Meta) > 0 {
		out.Set("meta", d.Meta)
	}
	return out.MarshalJSON()
}
