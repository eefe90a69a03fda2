package errnorm

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Source points at the part of a request an error refers to.
type Source struct {
	Pointer   string `json:"pointer,omitempty"`
	Parameter string `json:"parameter,omitempty"`
}

// ErrorObject is a canonical error. Detail is always set.
type ErrorObject struct {
	ID     string         `json:"id,omitempty"`
	Status string         `json:"status,omitempty"`
	Code   string         `json:"code,omitempty"`
	Title  string         `json:"title,omitempty"`
	Detail string         `json:"detail"`
	Source *Source        `json:"source,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// StatusCode parses Status. It returns 0 when Status is not a number.
func (e ErrorObject) StatusCode() int {
	n, err := strconv.Atoi(strings.TrimSpace(e.Status))
	if err != nil {
		return 0
	}
	return n
}

// Collection is a non-empty list of canonical errors as produced by a
// Parser.
type Collection []ErrorObject

// MarshalJSON wraps the list as {"errors": [...]}.
func (c Collection) MarshalJSON() ([]byte, error) {
	list := []ErrorObject(c)
	if list == nil {
		list = []ErrorObject{}
	}
	return json.Marshal(struct {
		Errors []ErrorObject `json:"errors"`
	}{list})
}

// UnmarshalJSON accepts {"errors": [...]} and normalizes whatever it finds.
func (c *Collection) UnmarshalJSON(b []byte) error {
	*c = Parse(json.RawMessage(b))
	return nil
}

func (c Collection) Error() string {
	return strings.Join(c.Details(), "; ")
}

// Details returns every detail in order.
func (c Collection) Details() []string {
	out := make([]string, len(c))
	for i, e := range c {
		out[i] = e.Detail
	}
	return out
}

// Statuses returns the numeric statuses that could be parsed, in order.
func (c Collection) Statuses() []int {
	var out []int
	for _, e := range c {
		if s := e.StatusCode(); s != 0 {
			out = append(out, s)
		}
	}
	return out
}

// Parser adapts normalized drafts into a Collection.
type Parser struct {
	Normalizer Normalizer
}

// Parse normalizes input and converts the drafts. The result is never empty
// and every Detail is non-empty.
func (p Parser) Parse(input any) Collection {
	res := p.Normalizer.Normalize(input)
	out := make(Collection, 0, len(res.Errors))
	for _, d := range res.Errors {
		out = append(out, p.convert(d))
	}
	return out
}

// Parse uses a zero Parser.
func Parse(input any) Collection {
	return Parser{}.Parse(input)
}

func (p Parser) convert(d Draft) ErrorObject {
	e := ErrorObject{
		ID:     p.field(d, "id"),
		Status: p.field(d, "status"),
		Code:   p.field(d, "code"),
		Title:  p.field(d, "title"),
		Detail: p.field(d, "detail"),
	}
	if e.Detail == "" {
		e.Detail = e.Title
	}
	if e.Detail == "" {
		e.Detail = MessageUnknown
	}

	if src, ok := d["source"].(map[string]any); ok {
		s := Source{Pointer: p.field(src, "pointer"), Parameter: p.field(src, "parameter")}
		if s != (Source{}) {
			e.Source = &s
		}
	}
	if meta, ok := d["meta"].(map[string]any); ok && len(meta) > 0 {
		e.Meta = meta
	}
	return e
}

func (p Parser) field(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil || !isScalar(v) {
		return ""
	}
	return p.Normalizer.scalar(v)
}
