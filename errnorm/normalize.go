// Package errnorm turns arbitrary error-shaped values into an ordered,
// non-empty list of canonical error objects.
//
// Input is first matched to one [Shape], then expanded by the function for
// that shape. Normalization never fails: anything unrecognised degrades to a
// single generic error.
package errnorm

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/Keksclan/goRawrRemote/document"
)

const (
	MessageNoData      = "No error data provided"
	MessageNull        = "Error data was null"
	MessageUnknown     = "Unknown error"
	attributePointerAt = "/data/attributes/"
)

// Draft is one normalized error as plain data.
type Draft map[string]any

// Detail returns the detail field as a string.
func (d Draft) Detail() string {
	s, _ := d["detail"].(string)
	return s
}

// Pointer returns source.pointer, if any.
func (d Draft) Pointer() string {
	src, _ := d["source"].(map[string]any)
	p, _ := src["pointer"].(string)
	return p
}

// Result is the output of Normalize. Errors is never empty.
type Result struct {
	Errors []Draft `json:"errors"`
}

// Normalizer converts error data. The zero value is ready to use.
type Normalizer struct {
	// IncludeStackTrace adds file, line and trace to errors built from Go
	// errors that expose them.
	IncludeStackTrace bool

	// StrictBooleans renders true as "true" instead of "1".
	StrictBooleans bool
}

// Normalize converts input into canonical error drafts.
func (n Normalizer) Normalize(input any) Result {
	v := match(input)

	var drafts []Draft
	switch v.shape {
	case ShapeNull:
		drafts = []Draft{{"detail": MessageNoData}}
	case ShapeScalar:
		drafts = []Draft{{"detail": n.scalar(v.value)}}
	case ShapeException:
		drafts = []Draft{n.exception(v.err)}
	case ShapeMessageMap, ShapeErrorsString:
		drafts = n.message(v.value)
	case ShapeErrorsNull:
		drafts = []Draft{{"detail": MessageNull}}
	case ShapeValidationMap:
		drafts = n.validation(v.fields, "")
	case ShapeErrorList:
		drafts = n.list(v.items)
	case ShapeOther:
		drafts = n.other(v.fields)
	}

	if len(drafts) == 0 {
		drafts = []Draft{{"detail": MessageNoData}}
	}
	return Result{Errors: drafts}
}

// Normalize uses a zero Normalizer.
func Normalize(input any) Result {
	return Normalizer{}.Normalize(input)
}

func (n Normalizer) message(v any) []Draft {
	switch t := v.(type) {
	case nil:
		return []Draft{{"detail": MessageNoData}}
	case *document.Object, []any:
		return n.Normalize(t).Errors
	default:
		return []Draft{{"detail": n.scalar(t)}}
	}
}

func (n Normalizer) exception(err error) Draft {
	d := Draft{
		"title":  kindOf(err),
		"detail": err.Error(),
	}
	if d["detail"] == "" {
		d["detail"] = d["title"]
	}

	var withStatus interface{ StatusCode() int }
	if errors.As(err, &withStatus) {
		if code := withStatus.StatusCode(); code != 0 {
			d["code"] = strconv.Itoa(code)
		}
	}

	if n.IncludeStackTrace {
		meta := map[string]any{}
		var located interface{ Location() (string, int) }
		if errors.As(err, &located) {
			file, line := located.Location()
			meta["file"] = file
			meta["line"] = line
		}
		var traced interface{ StackTrace() string }
		if errors.As(err, &traced) {
			meta["trace"] = traced.StackTrace()
		}
		if len(meta) > 0 {
			d["meta"] = meta
		}
	}
	return d
}

// validation expands a field → messages map. Nested maps flatten their
// field names with "/".
func (n Normalizer) validation(fields *document.Object, prefix string) []Draft {
	var drafts []Draft
	for _, key := range fields.Keys() {
		field := prefix + key
		v, _ := fields.Get(key)

		switch t := v.(type) {
		case nil:
		case *document.Object:
			drafts = append(drafts, n.validation(t, field+"/")...)
		case []any:
			for _, msg := range t {
				drafts = append(drafts, n.fieldMessage(field, msg)...)
			}
		default:
			drafts = append(drafts, n.fieldMessage(field, t)...)
		}
	}
	return drafts
}

func (n Normalizer) fieldMessage(field string, msg any) []Draft {
	if msg == nil {
		return nil
	}
	pointer := map[string]any{"pointer": attributePointerAt + field}

	if isScalar(msg) {
		return []Draft{{"detail": n.scalar(msg), "source": pointer}}
	}

	drafts := n.Normalize(msg).Errors
	for _, d := range drafts {
		if _, ok := d["source"]; !ok {
			d["source"] = pointer
		}
	}
	return drafts
}

func (n Normalizer) list(items []any) []Draft {
	var drafts []Draft
	for _, item := range items {
		switch t := item.(type) {
		case nil:
			drafts = append(drafts, Draft{"detail": MessageNull})
		case *document.Object:
			if errorShaped(t) {
				drafts = append(drafts, n.passthrough(t))
				continue
			}
			drafts = append(drafts, n.Normalize(t).Errors...)
		case []any:
			drafts = append(drafts, n.list(t)...)
		default:
			drafts = append(drafts, Draft{"detail": n.scalar(t)})
		}
	}
	return drafts
}

func (n Normalizer) other(fields *document.Object) []Draft {
	if fields != nil && errorShaped(fields) {
		return []Draft{n.passthrough(fields)}
	}
	return nil
}

// passthrough keeps an error object's fields as they are. Only a missing
// or non-string detail is filled in.
func (n Normalizer) passthrough(obj *document.Object) Draft {
	d := Draft(obj.Map())

	switch detail := d["detail"].(type) {
	case string:
		return d
	case nil:
	default:
		if isScalar(detail) {
			d["detail"] = n.scalar(detail)
			return d
		}
	}

	if title, ok := d["title"]; ok && isScalar(title) {
		if s := n.scalar(title); s != "" {
			d["detail"] = s
			return d
		}
	}
	d["detail"] = MessageUnknown
	return d
}

// scalar renders a scalar the way the legacy service did: true is "1",
// false is "false", numbers carry no exponent and no trailing zeros.
func (n Normalizer) scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			if n.StrictBooleans {
				return "true"
			}
			return "1"
		}
		return "false"
	case json.Number:
		return formatNumber(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(t)
	}
}

func formatNumber(num json.Number) string {
	s := num.String()
	if !strings.ContainsAny(s, ".eE") {
		return s
	}
	f, err := num.Float64()
	if err != nil {
		return s
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// kindOf names an error by its dynamic type, without package or pointer.
func kindOf(err error) string {
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		return name
	}
	return t.String()
}
