package errnorm

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/Keksclan/goRawrRemote/document"
)

// Shape names the variant an input was matched to before expansion.
type Shape int

const (
	ShapeNull Shape = iota
	ShapeScalar
	ShapeException
	ShapeMessageMap
	ShapeErrorsString
	ShapeErrorsNull
	ShapeValidationMap
	ShapeErrorList
	ShapeOther
)

var shapeNames = [...]string{
	ShapeNull:          "null",
	ShapeScalar:        "scalar",
	ShapeException:     "exception",
	ShapeMessageMap:    "message_map",
	ShapeErrorsString:  "errors_string",
	ShapeErrorsNull:    "errors_null",
	ShapeValidationMap: "validation_map",
	ShapeErrorList:     "error_list",
	ShapeOther:         "other",
}

func (s Shape) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return fmt.Sprintf("shape(%d)", int(s))
}

// variant is a matched input. Only the fields relevant to shape are set.
type variant struct {
	shape  Shape
	value  any
	err    error
	fields *document.Object
	items  []any
}

// Match reports which variant input falls into.
func Match(input any) Shape {
	return match(input).shape
}

func match(input any) variant {
	switch v := input.(type) {
	case nil:
		return variant{shape: ShapeNull}
	case Result:
		return variant{shape: ShapeErrorList, items: draftsToItems(v.Errors)}
	case *Result:
		if v == nil {
			return variant{shape: ShapeNull}
		}
		return variant{shape: ShapeErrorList, items: draftsToItems(v.Errors)}
	case Collection:
		return match(canonical(v))
	case ErrorObject:
		return match(canonical(v))
	case json.RawMessage:
		return matchBytes(v)
	case []byte:
		return matchBytes(v)
	case error:
		if isNilPointer(v) {
			return variant{shape: ShapeNull}
		}
		return variant{shape: ShapeException, err: v}
	}

	value := canonical(input)
	switch v := value.(type) {
	case nil:
		return variant{shape: ShapeNull}
	case []any:
		return variant{shape: ShapeErrorList, items: v}
	case *document.Object:
		return matchObject(v)
	default:
		return variant{shape: ShapeScalar, value: v}
	}
}

func matchBytes(b []byte) variant {
	v, err := document.Decode(b)
	if err != nil {
		return variant{shape: ShapeScalar, value: string(b)}
	}
	return match(v)
}

func matchObject(obj *document.Object) variant {
	if errs, ok := obj.Get("errors"); ok {
		switch ev := errs.(type) {
		case nil:
			return variant{shape: ShapeErrorsNull}
		case []any:
			return variant{shape: ShapeErrorList, items: ev}
		case *document.Object:
			if canonicalFields(ev) {
				return variant{shape: ShapeErrorList, items: []any{ev}}
			}
			return variant{shape: ShapeValidationMap, fields: ev}
		default:
			return variant{shape: ShapeErrorsString, value: ev}
		}
	}

	for _, key := range []string{"message", "error"} {
		if v, ok := obj.Get(key); ok {
			return variant{shape: ShapeMessageMap, value: v}
		}
	}

	return variant{shape: ShapeOther, fields: obj}
}

var canonicalKeys = map[string]bool{
	"id": true, "links": true, "status": true, "code": true,
	"title": true, "detail": true, "source": true, "meta": true,
}

// canonicalFields reports whether obj is a single error object rather than
// a field validation map. Every key must belong to an error object, and obj
// must carry a scalar detail or a numeric status: field names such as
// "title", "code" or "id" collide with error keys and stay validation fields.
func canonicalFields(obj *document.Object) bool {
	for _, k := range obj.Keys() {
		if !canonicalKeys[k] {
			return false
		}
		v, _ := obj.Get(k)
		switch k {
		case "source", "meta", "links":
			continue
		}
		if v != nil && !isScalar(v) {
			return false
		}
	}
	if v, ok := obj.Get("detail"); ok && v != nil && isScalar(v) {
		return true
	}
	v, ok := obj.Get("status")
	return ok && isNumber(v)
}

// errorShaped is the looser test applied to list items and to top-level
// mappings: a scalar detail, title, status or code is enough.
func errorShaped(obj *document.Object) bool {
	for _, k := range []string{"detail", "title", "status", "code"} {
		if v, ok := obj.Get(k); ok && isScalar(v) {
			return true
		}
	}
	return false
}

// canonical converts Go-native containers into the decoded JSON forms the
// matcher understands. Maps with string keys iterate in sorted key order;
// other composite values take a JSON round trip. Objects are rebuilt so that
// Go values nested inside them are converted too.
func canonical(v any) any {
	switch t := v.(type) {
	case nil, string, bool, json.Number:
		return v
	case *document.Object:
		if t == nil {
			return nil
		}
		out := document.NewObject()
		for _, k := range t.Keys() {
			item, _ := t.Get(k)
			out.Set(k, canonical(item))
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = canonical(item)
		}
		return out
	case Draft:
		return canonical(map[string]any(t))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String, reflect.Bool:
		return v
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		if rv.Type().Key().Kind() == reflect.String {
			keys := make([]string, 0, rv.Len())
			for _, k := range rv.MapKeys() {
				keys = append(keys, k.String())
			}
			sort.Strings(keys)
			obj := document.NewObject()
			for _, k := range keys {
				obj.Set(k, canonical(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface()))
			}
			return obj
		}
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = canonical(rv.Index(i).Interface())
		}
		return out
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	decoded, err := document.Decode(b)
	if err != nil {
		return string(b)
	}
	return decoded
}

func isNumber(v any) bool {
	if _, ok := v.(json.Number); ok {
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, json.Number:
		return true
	case nil, *document.Object, []any:
		return false
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String, reflect.Bool:
		return true
	default:
		return false
	}
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func draftsToItems(drafts []Draft) []any {
	items := make([]any, len(drafts))
	for i, d := range drafts {
		items[i] = canonical(d)
	}
	return items
}
