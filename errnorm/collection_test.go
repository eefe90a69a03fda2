package errnorm

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/Keksclan/goRawrRemote/document"
)

func TestParseCanonicalList(t *testing.T) {
	c := Parse(json.RawMessage(`{"errors":[
		{"id":"e1","status":"422","code":"invalid","title":"Invalid","detail":"email is invalid","source":{"pointer":"/data/attributes/email"},"meta":{"rule":"email"}},
		{"status":404,"title":"Not Found"}
	]}`))

	if len(c) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(c))
	}

	first := c[0]
	if first.ID != "e1" || first.Status != "422" || first.Code != "invalid" || first.Title != "Invalid" {
		t.Fatalf("unexpected fields %+v", first)
	}
	if first.Source == nil || first.Source.Pointer != "/data/attributes/email" {
		t.Fatalf("unexpected source %+v", first.Source)
	}
	if first.Meta["rule"] != "email" {
		t.Fatalf("unexpected meta %v", first.Meta)
	}

	second := c[1]
	if second.Status != "404" || second.Detail != "Not Found" || second.Source != nil {
		t.Fatalf("unexpected second error %+v", second)
	}

	if got := c.Statuses(); !reflect.DeepEqual(got, []int{422, 404}) {
		t.Fatalf("Statuses = %v", got)
	}
}

func TestParseDetailNeverEmpty(t *testing.T) {
	for _, in := range []any{nil, "", map[string]any{"errors": map[string]any{"a": ""}}} {
		for _, e := range Parse(in) {
			if e.Detail == "" {
				t.Fatalf("empty detail for input %#v", in)
			}
		}
	}
}

func TestCollectionMarshal(t *testing.T) {
	c := Collection{{Status: "404", Detail: "gone"}}
	b, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `{"errors":[{"status":"404","detail":"gone"}]}` {
		t.Fatalf("unexpected JSON %s", b)
	}

	var back Collection
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(back, c) {
		t.Fatalf("round trip = %+v, want %+v", back, c)
	}
}

func TestCollectionError(t *testing.T) {
	c := Parse(map[string]any{"errors": []string{"first", "second"}})
	var err error = c
	if err.Error() != "first; second" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	var target Collection
	if !errors.As(err, &target) || len(target) != 2 {
		t.Fatal("expected errors.As to find the collection")
	}
}

func TestParseCollectionIsIdempotent(t *testing.T) {
	in := map[string]any{"errors": map[string]any{"email": []string{"required", "invalid"}}}
	once := Parse(in)
	twice := Parse(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("%+v != %+v", once, twice)
	}
}

func TestParserStrictBooleans(t *testing.T) {
	p := Parser{Normalizer: Normalizer{StrictBooleans: true}}
	if got := p.Parse(true)[0].Detail; got != "true" {
		t.Fatalf("expected true, got %q", got)
	}
}

func TestParseObjectWithGoValues(t *testing.T) {
	obj := document.NewObject()
	obj.Set("errors", []any{map[string]any{"status": "404", "detail": "gone"}})

	c := Parse(obj)
	if len(c) != 1 || c[0].Detail != "gone" || c[0].Status != "404" {
		t.Fatalf("unexpected collection %+v", c)
	}
}

func TestParseValidationFieldsNamedLikeErrorKeys(t *testing.T) {
	c := Parse([]byte(`{"errors":{"code":"must be 6 digits","title":"is required"}}`))
	if len(c) != 2 {
		t.Fatalf("expected one error per field, got %+v", c)
	}
	for i, field := range []string{"code", "title"} {
		if c[i].Source == nil || c[i].Source.Pointer != "/data/attributes/"+field {
			t.Fatalf("error %d: expected pointer for %s, got %+v", i, field, c[i].Source)
		}
	}
	if c[0].Detail != "must be 6 digits" || c[1].Detail != "is required" {
		t.Fatalf("unexpected details %q, %q", c[0].Detail, c[1].Detail)
	}
}
