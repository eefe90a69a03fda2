// Package uuidfilter separates well-formed UUIDs from everything else before
// any network round trip is spent on them.
package uuidfilter

import "github.com/google/uuid"

// Result is the outcome of Filter. Both lists keep input order.
type Result struct {
	Valid   []string
	Invalid []string
}

// Filter splits ids into canonical UUIDs and the rest. It never fails.
func Filter(ids []string) Result {
	var r Result
	for _, id := range ids {
		if Valid(id) {
			r.Valid = append(r.Valid, id)
		} else {
			r.Invalid = append(r.Invalid, id)
		}
	}
	return r
}

// Valid reports whether id is in the 8-4-4-4-12 hex form, in either case.
// uuid.Parse alone also accepts braces, urn prefixes and the 32 digit form,
// so the layout is checked first.
func Valid(id string) bool {
	if len(id) != 36 {
		return false
	}
	for _, i := range [...]int{8, 13, 18, 23} {
		if id[i] != '-' {
			return false
		}
	}
	_, err := uuid.Parse(id)
	return err == nil
}
