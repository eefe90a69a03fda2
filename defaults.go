package gorawrremote

import "time"

const (
	// DefaultMaxURLLength bounds a batched fetch URL.
	DefaultMaxURLLength = 2048

	// DefaultRetryAttempts is the number of retries after the first attempt.
	DefaultRetryAttempts = 2

	// DefaultRetryBackoff is the fixed wait between attempts.
	DefaultRetryBackoff = time.Second

	// DefaultIDsParam is the query parameter carrying a comma separated ID
	// list.
	DefaultIDsParam = "filter[id]"
)

// DefaultOptions returns the recommended set of options for production use:
// UUID validation and the default retry budget. Base URI, resource path and
// credentials still have to be supplied.
func DefaultOptions() []Option {
	return []Option{
		WithUUIDValidation(true),
		WithRetry(DefaultRetryAttempts, DefaultRetryBackoff),
		WithMaxURLLength(DefaultMaxURLLength),
	}
}
