package gorawrremote

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Keksclan/goRawrRemote/auth"
	"github.com/Keksclan/goRawrRemote/cache"
	"github.com/Keksclan/goRawrRemote/errnorm"
	"github.com/Keksclan/goRawrRemote/internal/core"
	"github.com/Keksclan/goRawrRemote/observe"
)

// config holds the internal configuration assembled via functional options.
type config struct {
	baseURI      string
	resourcePath string
	idsParam     string
	maxURLLength int

	retries int
	backoff time.Duration

	validateUUIDs bool
	recoverable   []string

	tokens  auth.TokenProvider
	headers http.Header

	logger      *slog.Logger
	logRequests bool
	observers   []observe.Observer
	sink        observe.Sink

	normalizer errnorm.Normalizer
	ttl        cache.TTLPolicy

	sharedStore cache.Store
	sharedTTL   time.Duration

	middlewares core.Ordered[Middleware]
}

func newConfig() config {
	return config{
		idsParam:     DefaultIDsParam,
		maxURLLength: DefaultMaxURLLength,
		retries:      DefaultRetryAttempts,
		backoff:      DefaultRetryBackoff,
		headers:      http.Header{},
		ttl:          cache.DefaultTTLPolicy(),
	}
}
