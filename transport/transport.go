// Package transport moves JSON documents between the repository and the
// remote entity service.
package transport

import (
	"context"
	"net/http"

	"github.com/Keksclan/goRawrRemote/document"
)

// Transport performs the two verbs the repository needs. Implementations
// return a document for every response that carries one, including error
// documents, and an *Error for everything else.
type Transport interface {
	Get(ctx context.Context, url string, headers http.Header) (*document.Document, error)
	Post(ctx context.Context, url string, body any, headers http.Header) (*document.Document, error)
}

// Func adapts a single function to Transport. The body is nil for GET.
type Func func(ctx context.Context, method, url string, body any, headers http.Header) (*document.Document, error)

func (f Func) Get(ctx context.Context, url string, headers http.Header) (*document.Document, error) {
	return f(ctx, http.MethodGet, url, nil, headers)
}

func (f Func) Post(ctx context.Context, url string, body any, headers http.Header) (*document.Document, error) {
	return f(ctx, http.MethodPost, url, body, headers)
}
