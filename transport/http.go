package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Keksclan/goRawrRemote/document"
)

const (
	contentType  = "application/vnd.api+json"
	maxBodyBytes = 16 << 20
)

// HTTP implements Transport on top of an *http.Client.
type HTTP struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// HTTPOption configures HTTP.
type HTTPOption func(*HTTP)

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) HTTPOption {
	return func(h *HTTP) { h.userAgent = ua }
}

// WithLogger sets the logger used for response diagnostics.
func WithLogger(l *slog.Logger) HTTPOption {
	return func(h *HTTP) { h.logger = l }
}

// NewHTTP returns a Transport using client. A nil client gets
// NewHTTPClient(DefaultClientConfig()).
func NewHTTP(client *http.Client, opts ...HTTPOption) *HTTP {
	if client == nil {
		client = NewHTTPClient(DefaultClientConfig())
	}
	h := &HTTP{
		client:    client,
		userAgent: "goRawrRemote",
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Get fetches url.
func (h *HTTP) Get(ctx context.Context, url string, headers http.Header) (*document.Document, error) {
	return h.do(ctx, http.MethodGet, url, nil, headers)
}

// Post sends body encoded as JSON. A []byte or json.RawMessage body is sent
// as is.
func (h *HTTP) Post(ctx context.Context, url string, body any, headers http.Header) (*document.Document, error) {
	var payload []byte
	switch b := body.(type) {
	case nil:
	case []byte:
		payload = b
	case json.RawMessage:
		payload = b
	default:
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("transport: encode request body: %w", err)
		}
	}
	return h.do(ctx, http.MethodPost, url, payload, headers)
}

func (h *HTTP) do(ctx context.Context, method, url string, payload []byte, headers http.Header) (*document.Document, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &Error{Method: method, URL: url, Err: err}
	}

	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", h.userAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", contentType)
	}
	if payload != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &Error{Method: method, URL: url, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{Method: method, URL: url, Status: resp.StatusCode, Err: err}
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300

	if len(bytes.TrimSpace(raw)) == 0 {
		if ok {
			return &document.Document{Status: resp.StatusCode}, nil
		}
		return nil, &Error{Method: method, URL: url, Status: resp.StatusCode}
	}

	doc, err := document.Parse(raw)
	if err != nil {
		h.logger.DebugContext(ctx, "undecodable response body",
			slog.String("method", method),
			slog.String("url", url),
			slog.Int("status", resp.StatusCode),
			slog.String("error", err.Error()),
		)
		if ok {
			return nil, &Error{Method: method, URL: url, Status: resp.StatusCode, Body: raw, Err: fmt.Errorf("%w: %v", ErrDecode, err)}
		}
		return nil, &Error{Method: method, URL: url, Status: resp.StatusCode, Body: raw}
	}
	doc.Status = resp.StatusCode

	if doc.HasErrors() || ok {
		return doc, nil
	}
	return nil, &Error{Method: method, URL: url, Status: resp.StatusCode, Body: raw}
}
