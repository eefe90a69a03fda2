package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Keksclan/goRawrRemote/document"
	"github.com/Keksclan/goRawrRemote/failure"
)

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPGetDocument(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing authorization header: %v", r.Header)
		}
		if r.Header.Get("Accept") != contentType {
			t.Errorf("unexpected Accept %q", r.Header.Get("Accept"))
		}
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("unexpected User-Agent %q", r.Header.Get("User-Agent"))
		}
		_, _ = io.WriteString(w, `{"data":[{"id":"a","type":"users"}]}`)
	})

	h := NewHTTP(srv.Client(), WithUserAgent("test-agent"))
	doc, err := h.Get(t.Context(), srv.URL, http.Header{"Authorization": {"Bearer tok"}})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Status != http.StatusOK {
		t.Fatalf("expected status 200, got %d", doc.Status)
	}
	if data := doc.Data(); len(data) != 1 || data[0].ID != "a" {
		t.Fatalf("unexpected data %+v", data)
	}
}

func TestHTTPErrorDocument(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"errors":[{"status":"422","detail":"bad"}]}`)
	})

	doc, err := NewHTTP(srv.Client()).Get(t.Context(), srv.URL, nil)
	if err != nil {
		t.Fatalf("error documents must not fail the call: %v", err)
	}
	if !doc.HasErrors() || doc.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected error document with status 422, got %+v", doc)
	}
}

func TestHTTPStatusWithoutDocument(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   failure.Category
	}{
		{"empty 503", http.StatusServiceUnavailable, "", failure.ServerError},
		{"html 502", http.StatusBadGateway, "<html>bad gateway</html>", failure.ServerError},
		{"empty 404", http.StatusNotFound, "", failure.NotFound},
		{"429", http.StatusTooManyRequests, `{"data":null}`, failure.RateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := NewHTTP(srv.Client()).Get(t.Context(), srv.URL, nil)
			var te *Error
			if !errors.As(err, &te) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if te.StatusCode() != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, te.StatusCode())
			}
			if got := failure.Classify(err); got != tt.want {
				t.Fatalf("Classify = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHTTPUndecodableSuccess(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "not json")
	})

	_, err := NewHTTP(srv.Client()).Get(t.Context(), srv.URL, nil)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if got := failure.Classify(err); got != failure.Unknown {
		t.Fatalf("Classify = %v, want unknown", got)
	}
}

func TestHTTPPostBody(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != contentType {
			t.Errorf("unexpected Content-Type %q", r.Header.Get("Content-Type"))
		}
		var in map[string]any
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"data":{"id":"new","type":"users"}}`)
	})

	doc, err := NewHTTP(srv.Client()).Post(t.Context(), srv.URL, map[string]any{"data": map[string]any{"type": "users"}}, nil)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if !doc.IsSingle() || doc.Data()[0].ID != "new" || doc.Status != http.StatusCreated {
		t.Fatalf("unexpected document %+v", doc)
	}
}

func TestHTTPTimeout(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	_, err := NewHTTP(srv.Client()).Get(ctx, srv.URL, nil)
	var te *Error
	if !errors.As(err, &te) || !te.Timeout() {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if got := failure.Classify(err); got != failure.Timeout {
		t.Fatalf("Classify = %v, want timeout", got)
	}
}

func TestHTTPConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTP(nil).Get(t.Context(), url, nil)
	if got := failure.Classify(err); got != failure.ConnectionError {
		t.Fatalf("Classify = %v, want connection_error (err=%v)", got, err)
	}
}

func TestFunc(t *testing.T) {
	var gotMethod string
	f := Func(func(_ context.Context, method, _ string, _ any, _ http.Header) (*document.Document, error) {
		gotMethod = method
		return document.New(), nil
	})

	var tr Transport = f
	if _, err := tr.Post(t.Context(), "u", nil, nil); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("expected POST, got %s", gotMethod)
	}
}
