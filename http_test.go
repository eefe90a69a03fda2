package gorawrremote

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Keksclan/goRawrRemote/auth"
	"github.com/Keksclan/goRawrRemote/failure"
	"github.com/Keksclan/goRawrRemote/transport"
)

// newUsersServer serves /v1/users?filter[id]=... from a fixed set of users.
// The first failFirst requests answer 503 without a body.
func newUsersServer(t *testing.T, failFirst int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	users := map[string]string{idA: "Ada", idB: "Grace"}
	var hits atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		if n <= failFirst {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.Header().Set("Content-Type", "application/vnd.api+json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"errors":[{"status":"401","title":"Unauthorized","detail":"bad token"}]}`)
			return
		}

		type resource struct {
			ID         string         `json:"id"`
			Type       string         `json:"type"`
			Attributes map[string]any `json:"attributes"`
		}
		data := []resource{}
		for _, id := range strings.Split(r.URL.Query().Get("filter[id]"), ",") {
			if name, ok := users[id]; ok {
				data = append(data, resource{ID: id, Type: "users", Attributes: map[string]any{"name": name}})
			}
		}
		w.Header().Set("Content-Type", "application/vnd.api+json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newHTTPRepo(t *testing.T, srv *httptest.Server, token string, opts ...Option) (*Repository, *recorder) {
	t.Helper()
	rec := &recorder{}
	base := []Option{
		WithBaseURI(srv.URL + "/v1"),
		WithResourcePath("users"),
		WithUUIDValidation(true),
		WithRetry(2, time.Millisecond),
		WithTokenProvider(auth.Static(token)),
		WithLogger(slog.New(slog.DiscardHandler), false),
		WithObserver(rec),
	}
	r, err := New(transport.NewHTTP(srv.Client()), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r, rec
}

func TestHTTP_FindByIDsEndToEnd(t *testing.T) {
	srv, hits := newUsersServer(t, 1)
	r, rec := newHTTPRepo(t, srv, "secret")

	got, err := r.FindByIDs(t.Context(), []string{idA, idB, idC, "bogus"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[idA].Attributes["name"] != "Ada" || got[idB].Attributes["name"] != "Grace" {
		t.Fatalf("unexpected result %+v", got)
	}
	if hits.Load() != 2 || rec.retries != 1 {
		t.Fatalf("expected one retry after the 503, got %d hits and %d retries", hits.Load(), rec.retries)
	}

	e, ok, err := r.FindByID(t.Context(), idA)
	if err != nil || !ok || e.ID != idA {
		t.Fatalf("FindByID = %+v %v %v", e, ok, err)
	}
	if hits.Load() != 2 {
		t.Fatal("cached entity must not be fetched again")
	}
}

func TestHTTP_ErrorDocument(t *testing.T) {
	srv, hits := newUsersServer(t, 0)
	r, _ := newHTTPRepo(t, srv, "wrong")

	_, err := r.FindByIDs(t.Context(), []string{idA})
	f := asFailure(t, err)
	if f.Category() != failure.AuthError || f.StatusCode() != 401 {
		t.Fatalf("unexpected failure %v", err)
	}
	if len(f.Errors) != 1 || f.Errors[0].Detail != "bad token" {
		t.Fatalf("unexpected errors %+v", f.Errors)
	}
	if hits.Load() != 1 {
		t.Fatalf("error documents are not retried, got %d hits", hits.Load())
	}
}
