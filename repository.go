package gorawrremote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Keksclan/goRawrRemote/breaker"
	"github.com/Keksclan/goRawrRemote/cache"
	"github.com/Keksclan/goRawrRemote/document"
	"github.com/Keksclan/goRawrRemote/errnorm"
	"github.com/Keksclan/goRawrRemote/failure"
	"github.com/Keksclan/goRawrRemote/observe"
	"github.com/Keksclan/goRawrRemote/retry"
	"github.com/Keksclan/goRawrRemote/transport"
	"github.com/Keksclan/goRawrRemote/uuidfilter"
)

var (
	// ErrNoTransport is returned by New without a transport.
	ErrNoTransport = errors.New("gorawrremote: transport is required")

	// ErrNoBaseURI is returned by New without WithBaseURI.
	ErrNoBaseURI = errors.New("gorawrremote: base URI is required")

	// ErrInvalidBaseURI is returned by New for a base URI that is not an
	// absolute URL.
	ErrInvalidBaseURI = errors.New("gorawrremote: invalid base URI")
)

// Repository fetches entities of one resource from the remote service.
//
// Create one per unit of work:
//
//	repo, err := gorawrremote.New(transport.NewHTTP(client),
//		gorawrremote.WithBaseURI("https://api.example.com/v1"),
//		gorawrremote.WithResourcePath("/users"),
//		gorawrremote.WithTokenProvider(tokens),
//	)
//	users, err := repo.FindByIDs(ctx, ids)
type Repository struct {
	transport transport.Transport
	cfg       config
	endpoint  string

	call     CallFunc
	positive *cache.Positive
	negative *cache.Negative
	parser   errnorm.Parser
	observer observe.Observer
	sink     observe.Sink

	mu       sync.Mutex
	degraded string
}

// New creates a Repository that talks through t.
func New(t transport.Transport, opts ...Option) (*Repository, error) {
	if t == nil {
		return nil, ErrNoTransport
	}

	cfg := newConfig()
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.baseURI == "" {
		return nil, ErrNoBaseURI
	}
	if u, err := url.Parse(cfg.baseURI); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURI, cfg.baseURI)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	var shared *cache.Shared
	if cfg.sharedStore != nil {
		shared = &cache.Shared{
			Store:     cfg.sharedStore,
			Namespace: strings.Trim(cfg.resourcePath, "/"),
			TTL:       cfg.sharedTTL,
		}
	}

	r := &Repository{
		transport: t,
		cfg:       cfg,
		endpoint:  joinURL(cfg.baseURI, cfg.resourcePath),
		positive:  cache.NewPositive(shared),
		negative:  cache.NewNegative(cfg.ttl, shared),
		parser:    errnorm.Parser{Normalizer: cfg.normalizer},
		observer: observe.Combine(append(
			[]observe.Observer{observe.NewLogger(logger, cfg.logRequests)},
			cfg.observers...,
		)...),
		sink: cfg.sink,
	}
	if r.sink == nil {
		r.sink = observe.LogSink{Logger: logger}
	}
	r.call = Wrap(r.send, cfg.middlewares.Build()...)
	return r, nil
}

// FindByIDs returns the entities for ids that could be resolved. The result
// is a best-effort partial map: IDs rejected by validation, held by the
// negative cache, reported as not found, or missing from a successful
// response are omitted. IDs are trimmed of surrounding whitespace and the
// result is keyed by the trimmed ID; blank and repeated IDs are ignored.
//
// A batch answered with an error matching a recoverable pattern is omitted
// as well; Degraded reports it after the call returns.
//
// An error is returned only for a classified failure, as a
// *RemoteServiceFailure.
func (r *Repository) FindByIDs(ctx context.Context, ids []string) (map[string]document.Entity, error) {
	r.setDegraded("")
	ids = dedupe(ids)

	if r.cfg.validateUUIDs {
		res := uuidfilter.Filter(ids)
		if len(res.Invalid) > 0 {
			r.observer.Rejected(ctx, res.Invalid)
		}
		ids = res.Valid
	}

	found := make(map[string]document.Entity, len(ids))
	var remaining, skipped []string
	for _, id := range ids {
		if e, ok := r.positive.Get(ctx, id); ok {
			found[id] = e
			continue
		}
		if _, ok := r.negative.Lookup(ctx, id); ok {
			skipped = append(skipped, id)
			continue
		}
		remaining = append(remaining, id)
	}
	if len(skipped) > 0 {
		r.observer.Skipped(ctx, skipped)
	}

	for _, b := range batchURLs(r.endpoint, r.cfg.idsParam, remaining, r.cfg.maxURLLength) {
		msg, err := r.fetchBatch(ctx, b, found)
		if err != nil {
			return nil, err
		}
		if msg != "" && r.Degraded() == nil {
			r.setDegraded(msg)
		}
	}
	return found, nil
}

// FindByID looks up a single entity. A missing or not found entity is
// reported as (zero, false, nil); Degraded tells a degraded upstream apart
// from absence. The ID is trimmed as in FindByIDs.
func (r *Repository) FindByID(ctx context.Context, id string) (document.Entity, bool, error) {
	id = strings.TrimSpace(id)
	found, err := r.FindByIDs(ctx, []string{id})
	if err != nil {
		return document.Entity{}, false, err
	}
	e, ok := found[id]
	return e, ok, nil
}

// Get fetches target, which may be absolute or relative to the base URI.
// A structured error matching a recoverable pattern yields a degraded
// document instead of an error.
func (r *Repository) Get(ctx context.Context, target string) (*document.Document, error) {
	return r.do(ctx, http.MethodGet, resolve(r.cfg.baseURI, target), nil)
}

// Post sends body to target. Only transport failures are retried; an error
// document is never sent again.
func (r *Repository) Post(ctx context.Context, target string, body any) (*document.Document, error) {
	return r.do(ctx, http.MethodPost, resolve(r.cfg.baseURI, target), body)
}

// Degraded returns the degraded-success sentinel of the last FindByIDs or
// FindByID call, or nil when no batch matched a recoverable pattern. With
// several degraded batches the first message wins.
func (r *Repository) Degraded() *document.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.degraded == "" {
		return nil
	}
	return document.Degraded(r.degraded)
}

func (r *Repository) setDegraded(msg string) {
	r.mu.Lock()
	r.degraded = msg
	r.mu.Unlock()
}

// Forget drops id from both caches so that the next lookup goes to the
// network.
func (r *Repository) Forget(ctx context.Context, id string) {
	r.positive.Delete(ctx, id)
	r.negative.Forget(ctx, id)
}

// fetchBatch resolves one batch into found. It returns the degraded message
// when the batch was answered with a recoverable error.
func (r *Repository) fetchBatch(ctx context.Context, b batch, found map[string]document.Entity) (string, error) {
	oc := observe.Call{Method: http.MethodGet, URL: b.url, IDs: len(b.ids)}

	doc, err := r.exchange(ctx, oc, nil)
	if err != nil {
		f := r.transportFailure(err, oc.URL)
		switch {
		case abandoned(ctx, err):
			return "", f
		case isCredentialError(err):
			r.fail(ctx, oc, f)
			return "", f
		}
		r.remember(ctx, b.ids, f.Category())
		if f.Category() == failure.NotFound {
			r.observer.Failed(ctx, oc, f.Category(), f)
			return "", nil
		}
		r.fail(ctx, oc, f)
		return "", f
	}

	if doc.HasErrors() {
		errs := r.parser.Parse(doc.ErrorPayload())
		if msg, ok := r.recoverable(errs); ok {
			r.observer.Degraded(ctx, oc, msg)
			return msg, nil
		}

		f := newFailure(classifyDocument(doc, errs), oc.URL, errs, nil)
		r.remember(ctx, b.ids, f.Category())
		if f.Category() == failure.NotFound {
			r.observer.Failed(ctx, oc, f.Category(), f)
			return "", nil
		}
		r.fail(ctx, oc, f)
		return "", f
	}

	requested := make(map[string]bool, len(b.ids))
	for _, id := range b.ids {
		requested[id] = true
	}
	for _, e := range doc.Data() {
		if e.ID == "" {
			continue
		}
		r.positive.Put(ctx, e)
		if requested[e.ID] {
			found[e.ID] = e
		}
	}
	return "", nil
}

func (r *Repository) do(ctx context.Context, method, target string, body any) (*document.Document, error) {
	oc := observe.Call{Method: method, URL: target}

	doc, err := r.exchange(ctx, oc, body)
	if err != nil {
		f := r.transportFailure(err, target)
		if !abandoned(ctx, err) {
			r.fail(ctx, oc, f)
		}
		return nil, f
	}

	if !doc.HasErrors() {
		return doc, nil
	}

	errs := r.parser.Parse(doc.ErrorPayload())
	if msg, ok := r.recoverable(errs); ok {
		r.observer.Degraded(ctx, oc, msg)
		return document.Degraded(msg), nil
	}

	f := newFailure(classifyDocument(doc, errs), target, errs, nil)
	r.fail(ctx, oc, f)
	return nil, f
}

// exchange performs the request, retrying transient transport failures with
// a fixed backoff. Error documents are returned as documents, never retried.
func (r *Repository) exchange(ctx context.Context, oc observe.Call, body any) (*document.Document, error) {
	cfg := retry.Fixed(r.cfg.retries, r.cfg.backoff, retryable)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		r.observer.Retried(ctx, oc, attempt, err, delay)
	}

	return retry.Do(ctx, cfg, func(ctx context.Context) (*document.Document, error) {
		headers, err := r.headers(ctx)
		if err != nil {
			return nil, err
		}

		r.observer.RequestStarted(ctx, oc)
		start := time.Now()
		doc, err := r.call(ctx, Call{Method: oc.Method, URL: oc.URL, Body: body, Headers: headers})
		if err == nil && doc == nil {
			doc = document.New()
		}
		r.observer.RequestFinished(ctx, oc, time.Since(start), err)
		return doc, err
	})
}

func (r *Repository) send(ctx context.Context, c Call) (*document.Document, error) {
	if c.Method == http.MethodPost {
		return r.transport.Post(ctx, c.URL, c.Body, c.Headers)
	}
	return r.transport.Get(ctx, c.URL, c.Headers)
}

func (r *Repository) headers(ctx context.Context) (http.Header, error) {
	h := r.cfg.headers.Clone()
	if r.cfg.tokens == nil {
		return h, nil
	}
	tok, err := r.cfg.tokens.Token(ctx)
	if err != nil {
		return nil, &credentialError{err: err}
	}
	h.Set("Authorization", "Bearer "+tok)
	return h, nil
}

// transportFailure wraps the last error of an exchange. A rejected
// credential is dropped from a caching provider so the next unit of work
// fetches a fresh one.
func (r *Repository) transportFailure(err error, target string) *RemoteServiceFailure {
	f := newFailure(failure.ClassifyError(err), target, nil, err)
	f.Errors = r.parser.Parse(f)

	if f.Category() == failure.AuthError && !isCredentialError(err) {
		if inv, ok := r.cfg.tokens.(interface{ Invalidate() }); ok {
			inv.Invalidate()
		}
	}
	return f
}

// fail emits a classified failure and reports it to the sink.
func (r *Repository) fail(ctx context.Context, oc observe.Call, f *RemoteServiceFailure) {
	r.observer.Failed(ctx, oc, f.Category(), f)
	if f.Category() != failure.NotFound {
		r.sink.Report(ctx, f, f.Errors)
	}
}

func (r *Repository) remember(ctx context.Context, ids []string, c failure.Category) {
	for _, id := range ids {
		r.negative.Record(ctx, id, c)
	}
}

func (r *Repository) recoverable(errs errnorm.Collection) (string, bool) {
	for _, d := range errs.Details() {
		for _, p := range r.cfg.recoverable {
			if strings.Contains(d, p) {
				return d, true
			}
		}
	}
	return "", false
}

// classifyDocument uses the first error status that maps to a category and
// falls back to the response status.
func classifyDocument(doc *document.Document, errs errnorm.Collection) failure.Category {
	for _, s := range errs.Statuses() {
		if c := failure.ClassifyStatus(s); c != failure.Unknown {
			return c
		}
	}
	if doc.Status != 0 {
		return failure.ClassifyStatus(doc.Status)
	}
	return failure.Unknown
}

func retryable(err error) bool {
	if errors.Is(err, breaker.ErrOpen) {
		return false
	}
	return failure.ClassifyError(err).Transient()
}

// abandoned reports whether the caller gave up on the call: its context is
// done, by cancellation or by its own deadline. Such failures are neither
// negatively cached nor reported.
func abandoned(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// credentialError marks a failure to obtain a token.
type credentialError struct{ err error }

func (e *credentialError) Error() string              { return "credentials: " + e.err.Error() }
func (e *credentialError) Unwrap() error              { return e.err }
func (e *credentialError) Category() failure.Category { return failure.AuthError }

func isCredentialError(err error) bool {
	var ce *credentialError
	return errors.As(err, &ce)
}
