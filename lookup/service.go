// Package lookup exposes a repository over gRPC as the rawr.Entities
// service. Every call is one unit of work: the service builds a fresh
// repository for it, so positive and negative caches only outlive the call
// when a shared store is configured.
//
// Request and response types are plain Go structs registered through
// [grpc.ServiceDesc]; no protobuf code generation is required. Importing
// this package installs a codec that JSON-encodes the lookup types and
// delegates all other messages to protobuf.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"sync"

	gorawrremote "github.com/Keksclan/goRawrRemote"
	"github.com/Keksclan/goRawrRemote/document"
	"github.com/Keksclan/goRawrRemote/errnorm"
	"github.com/Keksclan/goRawrRemote/failure"
	"github.com/Keksclan/goRawrRemote/observe"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// FullMethodFindByIDs is the full gRPC method name of FindByIDs.
const FullMethodFindByIDs = "/rawr.Entities/FindByIDs"

// FindRequest is the input for FindByIDs.
type FindRequest struct {
	IDs []string `json:"ids"`
}

// IDCount returns the number of requested IDs.
func (r *FindRequest) IDCount() int { return len(r.IDs) }

// FindResponse is the output of FindByIDs. Missing lists requested IDs the
// remote service does not know (or that are negatively cached); Rejected
// lists IDs dropped as malformed before any lookup. Degraded carries the
// message of a recoverable upstream error; the IDs of that batch are listed
// as missing.
type FindResponse struct {
	Entities []document.Entity `json:"entities"`
	Missing  []string          `json:"missing,omitempty"`
	Rejected []string          `json:"rejected,omitempty"`
	Degraded string            `json:"degraded,omitempty"`
}

// Counts returns how many IDs were found, missing and rejected.
func (r *FindResponse) Counts() (found, missing, rejected int) {
	return len(r.Entities), len(r.Missing), len(r.Rejected)
}

// DegradedMessage returns Degraded.
func (r *FindResponse) DegradedMessage() string { return r.Degraded }

// Handler is the interface that an Entities service implementation must
// satisfy.
type Handler interface {
	FindByIDs(ctx context.Context, req *FindRequest) (*FindResponse, error)
}

// Factory builds the repository for one call. extra carries per-call
// options the service needs and must be applied last.
type Factory func(ctx context.Context, extra ...gorawrremote.Option) (*gorawrremote.Repository, error)

// Service implements Handler on top of a repository Factory.
type Service struct {
	factory Factory
}

// NewService returns a Service that builds repositories with f.
func NewService(f Factory) *Service {
	return &Service{factory: f}
}

// FindByIDs looks up req.IDs. Entities are returned in request order.
func (s *Service) FindByIDs(ctx context.Context, req *FindRequest) (*FindResponse, error) {
	rejected := &rejections{}
	repo, err := s.factory(ctx, gorawrremote.WithObserver(rejected))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "lookup: build repository: %v", err)
	}

	found, err := repo.FindByIDs(ctx, req.IDs)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &FindResponse{Rejected: rejected.list()}
	if doc := repo.Degraded(); doc != nil {
		resp.Degraded = doc.DegradedMessage()
	}
	seen := make(map[string]struct{}, len(req.IDs))
	for _, id := range req.IDs {
		id = strings.TrimSpace(id)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if e, ok := found[id]; ok {
			resp.Entities = append(resp.Entities, e)
			continue
		}
		if id == "" || slices.Contains(resp.Rejected, id) {
			continue
		}
		resp.Missing = append(resp.Missing, id)
	}
	return resp, nil
}

// rejections collects the IDs a repository drops as malformed.
type rejections struct {
	observe.Nop
	mu  sync.Mutex
	ids []string
}

func (r *rejections) Rejected(_ context.Context, ids []string) {
	r.mu.Lock()
	r.ids = append(r.ids, ids...)
	r.mu.Unlock()
}

func (r *rejections) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.ids)
}

// Code maps a failure category to the gRPC code reported to callers.
func Code(c failure.Category) codes.Code {
	switch c {
	case failure.NotFound:
		return codes.NotFound
	case failure.AuthError:
		return codes.Unauthenticated
	case failure.RateLimited:
		return codes.ResourceExhausted
	case failure.ServerError, failure.ConnectionError:
		return codes.Unavailable
	case failure.Timeout:
		return codes.DeadlineExceeded
	case failure.ClientError:
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}

// failureStatus is the status error for a RemoteServiceFailure. It keeps the
// failure category for interceptors running in the same process.
type failureStatus struct {
	st       *status.Status
	category failure.Category
}

func (e *failureStatus) Error() string              { return e.st.Err().Error() }
func (e *failureStatus) GRPCStatus() *status.Status { return e.st }
func (e *failureStatus) Category() failure.Category { return e.category }

// toStatus converts a repository error into a gRPC status. The normalized
// errors of a RemoteServiceFailure travel as structpb details.
func toStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	var f *gorawrremote.RemoteServiceFailure
	if !errors.As(err, &f) {
		return status.Error(codes.Internal, err.Error())
	}

	st := status.New(Code(f.Category()), f.Error())
	for _, e := range f.Errors {
		detail, derr := toStruct(e)
		if derr != nil {
			continue
		}
		if withDetail, werr := st.WithDetails(detail); werr == nil {
			st = withDetail
		}
	}
	return &failureStatus{st: st, category: f.Category()}
}

func toStruct(e errnorm.ErrorObject) (*structpb.Struct, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, s); err != nil {
		return nil, err
	}
	return s, nil
}

// ErrorsFrom returns the normalized errors carried by a status error
// returned from FindByIDs.
func ErrorsFrom(err error) errnorm.Collection {
	st, ok := status.FromError(err)
	if !ok {
		return nil
	}
	var out errnorm.Collection
	for _, d := range st.Details() {
		s, ok := d.(*structpb.Struct)
		if !ok {
			continue
		}
		raw, err := protojson.Marshal(s)
		if err != nil {
			continue
		}
		var e errnorm.ErrorObject
		if json.Unmarshal(raw, &e) == nil {
			out = append(out, e)
		}
	}
	return out
}

// ServiceDesc is the grpc.ServiceDesc for the rawr.Entities service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "rawr.Entities",
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "FindByIDs",
			Handler:    findByIDsHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rawr/entities.proto",
}

func findByIDsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(FindRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Handler).FindByIDs(ctx, req)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: FullMethodFindByIDs,
	}
	handler := func(ctx context.Context, r any) (any, error) {
		return srv.(Handler).FindByIDs(ctx, r.(*FindRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// Register registers an Entities service implementation on s.
func Register(s grpc.ServiceRegistrar, h Handler) {
	s.RegisterService(&ServiceDesc, h)
}
