package lookup

import (
	"context"
	"time"

	"github.com/Keksclan/goRawrRemote/retry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
)

// Client calls a remote rawr.Entities service.
type Client struct {
	conn  grpc.ClientConnInterface
	retry retry.Config
}

// DefaultClientRetry retries Unavailable and ResourceExhausted with
// exponential back-off.
func DefaultClientRetry() retry.Config {
	return retry.Config{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
		Jitter:      0.2,
		RetryCodes:  []codes.Code{codes.Unavailable, codes.ResourceExhausted},
	}
}

// NewClient returns a Client over conn using DefaultClientRetry.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn, retry: DefaultClientRetry()}
}

// WithRetry returns a copy of c that retries with cfg.
func (c *Client) WithRetry(cfg retry.Config) *Client {
	cp := *c
	cp.retry = cfg
	return &cp
}

// FindByIDs invokes rawr.Entities/FindByIDs. Failures are gRPC status
// errors; ErrorsFrom extracts their normalized errors.
func (c *Client) FindByIDs(ctx context.Context, ids []string, opts ...grpc.CallOption) (*FindResponse, error) {
	req := &FindRequest{IDs: ids}
	return retry.Do(ctx, c.retry, func(ctx context.Context) (*FindResponse, error) {
		resp := new(FindResponse)
		if err := c.conn.Invoke(ctx, FullMethodFindByIDs, req, resp, opts...); err != nil {
			return nil, err
		}
		return resp, nil
	})
}
