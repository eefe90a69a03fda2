package lookup

import (
	"encoding/json"
	"fmt"

	grpcEncoding "google.golang.org/grpc/encoding"
	_ "google.golang.org/grpc/encoding/proto" // ensure default proto codec is registered first
	"google.golang.org/protobuf/proto"
)

// message is a marker interface satisfied by the lookup request and
// response types.
type message interface {
	isLookupMsg()
}

func (*FindRequest) isLookupMsg()  {}
func (*FindResponse) isLookupMsg() {}

func init() {
	// Replace the default proto codec with a thin wrapper that JSON-encodes
	// lookup types and delegates all other (protobuf) messages to proto.Marshal.
	grpcEncoding.RegisterCodec(codec{})
}

// codec handles FindRequest and FindResponse via JSON and delegates all
// other types to proto.Marshal/Unmarshal.
type codec struct{}

func (codec) Name() string { return "proto" }

func (codec) Marshal(v any) ([]byte, error) {
	if _, ok := v.(message); ok {
		return json.Marshal(v)
	}
	if m, ok := v.(proto.Message); ok {
		return proto.Marshal(m)
	}
	return nil, fmt.Errorf("lookup codec: unsupported message type %T", v)
}

func (codec) Unmarshal(data []byte, v any) error {
	if _, ok := v.(message); ok {
		return json.Unmarshal(data, v)
	}
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, m)
	}
	return fmt.Errorf("lookup codec: unsupported message type %T", v)
}
