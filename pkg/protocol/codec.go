package protocol

import (
	"fmt"

	"google.golang.org/grpc"
)

// Codec marshals the hand-maintained Message types with the protobuf wire
// format. It reports itself as "proto" so the content-subtype stays
// application/grpc+proto and any stock CivicCloudService server accepts it.
type Codec struct{}

func (Codec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(Message)
	if !ok {
		return nil, fmt.Errorf("protocol: cannot marshal %T", v)
	}
	return m.Marshal()
}

func (Codec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(Message)
	if !ok {
		return fmt.Errorf("protocol: cannot unmarshal into %T", v)
	}
	return m.Unmarshal(data)
}

func (Codec) Name() string { return "proto" }

// ServerOptions returns the options a grpc.Server needs to serve
// CivicCloudService with this package's types.
func ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{grpc.ForceServerCodec(Codec{})}
}

// CallOptions returns the default call options for a CivicCloudService client.
func CallOptions() []grpc.CallOption {
	return []grpc.CallOption{grpc.ForceCodec(Codec{})}
}
