// Package grpcclient holds the clients for the external auth/session and
// user-directory services. Both services speak gRPC with the json
// content-subtype, so no generated stubs are required here.
package grpcclient

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// Codec is the registered content-subtype; dial with
// grpc.WithDefaultCallOptions(grpc.CallContentSubtype(Codec)).
const Codec = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return Codec }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
