// Package transport exposes the event plane over gRPC: a single
// server-streaming RPC that lets a remote caller subscribe to one
// execution's events. No .proto is compiled for this — the wire messages
// are plain Go structs marshaled with the json codec registered below
// instead of the default protobuf codec, so the service needs no
// generated .pb.go stubs. Grounded on the gRPC server construction in
// pkg/api/server.go, with the mTLS/certificate machinery dropped (that
// exists to authenticate cluster membership joins, which this
// single-process event plane has no notion of).
package transport

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const codecName = "json"

// jsonCodec implements encoding.Codec so grpc-go can (de)serialize the
// plain structs in this package without generated protobuf marshalers.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
