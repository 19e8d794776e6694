// Package grpcx registers the JSON codec that GophNotes uses on the wire
// instead of protobuf. Importing the package is enough for a server to
// accept it; clients select it with CallOption.
package grpcx

import (
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the content subtype, sent as application/grpc+json.
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// CallOption selects the JSON codec for a call.
func CallOption() grpc.CallOption {
	return grpc.CallContentSubtype(CodecName)
}
