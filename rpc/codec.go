package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName is the grpc content-subtype carried as application/grpc+json.
const codecName = "json"

// jsonCodec lets the admin service exchange plain Go structs without
// generated protobuf types.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
