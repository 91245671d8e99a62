package rpcserver

import "encoding/json"

// jsonCodec mirrors internal/client/followclient's codec of the same
// name: both sides of the wire must register the identical Connect
// codec, and duplicating ten lines here avoids an import between two
// otherwise-independent leaf packages for a type with no other reason
// to be shared.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
