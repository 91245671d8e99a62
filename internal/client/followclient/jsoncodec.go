package followclient

import "encoding/json"

// jsonCodec implements connect.Codec over encoding/json. The control
// plane's wire types (WireRequest/WireResponse) are plain structs, not
// generated protobuf messages (see DESIGN.md): every other internal
// wire format in this repo already standardized on JSON, so the RPC
// transport follows suit rather than introducing the one place that
// uses binary protobuf.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
