package followclient

import "encoding/json"

// WireRequest is the generic envelope every Connect procedure carries:
// the caller-supplied payload plus a random log id for tracing one Send
// call across logs; every attempt of that call carries the same id
// (spec §4.6 "random 64-bit log-id per RPC").
type WireRequest struct {
	LogID   uint64          `json:"log_id"`
	Payload json.RawMessage `json:"payload"`
}

// WireResponse is the generic envelope every Connect procedure returns,
// matching spec §6's wire contract exactly: every response carries
// errcode/errmsg, and on leader-election errors a leader endpoint.
type WireResponse struct {
	Errcode int32           `json:"errcode"`
	Errmsg  string          `json:"errmsg"`
	Leader  string          `json:"leader"`
	Payload json.RawMessage `json:"payload"`
}
