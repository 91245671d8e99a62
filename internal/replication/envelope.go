package replication

import "encoding/json"

// Envelope is the serialized form of every Raft log entry: an op-type
// tag plus an opaque JSON payload the handler for that op-type knows
// how to decode.
type Envelope struct {
	OpType  string          `json:"op_type"`
	Payload json.RawMessage `json:"payload"`
}

// ApplyResult is the value every FSM.Apply call returns via
// raft.Log — retrieved by the submitting leader through
// raft.ApplyFuture.Response(). Response is nil on error.
type ApplyResult struct {
	Response []byte
	Err      error
}

// Handler decodes payload, mutates the owning manager's in-memory
// state and its "meta" column-family rows atomically, and returns a
// serialized response. index is the Raft log index this entry
// committed at, passed through for managers that need it (e.g. the
// applied-index gate).
type Handler func(index uint64, payload []byte) (response []byte, err error)

// Dispatcher maps an op-type tag to the handler that applies it.
type Dispatcher map[string]Handler

// MergeDispatchers combines several managers' Dispatchers into the
// single table a co-resident Raft group's Group needs — the registry
// group, for instance, merges namespace/zone/servlet/instance/
// privilege/config's individually-exposed Dispatchers since they all
// apply through the same Raft log.
func MergeDispatchers(ds ...Dispatcher) Dispatcher {
	merged := make(Dispatcher)
	for _, d := range ds {
		for opType, handler := range d {
			merged[opType] = handler
		}
	}
	return merged
}
