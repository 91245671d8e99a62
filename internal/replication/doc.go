// Package replication implements the base state machine that every
// Raft group (registry, auto-id, TSO, plugin) is built from: it wraps
// one *raft.Raft, one storage.KVEngine "meta" namespace and a
// dispatch table of op-type → handler, and owns the submit/apply and
// snapshot save/load protocol.
//
// hashicorp/raft is treated as the opaque consensus primitive the
// specification names: Group never reaches into its internals beyond
// the documented FSM/Snapshot/Configuration API.
package replication
