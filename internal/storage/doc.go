// Package storage provides the embedded key/value engine used by every
// Raft replication group to persist the "meta" column family: registry,
// privilege, config, plugin and counter metadata, plus per-group
// auxiliary state.
//
// Raft's own log and snapshot bookkeeping (the "raft_log" column family)
// is owned by hashicorp/raft and raft-boltdb, not by this package: this
// package is the opaque ordered-key store spec'd for the "meta" and
// "data" families only. Column families are simulated as single-byte
// key prefixes over one Badger instance per process (see KeyPrefix),
// since Badger has no native column-family concept — see DESIGN.md.
package storage
