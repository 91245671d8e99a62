// Package snapshot provides optional encryption-at-rest for a
// replication group's Raft snapshot stream.
//
// A Group's FSMSnapshot (internal/replication/snapshot.go) writes a
// plaintext magic/version header so a foreign or corrupt snapshot
// fails fast, then the KV dump and any plugin blobs. When the process
// is configured with a snapshot encryption key, that body is sealed
// through NewEncryptWriter/NewDecryptReader instead of written
// directly: the data at rest on disk and in Raft's snapshot transfer
// is AEAD-encrypted in fixed-size chunks, while the header stays
// readable so Restore can still validate the stream before decrypting
// it.
package snapshot
