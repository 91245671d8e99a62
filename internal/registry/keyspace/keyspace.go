// Package keyspace defines the compact binary key layout shared by
// every registry/config/plugin manager: a schema-identify byte (the
// storage column family, see storage.KeyPrefix), an entity-kind byte,
// then the id as raw big-endian bytes. Max-id counters share a
// distinct kind byte followed by an ASCII suffix rather than an id.
//
// Grounded on original_source/ea/meta_server/meta_constants.h and
// namespace_manager.h's key-building helpers.
package keyspace

import "encoding/binary"

// Kind tags the entity family within the "meta" column family.
type Kind byte

const (
	KindNamespace Kind = 0x01
	KindZone      Kind = 0x02
	KindServlet   Kind = 0x03
	KindInstance  Kind = 0x04
	KindPrivilege Kind = 0x05
	KindConfig    Kind = 0x06
	KindPlugin    Kind = 0x07
	KindAutoID    Kind = 0x08
	KindTSO       Kind = 0x09

	// Max-id kinds mirror their entity kind but are distinguished by
	// the ASCII "_max" suffix appended after the kind byte instead of
	// an id.
	maxIDSuffix = "_max"
)

// EntityKey builds `kind || id(8 bytes, big-endian)`.
func EntityKey(kind Kind, id uint64) []byte {
	key := make([]byte, 1+8)
	key[0] = byte(kind)
	binary.BigEndian.PutUint64(key[1:], id)
	return key
}

// MaxIDKey builds `kind || "_max"`, the persisted max-allocated-id
// counter for that entity kind.
func MaxIDKey(kind Kind) []byte {
	key := make([]byte, 1+len(maxIDSuffix))
	key[0] = byte(kind)
	copy(key[1:], maxIDSuffix)
	return key
}

// DecodeEntityID extracts the id from a key built by EntityKey.
func DecodeEntityID(key []byte) (id uint64, ok bool) {
	if len(key) != 9 {
		return 0, false
	}
	return binary.BigEndian.Uint64(key[1:]), true
}

// NamedKey builds `kind || name` for name-addressed entities (config
// blobs, privilege usernames) where the natural key is a string, not
// a numeric id.
func NamedKey(kind Kind, name string) []byte {
	key := make([]byte, 1+len(name))
	key[0] = byte(kind)
	copy(key[1:], name)
	return key
}
