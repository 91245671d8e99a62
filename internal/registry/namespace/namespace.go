// Package namespace implements the namespace manager (spec §4.2):
// create/modify/drop of the top-level namespace entity, applied only
// from within the registry group's Raft apply loop.
package namespace

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/eadiscovery/discoveryd/internal/errcode"
	"github.com/eadiscovery/discoveryd/internal/registry/keyspace"
	"github.com/eadiscovery/discoveryd/internal/storage"
)

// Namespace is the entity row persisted under keyspace.KindNamespace.
type Namespace struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Quota       int64  `json:"quota"`
	ResourceTag string `json:"resource_tag"`
	ReplicaNum  int32  `json:"replica_num"`
	Version     uint64 `json:"version"`
}

// Manager owns every namespace. Mutating methods (Create/Modify/Drop)
// must only be called from the registry group's apply dispatcher;
// Get/List take a short read lock and copy out, per spec §4.2
// concurrency contract.
type Manager struct {
	mu     sync.RWMutex
	engine storage.KVEngine

	byName map[string]*Namespace
	byID   map[uint64]*Namespace
	maxID  uint64

	// HasZones is wired by the composition root once the zone manager
	// exists: it reports whether any zone still references this
	// namespace id, used to forbid drop while children exist. A weak,
	// by-id cross-manager reference per spec §3 Ownership.
	HasZones func(namespaceID uint64) bool
}

// New constructs an empty Manager bound to engine.
func New(engine storage.KVEngine) *Manager {
	return &Manager{
		engine: engine,
		byName: make(map[string]*Namespace),
		byID:   make(map[uint64]*Namespace),
	}
}

// CreateRequest is the decoded payload for a create-namespace apply entry.
type CreateRequest struct {
	Name        string `json:"name"`
	Quota       int64  `json:"quota"`
	ResourceTag string `json:"resource_tag"`
	ReplicaNum  int32  `json:"replica_num"`
}

// Create validates the name is free, allocates an id, and persists the
// entity row plus the bumped max-id row in one atomic batch.
func (m *Manager) Create(req CreateRequest) (*Namespace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if req.Name == "" {
		return nil, errcode.New(errcode.INPUT_PARAM_ERROR, "namespace name is required")
	}
	if _, exists := m.byName[req.Name]; exists {
		return nil, errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("namespace %q already exists", req.Name))
	}

	id := m.maxID + 1
	ns := &Namespace{
		ID:          id,
		Name:        req.Name,
		Quota:       req.Quota,
		ResourceTag: req.ResourceTag,
		ReplicaNum:  req.ReplicaNum,
		Version:     1,
	}

	entityBytes, err := json.Marshal(ns)
	if err != nil {
		return nil, errcode.New(errcode.PARSE_TO_PB_FAIL, err.Error())
	}

	ops := []storage.KVOp{
		{Key: storage.WithPrefix(storage.PrefixMeta, keyspace.EntityKey(keyspace.KindNamespace, id)), Value: entityBytes},
		{Key: storage.WithPrefix(storage.PrefixMeta, keyspace.MaxIDKey(keyspace.KindNamespace)), Value: encodeUint64(id)},
	}
	if err := m.engine.WriteBatch(context.Background(), ops); err != nil {
		return nil, errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}

	m.maxID = id
	m.byName[ns.Name] = ns
	m.byID[ns.ID] = ns
	return ns, nil
}

// ModifyRequest is the decoded payload for a modify-namespace apply entry.
type ModifyRequest struct {
	Name        string  `json:"name"`
	Quota       *int64  `json:"quota,omitempty"`
	ResourceTag *string `json:"resource_tag,omitempty"`
	ReplicaNum  *int32  `json:"replica_num,omitempty"`
}

// Modify updates the given fields and bumps Version.
func (m *Manager) Modify(req ModifyRequest) (*Namespace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.byName[req.Name]
	if !ok {
		return nil, errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("namespace %q does not exist", req.Name))
	}

	updated := *ns
	if req.Quota != nil {
		updated.Quota = *req.Quota
	}
	if req.ResourceTag != nil {
		updated.ResourceTag = *req.ResourceTag
	}
	if req.ReplicaNum != nil {
		updated.ReplicaNum = *req.ReplicaNum
	}
	updated.Version = ns.Version + 1

	entityBytes, err := json.Marshal(&updated)
	if err != nil {
		return nil, errcode.New(errcode.PARSE_TO_PB_FAIL, err.Error())
	}
	key := storage.WithPrefix(storage.PrefixMeta, keyspace.EntityKey(keyspace.KindNamespace, updated.ID))
	if err := m.engine.Set(context.Background(), key, entityBytes); err != nil {
		return nil, errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}

	m.byName[updated.Name] = &updated
	m.byID[updated.ID] = &updated
	return &updated, nil
}

// Drop removes the namespace, forbidden while any zone still
// references it.
func (m *Manager) Drop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.byName[name]
	if !ok {
		return errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("namespace %q does not exist", name))
	}
	if m.HasZones != nil && m.HasZones(ns.ID) {
		return errcode.New(errcode.INPUT_PARAM_ERROR, "namespace has zone")
	}

	key := storage.WithPrefix(storage.PrefixMeta, keyspace.EntityKey(keyspace.KindNamespace, ns.ID))
	if err := m.engine.Delete(context.Background(), key); err != nil {
		return errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}

	delete(m.byName, name)
	delete(m.byID, ns.ID)
	return nil
}

// Get returns a copy of the namespace by name.
func (m *Manager) Get(name string) (Namespace, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ns, ok := m.byName[name]
	if !ok {
		return Namespace{}, false
	}
	return *ns, true
}

// GetByID returns a copy of the namespace by id.
func (m *Manager) GetByID(id uint64) (Namespace, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ns, ok := m.byID[id]
	if !ok {
		return Namespace{}, false
	}
	return *ns, true
}

// List returns a copy of every namespace.
func (m *Manager) List() []Namespace {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Namespace, 0, len(m.byID))
	for _, ns := range m.byID {
		out = append(out, *ns)
	}
	return out
}

// LoadSnapshot implements replication.SnapshotLoader: it clears
// in-memory state and rebuilds it by scanning the namespace key
// prefix in the store.
func (m *Manager) LoadSnapshot() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byName = make(map[string]*Namespace)
	m.byID = make(map[uint64]*Namespace)
	m.maxID = 0

	prefix := storage.WithPrefix(storage.PrefixMeta, []byte{byte(keyspace.KindNamespace)})
	return m.engine.Scan(context.Background(), prefix, func(key, value []byte) bool {
		// key is `storage prefix byte || kind byte || id`; strip the
		// storage column-family byte before decoding the entity id.
		id, ok := keyspace.DecodeEntityID(key[1:])
		if !ok {
			return true
		}
		var ns Namespace
		if err := json.Unmarshal(value, &ns); err != nil {
			return true
		}
		cp := ns
		m.byName[ns.Name] = &cp
		m.byID[ns.ID] = &cp
		if id > m.maxID {
			m.maxID = id
		}
		return true
	})
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
