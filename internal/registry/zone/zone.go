// Package zone implements the zone manager (spec §4.2): zones live
// inside a namespace and in turn contain servlets.
package zone

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

// Zone is the entity row persisted under keyspace.KindZone.
type Zone struct {
	ID          uint64 `json:"id"`
	NamespaceID uint64 `json:"namespace_id"`
	Name        string `json:"name"`
	Quota       int64  `json:"quota"`
	Version     uint64 `json:"version"`
}

// namespaceKey pairs a namespace id with a zone name, since zone names
// are only unique within their owning namespace.
type namespaceKey struct {
	namespaceID uint64
	name        string
}

// Manager owns every zone. See namespace.Manager for the mutating-vs-
// read-only concurrency contract; it applies identically here.
type Manager struct {
	mu    sync.RWMutex
	engine storage.KVEngine

	byNamespaceAndName map[namespaceKey]*Zone
	byID               map[uint64]*Zone
	maxID              uint64

	// NamespaceExists is wired by the composition root: validates the
	// parent namespace id before a zone may be created under it.
	NamespaceExists func(namespaceID uint64) bool

	// HasServlets is wired by the composition root once the servlet
	// manager exists, mirroring namespace.Manager.HasZones.
	HasServlets func(zoneID uint64) bool
}

// New constructs an empty Manager bound to engine.
func New(engine storage.KVEngine) *Manager {
	return &Manager{
		engine:              engine,
		byNamespaceAndName:  make(map[namespaceKey]*Zone),
		byID:                make(map[uint64]*Zone),
	}
}

// CreateRequest is the decoded payload for a create-zone apply entry.
type CreateRequest struct {
	NamespaceID uint64 `json:"namespace_id"`
	Name        string `json:"name"`
	Quota       int64  `json:"quota"`
}

// Create validates the parent namespace exists and the name is free
// within it, allocates an id, and persists atomically.
func (m *Manager) Create(req CreateRequest) (*Zone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if req.Name == "" {
		return nil, errcode.New(errcode.INPUT_PARAM_ERROR, "zone name is required")
	}
	if m.NamespaceExists != nil && !m.NamespaceExists(req.NamespaceID) {
		return nil, errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("namespace %d does not exist", req.NamespaceID))
	}
	nk := namespaceKey{namespaceID: req.NamespaceID, name: req.Name}
	if _, exists := m.byNamespaceAndName[nk]; exists {
		return nil, errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("zone %q already exists in namespace %d", req.Name, req.NamespaceID))
	}

	id := m.maxID + 1
	z := &Zone{ID: id, NamespaceID: req.NamespaceID, Name: req.Name, Quota: req.Quota, Version: 1}

	entityBytes, err := json.Marshal(z)
	if err != nil {
		return nil, errcode.New(errcode.PARSE_TO_PB_FAIL, err.Error())
	}
	ops := []storage.KVOp{
		{Key: storage.WithPrefix(storage.PrefixMeta, keyspace.EntityKey(keyspace.KindZone, id)), Value: entityBytes},
		{Key: storage.WithPrefix(storage.PrefixMeta, keyspace.MaxIDKey(keyspace.KindZone)), Value: encodeUint64(id)},
	}
	if err := m.engine.WriteBatch(context.Background(), ops); err != nil {
		return nil, errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}

	m.maxID = id
	m.byNamespaceAndName[nk] = z
	m.byID[z.ID] = z
	return z, nil
}

// ModifyRequest is the decoded payload for a modify-zone apply entry.
type ModifyRequest struct {
	NamespaceID uint64 `json:"namespace_id"`
	Name        string `json:"name"`
	Quota       *int64 `json:"quota,omitempty"`
}

// Modify updates Quota and bumps Version.
func (m *Manager) Modify(req ModifyRequest) (*Zone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	nk := namespaceKey{namespaceID: req.NamespaceID, name: req.Name}
	z, ok := m.byNamespaceAndName[nk]
	if !ok {
		return nil, errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("zone %q does not exist in namespace %d", req.Name, req.NamespaceID))
	}

	updated := *z
	if req.Quota != nil {
		updated.Quota = *req.Quota
	}
	updated.Version = z.Version + 1

	entityBytes, err := json.Marshal(&updated)
	if err != nil {
		return nil, errcode.New(errcode.PARSE_TO_PB_FAIL, err.Error())
	}
	key := storage.WithPrefix(storage.PrefixMeta, keyspace.EntityKey(keyspace.KindZone, updated.ID))
	if err := m.engine.Set(context.Background(), key, entityBytes); err != nil {
		return nil, errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}

	m.byNamespaceAndName[nk] = &updated
	m.byID[updated.ID] = &updated
	return &updated, nil
}

// Drop removes the zone, forbidden while any servlet still references
// it.
func (m *Manager) Drop(namespaceID uint64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	nk := namespaceKey{namespaceID: namespaceID, name: name}
	z, ok := m.byNamespaceAndName[nk]
	if !ok {
		return errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("zone %q does not exist in namespace %d", name, namespaceID))
	}
	if m.HasServlets != nil && m.HasServlets(z.ID) {
		return errcode.New(errcode.INPUT_PARAM_ERROR, "zone has servlet")
	}

	key := storage.WithPrefix(storage.PrefixMeta, keyspace.EntityKey(keyspace.KindZone, z.ID))
	if err := m.engine.Delete(context.Background(), key); err != nil {
		return errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}

	delete(m.byNamespaceAndName, nk)
	delete(m.byID, z.ID)
	return nil
}

// Get returns a copy of the zone by namespace id and name.
func (m *Manager) Get(namespaceID uint64, name string) (Zone, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	z, ok := m.byNamespaceAndName[namespaceKey{namespaceID: namespaceID, name: name}]
	if !ok {
		return Zone{}, false
	}
	return *z, true
}

// GetByID returns a copy of the zone by id.
func (m *Manager) GetByID(id uint64) (Zone, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	z, ok := m.byID[id]
	if !ok {
		return Zone{}, false
	}
	return *z, true
}

// HasZoneInNamespace reports whether namespaceID owns any zone,
// wired into namespace.Manager.HasZones by the composition root.
func (m *Manager) HasZoneInNamespace(namespaceID uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for k := range m.byNamespaceAndName {
		if k.namespaceID == namespaceID {
			return true
		}
	}
	return false
}

// ListByNamespace returns a copy of every zone under namespaceID.
func (m *Manager) ListByNamespace(namespaceID uint64) []Zone {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Zone
	for k, z := range m.byNamespaceAndName {
		if k.namespaceID == namespaceID {
			out = append(out, *z)
		}
	}
	return out
}

// LoadSnapshot implements replication.SnapshotLoader.
func (m *Manager) LoadSnapshot() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byNamespaceAndName = make(map[namespaceKey]*Zone)
	m.byID = make(map[uint64]*Zone)
	m.maxID = 0

	prefix := storage.WithPrefix(storage.PrefixMeta, []byte{byte(keyspace.KindZone)})
	return m.engine.Scan(context.Background(), prefix, func(key, value []byte) bool {
		id, ok := keyspace.DecodeEntityID(key[1:])
		if !ok {
			return true
		}
		var z Zone
		if err := json.Unmarshal(value, &z); err != nil {
			return true
		}
		cp := z
		m.byNamespaceAndName[namespaceKey{namespaceID: z.NamespaceID, name: z.Name}] = &cp
		m.byID[z.ID] = &cp
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
