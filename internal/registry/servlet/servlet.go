// Package servlet implements the servlet manager (spec §4.2): a
// servlet lives inside a zone and owns a set of instances.
package servlet

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

// Servlet is the entity row persisted under keyspace.KindServlet.
type Servlet struct {
	ID      uint64 `json:"id"`
	ZoneID  uint64 `json:"zone_id"`
	Name    string `json:"name"`
	Version uint64 `json:"version"`
}

type zoneKey struct {
	zoneID uint64
	name   string
}

// Manager owns every servlet.
type Manager struct {
	mu     sync.RWMutex
	engine storage.KVEngine

	byZoneAndName map[zoneKey]*Servlet
	byID          map[uint64]*Servlet
	maxID         uint64

	// ZoneExists is wired by the composition root: validates the
	// parent zone id before a servlet may be created under it.
	ZoneExists func(zoneID uint64) bool

	// HasInstances is wired by the composition root once the instance
	// manager exists.
	HasInstances func(servletID uint64) bool
}

// New constructs an empty Manager bound to engine.
func New(engine storage.KVEngine) *Manager {
	return &Manager{
		engine:        engine,
		byZoneAndName: make(map[zoneKey]*Servlet),
		byID:          make(map[uint64]*Servlet),
	}
}

// CreateRequest is the decoded payload for a create-servlet apply entry.
type CreateRequest struct {
	ZoneID uint64 `json:"zone_id"`
	Name   string `json:"name"`
}

// Create validates the parent zone exists and the name is free within
// it, allocates an id, and persists atomically.
func (m *Manager) Create(req CreateRequest) (*Servlet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if req.Name == "" {
		return nil, errcode.New(errcode.INPUT_PARAM_ERROR, "servlet name is required")
	}
	if m.ZoneExists != nil && !m.ZoneExists(req.ZoneID) {
		return nil, errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("zone %d does not exist", req.ZoneID))
	}
	zk := zoneKey{zoneID: req.ZoneID, name: req.Name}
	if _, exists := m.byZoneAndName[zk]; exists {
		return nil, errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("servlet %q already exists in zone %d", req.Name, req.ZoneID))
	}

	id := m.maxID + 1
	s := &Servlet{ID: id, ZoneID: req.ZoneID, Name: req.Name, Version: 1}

	entityBytes, err := json.Marshal(s)
	if err != nil {
		return nil, errcode.New(errcode.PARSE_TO_PB_FAIL, err.Error())
	}
	ops := []storage.KVOp{
		{Key: storage.WithPrefix(storage.PrefixMeta, keyspace.EntityKey(keyspace.KindServlet, id)), Value: entityBytes},
		{Key: storage.WithPrefix(storage.PrefixMeta, keyspace.MaxIDKey(keyspace.KindServlet)), Value: encodeUint64(id)},
	}
	if err := m.engine.WriteBatch(context.Background(), ops); err != nil {
		return nil, errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}

	m.maxID = id
	m.byZoneAndName[zk] = s
	m.byID[s.ID] = s
	return s, nil
}

// Drop removes the servlet, forbidden while any instance still
// references it.
func (m *Manager) Drop(zoneID uint64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	zk := zoneKey{zoneID: zoneID, name: name}
	s, ok := m.byZoneAndName[zk]
	if !ok {
		return errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("servlet %q does not exist in zone %d", name, zoneID))
	}
	if m.HasInstances != nil && m.HasInstances(s.ID) {
		return errcode.New(errcode.INPUT_PARAM_ERROR, "servlet has instance")
	}

	key := storage.WithPrefix(storage.PrefixMeta, keyspace.EntityKey(keyspace.KindServlet, s.ID))
	if err := m.engine.Delete(context.Background(), key); err != nil {
		return errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}

	delete(m.byZoneAndName, zk)
	delete(m.byID, s.ID)
	return nil
}

// Get returns a copy of the servlet by zone id and name.
func (m *Manager) Get(zoneID uint64, name string) (Servlet, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byZoneAndName[zoneKey{zoneID: zoneID, name: name}]
	if !ok {
		return Servlet{}, false
	}
	return *s, true
}

// GetByID returns a copy of the servlet by id.
func (m *Manager) GetByID(id uint64) (Servlet, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	if !ok {
		return Servlet{}, false
	}
	return *s, true
}

// HasServletInZone reports whether zoneID owns any servlet, wired
// into zone.Manager.HasServlets by the composition root.
func (m *Manager) HasServletInZone(zoneID uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for k := range m.byZoneAndName {
		if k.zoneID == zoneID {
			return true
		}
	}
	return false
}

// ListByZone returns a copy of every servlet under zoneID.
func (m *Manager) ListByZone(zoneID uint64) []Servlet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Servlet
	for k, s := range m.byZoneAndName {
		if k.zoneID == zoneID {
			out = append(out, *s)
		}
	}
	return out
}

// LoadSnapshot implements replication.SnapshotLoader.
func (m *Manager) LoadSnapshot() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byZoneAndName = make(map[zoneKey]*Servlet)
	m.byID = make(map[uint64]*Servlet)
	m.maxID = 0

	prefix := storage.WithPrefix(storage.PrefixMeta, []byte{byte(keyspace.KindServlet)})
	return m.engine.Scan(context.Background(), prefix, func(key, value []byte) bool {
		id, ok := keyspace.DecodeEntityID(key[1:])
		if !ok {
			return true
		}
		var s Servlet
		if err := json.Unmarshal(value, &s); err != nil {
			return true
		}
		cp := s
		m.byZoneAndName[zoneKey{zoneID: s.ZoneID, name: s.Name}] = &cp
		m.byID[s.ID] = &cp
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
