// Package instance implements the instance manager (spec §4.2): a
// service instance is addressed by host:port, globally unique across
// every (namespace, zone, servlet), and resolves its owning names to
// ids on add.
package instance

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/eadiscovery/discoveryd/internal/errcode"
	"github.com/eadiscovery/discoveryd/internal/registry/keyspace"
	"github.com/eadiscovery/discoveryd/internal/storage"
	"github.com/eadiscovery/discoveryd/pkg/cmap"
)

// reAddWindow is how long a dropped address stays tombstoned against
// re-add (spec §4.2, scenario S6).
const reAddWindow = time.Hour

// Instance is the entity row persisted under keyspace.KindInstance.
type Instance struct {
	ID          uint64 `json:"id"`
	Address     string `json:"address"`
	NamespaceID uint64 `json:"namespace_id"`
	ZoneID      uint64 `json:"zone_id"`
	ServletID   uint64 `json:"servlet_id"`
	Env         string `json:"env"`
	Color       string `json:"color"`
	Status      string `json:"status"`
	Weight      int32  `json:"weight"`
	Version     uint64 `json:"version"`
}

// NameResolver resolves (namespace, zone, servlet) name chains to ids,
// wired by the composition root from the other registry managers.
type NameResolver interface {
	ResolveNamespace(name string) (id uint64, ok bool)
	ResolveZone(namespaceID uint64, name string) (id uint64, ok bool)
	ResolveServlet(zoneID uint64, name string) (id uint64, ok bool)
}

// Manager owns every instance plus the three derived indexes queries
// use, and the "recently removed" tombstone map.
type Manager struct {
	mu     sync.RWMutex
	engine storage.KVEngine

	// byAddress is the primary address→instance index (spec §4.2/§9
	// "shard-striped map"): a cmap.Map so address lookups (the hot
	// read path) don't contend with the other indexes' coarse lock.
	byAddress *cmap.Map[string, *Instance]
	byID      map[uint64]*Instance
	maxID     uint64

	// Derived indexes (spec §4.2): namespace → addresses,
	// (ns,zone) → addresses, (ns,zone,servlet) → addresses.
	byNamespace       map[uint64]map[string]struct{}
	byNamespaceZone   map[nsZoneKey]map[string]struct{}
	byFullPath        map[nsZoneServletKey]map[string]struct{}

	// removedAt tracks the drop time of a recently-removed address,
	// in-memory only — restarting the process clears the tombstone
	// (spec §4.2 "the map is not persisted").
	removedAt map[string]time.Time

	resolver NameResolver
	now      func() time.Time
}

type nsZoneKey struct {
	namespaceID uint64
	zoneID      uint64
}

type nsZoneServletKey struct {
	namespaceID uint64
	zoneID      uint64
	servletID   uint64
}

// New constructs an empty Manager. resolver may be nil in tests that
// pass ids directly via AddByIDs.
func New(engine storage.KVEngine, resolver NameResolver) *Manager {
	return &Manager{
		engine:          engine,
		byAddress:       cmap.New[string, *Instance](),
		byID:            make(map[uint64]*Instance),
		byNamespace:     make(map[uint64]map[string]struct{}),
		byNamespaceZone: make(map[nsZoneKey]map[string]struct{}),
		byFullPath:      make(map[nsZoneServletKey]map[string]struct{}),
		removedAt:       make(map[string]time.Time),
		resolver:        resolver,
		now:             time.Now,
	}
}

// AddRequest is the decoded payload for an add-instance apply entry.
type AddRequest struct {
	Address       string `json:"address"`
	Namespace     string `json:"namespace"`
	Zone          string `json:"zone"`
	Servlet       string `json:"servlet"`
	Env           string `json:"env"`
	Color         string `json:"color"`
	Status        string `json:"status"`
	Weight        int32  `json:"weight"`
}

// Add resolves the owning names to ids, rejects addresses that
// already exist or are tombstoned, and persists atomically.
func (m *Manager) Add(req AddRequest) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if req.Address == "" {
		return nil, errcode.New(errcode.INPUT_PARAM_ERROR, "instance address is required")
	}
	if _, exists := m.byAddress.Get(req.Address); exists {
		return nil, errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("instance %q already exists", req.Address))
	}
	if removedAt, tombstoned := m.removedAt[req.Address]; tombstoned {
		if m.now().Sub(removedAt) < reAddWindow {
			return nil, errcode.New(errcode.INPUT_PARAM_ERROR, "removed in 1 hour")
		}
		delete(m.removedAt, req.Address)
	}

	if m.resolver == nil {
		return nil, errcode.New(errcode.INTERNAL_ERROR, "no name resolver configured")
	}
	nsID, ok := m.resolver.ResolveNamespace(req.Namespace)
	if !ok {
		return nil, errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("namespace %q does not exist", req.Namespace))
	}
	zoneID, ok := m.resolver.ResolveZone(nsID, req.Zone)
	if !ok {
		return nil, errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("zone %q does not exist", req.Zone))
	}
	servletID, ok := m.resolver.ResolveServlet(zoneID, req.Servlet)
	if !ok {
		return nil, errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("servlet %q does not exist", req.Servlet))
	}

	id := m.maxID + 1
	inst := &Instance{
		ID:          id,
		Address:     req.Address,
		NamespaceID: nsID,
		ZoneID:      zoneID,
		ServletID:   servletID,
		Env:         req.Env,
		Color:       req.Color,
		Status:      req.Status,
		Weight:      req.Weight,
		Version:     1,
	}

	entityBytes, err := json.Marshal(inst)
	if err != nil {
		return nil, errcode.New(errcode.PARSE_TO_PB_FAIL, err.Error())
	}
	ops := []storage.KVOp{
		{Key: storage.WithPrefix(storage.PrefixMeta, keyspace.EntityKey(keyspace.KindInstance, id)), Value: entityBytes},
		{Key: storage.WithPrefix(storage.PrefixMeta, keyspace.MaxIDKey(keyspace.KindInstance)), Value: encodeUint64(id)},
	}
	if err := m.engine.WriteBatch(context.Background(), ops); err != nil {
		return nil, errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}

	m.maxID = id
	m.index(inst)
	return inst, nil
}

func (m *Manager) index(inst *Instance) {
	m.byAddress.Set(inst.Address, inst)
	m.byID[inst.ID] = inst

	if m.byNamespace[inst.NamespaceID] == nil {
		m.byNamespace[inst.NamespaceID] = make(map[string]struct{})
	}
	m.byNamespace[inst.NamespaceID][inst.Address] = struct{}{}

	nzKey := nsZoneKey{namespaceID: inst.NamespaceID, zoneID: inst.ZoneID}
	if m.byNamespaceZone[nzKey] == nil {
		m.byNamespaceZone[nzKey] = make(map[string]struct{})
	}
	m.byNamespaceZone[nzKey][inst.Address] = struct{}{}

	fullKey := nsZoneServletKey{namespaceID: inst.NamespaceID, zoneID: inst.ZoneID, servletID: inst.ServletID}
	if m.byFullPath[fullKey] == nil {
		m.byFullPath[fullKey] = make(map[string]struct{})
	}
	m.byFullPath[fullKey][inst.Address] = struct{}{}
}

func (m *Manager) unindex(inst *Instance) {
	m.byAddress.Delete(inst.Address)
	delete(m.byID, inst.ID)

	delete(m.byNamespace[inst.NamespaceID], inst.Address)
	if len(m.byNamespace[inst.NamespaceID]) == 0 {
		delete(m.byNamespace, inst.NamespaceID)
	}

	nzKey := nsZoneKey{namespaceID: inst.NamespaceID, zoneID: inst.ZoneID}
	delete(m.byNamespaceZone[nzKey], inst.Address)
	if len(m.byNamespaceZone[nzKey]) == 0 {
		delete(m.byNamespaceZone, nzKey)
	}

	fullKey := nsZoneServletKey{namespaceID: inst.NamespaceID, zoneID: inst.ZoneID, servletID: inst.ServletID}
	delete(m.byFullPath[fullKey], inst.Address)
	if len(m.byFullPath[fullKey]) == 0 {
		delete(m.byFullPath, fullKey)
	}
}

// Drop removes the instance by address and tombstones it for
// reAddWindow.
func (m *Manager) Drop(address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.byAddress.Get(address)
	if !ok {
		return errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("instance %q does not exist", address))
	}

	key := storage.WithPrefix(storage.PrefixMeta, keyspace.EntityKey(keyspace.KindInstance, inst.ID))
	if err := m.engine.Delete(context.Background(), key); err != nil {
		return errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}

	m.unindex(inst)
	m.removedAt[address] = m.now()
	return nil
}

// HasInstanceInServlet reports whether servletID owns any instance,
// wired into servlet.Manager.HasInstances by the composition root.
func (m *Manager) HasInstanceInServlet(servletID uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for k, addrs := range m.byFullPath {
		if k.servletID == servletID && len(addrs) > 0 {
			return true
		}
	}
	return false
}

// Get returns a copy of the instance by address. It reads straight
// from the sharded byAddress index without taking m.mu, since cmap.Map
// already shards its own locking across the address keyspace.
func (m *Manager) Get(address string) (Instance, bool) {
	inst, ok := m.byAddress.Get(address)
	if !ok {
		return Instance{}, false
	}
	return *inst, true
}

// ListByNamespace implements QUERY_INSTANCE_FLATTEN filtered by namespace.
func (m *Manager) ListByNamespace(namespaceID uint64) []Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.copyAddresses(m.byNamespace[namespaceID])
}

// ListByZone implements the (ns,zone) derived index.
func (m *Manager) ListByZone(namespaceID, zoneID uint64) []Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.copyAddresses(m.byNamespaceZone[nsZoneKey{namespaceID: namespaceID, zoneID: zoneID}])
}

// ListByServlet implements the (ns,zone,servlet) derived index.
func (m *Manager) ListByServlet(namespaceID, zoneID, servletID uint64) []Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.copyAddresses(m.byFullPath[nsZoneServletKey{namespaceID: namespaceID, zoneID: zoneID, servletID: servletID}])
}

// copyAddresses must be called under m.mu; it never calls back into
// the manager (spec §4.2 "iteration callbacks must not call back into
// the manager").
func (m *Manager) copyAddresses(addrs map[string]struct{}) []Instance {
	out := make([]Instance, 0, len(addrs))
	for addr := range addrs {
		if inst, ok := m.byAddress.Get(addr); ok {
			out = append(out, *inst)
		}
	}
	return out
}

// LoadSnapshot implements replication.SnapshotLoader.
func (m *Manager) LoadSnapshot() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byAddress = cmap.New[string, *Instance]()
	m.byID = make(map[uint64]*Instance)
	m.byNamespace = make(map[uint64]map[string]struct{})
	m.byNamespaceZone = make(map[nsZoneKey]map[string]struct{})
	m.byFullPath = make(map[nsZoneServletKey]map[string]struct{})
	m.maxID = 0
	// removedAt is intentionally left untouched: it isn't persisted
	// and a snapshot load doesn't change what has recently been
	// dropped on this replica.

	prefix := storage.WithPrefix(storage.PrefixMeta, []byte{byte(keyspace.KindInstance)})
	return m.engine.Scan(context.Background(), prefix, func(key, value []byte) bool {
		id, ok := keyspace.DecodeEntityID(key[1:])
		if !ok {
			return true
		}
		var inst Instance
		if err := json.Unmarshal(value, &inst); err != nil {
			return true
		}
		cp := inst
		m.index(&cp)
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
