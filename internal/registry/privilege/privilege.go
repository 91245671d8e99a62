// Package privilege implements the user privilege manager (spec
// §4.2): a username maps to a namespace plus field-wise merged sets
// of (zone, rw) and (servlet, rw) rights, an ip allow-list, and auth
// flags.
package privilege

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/eadiscovery/discoveryd/internal/errcode"
	"github.com/eadiscovery/discoveryd/internal/registry/keyspace"
	"github.com/eadiscovery/discoveryd/internal/storage"
)

// RW is a read/write level; Write is strictly greater than Read.
type RW int

const (
	RWNone RW = iota
	RWRead
	RWWrite
)

// Privilege is the entity row persisted under keyspace.KindPrivilege,
// keyed by username rather than a numeric id.
type Privilege struct {
	Username     string           `json:"username"`
	PasswordHash string           `json:"password_hash"`
	NamespaceID  uint64           `json:"namespace_id"`
	Zones        map[uint64]RW    `json:"zones"`
	Servlets     map[uint64]RW    `json:"servlets"`
	IPAllowList  map[string]bool  `json:"ip_allow_list"`
	Flags        map[string]bool  `json:"flags"`
	Version      uint64           `json:"version"`
}

// Manager owns every user privilege row.
type Manager struct {
	mu     sync.RWMutex
	engine storage.KVEngine

	byUsername map[string]*Privilege
}

// New constructs an empty Manager bound to engine.
func New(engine storage.KVEngine) *Manager {
	return &Manager{engine: engine, byUsername: make(map[string]*Privilege)}
}

// CreateRequest is the decoded payload for a create-privilege apply entry.
type CreateRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	NamespaceID uint64 `json:"namespace_id"`
}

// Create hashes the password with bcrypt and persists a fresh,
// rights-empty privilege row.
func (m *Manager) Create(req CreateRequest) (*Privilege, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if req.Username == "" {
		return nil, errcode.New(errcode.INPUT_PARAM_ERROR, "username is required")
	}
	if _, exists := m.byUsername[req.Username]; exists {
		return nil, errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("user %q already exists", req.Username))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}

	p := &Privilege{
		Username:     req.Username,
		PasswordHash: string(hash),
		NamespaceID:  req.NamespaceID,
		Zones:        make(map[uint64]RW),
		Servlets:     make(map[uint64]RW),
		IPAllowList:  make(map[string]bool),
		Flags:        make(map[string]bool),
		Version:      1,
	}
	if err := m.persist(p); err != nil {
		return nil, err
	}
	m.byUsername[p.Username] = p
	return p, nil
}

func (m *Manager) persist(p *Privilege) error {
	entityBytes, err := json.Marshal(p)
	if err != nil {
		return errcode.New(errcode.PARSE_TO_PB_FAIL, err.Error())
	}
	key := storage.WithPrefix(storage.PrefixMeta, keyspace.NamedKey(keyspace.KindPrivilege, p.Username))
	if err := m.engine.Set(context.Background(), key, entityBytes); err != nil {
		return errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}
	return nil
}

// GrantRequest is the decoded payload for an insert (grant) apply entry.
type GrantRequest struct {
	Username string          `json:"username"`
	Zones    map[uint64]RW   `json:"zones,omitempty"`
	Servlets map[uint64]RW   `json:"servlets,omitempty"`
	IPAllow  []string        `json:"ip_allow,omitempty"`
	Flags    []string        `json:"flags,omitempty"`
	Force    bool            `json:"force"`
}

// Grant merges rights field-wise per spec §4.2 Insert rule: a right is
// replaced only if force is set or the new level is strictly greater;
// otherwise the greater of the two is kept.
func (m *Manager) Grant(req GrantRequest) (*Privilege, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byUsername[req.Username]
	if !ok {
		return nil, errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("user %q does not exist", req.Username))
	}

	updated := cloneForWrite(p)
	changed := false
	for zoneID, rw := range req.Zones {
		if mergeRW(updated.Zones, zoneID, rw, req.Force) {
			changed = true
		}
	}
	for servletID, rw := range req.Servlets {
		if mergeRW(updated.Servlets, servletID, rw, req.Force) {
			changed = true
		}
	}
	for _, ip := range req.IPAllow {
		if !updated.IPAllowList[ip] {
			updated.IPAllowList[ip] = true
			changed = true
		}
	}
	for _, flag := range req.Flags {
		if !updated.Flags[flag] {
			updated.Flags[flag] = true
			changed = true
		}
	}

	if !changed {
		return p, nil
	}
	updated.Version = p.Version + 1
	if err := m.persist(updated); err != nil {
		return nil, err
	}
	m.byUsername[updated.Username] = updated
	return updated, nil
}

// mergeRW applies the Insert rule to a single (id, rw) pair, returning
// whether the map changed.
func mergeRW(m map[uint64]RW, id uint64, rw RW, force bool) bool {
	existing, ok := m[id]
	if !ok {
		m[id] = rw
		return true
	}
	if rw == existing {
		return false
	}
	if force || rw > existing {
		m[id] = rw
		return true
	}
	return false
}

// RevokeRequest is the decoded payload for a delete (revoke) apply entry.
type RevokeRequest struct {
	Username string        `json:"username"`
	Zones    map[uint64]RW `json:"zones,omitempty"`
	Servlets map[uint64]RW `json:"servlets,omitempty"`
	IPAllow  []string      `json:"ip_allow,omitempty"`
	Flags    []string      `json:"flags,omitempty"`
}

// Revoke subtracts rights field-wise per spec §4.2 Delete rule: if the
// existing rw is strictly greater than the revoked level, downgrade to
// the revoked level; otherwise remove the entry entirely.
func (m *Manager) Revoke(req RevokeRequest) (*Privilege, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byUsername[req.Username]
	if !ok {
		return nil, errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("user %q does not exist", req.Username))
	}

	updated := cloneForWrite(p)
	changed := false
	for zoneID, rw := range req.Zones {
		if subtractRW(updated.Zones, zoneID, rw) {
			changed = true
		}
	}
	for servletID, rw := range req.Servlets {
		if subtractRW(updated.Servlets, servletID, rw) {
			changed = true
		}
	}
	for _, ip := range req.IPAllow {
		if updated.IPAllowList[ip] {
			delete(updated.IPAllowList, ip)
			changed = true
		}
	}
	for _, flag := range req.Flags {
		if updated.Flags[flag] {
			delete(updated.Flags, flag)
			changed = true
		}
	}

	if !changed {
		return p, nil
	}
	updated.Version = p.Version + 1
	if err := m.persist(updated); err != nil {
		return nil, err
	}
	m.byUsername[updated.Username] = updated
	return updated, nil
}

// subtractRW applies the Delete rule to a single (id, rw) pair.
func subtractRW(m map[uint64]RW, id uint64, revoked RW) bool {
	existing, ok := m[id]
	if !ok {
		return false
	}
	if existing > revoked {
		m[id] = revoked
		return true
	}
	delete(m, id)
	return true
}

func cloneForWrite(p *Privilege) *Privilege {
	cp := *p
	cp.Zones = cloneRWMap(p.Zones)
	cp.Servlets = cloneRWMap(p.Servlets)
	cp.IPAllowList = cloneBoolMap(p.IPAllowList)
	cp.Flags = cloneBoolMap(p.Flags)
	return &cp
}

func cloneRWMap(m map[uint64]RW) map[uint64]RW {
	out := make(map[uint64]RW, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneBoolMap(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Drop removes the user entirely.
func (m *Manager) Drop(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byUsername[username]; !ok {
		return errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("user %q does not exist", username))
	}
	key := storage.WithPrefix(storage.PrefixMeta, keyspace.NamedKey(keyspace.KindPrivilege, username))
	if err := m.engine.Delete(context.Background(), key); err != nil {
		return errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}
	delete(m.byUsername, username)
	return nil
}

// Authenticate compares password against the stored bcrypt hash.
func (m *Manager) Authenticate(username, password string) bool {
	m.mu.RLock()
	p, ok := m.byUsername[username]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) == nil
}

// Get returns a copy of the privilege row by username.
func (m *Manager) Get(username string) (Privilege, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byUsername[username]
	if !ok {
		return Privilege{}, false
	}
	return *cloneForWrite(p), true
}

// LoadSnapshot implements replication.SnapshotLoader.
func (m *Manager) LoadSnapshot() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byUsername = make(map[string]*Privilege)

	prefix := storage.WithPrefix(storage.PrefixMeta, []byte{byte(keyspace.KindPrivilege)})
	return m.engine.Scan(context.Background(), prefix, func(key, value []byte) bool {
		var p Privilege
		if err := json.Unmarshal(value, &p); err != nil {
			return true
		}
		cp := p
		m.byUsername[p.Username] = &cp
		return true
	})
}
