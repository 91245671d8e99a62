// Package config implements the config manager (spec §4.3): a
// mapping from name to an ordered map of semver to a configuration
// blob, with strictly-monotonic version enforcement per name.
package config

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/eadiscovery/discoveryd/internal/errcode"
	"github.com/eadiscovery/discoveryd/internal/registry/keyspace"
	"github.com/eadiscovery/discoveryd/internal/storage"
)

const nameVersionSep = 0x00

// entryKey builds `storage-prefix || KindConfig || name || 0x00 || semver`.
func entryKey(name, version string) []byte {
	raw := make([]byte, 0, 1+len(name)+1+len(version))
	raw = append(raw, byte(keyspace.KindConfig))
	raw = append(raw, name...)
	raw = append(raw, nameVersionSep)
	raw = append(raw, version...)
	return storage.WithPrefix(storage.PrefixMeta, raw)
}

// entry is one (version, blob) pair stored for a name.
type entry struct {
	version Semver
	blob    []byte
}

// Manager owns every named configuration's version history.
type Manager struct {
	mu     sync.RWMutex
	engine storage.KVEngine

	// versions maps name -> versions sorted ascending by Semver.
	versions map[string][]entry
}

// New constructs an empty Manager bound to engine.
func New(engine storage.KVEngine) *Manager {
	return &Manager{engine: engine, versions: make(map[string][]entry)}
}

// CreateRequest is the decoded payload for a create apply entry.
type CreateRequest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Blob    []byte `json:"blob"`
}

// Create rejects an existing (name, version) pair and requires the
// new version to be strictly greater than the name's current maximum.
func (m *Manager) Create(req CreateRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, err := ParseSemver(req.Version)
	if err != nil {
		return errcode.New(errcode.INPUT_PARAM_ERROR, err.Error())
	}

	entries := m.versions[req.Name]
	for _, e := range entries {
		if e.version.Compare(v) == 0 {
			return errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("config %q version %s already exists", req.Name, req.Version))
		}
	}
	if len(entries) > 0 && v.Compare(entries[len(entries)-1].version) <= 0 {
		return errcode.New(errcode.INPUT_PARAM_ERROR, "versions must increase monotonically")
	}

	key := entryKey(req.Name, req.Version)
	if err := m.engine.Set(context.Background(), key, req.Blob); err != nil {
		return errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}

	m.versions[req.Name] = append(entries, entry{version: v, blob: req.Blob})
	return nil
}

// RemoveVersion deletes exactly one version; if that empties the
// name's version set, the name entry is dropped too.
func (m *Manager) RemoveVersion(name, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, ok := m.versions[name]
	if !ok {
		return errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("config %q does not exist", name))
	}
	v, err := ParseSemver(version)
	if err != nil {
		return errcode.New(errcode.INPUT_PARAM_ERROR, err.Error())
	}

	idx := -1
	for i, e := range entries {
		if e.version.Compare(v) == 0 {
			idx = i
			break
		}
	}
	if idx == -1 {
		return errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("config %q version %s does not exist", name, version))
	}

	key := entryKey(name, version)
	if err := m.engine.Delete(context.Background(), key); err != nil {
		return errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}

	entries = append(entries[:idx], entries[idx+1:]...)
	if len(entries) == 0 {
		delete(m.versions, name)
	} else {
		m.versions[name] = entries
	}
	return nil
}

// RemoveName deletes every version of name in one atomic batch, then
// drops the name.
func (m *Manager) RemoveName(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, ok := m.versions[name]
	if !ok {
		return errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("config %q does not exist", name))
	}

	ops := make([]storage.KVOp, 0, len(entries))
	for _, e := range entries {
		ops = append(ops, storage.KVOp{Key: entryKey(name, e.version.String())})
	}
	if err := m.engine.WriteBatch(context.Background(), ops); err != nil {
		return errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}

	delete(m.versions, name)
	return nil
}

// Get returns the exact version's blob, or if version is empty, the
// greatest version present.
func (m *Manager) Get(name, version string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries, ok := m.versions[name]
	if !ok || len(entries) == 0 {
		return nil, "", false
	}
	if version == "" {
		last := entries[len(entries)-1]
		return last.blob, last.version.String(), true
	}
	v, err := ParseSemver(version)
	if err != nil {
		return nil, "", false
	}
	for _, e := range entries {
		if e.version.Compare(v) == 0 {
			return e.blob, e.version.String(), true
		}
	}
	return nil, "", false
}

// List enumerates every known config name.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.versions))
	for name := range m.versions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ListVersions enumerates every semver stored for name, ascending.
func (m *Manager) ListVersions(name string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.versions[name]
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.version.String()
	}
	return out
}

// LoadSnapshot implements replication.SnapshotLoader.
func (m *Manager) LoadSnapshot() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.versions = make(map[string][]entry)

	prefix := storage.WithPrefix(storage.PrefixMeta, []byte{byte(keyspace.KindConfig)})
	if err := m.engine.Scan(context.Background(), prefix, func(key, value []byte) bool {
		name, version, ok := splitEntryKey(key)
		if !ok {
			return true
		}
		v, err := ParseSemver(version)
		if err != nil {
			return true
		}
		blob := make([]byte, len(value))
		copy(blob, value)
		m.versions[name] = append(m.versions[name], entry{version: v, blob: blob})
		return true
	}); err != nil {
		return err
	}

	for name, entries := range m.versions {
		sort.Slice(entries, func(i, j int) bool { return entries[i].version.Compare(entries[j].version) < 0 })
		m.versions[name] = entries
	}
	return nil
}

// splitEntryKey extracts (name, version) from a key built by
// entryKey, stripping the leading storage column-family and
// KindConfig bytes first.
func splitEntryKey(key []byte) (name, version string, ok bool) {
	if len(key) < 2 {
		return "", "", false
	}
	body := key[2:] // drop storage prefix byte + KindConfig byte
	for i, b := range body {
		if b == nameVersionSep {
			return string(body[:i]), string(body[i+1:]), true
		}
	}
	return "", "", false
}
