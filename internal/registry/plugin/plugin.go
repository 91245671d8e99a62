// Package plugin implements the plugin manager (spec §4.4): chunked
// binary artifact uploads with a tombstone life cycle, applied by its
// own dedicated Raft group in a separate plugin-server process.
package plugin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/eadiscovery/discoveryd/internal/errcode"
	"github.com/eadiscovery/discoveryd/internal/registry/config"
	"github.com/eadiscovery/discoveryd/internal/registry/keyspace"
	"github.com/eadiscovery/discoveryd/internal/storage"
	"github.com/eadiscovery/discoveryd/internal/util/lru"
	"github.com/eadiscovery/discoveryd/internal/util/scopedlock"
)

const nameVersionSep = 0x00

// key identifies one plugin entity by (name, version).
type key struct {
	name    string
	version string // Semver.String(), so it's comparable and map-friendly
}

// Plugin is one (name, version) artifact's metadata.
type Plugin struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	Platform     string `json:"platform"`
	DeclaredSize int64  `json:"declared_size"`
	Checksum     string `json:"checksum"`
	UploadSize   int64  `json:"upload_size"`
	Finished     bool   `json:"finished"`
	Tombstoned   bool   `json:"tombstoned"`
}

// Manager owns every plugin's metadata and blob file on disk.
type Manager struct {
	mu     sync.Mutex
	engine storage.KVEngine

	dataRoot string

	live map[key]*Plugin
	tomb map[key]*Plugin

	// readFDs caches open *os.File handles for the read-link download
	// path (spec §4.8's LRU requirement); eviction closes the fd and
	// removes its transient hard link under the cache's own lock, so
	// it never races a concurrent lookup of the same key.
	readFDs *lru.Cache[key, *readHandle]
}

type readHandle struct {
	file     *os.File
	linkPath string
}

// New constructs a Manager rooted at dataRoot (canonical blobs live
// directly under it; read-link downloads use dataRoot/read_link).
func New(engine storage.KVEngine, dataRoot string, readCacheSize int) *Manager {
	m := &Manager{
		engine:   engine,
		dataRoot: dataRoot,
		live:     make(map[key]*Plugin),
		tomb:     make(map[key]*Plugin),
	}
	m.readFDs = lru.New[key, *readHandle](readCacheSize, func(_ key, h *readHandle) {
		h.file.Close()
		os.Remove(h.linkPath)
	})
	return m
}

// blobFileName builds the platform-aware canonical file name (spec
// §4.4): `lib<name>.so.<version>`, `lib<name>.<version>.dylib`, or
// `lib<name>.<version>.dll`.
func blobFileName(name, version, platform string) string {
	switch platform {
	case "darwin":
		return fmt.Sprintf("lib%s.%s.dylib", name, version)
	case "windows":
		return fmt.Sprintf("lib%s.%s.dll", name, version)
	default:
		return fmt.Sprintf("lib%s.so.%s", name, version)
	}
}

func (m *Manager) blobPath(p *Plugin) string {
	return filepath.Join(m.dataRoot, blobFileName(p.Name, p.Version, p.Platform))
}

func (m *Manager) readLinkDir() string {
	return filepath.Join(m.dataRoot, "read_link")
}

func entryKey(name, version string) []byte {
	raw := make([]byte, 0, 1+len(name)+1+len(version))
	raw = append(raw, byte(keyspace.KindPlugin))
	raw = append(raw, name...)
	raw = append(raw, nameVersionSep)
	raw = append(raw, version...)
	return storage.WithPrefix(storage.PrefixMeta, raw)
}

func (m *Manager) persistLocked(p *Plugin) error {
	b, err := json.Marshal(p)
	if err != nil {
		return errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}
	if err := m.engine.Set(context.Background(), entryKey(p.Name, p.Version), b); err != nil {
		return errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}
	return nil
}

// maxVersionLocked returns the greatest version known for name across
// both live and tombstoned entries, and whether any exist.
func (m *Manager) maxVersionLocked(name string) (config.Semver, bool) {
	var max config.Semver
	found := false
	scan := func(set map[key]*Plugin) {
		for k, p := range set {
			if k.name != name {
				continue
			}
			v, err := config.ParseSemver(p.Version)
			if err != nil {
				continue
			}
			if !found || v.Compare(max) > 0 {
				max = v
				found = true
			}
		}
	}
	scan(m.live)
	scan(m.tomb)
	return max, found
}

// CreateRequest is the decoded payload for a create apply entry.
type CreateRequest struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	Platform     string `json:"platform"`
	DeclaredSize int64  `json:"declared_size"`
	Checksum     string `json:"checksum"`
}

// Create validates no live or tombstoned entry exists for (name,
// version) and that version strictly increases vs name's current
// maximum, then opens an empty blob file in the UPLOADING state.
func (m *Manager) Create(req CreateRequest) (*Plugin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, err := config.ParseSemver(req.Version)
	if err != nil {
		return nil, errcode.New(errcode.INPUT_PARAM_ERROR, err.Error())
	}
	k := key{name: req.Name, version: v.String()}
	if _, exists := m.live[k]; exists {
		return nil, errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("plugin %q version %s already exists", req.Name, req.Version))
	}
	if _, exists := m.tomb[k]; exists {
		return nil, errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("plugin %q version %s is tombstoned", req.Name, req.Version))
	}
	if max, ok := m.maxVersionLocked(req.Name); ok && v.Compare(max) <= 0 {
		return nil, errcode.New(errcode.INPUT_PARAM_ERROR, "plugin versions must increase monotonically")
	}

	p := &Plugin{
		Name:         req.Name,
		Version:      v.String(),
		Platform:     req.Platform,
		DeclaredSize: req.DeclaredSize,
		Checksum:     req.Checksum,
	}
	if err := os.MkdirAll(m.dataRoot, 0o755); err != nil {
		return nil, errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}
	f, err := os.Create(m.blobPath(p))
	if err != nil {
		return nil, errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}
	f.Close()

	if err := m.persistLocked(p); err != nil {
		return nil, err
	}
	m.live[k] = p
	return p, nil
}

// UploadRequest is the decoded payload for an upload apply entry.
type UploadRequest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Offset  int64  `json:"offset"`
	Data    []byte `json:"data"`
}

// Upload writes one chunk at its positional offset and truncates the
// file to upload_size. Once upload_size reaches the declared size, the
// file's checksum is verified; on mismatch the entity stays UPLOADING
// so the client can retry the final chunk(s) (spec §4.4).
func (m *Manager) Upload(req UploadRequest) (finished bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{name: req.Name, version: req.Version}
	p, ok := m.live[k]
	if !ok {
		return false, errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("plugin %q version %s does not exist", req.Name, req.Version))
	}
	if p.Finished {
		return false, errcode.New(errcode.INPUT_PARAM_ERROR, "plugin upload already finished")
	}

	f, ferr := os.OpenFile(m.blobPath(p), os.O_WRONLY, 0o644)
	if ferr != nil {
		return false, errcode.New(errcode.INTERNAL_ERROR, ferr.Error())
	}
	defer f.Close()

	if _, err := f.WriteAt(req.Data, req.Offset); err != nil {
		return false, errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}
	newSize := req.Offset + int64(len(req.Data))
	if err := f.Truncate(newSize); err != nil {
		return false, errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}
	p.UploadSize = newSize

	if p.UploadSize != p.DeclaredSize {
		if err := m.persistLocked(p); err != nil {
			return false, err
		}
		return false, nil
	}

	sum, err := checksumFile(m.blobPath(p))
	if err != nil {
		return false, errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}
	if sum != p.Checksum {
		// Leave the entity in UPLOADING so the client can retry.
		if err := m.persistLocked(p); err != nil {
			return false, err
		}
		return false, errcode.New(errcode.INTERNAL_ERROR, "checksum mismatch on finish")
	}

	p.Finished = true
	if err := m.persistLocked(p); err != nil {
		return false, err
	}
	return true, nil
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, 64*1024)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if rerr != nil {
			break
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Remove flips the tombstone flag and moves the entry from the live
// map to the tombstone map; the blob file is retained until purge.
func (m *Manager) Remove(name, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{name: name, version: version}
	p, ok := m.live[k]
	if !ok {
		return errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("plugin %q version %s does not exist", name, version))
	}
	p.Tombstoned = true
	if err := m.persistLocked(p); err != nil {
		return err
	}
	delete(m.live, k)
	m.tomb[k] = p
	return nil
}

// Restore moves a tombstoned entry back to the live map.
func (m *Manager) Restore(name, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{name: name, version: version}
	p, ok := m.tomb[k]
	if !ok {
		return errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("plugin %q version %s is not tombstoned", name, version))
	}
	p.Tombstoned = false
	if err := m.persistLocked(p); err != nil {
		return err
	}
	delete(m.tomb, k)
	m.live[k] = p
	return nil
}

// Purge deletes a tombstoned entry's metadata row and blob file; a
// no-op if the (name, version) is already absent (spec §4.4).
func (m *Manager) Purge(name, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{name: name, version: version}
	p, ok := m.tomb[k]
	if !ok {
		return nil
	}
	if err := m.engine.Delete(context.Background(), entryKey(name, version)); err != nil {
		return errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}
	os.Remove(m.blobPath(p))
	delete(m.tomb, k)
	m.readFDs.Remove(k)
	return nil
}

// DownloadRequest is the decoded payload for a plugin.download query.
type DownloadRequest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Offset  int64  `json:"offset"`
	Length  int64  `json:"length"`
}

// DownloadResult is one chunk of a plugin blob.
type DownloadResult struct {
	Data []byte `json:"data"`
	EOF  bool   `json:"eof"`
}

// Download reads one chunk of a finished plugin's blob, serving reads
// through a hard-linked copy under readLinkDir so a concurrent Purge
// can unlink the canonical path without invalidating an in-flight
// download (spec §4.4/§4.8's read-link cache).
func (m *Manager) Download(req DownloadRequest) (DownloadResult, error) {
	k := key{name: req.Name, version: req.Version}
	blobPath, declaredSize, err := m.resolveDownloadTarget(k, req)
	if err != nil {
		return DownloadResult{}, err
	}

	h, ok := m.readFDs.Get(k)
	if !ok {
		var err error
		h, err = m.openReadLink(k, blobPath)
		if err != nil {
			return DownloadResult{}, err
		}
		m.readFDs.Put(k, h)
	}

	buf := make([]byte, req.Length)
	n, err := h.file.ReadAt(buf, req.Offset)
	if err != nil && err != io.EOF {
		return DownloadResult{}, errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}
	return DownloadResult{Data: buf[:n], EOF: err == io.EOF || req.Offset+int64(n) >= declaredSize}, nil
}

// resolveDownloadTarget validates that k is a finished plugin and
// returns its blob path and declared size, both read while m.mu is
// held — DeclaredSize in particular must not escape the lock, since
// Apply can mutate the live entry concurrently with a Download.
func (m *Manager) resolveDownloadTarget(k key, req DownloadRequest) (blobPath string, declaredSize int64, err error) {
	g := scopedlock.Acquire(&m.mu)
	defer g.Release()

	p, ok := m.live[k]
	if !ok {
		return "", 0, errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("plugin %q version %s does not exist", req.Name, req.Version))
	}
	if !p.Finished {
		return "", 0, errcode.New(errcode.INPUT_PARAM_ERROR, "plugin upload not finished")
	}
	return m.blobPath(p), p.DeclaredSize, nil
}

// openReadLink materializes a hard link to blobPath under
// readLinkDir and opens it for reading. The link survives a Purge of
// the canonical path while this handle stays in readFDs.
func (m *Manager) openReadLink(k key, blobPath string) (*readHandle, error) {
	if err := os.MkdirAll(m.readLinkDir(), 0o755); err != nil {
		return nil, errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}
	linkPath := filepath.Join(m.readLinkDir(), fmt.Sprintf("%s@%s", k.name, k.version))
	os.Remove(linkPath)
	if err := os.Link(blobPath, linkPath); err != nil {
		return nil, errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}
	f, err := os.Open(linkPath)
	if err != nil {
		os.Remove(linkPath)
		return nil, errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}
	return &readHandle{file: f, linkPath: linkPath}, nil
}

// Get returns the live entry for (name, version), if any.
func (m *Manager) Get(name, version string) (Plugin, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.live[key{name: name, version: version}]
	if !ok {
		return Plugin{}, false
	}
	return *p, true
}

// ListLive returns every live (UPLOADING or READY) entry.
func (m *Manager) ListLive() []Plugin {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Plugin, 0, len(m.live))
	for _, p := range m.live {
		out = append(out, *p)
	}
	return out
}

// ListTombstoned returns every tombstoned entry.
func (m *Manager) ListTombstoned() []Plugin {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Plugin, 0, len(m.tomb))
	for _, p := range m.tomb {
		out = append(out, *p)
	}
	return out
}

// LoadSnapshot implements replication.SnapshotLoader: rebuilds the live
// and tombstone maps from the meta column family. Blob file
// materialization is handled separately by RestoreBlobs, which the
// Group runs before calling LoadSnapshot.
func (m *Manager) LoadSnapshot() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.live = make(map[key]*Plugin)
	m.tomb = make(map[key]*Plugin)

	prefix := storage.WithPrefix(storage.PrefixMeta, []byte{byte(keyspace.KindPlugin)})
	return m.engine.Scan(context.Background(), prefix, func(_ []byte, value []byte) bool {
		var p Plugin
		if err := json.Unmarshal(value, &p); err != nil {
			return true
		}
		k := key{name: p.Name, version: p.Version}
		pc := p
		if pc.Tombstoned {
			m.tomb[k] = &pc
		} else {
			m.live[k] = &pc
		}
		return true
	})
}
