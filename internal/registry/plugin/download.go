package plugin

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/eadiscovery/discoveryd/internal/errcode"
)

// ReadChunk serves one chunk of a live, finished plugin's blob for
// download. Reads go through a hard-linked "read_link" copy of the
// canonical file rather than the file itself, cached by the LRU fd
// cache, so a concurrent remove/purge of the canonical file never
// invalidates an in-flight download (spec §4.4/§4.8).
func (m *Manager) ReadChunk(name, version string, offset, length int64) ([]byte, error) {
	m.mu.Lock()
	p, ok := m.live[key{name: name, version: version}]
	if !ok || !p.Finished {
		m.mu.Unlock()
		return nil, errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("plugin %q version %s is not ready", name, version))
	}
	canonical := m.blobPath(p)
	m.mu.Unlock()

	h, err := m.readHandle(key{name: name, version: version}, canonical)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, length)
	n, err := h.file.ReadAt(buf, offset)
	if err != nil && n == 0 {
		return nil, errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}
	return buf[:n], nil
}

// readHandle returns a cached, open read handle for k, creating a
// fresh read-link hard link and opening it on a cache miss.
func (m *Manager) readHandle(k key, canonical string) (*readHandle, error) {
	if h, ok := m.readFDs.Get(k); ok {
		return h, nil
	}

	if err := os.MkdirAll(m.readLinkDir(), 0o755); err != nil {
		return nil, errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}
	linkPath := filepath.Join(m.readLinkDir(), fmt.Sprintf("%s-%s.link", k.name, k.version))
	os.Remove(linkPath) // drop a stale link from a prior process, if any
	if err := os.Link(canonical, linkPath); err != nil {
		return nil, errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}

	f, err := os.Open(linkPath)
	if err != nil {
		os.Remove(linkPath)
		return nil, errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}

	h := &readHandle{file: f, linkPath: linkPath}
	m.readFDs.Put(k, h)
	return h, nil
}
