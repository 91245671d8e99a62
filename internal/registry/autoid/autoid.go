// Package autoid implements the auto-increment id allocator (spec
// §4.5): one `next` counter per servlet id, replicated by the auto-id
// Raft group.
package autoid

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/eadiscovery/discoveryd/internal/errcode"
	"github.com/eadiscovery/discoveryd/internal/storage"
)

// counterKey builds `storage-prefix || servlet id (8 bytes, big-endian)`.
func counterKey(servletID uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, servletID)
	return storage.WithPrefix(storage.PrefixMeta, b)
}

// Manager owns every servlet's next-id counter.
type Manager struct {
	mu     sync.RWMutex
	engine storage.KVEngine

	next map[uint64]uint64
}

// New constructs an empty Manager bound to engine.
func New(engine storage.KVEngine) *Manager {
	return &Manager{engine: engine, next: make(map[uint64]uint64)}
}

// Add inserts a counter with a caller-supplied start_id; fails if
// already present.
func (m *Manager) Add(servletID, startID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.next[servletID]; exists {
		return errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("counter for servlet %d already exists", servletID))
	}
	if err := m.persistLocked(servletID, startID); err != nil {
		return err
	}
	m.next[servletID] = startID
	return nil
}

// Drop deletes the counter; fails if absent.
func (m *Manager) Drop(servletID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.next[servletID]; !exists {
		return errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("counter for servlet %d does not exist", servletID))
	}
	if err := m.engine.Delete(context.Background(), counterKey(servletID)); err != nil {
		return errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}
	delete(m.next, servletID)
	return nil
}

// Gen reserves [next, next+count) for servletID, honoring an optional
// lower-bound startID, and returns the reserved range's first id.
func (m *Manager) Gen(servletID uint64, count uint64, startID *uint64) (first uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.next[servletID]
	if !ok {
		return 0, errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("counter for servlet %d does not exist", servletID))
	}
	if startID != nil && *startID+1 > cur {
		cur = *startID + 1
	}

	newNext := cur + count
	if err := m.persistLocked(servletID, newNext); err != nil {
		return 0, err
	}
	m.next[servletID] = newNext
	return cur, nil
}

// Update atomically sets next = start_id+1 (rejecting a decrease
// unless force is set) or next += increment_id. Exactly one of
// startID / incrementID must be non-nil.
func (m *Manager) Update(servletID uint64, startID, incrementID *uint64, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if (startID == nil) == (incrementID == nil) {
		return errcode.New(errcode.INPUT_PARAM_ERROR, "exactly one of start_id/increment_id must be provided")
	}
	cur, ok := m.next[servletID]
	if !ok {
		return errcode.New(errcode.INPUT_PARAM_ERROR, fmt.Sprintf("counter for servlet %d does not exist", servletID))
	}

	var newNext uint64
	if startID != nil {
		newNext = *startID + 1
		if newNext < cur && !force {
			return errcode.New(errcode.INPUT_PARAM_ERROR, "update would decrease next id; use force")
		}
	} else {
		newNext = cur + *incrementID
	}

	if err := m.persistLocked(servletID, newNext); err != nil {
		return err
	}
	m.next[servletID] = newNext
	return nil
}

func (m *Manager) persistLocked(servletID, value uint64) error {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, value)
	if err := m.engine.Set(context.Background(), counterKey(servletID), b); err != nil {
		return errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}
	return nil
}

// Peek returns the current next value for servletID without mutating it.
func (m *Manager) Peek(servletID uint64) (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.next[servletID]
	return v, ok
}

// LoadSnapshot implements replication.SnapshotLoader by rebuilding the
// counter map from the "meta" column family rather than a side file,
// since this group's meta rows already are the counters.
func (m *Manager) LoadSnapshot() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.next = make(map[uint64]uint64)
	return m.engine.Scan(context.Background(), []byte{byte(storage.PrefixMeta)}, func(key, value []byte) bool {
		if len(key) != 9 || len(value) != 8 {
			return true
		}
		servletID := binary.BigEndian.Uint64(key[1:])
		m.next[servletID] = binary.BigEndian.Uint64(value)
		return true
	})
}

// ListServletIDs returns every servlet id with a live counter, sorted
// ascending.
func (m *Manager) ListServletIDs() []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]uint64, 0, len(m.next))
	for id := range m.next {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
