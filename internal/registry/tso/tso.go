// Package tso implements the timestamp oracle (spec §4.5): a hybrid
// physical/logical clock producing strictly increasing timestamps,
// replicated by a dedicated Raft group so a saved physical-time upper
// bound survives leader failover.
package tso

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"sync"
	"time"

	"github.com/eadiscovery/discoveryd/internal/errcode"
	"github.com/eadiscovery/discoveryd/internal/replication"
	"github.com/eadiscovery/discoveryd/internal/storage"
)

// baseEpochMS is 2020-01-01T00:00:00Z in Unix milliseconds; physical
// time is wall-clock milliseconds minus this epoch (spec §4.5).
var baseEpochMS = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

const (
	logicalBits   = 18
	maxLogical    = 1 << logicalBits
	extendMS      = 3000
	guardMS       = 1
	tickInterval  = 50 * time.Millisecond
	savedBoundKey = "saved_physical"
)

// Timestamp is a packed (physical<<18 | logical) value per spec §4.5.
type Timestamp uint64

// Pack combines a physical and logical component.
func Pack(physical int64, logical uint64) Timestamp {
	return Timestamp(uint64(physical)<<logicalBits | logical)
}

// Unpack splits a packed timestamp back into its components.
func (t Timestamp) Unpack() (physical int64, logical uint64) {
	return int64(uint64(t) >> logicalBits), uint64(t) & (maxLogical - 1)
}

// Manager owns the current physical/logical state and the saved
// physical-time upper bound, replicated through group.
type Manager struct {
	mu sync.Mutex

	engine storage.KVEngine

	physical      int64
	logical       uint64
	savedPhysical int64
	primed        bool

	now func() int64 // wall-clock milliseconds; overridable in tests
}

// New constructs a Manager bound to engine. The group submitting
// update_saved_physical entries is attached separately via Attach,
// since the Group itself must be constructed with this Manager's
// Dispatchers already wired in.
func New(engine storage.KVEngine) *Manager {
	return &Manager{
		engine: engine,
		now:    func() int64 { return time.Now().UnixMilli() - baseEpochMS },
	}
}

// GenRequest is the decoded payload for a gen_tso apply entry... but
// gen_tso itself does not go through Raft (spec §4.5: it reads
// in-memory state directly); it is exposed here as a plain method, not
// a Dispatcher entry.
type GenRequest struct {
	Count uint64 `json:"count"`
}

// GenResult is the base timestamp and count reserved.
type GenResult struct {
	Physical int64  `json:"physical"`
	Logical  uint64 `json:"logical"`
	Count    uint64 `json:"count"`
}

// GenTSO reserves count logical ticks from the current physical slot.
// It rejects if logical would overflow, or if the clock isn't primed
// yet (the caller should retry per spec §4.5).
func (m *Manager) GenTSO(count uint64) (GenResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.primed {
		return GenResult{}, errcode.New(errcode.UNAVAILABLE, "tso not primed, retry")
	}
	if m.logical+count >= maxLogical {
		return GenResult{}, errcode.New(errcode.INPUT_PARAM_ERROR, "logical component would overflow")
	}

	result := GenResult{Physical: m.physical, Logical: m.logical, Count: count}
	m.logical += count
	return result, nil
}

// updateSavedPhysicalPayload is the Raft-replicated entry that extends
// the persisted physical-time upper bound.
type updateSavedPhysicalPayload struct {
	SavedPhysical int64 `json:"saved_physical"`
}

// Tick implements the recurring 50ms timer (spec §4.5): advance the
// physical slot to at least the wall clock, and if that would exceed
// the saved bound, extend it by 3000ms via submit (a Raft round trip)
// before committing the advance locally.
//
// submit is the owning Group's Submit method; Tick only calls it when
// the bound needs extending, so most ticks are a local compare+advance
// with no Raft traffic.
func (m *Manager) Tick(submit func(opType string, payload []byte) ([]byte, error)) error {
	m.mu.Lock()
	newPhysical := m.physical + 1
	if wall := m.now(); wall > newPhysical {
		newPhysical = wall
	}
	needsExtend := newPhysical >= m.savedPhysical
	m.mu.Unlock()

	if needsExtend {
		newBound := newPhysical + extendMS
		payload, err := json.Marshal(updateSavedPhysicalPayload{SavedPhysical: newBound})
		if err != nil {
			return errcode.New(errcode.PARSE_TO_PB_FAIL, err.Error())
		}
		if _, err := submit(OpUpdateSavedPhysical, payload); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.physical = newPhysical
	m.logical = 0
	m.primed = true
	return nil
}

// handleUpdateSavedPhysical is the apply-time handler for
// OpUpdateSavedPhysical: persists the new bound and advances it
// in-memory on every replica (not just the leader that proposed it).
func (m *Manager) handleUpdateSavedPhysical(_ uint64, payload []byte) ([]byte, error) {
	var req updateSavedPhysicalPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if req.SavedPhysical <= m.savedPhysical {
		return []byte("ok"), nil
	}
	m.savedPhysical = req.SavedPhysical

	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(req.SavedPhysical))
	key := storage.WithPrefix(storage.PrefixMeta, []byte(savedBoundKey))
	if err := m.engine.Set(context.Background(), key, b); err != nil {
		return nil, errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}
	return []byte("ok"), nil
}

// ResetTSO forces the physical bound forward, called on leader change
// and on snapshot load (spec §4.5): reads the saved physical, bumps it
// by the guard interval, and marks the clock as not yet primed until
// the next Tick commits.
func (m *Manager) ResetTSO() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.physical = m.savedPhysical + guardMS
	m.logical = 0
	m.primed = false
}

// RunTicker drives Tick every 50ms until ctx is cancelled. The
// composition root starts this from the TSO group's
// Group.Deps.OnBecomeLeader hook; no step-down hook stops it, so it
// keeps running after this replica loses leadership.
func (m *Manager) RunTicker(ctx context.Context, submit func(opType string, payload []byte) ([]byte, error)) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = m.Tick(submit)
		}
	}
}

// Dispatchers returns the op-type → handler entries this manager
// contributes to the TSO group's Dispatcher.
func (m *Manager) Dispatchers() replication.Dispatcher {
	return replication.Dispatcher{
		OpUpdateSavedPhysical: m.handleUpdateSavedPhysical,
	}
}

// OpUpdateSavedPhysical is the op-type tag for the Raft-replicated
// saved-bound extension.
const OpUpdateSavedPhysical = "tso.update_saved_physical"

// LoadSnapshot implements replication.SnapshotLoader: re-reads the
// saved physical bound and resets, per spec §4.5 "on snapshot load...
// read the saved physical, bump by the guard, and re-sync."
func (m *Manager) LoadSnapshot() error {
	key := storage.WithPrefix(storage.PrefixMeta, []byte(savedBoundKey))
	value, err := m.engine.Get(context.Background(), key)
	if err != nil {
		if err == storage.ErrKeyNotFound {
			m.ResetTSO()
			return nil
		}
		return errcode.New(errcode.INTERNAL_ERROR, err.Error())
	}
	if len(value) != 8 {
		return errcode.New(errcode.INTERNAL_ERROR, "corrupt saved_physical row")
	}

	m.mu.Lock()
	m.savedPhysical = int64(binary.BigEndian.Uint64(value))
	m.mu.Unlock()

	m.ResetTSO()
	return nil
}
