package autoid

import (
	"encoding/json"

	"github.com/eadiscovery/discoveryd/internal/errcode"
	"github.com/eadiscovery/discoveryd/internal/replication"
)

// Op-type tags this manager registers in the auto-id group's Dispatcher.
const (
	OpAdd    = "autoid.add"
	OpDrop   = "autoid.drop"
	OpGen    = "autoid.gen"
	OpUpdate = "autoid.update"
)

// Dispatchers returns the op-type → handler entries this manager
// contributes to the auto-id group's Dispatcher.
func (m *Manager) Dispatchers() replication.Dispatcher {
	return replication.Dispatcher{
		OpAdd:    m.handleAdd,
		OpDrop:   m.handleDrop,
		OpGen:    m.handleGen,
		OpUpdate: m.handleUpdate,
	}
}

func (m *Manager) handleAdd(_ uint64, payload []byte) ([]byte, error) {
	var req struct {
		ServletID uint64 `json:"servlet_id"`
		StartID   uint64 `json:"start_id"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error())
	}
	if err := m.Add(req.ServletID, req.StartID); err != nil {
		return nil, err
	}
	return []byte("ok"), nil
}

func (m *Manager) handleDrop(_ uint64, payload []byte) ([]byte, error) {
	var req struct {
		ServletID uint64 `json:"servlet_id"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error())
	}
	if err := m.Drop(req.ServletID); err != nil {
		return nil, err
	}
	return []byte("ok"), nil
}

func (m *Manager) handleGen(_ uint64, payload []byte) ([]byte, error) {
	var req struct {
		ServletID uint64  `json:"servlet_id"`
		Count     uint64  `json:"count"`
		StartID   *uint64 `json:"start_id,omitempty"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error())
	}
	first, err := m.Gen(req.ServletID, req.Count, req.StartID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		First uint64 `json:"first"`
		Count uint64 `json:"count"`
	}{First: first, Count: req.Count})
}

func (m *Manager) handleUpdate(_ uint64, payload []byte) ([]byte, error) {
	var req struct {
		ServletID   uint64  `json:"servlet_id"`
		StartID     *uint64 `json:"start_id,omitempty"`
		IncrementID *uint64 `json:"increment_id,omitempty"`
		Force       bool    `json:"force"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error())
	}
	if err := m.Update(req.ServletID, req.StartID, req.IncrementID, req.Force); err != nil {
		return nil, err
	}
	return []byte("ok"), nil
}
