package servlet

import (
	"encoding/json"

	"github.com/eadiscovery/discoveryd/internal/errcode"
	"github.com/eadiscovery/discoveryd/internal/replication"
)

// Op-type tags this manager registers in the registry group's Dispatcher.
const (
	OpCreate = "servlet.create"
	OpDrop   = "servlet.drop"
)

// Dispatchers returns the op-type → handler entries this manager
// contributes to the registry group's Dispatcher.
func (m *Manager) Dispatchers() replication.Dispatcher {
	return replication.Dispatcher{
		OpCreate: m.handleCreate,
		OpDrop:   m.handleDrop,
	}
}

func (m *Manager) handleCreate(_ uint64, payload []byte) ([]byte, error) {
	var req CreateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error())
	}
	s, err := m.Create(req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(s)
}

func (m *Manager) handleDrop(_ uint64, payload []byte) ([]byte, error) {
	var req struct {
		ZoneID uint64 `json:"zone_id"`
		Name   string `json:"name"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error())
	}
	if err := m.Drop(req.ZoneID, req.Name); err != nil {
		return nil, err
	}
	return []byte("ok"), nil
}
