package instance

import (
	"encoding/json"

	"github.com/eadiscovery/discoveryd/internal/errcode"
	"github.com/eadiscovery/discoveryd/internal/replication"
)

// Op-type tags this manager registers in the registry group's Dispatcher.
const (
	OpAdd  = "instance.add"
	OpDrop = "instance.drop"
)

// Dispatchers returns the op-type → handler entries this manager
// contributes to the registry group's Dispatcher.
func (m *Manager) Dispatchers() replication.Dispatcher {
	return replication.Dispatcher{
		OpAdd:  m.handleAdd,
		OpDrop: m.handleDrop,
	}
}

func (m *Manager) handleAdd(_ uint64, payload []byte) ([]byte, error) {
	var req AddRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error())
	}
	inst, err := m.Add(req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(inst)
}

func (m *Manager) handleDrop(_ uint64, payload []byte) ([]byte, error) {
	var req struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error())
	}
	if err := m.Drop(req.Address); err != nil {
		return nil, err
	}
	return []byte("ok"), nil
}
