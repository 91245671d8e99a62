package zone

import (
	"encoding/json"

	"github.com/eadiscovery/discoveryd/internal/errcode"
	"github.com/eadiscovery/discoveryd/internal/replication"
)

// Op-type tags this manager registers in the registry group's Dispatcher.
const (
	OpCreate = "zone.create"
	OpModify = "zone.modify"
	OpDrop   = "zone.drop"
)

// Dispatchers returns the op-type → handler entries this manager
// contributes to the registry group's Dispatcher.
func (m *Manager) Dispatchers() replication.Dispatcher {
	return replication.Dispatcher{
		OpCreate: m.handleCreate,
		OpModify: m.handleModify,
		OpDrop:   m.handleDrop,
	}
}

func (m *Manager) handleCreate(_ uint64, payload []byte) ([]byte, error) {
	var req CreateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error())
	}
	z, err := m.Create(req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(z)
}

func (m *Manager) handleModify(_ uint64, payload []byte) ([]byte, error) {
	var req ModifyRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error())
	}
	z, err := m.Modify(req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(z)
}

func (m *Manager) handleDrop(_ uint64, payload []byte) ([]byte, error) {
	var req struct {
		NamespaceID uint64 `json:"namespace_id"`
		Name        string `json:"name"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error())
	}
	if err := m.Drop(req.NamespaceID, req.Name); err != nil {
		return nil, err
	}
	return []byte("ok"), nil
}
