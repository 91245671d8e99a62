package config

import (
	"encoding/json"

	"github.com/eadiscovery/discoveryd/internal/errcode"
	"github.com/eadiscovery/discoveryd/internal/replication"
)

// Op-type tags this manager registers in the config group's Dispatcher.
const (
	OpCreate        = "config.create"
	OpRemoveVersion = "config.remove_version"
	OpRemoveName    = "config.remove_name"
)

// Dispatchers returns the op-type → handler entries this manager
// contributes to its group's Dispatcher.
func (m *Manager) Dispatchers() replication.Dispatcher {
	return replication.Dispatcher{
		OpCreate:        m.handleCreate,
		OpRemoveVersion: m.handleRemoveVersion,
		OpRemoveName:    m.handleRemoveName,
	}
}

func (m *Manager) handleCreate(_ uint64, payload []byte) ([]byte, error) {
	var req CreateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error())
	}
	if err := m.Create(req); err != nil {
		return nil, err
	}
	return []byte("ok"), nil
}

func (m *Manager) handleRemoveVersion(_ uint64, payload []byte) ([]byte, error) {
	var req struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error())
	}
	if err := m.RemoveVersion(req.Name, req.Version); err != nil {
		return nil, err
	}
	return []byte("ok"), nil
}

func (m *Manager) handleRemoveName(_ uint64, payload []byte) ([]byte, error) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error())
	}
	if err := m.RemoveName(req.Name); err != nil {
		return nil, err
	}
	return []byte("ok"), nil
}
