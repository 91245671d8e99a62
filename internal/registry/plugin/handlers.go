package plugin

import (
	"encoding/json"

	"github.com/eadiscovery/discoveryd/internal/errcode"
	"github.com/eadiscovery/discoveryd/internal/replication"
)

// Op-type tags this manager registers in the plugin group's Dispatcher.
const (
	OpCreate  = "plugin.create"
	OpUpload  = "plugin.upload"
	OpRemove  = "plugin.remove"
	OpRestore = "plugin.restore"
	OpPurge   = "plugin.purge"
)

// Dispatchers returns the op-type → handler entries this manager
// contributes to the plugin group's Dispatcher.
func (m *Manager) Dispatchers() replication.Dispatcher {
	return replication.Dispatcher{
		OpCreate:  m.handleCreate,
		OpUpload:  m.handleUpload,
		OpRemove:  m.handleRemove,
		OpRestore: m.handleRestore,
		OpPurge:   m.handlePurge,
	}
}

func (m *Manager) handleCreate(_ uint64, payload []byte) ([]byte, error) {
	var req CreateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error())
	}
	p, err := m.Create(req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(p)
}

func (m *Manager) handleUpload(_ uint64, payload []byte) ([]byte, error) {
	var req UploadRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error())
	}
	finished, err := m.Upload(req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Finished bool `json:"finished"`
	}{Finished: finished})
}

func (m *Manager) handleRemove(_ uint64, payload []byte) ([]byte, error) {
	var req struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error())
	}
	if err := m.Remove(req.Name, req.Version); err != nil {
		return nil, err
	}
	return []byte("ok"), nil
}

func (m *Manager) handleRestore(_ uint64, payload []byte) ([]byte, error) {
	var req struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error())
	}
	if err := m.Restore(req.Name, req.Version); err != nil {
		return nil, err
	}
	return []byte("ok"), nil
}

func (m *Manager) handlePurge(_ uint64, payload []byte) ([]byte, error) {
	var req struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error())
	}
	if err := m.Purge(req.Name, req.Version); err != nil {
		return nil, err
	}
	return []byte("ok"), nil
}
