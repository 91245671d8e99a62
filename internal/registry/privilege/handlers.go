package privilege

import (
	"encoding/json"

	"github.com/eadiscovery/discoveryd/internal/errcode"
	"github.com/eadiscovery/discoveryd/internal/replication"
)

// Op-type tags this manager registers in the registry group's Dispatcher.
const (
	OpCreate = "privilege.create"
	OpGrant  = "privilege.grant"
	OpRevoke = "privilege.revoke"
	OpDrop   = "privilege.drop"
)

// Dispatchers returns the op-type → handler entries this manager
// contributes to the registry group's Dispatcher.
func (m *Manager) Dispatchers() replication.Dispatcher {
	return replication.Dispatcher{
		OpCreate: m.handleCreate,
		OpGrant:  m.handleGrant,
		OpRevoke: m.handleRevoke,
		OpDrop:   m.handleDrop,
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
	return json.Marshal(redact(p))
}

func (m *Manager) handleGrant(_ uint64, payload []byte) ([]byte, error) {
	var req GrantRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error())
	}
	p, err := m.Grant(req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(redact(p))
}

func (m *Manager) handleRevoke(_ uint64, payload []byte) ([]byte, error) {
	var req RevokeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error())
	}
	p, err := m.Revoke(req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(redact(p))
}

func (m *Manager) handleDrop(_ uint64, payload []byte) ([]byte, error) {
	var req struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error())
	}
	if err := m.Drop(req.Username); err != nil {
		return nil, err
	}
	return []byte("ok"), nil
}

// redact strips the password hash before a privilege row travels back
// to a caller over Submit's response channel.
func redact(p *Privilege) *Privilege {
	cp := *p
	cp.PasswordHash = ""
	return &cp
}
