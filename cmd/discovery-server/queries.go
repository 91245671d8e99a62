package main

import (
	"encoding/json"

	"github.com/eadiscovery/discoveryd/internal/errcode"
	"github.com/eadiscovery/discoveryd/internal/server/rpcserver"
)

// decode unmarshals a query payload into T, wrapping decode failures
// in the wire-level error code every handler in this file returns on
// bad input.
func decode[T any](payload []byte) (T, error) {
	var v T
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &v); err != nil {
			return v, errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error())
		}
	}
	return v, nil
}

// bindRegistryQueries registers every read-only op-type the six
// registry-group managers serve directly against their in-memory
// state, bypassing Raft. Every manage op for these prefixes rides
// through reg.registryGroup.Submit instead, via each manager's own
// Dispatchers().
func bindRegistryQueries(svc *rpcserver.Service, reg *registry) {
	svc.Bind("namespace", reg.registryGroup, rpcserver.QueryDispatcher{
		"namespace.get": func(payload []byte) ([]byte, error) {
			req, err := decode[struct {
				Name string `json:"name"`
			}](payload)
			if err != nil {
				return nil, err
			}
			ns, ok := reg.namespaceMgr.Get(req.Name)
			if !ok {
				return nil, errcode.New(errcode.INPUT_PARAM_ERROR, "namespace not found: "+req.Name)
			}
			return json.Marshal(ns)
		},
		"namespace.list": func([]byte) ([]byte, error) {
			return json.Marshal(reg.namespaceMgr.List())
		},
	})

	svc.Bind("zone", reg.registryGroup, rpcserver.QueryDispatcher{
		"zone.list": func(payload []byte) ([]byte, error) {
			req, err := decode[struct {
				NamespaceID uint64 `json:"namespace_id"`
			}](payload)
			if err != nil {
				return nil, err
			}
			return json.Marshal(reg.zoneMgr.ListByNamespace(req.NamespaceID))
		},
	})

	svc.Bind("servlet", reg.registryGroup, rpcserver.QueryDispatcher{
		"servlet.list": func(payload []byte) ([]byte, error) {
			req, err := decode[struct {
				ZoneID uint64 `json:"zone_id"`
			}](payload)
			if err != nil {
				return nil, err
			}
			return json.Marshal(reg.servletMgr.ListByZone(req.ZoneID))
		},
	})

	svc.Bind("instance", reg.registryGroup, rpcserver.QueryDispatcher{
		"instance.list": func(payload []byte) ([]byte, error) {
			req, err := decode[struct {
				NamespaceID uint64 `json:"namespace_id"`
				ZoneID      uint64 `json:"zone_id"`
				ServletID   uint64 `json:"servlet_id"`
			}](payload)
			if err != nil {
				return nil, err
			}
			switch {
			case req.ServletID != 0:
				return json.Marshal(reg.instanceMgr.ListByServlet(req.NamespaceID, req.ZoneID, req.ServletID))
			case req.ZoneID != 0:
				return json.Marshal(reg.instanceMgr.ListByZone(req.NamespaceID, req.ZoneID))
			default:
				return json.Marshal(reg.instanceMgr.ListByNamespace(req.NamespaceID))
			}
		},
	})

	svc.Bind("privilege", reg.registryGroup, rpcserver.QueryDispatcher{
		"privilege.get": func(payload []byte) ([]byte, error) {
			req, err := decode[struct {
				Username string `json:"username"`
			}](payload)
			if err != nil {
				return nil, err
			}
			p, ok := reg.privilegeMgr.Get(req.Username)
			if !ok {
				return nil, errcode.New(errcode.INPUT_PARAM_ERROR, "privilege not found: "+req.Username)
			}
			p.PasswordHash = ""
			return json.Marshal(p)
		},
		"privilege.authenticate": func(payload []byte) ([]byte, error) {
			req, err := decode[struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}](payload)
			if err != nil {
				return nil, err
			}
			ok := reg.privilegeMgr.Authenticate(req.Username, req.Password)
			return json.Marshal(map[string]bool{"ok": ok})
		},
	})

	svc.Bind("config", reg.registryGroup, rpcserver.QueryDispatcher{
		"config.get": func(payload []byte) ([]byte, error) {
			req, err := decode[struct {
				Name    string `json:"name"`
				Version string `json:"version"`
			}](payload)
			if err != nil {
				return nil, err
			}
			blob, version, ok := reg.configMgr.Get(req.Name, req.Version)
			if !ok {
				return nil, errcode.New(errcode.INPUT_PARAM_ERROR, "config not found: "+req.Name)
			}
			return json.Marshal(struct {
				Blob    []byte `json:"blob"`
				Version string `json:"version"`
			}{blob, version})
		},
		"config.list": func([]byte) ([]byte, error) {
			return json.Marshal(reg.configMgr.List())
		},
		"config.list_versions": func(payload []byte) ([]byte, error) {
			req, err := decode[struct {
				Name string `json:"name"`
			}](payload)
			if err != nil {
				return nil, err
			}
			return json.Marshal(reg.configMgr.ListVersions(req.Name))
		},
	})
}

func bindAutoIDQueries(svc *rpcserver.Service, reg *registry) {
	svc.Bind("autoid", reg.autoidGroup, rpcserver.QueryDispatcher{
		"autoid.peek": func(payload []byte) ([]byte, error) {
			req, err := decode[struct {
				ServletID uint64 `json:"servlet_id"`
			}](payload)
			if err != nil {
				return nil, err
			}
			value, ok := reg.autoidMgr.Peek(req.ServletID)
			if !ok {
				return nil, errcode.New(errcode.INPUT_PARAM_ERROR, "no counter for servlet")
			}
			return json.Marshal(map[string]uint64{"value": value})
		},
		"autoid.list": func([]byte) ([]byte, error) {
			return json.Marshal(reg.autoidMgr.ListServletIDs())
		},
	})
}

// bindTSOQueries registers tso.gen as a query: spec §4.9's timestamp
// oracle serves reads from in-memory state directly, replicating only
// the periodic saved-physical watermark bump through Raft (tso.go's
// own Dispatchers/Tick), never the hot-path Gen call itself.
func bindTSOQueries(svc *rpcserver.Service, reg *registry) {
	svc.Bind("tso", reg.tsoGroup, rpcserver.QueryDispatcher{
		"tso.gen": func(payload []byte) ([]byte, error) {
			req, err := decode[struct {
				Count uint64 `json:"count"`
			}](payload)
			if err != nil {
				return nil, err
			}
			if req.Count == 0 {
				req.Count = 1
			}
			result, err := reg.tsoMgr.GenTSO(req.Count)
			if err != nil {
				return nil, err
			}
			return json.Marshal(result)
		},
	})
}
