package main

import (
	"encoding/json"

	"github.com/eadiscovery/discoveryd/internal/errcode"
	"github.com/eadiscovery/discoveryd/internal/registry/plugin"
	"github.com/eadiscovery/discoveryd/internal/server/rpcserver"
)

func decode[T any](payload []byte) (T, error) {
	var v T
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &v); err != nil {
			return v, errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error())
		}
	}
	return v, nil
}

// pluginQueries returns every read-only plugin.* op-type, served
// directly against the manager's in-memory state and read-link cache
// (plugin.download), bypassing Raft.
func pluginQueries(mgr *plugin.Manager) rpcserver.QueryDispatcher {
	return rpcserver.QueryDispatcher{
		"plugin.get": func(payload []byte) ([]byte, error) {
			req, err := decode[struct {
				Name    string `json:"name"`
				Version string `json:"version"`
			}](payload)
			if err != nil {
				return nil, err
			}
			p, ok := mgr.Get(req.Name, req.Version)
			if !ok {
				return nil, errcode.New(errcode.INPUT_PARAM_ERROR, "plugin not found: "+req.Name)
			}
			return json.Marshal(p)
		},
		"plugin.list": func([]byte) ([]byte, error) {
			return json.Marshal(mgr.ListLive())
		},
		"plugin.list_tombstoned": func([]byte) ([]byte, error) {
			return json.Marshal(mgr.ListTombstoned())
		},
		"plugin.download": func(payload []byte) ([]byte, error) {
			req, err := decode[plugin.DownloadRequest](payload)
			if err != nil {
				return nil, err
			}
			result, err := mgr.Download(req)
			if err != nil {
				return nil, err
			}
			return json.Marshal(result)
		},
	}
}
