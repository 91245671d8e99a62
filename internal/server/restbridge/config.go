package restbridge

import (
	"encoding/json"
	"net/http"

	"github.com/eadiscovery/discoveryd/internal/server/router"
)

// createConfig mirrors original_source/ea/restful/config_server.cc's
// create_config: the body (not query params, since content/checksum
// can be arbitrarily large) carries name/version/content/type, all
// required.
func (b *Bridge) createConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		Version string `json:"version"`
		Content string `json:"content"`
		Type    string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInputError(w, "malformed request body")
		return
	}
	if req.Name == "" {
		writeInputError(w, "no config name")
		return
	}
	if req.Version == "" {
		writeInputError(w, "no version")
		return
	}
	if req.Content == "" {
		writeInputError(w, "no content")
		return
	}
	if req.Type == "" {
		writeInputError(w, "no type")
		return
	}

	payload, _ := json.Marshal(req)
	result, err := b.router.Forward(r.Context(), router.KindManage, "config.create", payload)
	writeResult(w, result, err)
}

// removeConfig mirrors remove_config: "name" is required, "version" is
// an optional query parameter — omitted, it removes every version.
func (b *Bridge) removeConfig(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeInputError(w, "no config name")
		return
	}
	version := r.URL.Query().Get("version")

	opType := "config.remove_name"
	req := map[string]string{"name": name}
	if version != "" {
		opType = "config.remove_version"
		req["version"] = version
	}

	payload, _ := json.Marshal(req)
	result, err := b.router.Forward(r.Context(), router.KindManage, opType, payload)
	writeResult(w, result, err)
}

// getConfig mirrors get_config: "name" required, "version" optional
// (omitted, the server resolves the latest version).
func (b *Bridge) getConfig(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeInputError(w, "no config name")
		return
	}
	req := map[string]string{"name": name}
	if version := r.URL.Query().Get("version"); version != "" {
		req["version"] = version
	}

	payload, _ := json.Marshal(req)
	result, err := b.router.Forward(r.Context(), router.KindQuery, "config.get", payload)
	writeResult(w, result, err)
}

// listConfig mirrors get_config_list: no parameters.
func (b *Bridge) listConfig(w http.ResponseWriter, r *http.Request) {
	result, err := b.router.Forward(r.Context(), router.KindQuery, "config.list", nil)
	writeResult(w, result, err)
}

// listConfigVersions mirrors get_config_version_list: "name" required.
func (b *Bridge) listConfigVersions(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeInputError(w, "no config name")
		return
	}
	payload, _ := json.Marshal(map[string]string{"name": name})
	result, err := b.router.Forward(r.Context(), router.KindQuery, "config.list_versions", payload)
	writeResult(w, result, err)
}
