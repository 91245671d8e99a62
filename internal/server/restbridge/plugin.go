package restbridge

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/eadiscovery/discoveryd/internal/server/router"
)

// downloadPluginChunk decodes name/version/offset/length query
// parameters and forwards a plugin.download query, matching spec
// §4.4's chunked-download contract.
func (b *Bridge) downloadPluginChunk(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("name")
	version := q.Get("version")
	if name == "" || version == "" {
		writeInputError(w, "name and version are required")
		return
	}

	offset, err := strconv.ParseInt(q.Get("offset"), 10, 64)
	if err != nil {
		writeInputError(w, "offset must be an integer")
		return
	}
	length, err := strconv.ParseInt(q.Get("length"), 10, 64)
	if err != nil || length <= 0 {
		writeInputError(w, "length must be a positive integer")
		return
	}

	payload, _ := json.Marshal(struct {
		Name    string `json:"name"`
		Version string `json:"version"`
		Offset  int64  `json:"offset"`
		Length  int64  `json:"length"`
	}{Name: name, Version: version, Offset: offset, Length: length})

	result, sendErr := b.router.Forward(r.Context(), router.KindQuery, "plugin.download", payload)
	writeResult(w, result, sendErr)
}
