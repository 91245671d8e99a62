// Package restbridge exposes the router over plain HTTP: each handler
// decodes URL query parameters (or, for config creation, the JSON
// request body) into the JSON payload shape the
// corresponding op-type expects and forwards it through the same
// router used by the Connect RPC surface. It owns no state of its own
// (spec §4.7).
//
// Grounded on original_source/ea/restful/config_server.cc's
// query-parameter decoding (GetQuery("name"), GetQuery("version")) and
// the teacher's internal/server/httpserver package for the
// http.ServeMux/method-pattern routing convention.
package restbridge

import (
	"encoding/json"
	"net/http"

	"github.com/eadiscovery/discoveryd/internal/errcode"
	"github.com/eadiscovery/discoveryd/internal/server/router"
)

// Bridge wires HTTP routes to a Router. It holds no mutable state.
type Bridge struct {
	router *router.Router
}

// New constructs a Bridge over an already-configured Router.
func New(r *router.Router) *Bridge {
	return &Bridge{router: r}
}

// Routes builds the http.Handler serving every REST endpoint.
func (b *Bridge) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /config", b.createConfig)
	mux.HandleFunc("DELETE /config", b.removeConfig)
	mux.HandleFunc("GET /config", b.getConfig)
	mux.HandleFunc("GET /config/list", b.listConfig)
	mux.HandleFunc("GET /config/versions", b.listConfigVersions)

	mux.HandleFunc("GET /plugin/download", b.downloadPluginChunk)

	mux.HandleFunc("POST /tso/gen", b.genTSO)

	return mux
}

// writeResult marshals a router.Forward outcome into a JSON response
// body carrying errcode and errmsg (plus the leader address on error),
// with the payload (if any) embedded as a JSON field.
func writeResult(w http.ResponseWriter, payload []byte, err error) {
	w.Header().Set("Content-Type", "application/json")

	if err != nil {
		code := errcode.CodeOf(err)
		leader := ""
		var ce *errcode.Error
		if e, ok := err.(*errcode.Error); ok {
			ce = e
			leader = ce.Leader
		}
		_ = json.NewEncoder(w).Encode(struct {
			Errcode int32  `json:"errcode"`
			Errmsg  string `json:"errmsg"`
			Leader  string `json:"leader"`
		}{Errcode: int32(code), Errmsg: err.Error(), Leader: leader})
		return
	}

	_ = json.NewEncoder(w).Encode(struct {
		Errcode int32           `json:"errcode"`
		Errmsg  string          `json:"errmsg"`
		Payload json.RawMessage `json:"payload,omitempty"`
	}{Errcode: int32(errcode.SUCCESS), Payload: payload})
}

func writeInputError(w http.ResponseWriter, msg string) {
	writeResult(w, nil, errcode.New(errcode.INPUT_PARAM_ERROR, msg))
}
