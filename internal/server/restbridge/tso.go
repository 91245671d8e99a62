package restbridge

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/eadiscovery/discoveryd/internal/server/router"
)

// genTSO decodes a "count" query parameter (defaulting to 1) and
// forwards a tso.gen request. Timestamp generation is served directly
// by the leader rather than applied through Raft, but still routes
// through the timestamp oracle's own client since only the leader's
// in-memory clock state is authoritative.
func (b *Bridge) genTSO(w http.ResponseWriter, r *http.Request) {
	count := int64(1)
	if raw := r.URL.Query().Get("count"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			writeInputError(w, "count must be a positive integer")
			return
		}
		count = parsed
	}

	payload, _ := json.Marshal(struct {
		Count uint64 `json:"count"`
	}{Count: uint64(count)})

	result, err := b.router.Forward(r.Context(), router.KindQuery, "tso.gen", payload)
	writeResult(w, result, err)
}
