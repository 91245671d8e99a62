package replication

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/eadiscovery/discoveryd/internal/errcode"
)

// DefaultSubmitTimeout bounds how long Submit waits for Raft to apply
// an entry before giving up.
const DefaultSubmitTimeout = 5 * time.Second

// Submit implements spec §4.1's "process(request, response_promise)"
// contract: if this replica isn't leader, fail fast with NOT_LEADER
// and a best-effort leader address; otherwise serialize the request,
// hand it to Raft, and block until the entry commits and this leader's
// Apply has run (followers apply it on their own schedule). The caller
// never observes a result before commit — Submit only returns once
// raft.ApplyFuture resolves.
func (g *Group) Submit(opType string, payload []byte) ([]byte, error) {
	if !g.IsLeader() {
		return nil, errcode.NotLeader(g.LeaderAddr())
	}

	env := Envelope{OpType: opType, Payload: payload}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, errcode.New(errcode.PARSE_TO_PB_FAIL, err.Error())
	}

	future := g.raftNode.Apply(data, DefaultSubmitTimeout)
	if err := future.Error(); err != nil {
		return nil, errcode.New(errcode.INTERNAL_ERROR, fmt.Sprintf("raft apply: %v", err))
	}

	result, ok := future.Response().(*ApplyResult)
	if !ok {
		return nil, errcode.New(errcode.INTERNAL_ERROR, "apply returned unexpected response type")
	}
	if result.Err != nil {
		return nil, result.Err
	}
	return result.Response, nil
}
