// Package rpcserver is the server-side counterpart to
// internal/client/followclient and internal/server/router: it exposes
// the eight Connect procedures spec §9 names, unwraps each request's
// router.WireEnvelope to find the op-type, and dispatches manage ops
// through a Raft group's Submit (so they're linearized through
// consensus) and query ops through a local, leader-only read against
// the owning manager.
//
// Grounded on the teacher's internal/server/clusterserver package for
// the Connect-handler-over-a-replicated-group shape (a Handler wired
// to a Server that owns Raft), adapted from generated protobuf
// handlers to the JSON-codec wire format internal/client/followclient
// already established.
package rpcserver

import (
	"strings"

	"github.com/eadiscovery/discoveryd/internal/errcode"
	"github.com/eadiscovery/discoveryd/internal/server/router"
)

// Submitter is the subset of replication.Group a binding needs: enough
// to apply manage ops through Raft and to reject queries when this
// replica isn't leader. replication.Group satisfies this structurally.
type Submitter interface {
	IsLeader() bool
	LeaderAddr() string
	Submit(opType string, payload []byte) ([]byte, error)
}

// QueryHandler serves one op-type's read-only request directly against
// the owning manager's in-memory state, bypassing Raft.
type QueryHandler func(payload []byte) ([]byte, error)

// QueryDispatcher maps a query op-type to its handler.
type QueryDispatcher map[string]QueryHandler

type binding struct {
	group   Submitter
	queries QueryDispatcher
}

// Service dispatches requests to whichever Raft group owns an
// op-type's prefix — the same routing key router.Clients uses on the
// client side. Which of the eight wire methods carried a request is
// deliberately irrelevant here: whether an op-type is a manage or a
// query op is decided by how it was registered (Submit vs.
// QueryDispatcher), not by which Connect procedure the caller picked
// — the client-facing method name exists to pick a wire route, not to
// assert server-side trust.
type Service struct {
	bindings map[string]binding
}

// New constructs an empty Service; call Bind for every op-type prefix
// this process serves.
func New() *Service {
	return &Service{bindings: make(map[string]binding)}
}

// Bind registers the Raft group and query dispatcher that own every
// op-type under prefix (e.g. "namespace", "config", "autoid").
func (s *Service) Bind(prefix string, group Submitter, queries QueryDispatcher) {
	s.bindings[prefix] = binding{group: group, queries: queries}
}

func (s *Service) lookup(opType string) (binding, bool) {
	prefix, _, _ := strings.Cut(opType, ".")
	b, ok := s.bindings[prefix]
	return b, ok
}

// Dispatch unwraps a router.WireEnvelope and routes it to the bound
// group's query dispatcher (if env.OpType is registered as a query)
// or its Raft Submit otherwise. This is the single entry point every
// Connect handler funnels through, regardless of which wire method
// received the request.
func (s *Service) Dispatch(env router.WireEnvelope) ([]byte, error) {
	b, ok := s.lookup(env.OpType)
	if !ok {
		return nil, errcode.New(errcode.UNKNOWN_REQ_TYPE, "unknown op type: "+env.OpType)
	}
	if h, isQuery := b.queries[env.OpType]; isQuery {
		if !b.group.IsLeader() {
			return nil, errcode.NotLeader(b.group.LeaderAddr())
		}
		return h(env.Body)
	}
	return b.group.Submit(env.OpType, env.Body)
}
