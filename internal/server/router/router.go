// Package router implements the stateless request router (spec §4.7):
// every backend service interface forwards its request to the
// leader-following client owning the request's Raft group, running
// the forwarding call on a bounded worker pool so a slow or blocked
// leader-election round never starves the HTTP/RPC handler goroutines.
package router

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/eadiscovery/discoveryd/internal/client/followclient"
	"github.com/eadiscovery/discoveryd/internal/errcode"
	"github.com/eadiscovery/discoveryd/internal/util/workerpool"
)

// WireEnvelope is the op-type-tagged body carried inside a
// followclient.WireRequest's Payload. A Connect procedure (e.g.
// "discovery_manager") fans many distinct op-types out to the same
// server-side handler map, so op-type has to travel over the wire
// alongside the request-specific fields rather than being implied by
// the procedure name alone. internal/server/rpcserver unwraps this
// same shape to find the right handler.
type WireEnvelope struct {
	OpType string          `json:"op_type"`
	Body   json.RawMessage `json:"body"`
}

// ForwardRetryTimes is the retry-count budget the router's own
// followclient.Client instances are configured with (spec §4.7
// "forwarding to the leader-following client with a retry count of
// 2") — distinct from the higher default a directly-connecting CLI
// client uses.
const ForwardRetryTimes = 2

// NewForwardingConfig builds the followclient.Config the composition
// root should use for every client handed to a Router, pinning
// RetryTimes to ForwardRetryTimes.
func NewForwardingConfig(nodes []string, connectTimeout, requestTimeout time.Duration) followclient.Config {
	return followclient.Config{
		Nodes:          nodes,
		ConnectTimeout: connectTimeout,
		RequestTimeout: requestTimeout,
		RetryTimes:     ForwardRetryTimes,
	}
}

// Kind distinguishes a mutating request (goes through Raft apply) from
// a read-only one (served from the leader's in-memory state directly).
type Kind int

const (
	KindManage Kind = iota
	KindQuery
)

// Clients holds one leader-following client per Raft group; a request
// is routed to exactly one of these by its op-type's prefix.
type Clients struct {
	// Registry serves the schema/privilege/config/instance group.
	Registry *followclient.Client
	// AutoID serves the dedicated auto-increment id group.
	AutoID *followclient.Client
	// TSO serves the dedicated timestamp oracle group.
	TSO *followclient.Client
	// Plugin serves the plugin group, hosted by a separate
	// plugin-server process cluster.
	Plugin *followclient.Client
}

type route struct {
	client  func(Clients) *followclient.Client
	service string // "discovery", "config", "plugin", "tso"
}

var routes = map[string]route{
	"namespace": {client: func(c Clients) *followclient.Client { return c.Registry }, service: "discovery"},
	"zone":      {client: func(c Clients) *followclient.Client { return c.Registry }, service: "discovery"},
	"servlet":   {client: func(c Clients) *followclient.Client { return c.Registry }, service: "discovery"},
	"instance":  {client: func(c Clients) *followclient.Client { return c.Registry }, service: "discovery"},
	"privilege": {client: func(c Clients) *followclient.Client { return c.Registry }, service: "discovery"},
	"config":    {client: func(c Clients) *followclient.Client { return c.Registry }, service: "config"},
	"autoid":    {client: func(c Clients) *followclient.Client { return c.AutoID }, service: "discovery"},
	"tso":       {client: func(c Clients) *followclient.Client { return c.TSO }, service: "tso"},
	"plugin":    {client: func(c Clients) *followclient.Client { return c.Plugin }, service: "plugin"},
}

// methodName resolves a service + Kind to the wire method names spec
// §6 lists verbatim.
func methodName(service string, kind Kind) string {
	if service == "tso" {
		return "tso_service"
	}
	if service == "discovery" {
		if kind == KindQuery {
			return "discovery_query"
		}
		return "discovery_manager"
	}
	if kind == KindQuery {
		return service + "_query"
	}
	return service + "_manage"
}

// Router forwards requests to whichever client owns their op-type.
type Router struct {
	clients Clients
	pool    *workerpool.Pool
}

// New constructs a Router. pool bounds how many forwarding calls run
// concurrently, independent of the HTTP/RPC server's own concurrency.
func New(clients Clients, pool *workerpool.Pool) *Router {
	return &Router{clients: clients, pool: pool}
}

// Forward submits payload (an op-type-tagged Envelope body) to the
// Raft group that owns opType, on the worker pool, and returns its
// result once the forward completes.
func (r *Router) Forward(ctx context.Context, kind Kind, opType string, payload []byte) ([]byte, error) {
	prefix, _, _ := strings.Cut(opType, ".")
	rt, ok := routes[prefix]
	if !ok {
		return nil, errcode.New(errcode.UNKNOWN_REQ_TYPE, "unknown op type: "+opType)
	}
	client := rt.client(r.clients)
	if client == nil {
		return nil, errcode.New(errcode.HAVE_NOT_INIT, "no client configured for op type: "+opType)
	}
	method := methodName(rt.service, kind)

	wire, err := json.Marshal(WireEnvelope{OpType: opType, Body: payload})
	if err != nil {
		return nil, errcode.New(errcode.PARSE_TO_PB_FAIL, err.Error())
	}

	var result []byte
	done := make(chan struct{})
	r.pool.Run(func() {
		defer close(done)
		result, err = client.Send(ctx, method, wire)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
		return result, err
	}
}
