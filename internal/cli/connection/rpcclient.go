package connection

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/eadiscovery/discoveryd/internal/client/followclient"
	"github.com/eadiscovery/discoveryd/internal/server/router"
)

// RPCClient wraps a followclient.Client per Raft group the CLI might
// talk to, resolved from the --server flag's comma-separated node
// list. Unlike the router's forwarding clients (pinned to
// router.ForwardRetryTimes), the CLI uses followclient's own default
// retry budget (spec §4.6) since a human operator, not another
// in-process caller, is waiting on the result.
type RPCClient struct {
	clients map[string]*followclient.Client
}

// NewRPCClient splits server on commas into a candidate node list and
// builds one follow-client per logical service, all sharing that node
// list — every replica in a co-resident group answers every service's
// procedures, so there's no need to address groups separately here the
// way the composition root's router.Clients does.
func NewRPCClient(server string) *RPCClient {
	nodes := strings.Split(server, ",")
	for i := range nodes {
		nodes[i] = strings.TrimSpace(nodes[i])
	}
	cfg := followclient.Config{
		Nodes:          nodes,
		ConnectTimeout: 5 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
	mk := func() *followclient.Client { return followclient.New(cfg, followclient.NewConnectTransport()) }
	return &RPCClient{clients: map[string]*followclient.Client{
		"discovery": mk(),
		"config":    mk(),
		"plugin":    mk(),
		"tso":       mk(),
	}}
}

// Manage sends a mutating op-type through its service's manage method.
func (c *RPCClient) Manage(ctx context.Context, service, opType string, body any) (json.RawMessage, error) {
	return c.send(ctx, service, opType, body, false)
}

// Query sends a read-only op-type through its service's query method.
func (c *RPCClient) Query(ctx context.Context, service, opType string, body any) (json.RawMessage, error) {
	return c.send(ctx, service, opType, body, true)
}

func (c *RPCClient) send(ctx context.Context, service, opType string, body any, query bool) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	wire, err := json.Marshal(router.WireEnvelope{OpType: opType, Body: payload})
	if err != nil {
		return nil, err
	}

	client := c.clients[service]
	if client == nil {
		client = c.clients["discovery"]
	}

	method := service + "_manage"
	if service == "tso" {
		method = "tso_service"
	} else if service == "discovery" {
		method = "discovery_manager"
		if query {
			method = "discovery_query"
		}
	} else if query {
		method = service + "_query"
	}

	return client.Send(ctx, method, wire)
}
