package rpcserver

import (
	"context"
	"encoding/json"
	"net/http"

	"connectrpc.com/connect"

	"github.com/eadiscovery/discoveryd/internal/client/followclient"
	"github.com/eadiscovery/discoveryd/internal/errcode"
	"github.com/eadiscovery/discoveryd/internal/server/router"
)

// procedures lists the eight Connect method names spec §9 fixes on the
// wire, one HTTP path each, all funneling into the same Service.Dispatch.
var procedures = []string{
	"discovery_manager",
	"discovery_query",
	"config_manage",
	"config_query",
	"plugin_manage",
	"plugin_query",
	"tso_service",
	"raft_control",
}

// Routes builds the http.Handler serving every Connect procedure this
// process backs, all routed through the same Service.
func (s *Service) Routes() http.Handler {
	mux := http.NewServeMux()
	for _, name := range procedures {
		path, handler := connect.NewUnaryHandler(
			"/discovery.v1.DiscoveryService/"+name,
			s.handle,
			connect.WithCodec(jsonCodec{}),
		)
		mux.Handle(path, handler)
	}
	return mux
}

func (s *Service) handle(ctx context.Context, req *connect.Request[followclient.WireRequest]) (*connect.Response[followclient.WireResponse], error) {
	var env router.WireEnvelope
	if err := json.Unmarshal(req.Msg.Payload, &env); err != nil {
		return connect.NewResponse(toWireResponse(nil, errcode.New(errcode.PARSE_FROM_PB_FAIL, err.Error()))), nil
	}

	result, err := s.Dispatch(env)
	return connect.NewResponse(toWireResponse(result, err)), nil
}

// toWireResponse folds an application-level result into the wire
// envelope. Only genuine transport failures surface as a Connect
// error (handled by connect itself, never constructed here) —
// everything this service itself produces, success or application
// error alike, travels back inside a 200-status WireResponse body so
// the leader-following client can inspect errcode/leader uniformly.
func toWireResponse(payload []byte, err error) *followclient.WireResponse {
	if err == nil {
		return &followclient.WireResponse{Errcode: int32(errcode.SUCCESS), Payload: payload}
	}
	resp := &followclient.WireResponse{Errcode: int32(errcode.CodeOf(err)), Errmsg: err.Error()}
	if ce, ok := err.(*errcode.Error); ok {
		resp.Leader = ce.Leader
	}
	return resp
}
