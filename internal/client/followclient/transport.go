package followclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
)

// Transport sends one RPC attempt to addr and returns the decoded wire
// response. A non-nil error here is a transport-level failure
// (connection refused, deadline exceeded, TLS handshake failure) —
// distinct from an application-level errcode carried inside a
// successfully received WireResponse.
type Transport interface {
	Send(ctx context.Context, addr, method string, req WireRequest, connectTimeout, requestTimeout time.Duration) (WireResponse, error)
}

// connectTransport sends requests over Connect RPC using the JSON codec,
// per spec §9's wire protocol ("Connect RPC ... with a JSON codec"). It
// dials http:// URLs through a plain http.Client, so requests go out as
// HTTP/1.1; HTTP/2 is not negotiated.
type connectTransport struct{}

// NewConnectTransport returns the production Transport.
func NewConnectTransport() Transport { return connectTransport{} }

func (connectTransport) Send(ctx context.Context, addr, method string, req WireRequest, connectTimeout, requestTimeout time.Duration) (WireResponse, error) {
	httpClient := &http.Client{Timeout: connectTimeout + requestTimeout}

	client := connect.NewClient[WireRequest, WireResponse](
		httpClient,
		fmt.Sprintf("http://%s/discovery.v1.DiscoveryService/%s", addr, method),
		connect.WithCodec(jsonCodec{}),
	)

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout+requestTimeout)
	defer cancel()

	resp, err := client.CallUnary(dialCtx, connect.NewRequest(&req))
	if err != nil {
		return WireResponse{}, err
	}
	return *resp.Msg, nil
}
