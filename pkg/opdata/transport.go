package opdata

import (
	"context"
	"encoding/json"
	"net"

	"github.com/cuemby/yangstore/pkg/types"
)

// ValueWire is one provider-supplied leaf, addressed by an absolute
// xpath within the requested module, flattened to a string payload
// the same way pkg/subscription's delivery messages are (the provider
// process does not share this daemon's Value representation).
type ValueWire struct {
	XPath string `json:"xpath"`
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Request is sent to a registered OperationalData subscription asking
// it to supply the state data under XPath (the whole module when
// empty, or a specific container/list requested lazily on a later
// read per spec §4.10 "nested provider queries").
type Request struct {
	Module string `json:"module"`
	XPath  string `json:"xpath"`
}

// Response carries whatever values a provider could supply; Partial
// marks a best-effort answer that does not claim full subtree coverage
// (still merged, per spec's "whatever data has arrived" timeout path).
type Response struct {
	Values  []ValueWire `json:"values"`
	Partial bool        `json:"partial"`
}

// ProviderTransport requests operational data from a subscription's
// delivery address and blocks for its response, bounded by ctx.
type ProviderTransport interface {
	Request(ctx context.Context, address string, req Request) (*Response, error)
}

// UnixProviderTransport is the default ProviderTransport: one
// short-lived connection per request to a socket under the daemon's
// subscriptions_socket_dir, mirroring pkg/subscription's delivery
// transport (same out-of-process plugin model, opposite data
// direction: the daemon asks, the plugin answers).
type UnixProviderTransport struct{}

func (UnixProviderTransport) Request(ctx context.Context, address string, req Request) (*Response, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", address)
	if err != nil {
		return nil, types.NewError(types.OperationFailed, "dial provider %s: %v", address, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, types.NewError(types.OperationFailed, "encode provider request for %s: %v", address, err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, types.NewError(types.OperationFailed, "decode provider response from %s: %v", address, err)
	}
	return &resp, nil
}
