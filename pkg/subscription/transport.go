package subscription

import (
	"bufio"
	"context"
	"encoding/json"
	"net"

	"github.com/cuemby/yangstore/pkg/types"
)

// DiffWire is the wire rendering of a types.DiffEntry: values
// flattened to their string form since the subscriber process does
// not share this daemon's in-memory Value representation.
type DiffWire struct {
	Op    string  `json:"op"`
	XPath string  `json:"xpath"`
	Old   *string `json:"old,omitempty"`
	New   *string `json:"new,omitempty"`
}

// Message is one VERIFY/NOTIFY delivery,
// JSON-encoded and newline-delimited over a Unix domain socket rooted
// at the daemon's subscriptions_socket_dir.
type Message struct {
	Phase          string     `json:"phase"`
	CommitID       string     `json:"commit_id"`
	Module         string     `json:"module"`
	SubscriptionID string     `json:"subscription_id"`
	XPath          string     `json:"xpath"`
	Diffs          []DiffWire `json:"diffs,omitempty"`
}

// Dialer delivers a Message to address and waits for the subscriber's
// one-line acknowledgment ("OK" or an error message).
type Dialer interface {
	Send(ctx context.Context, address string, msg Message) error
}

// UnixDialer is the default Dialer: one short-lived connection per
// delivery to a socket under subscriptions_socket_dir, grounded on the
// teacher's events.Broker fan-out generalized to cross process
// boundaries (no pack library offers an out-of-process pub-sub
// transport fit for this one-registry-many-plugins shape; see
// DESIGN.md).
type UnixDialer struct{}

func (UnixDialer) Send(ctx context.Context, address string, msg Message) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", address)
	if err != nil {
		return types.NewError(types.OperationFailed, "dial subscriber %s: %v", address, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	enc := json.NewEncoder(conn)
	if err := enc.Encode(msg); err != nil {
		return types.NewError(types.OperationFailed, "encode message for %s: %v", address, err)
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return types.NewError(types.OperationFailed, "read ack from %s: %v", address, err)
	}
	if line != "OK\n" && line != "OK" {
		return types.NewError(types.OperationFailed, "subscriber %s rejected: %s", address, line)
	}
	return nil
}
