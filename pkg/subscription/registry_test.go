package subscription

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/yangstore/pkg/types"
)

func TestRegisterAndSnapshotOrdersByPriorityDescending(t *testing.T) {
	r := New(UnixDialer{})
	r.Register(types.Subscription{ID: "low", Module: "m1", Priority: 1})
	r.Register(types.Subscription{ID: "high", Module: "m1", Priority: 10})
	r.Register(types.Subscription{ID: "mid", Module: "m1", Priority: 5})

	snap := r.Snapshot("m1")
	if len(snap) != 3 {
		t.Fatalf("expected 3 subscriptions, got %d", len(snap))
	}
	if snap[0].ID != "high" || snap[1].ID != "mid" || snap[2].ID != "low" {
		t.Fatalf("expected priority-descending order, got %v", []string{snap[0].ID, snap[1].ID, snap[2].ID})
	}
}

func TestSnapshotIsStableForEqualPriority(t *testing.T) {
	r := New(UnixDialer{})
	r.Register(types.Subscription{ID: "a", Module: "m1", Priority: 5})
	r.Register(types.Subscription{ID: "b", Module: "m1", Priority: 5})
	r.Register(types.Subscription{ID: "c", Module: "m1", Priority: 5})

	snap := r.Snapshot("m1")
	if snap[0].ID != "a" || snap[1].ID != "b" || snap[2].ID != "c" {
		t.Fatalf("expected registration order preserved among ties, got %v", snap)
	}
}

func TestUnregisterRemovesSubscription(t *testing.T) {
	r := New(UnixDialer{})
	r.Register(types.Subscription{ID: "a", Module: "m1"})
	r.Register(types.Subscription{ID: "b", Module: "m1"})

	if !r.Unregister("m1", "a") {
		t.Fatal("expected Unregister to report found")
	}
	snap := r.Snapshot("m1")
	if len(snap) != 1 || snap[0].ID != "b" {
		t.Fatalf("expected only b to remain, got %v", snap)
	}
	if r.Unregister("m1", "a") {
		t.Fatal("expected second Unregister of the same id to report not found")
	}
}

func TestByKindFiltersAcrossSubscriptions(t *testing.T) {
	r := New(UnixDialer{})
	r.Register(types.Subscription{ID: "a", Module: "m1", Kind: types.OperationalData})
	r.Register(types.Subscription{ID: "b", Module: "m1", Kind: types.ModuleChange})

	out := r.ByKind("m1", types.OperationalData)
	if len(out) != 1 || out[0].ID != "a" {
		t.Fatalf("expected only the operational-data subscription, got %v", out)
	}
}

func TestCountByKindTallies(t *testing.T) {
	r := New(UnixDialer{})
	r.Register(types.Subscription{ID: "a", Module: "m1", Kind: types.RPC})
	r.Register(types.Subscription{ID: "b", Module: "m2", Kind: types.RPC})
	r.Register(types.Subscription{ID: "c", Module: "m1", Kind: types.Action})

	counts := r.CountByKind()
	if counts["rpc"] != 2 {
		t.Fatalf("expected 2 rpc subscriptions, got %d", counts["rpc"])
	}
	if counts["action"] != 1 {
		t.Fatalf("expected 1 action subscription, got %d", counts["action"])
	}
}

func TestDeliverSendsMessageAndAwaitsAck(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "sub.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	var received Message
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = json.NewDecoder(conn).Decode(&received)
		_, _ = conn.Write([]byte("OK\n"))
	}()

	r := New(UnixDialer{})
	sub := types.Subscription{ID: "s1", Module: "example-module", DeliveryAddress: sockPath, DeliveryID: "sub-1", XPath: "/mtu"}
	diffs := []types.DiffEntry{{Op: types.Created, XPath: "/mtu", New: &types.Value{Kind: types.KindUint32, Uint: 1500}}}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Deliver(ctx, "VERIFY", "commit-1", "example-module", sub, diffs); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	wg.Wait()

	if received.Phase != "VERIFY" || received.CommitID != "commit-1" || received.SubscriptionID != "sub-1" {
		t.Fatalf("unexpected message received: %+v", received)
	}
	if len(received.Diffs) != 1 || received.Diffs[0].Op != "CREATED" {
		t.Fatalf("unexpected diffs in message: %+v", received.Diffs)
	}
}

func TestDeliverReportsSubscriberRejection(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "sub.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = bufio.NewReader(conn).ReadString('\n')
		_, _ = conn.Write([]byte("FAILED: validation error\n"))
	}()

	r := New(UnixDialer{})
	sub := types.Subscription{ID: "s1", Module: "example-module", DeliveryAddress: sockPath}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := r.Deliver(ctx, "VERIFY", "commit-1", "example-module", sub, nil); err == nil {
		t.Fatal("expected an error for a rejecting subscriber")
	}
}

func TestDeliverFailsWhenSocketMissing(t *testing.T) {
	r := New(UnixDialer{})
	sub := types.Subscription{ID: "s1", Module: "example-module", DeliveryAddress: filepath.Join(os.TempDir(), "nonexistent-yangstore.sock")}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := r.Deliver(ctx, "NOTIFY", "commit-1", "example-module", sub, nil); err == nil {
		t.Fatal("expected dial failure for a missing socket")
	}
}
