package opdata

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/yangstore/pkg/session"
	"github.com/cuemby/yangstore/pkg/types"
)

type fakeLoader struct{}

func (fakeLoader) Load(ctx context.Context, module string, ds types.Datastore, owner string) (*types.DataInfo, error) {
	return &types.DataInfo{Module: module, Root: types.NewNode(module, module), LastLoad: time.Now()}, nil
}
func (fakeLoader) Mtime(module string, ds types.Datastore) (time.Time, error) { return time.Time{}, nil }

type fakeSubs struct{ subs []types.Subscription }

func (f fakeSubs) ByKind(module string, kind types.SubscriptionKind) []types.Subscription {
	var out []types.Subscription
	for _, s := range f.subs {
		if s.Module == module && s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

type fakeTransport struct {
	mu        sync.Mutex
	responses map[string]*Response
	delay     map[string]time.Duration
	err       map[string]error
}

func (f *fakeTransport) Request(ctx context.Context, address string, req Request) (*Response, error) {
	f.mu.Lock()
	delay := f.delay[address]
	err := f.err[address]
	resp := f.responses[address]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func newTestSession() *session.Session {
	return session.New("sess-1", types.Credentials{UserID: "u1"}, types.Running, fakeLoader{}, nil, nil)
}

func TestFetchModuleMergesProviderResponses(t *testing.T) {
	sess := newTestSession()
	transport := &fakeTransport{
		responses: map[string]*Response{
			"/tmp/prov1.sock": {Values: []ValueWire{{XPath: "/mtu", Kind: "uint32", Value: "1500"}}},
		},
	}
	subs := fakeSubs{subs: []types.Subscription{
		{ID: "p1", Module: "example-module", Kind: types.OperationalData, DeliveryAddress: "/tmp/prov1.sock"},
	}}
	broker := New(transport, subs, time.Second)

	var reenqueued session.PendingRequest
	var wg sync.WaitGroup
	wg.Add(1)
	broker.FetchModule(context.Background(), sess, "example-module", "", "req-1", func(p session.PendingRequest) {
		reenqueued = p
		wg.Done()
	})
	wg.Wait()

	if sess.State() != types.DataLoaded {
		t.Fatalf("expected session state DATA_LOADED, got %v", sess.State())
	}
	if reenqueued != "req-1" {
		t.Fatalf("expected original request reenqueued, got %v", reenqueued)
	}

	info := sess.WorkingSet(types.Running).Peek("example-module")
	leaf := info.Root.FindChild("mtu")
	if leaf == nil || leaf.Value == nil || leaf.Value.Uint != 1500 {
		t.Fatalf("expected mtu=1500 merged into working tree, got %+v", leaf)
	}
}

func TestFetchModuleWithNoSubscriptionsResumesImmediately(t *testing.T) {
	sess := newTestSession()
	broker := New(&fakeTransport{}, fakeSubs{}, time.Second)

	called := false
	broker.FetchModule(context.Background(), sess, "example-module", "", "req-1", func(p session.PendingRequest) {
		called = true
	})

	if !called {
		t.Fatal("expected immediate reenqueue when no providers are registered")
	}
	if sess.State() != types.DataLoaded {
		t.Fatalf("expected DATA_LOADED, got %v", sess.State())
	}
}

func TestFetchModuleTimesOutWithPartialData(t *testing.T) {
	sess := newTestSession()
	transport := &fakeTransport{
		responses: map[string]*Response{
			"/tmp/fast.sock": {Values: []ValueWire{{XPath: "/mtu", Kind: "uint32", Value: "1500"}}},
		},
		delay: map[string]time.Duration{
			"/tmp/slow.sock": 5 * time.Second,
		},
	}
	subs := fakeSubs{subs: []types.Subscription{
		{ID: "fast", Module: "example-module", Kind: types.OperationalData, DeliveryAddress: "/tmp/fast.sock"},
		{ID: "slow", Module: "example-module", Kind: types.OperationalData, DeliveryAddress: "/tmp/slow.sock"},
	}}
	broker := New(transport, subs, 50*time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(1)
	start := time.Now()
	broker.FetchModule(context.Background(), sess, "example-module", "", "req-1", func(p session.PendingRequest) {
		wg.Done()
	})
	wg.Wait()
	elapsed := time.Since(start)

	if elapsed > 2*time.Second {
		t.Fatalf("expected broker to resume near its timeout, took %v", elapsed)
	}
	if sess.State() != types.DataLoaded {
		t.Fatalf("expected DATA_LOADED after timeout, got %v", sess.State())
	}
}

func TestFetchModuleDiscardsErrorResponseButStillResumes(t *testing.T) {
	sess := newTestSession()
	transport := &fakeTransport{
		err: map[string]error{"/tmp/broken.sock": context.DeadlineExceeded},
	}
	subs := fakeSubs{subs: []types.Subscription{
		{ID: "broken", Module: "example-module", Kind: types.OperationalData, DeliveryAddress: "/tmp/broken.sock"},
	}}
	broker := New(transport, subs, time.Second)

	done := make(chan struct{})
	broker.FetchModule(context.Background(), sess, "example-module", "", "req-1", func(p session.PendingRequest) {
		close(done)
	})
	<-done

	if sess.State() != types.DataLoaded {
		t.Fatalf("expected DATA_LOADED even when the only provider errors, got %v", sess.State())
	}
}
