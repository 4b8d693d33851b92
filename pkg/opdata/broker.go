package opdata

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/yangstore/pkg/datastore"
	"github.com/cuemby/yangstore/pkg/log"
	"github.com/cuemby/yangstore/pkg/session"
	"github.com/cuemby/yangstore/pkg/types"
)

// SubscriptionSource supplies the operational-data subscriptions
// registered against a module (pkg/subscription.Registry satisfies
// it).
type SubscriptionSource interface {
	ByKind(module string, kind types.SubscriptionKind) []types.Subscription
}

// Broker is the Operational-Data Broker (spec §4.10).
type Broker struct {
	transport ProviderTransport
	subs      SubscriptionSource
	timeout   time.Duration
}

// New builds a Broker that waits up to timeout for every registered
// provider to answer before resuming a suspended read with whatever
// arrived.
func New(transport ProviderTransport, subs SubscriptionSource, timeout time.Duration) *Broker {
	return &Broker{transport: transport, subs: subs, timeout: timeout}
}

// FetchModule suspends sess at WAITING_FOR_PROVIDER_DATA, fans a
// provider request for xpath (the whole module when empty) out to
// every OperationalData subscription on module, merges arriving
// responses into the session's working tree, and resumes at
// DATA_LOADED — by calling reenqueue with pending — either once every
// provider has answered or the broker's timeout elapses, whichever
// comes first. Nested containers/lists returned by a provider are not
// recursively fetched here; a later read over the merged subtree
// issues its own FetchModule call (spec §4.10 "issued lazily").
func (b *Broker) FetchModule(ctx context.Context, sess *session.Session, module, xpath string, pending session.PendingRequest, reenqueue func(session.PendingRequest)) {
	sess.SetState(types.WaitingForProviderData)
	sess.SetPendingRequest(pending)

	subs := b.subs.ByKind(module, types.OperationalData)
	if len(subs) == 0 {
		sess.SetState(types.DataLoaded)
		reenqueue(pending)
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	ws := sess.WorkingSet(sess.CurrentDatastore())
	info := ws.Peek(module)
	if info == nil {
		loaded, err := ws.GetOrLoad(ctx, module)
		if err != nil {
			log.WithComponent("opdata").Error().Err(err).Str("module", module).Msg("load working tree before operational-data merge")
			sess.SetState(types.DataLoaded)
			reenqueue(pending)
			return
		}
		info = loaded
	}

	results := make(chan *Response, len(subs))
	for _, sub := range subs {
		go func(sub types.Subscription) {
			resp, err := b.transport.Request(reqCtx, sub.DeliveryAddress, Request{Module: module, XPath: xpath})
			if err != nil {
				log.WithComponent("opdata").Warn().Err(err).Str("module", module).Str("subscription", sub.ID).Msg("provider request failed")
				results <- nil
				return
			}
			results <- resp
		}(sub)
	}

	var merged sync.Once
	finalize := func() {
		merged.Do(func() {
			sess.SetState(types.DataLoaded)
			reenqueue(pending)
		})
	}

	for i := 0; i < len(subs); i++ {
		select {
		case resp := <-results:
			if resp != nil {
				mergeResponse(info.Root, module, resp)
			}
		case <-reqCtx.Done():
			finalize()
			return
		}
	}
	finalize()
}

func mergeResponse(root *types.Node, module string, resp *Response) {
	for _, vw := range resp.Values {
		v, err := datastore.ValueFromPayload(vw.Kind, vw.Value, 0)
		if err != nil {
			log.WithComponent("opdata").Warn().Err(err).Str("xpath", vw.XPath).Msg("discarding malformed provider value")
			continue
		}
		op := &types.Operation{Module: module, Kind: types.OpSet, XPath: vw.XPath, Value: v}
		if err := session.ApplyOperation(root, module, op); err != nil {
			log.WithComponent("opdata").Warn().Err(err).Str("xpath", vw.XPath).Msg("discarding unappliable provider value")
		}
	}
}
