package subscription

import (
	"context"
	"sort"
	"sync"

	"github.com/cuemby/yangstore/pkg/types"
)

// Registry is the Subscription Registry (spec §4.9): an in-memory
// index of Subscriptions keyed by module, consulted by the Commit
// Engine and the Operational-Data Broker through narrow interfaces
// (commit.SubscriptionSource, opdata.SubscriptionSource).
type Registry struct {
	mu       sync.RWMutex
	byModule map[string][]types.Subscription
	dialer   Dialer
}

// New builds an empty Registry. dialer delivers VERIFY/NOTIFY events
// to a subscription's out-of-process DeliveryAddress.
func New(dialer Dialer) *Registry {
	return &Registry{byModule: make(map[string][]types.Subscription), dialer: dialer}
}

// Register adds sub to the index, grounded on the teacher's
// pkg/events.Broker.Subscribe shape generalized from one anonymous
// channel per subscriber to a durable, addressable record.
func (r *Registry) Register(sub types.Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byModule[sub.Module] = append(r.byModule[sub.Module], sub)
}

// Unregister removes the subscription with the given id from module,
// reporting whether one was found.
func (r *Registry) Unregister(module, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := r.byModule[module]
	for i, s := range subs {
		if s.ID == id {
			r.byModule[module] = append(subs[:i], subs[i+1:]...)
			return true
		}
	}
	return false
}

// Snapshot returns a defensive copy of module's subscriptions, sorted
// descending by priority with stable ties (spec §4.9 "descending
// priority; ties broken... stably").
func (r *Registry) Snapshot(module string) []types.Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subs := append([]types.Subscription(nil), r.byModule[module]...)
	sort.SliceStable(subs, func(i, j int) bool { return subs[i].Priority > subs[j].Priority })
	return subs
}

// ByKind returns module's subscriptions matching kind, in Snapshot
// order, used by the Operational-Data Broker's provider fan-out.
func (r *Registry) ByKind(module string, kind types.SubscriptionKind) []types.Subscription {
	var out []types.Subscription
	for _, s := range r.Snapshot(module) {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// CountByKind reports the live subscription count per kind, across
// all modules, for the engine's exposed Stats (pkg/metrics.Stats).
func (r *Registry) CountByKind() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int)
	for _, subs := range r.byModule {
		for _, s := range subs {
			counts[kindName(s.Kind)]++
		}
	}
	return counts
}

func kindName(k types.SubscriptionKind) string {
	switch k {
	case types.ModuleChange:
		return "module_change"
	case types.SubtreeChange:
		return "subtree_change"
	case types.RPC:
		return "rpc"
	case types.Action:
		return "action"
	case types.EventNotification:
		return "event_notification"
	case types.OperationalData:
		return "operational_data"
	case types.ModuleInstall:
		return "module_install"
	case types.FeatureEnable:
		return "feature_enable"
	default:
		return "unknown"
	}
}

// Deliver sends a phase event for sub over the registry's Dialer and
// waits for the subscriber's acknowledgment, satisfying
// commit.Notifier.
func (r *Registry) Deliver(ctx context.Context, phase, commitID, module string, sub types.Subscription, diffs []types.DiffEntry) error {
	return r.dialer.Send(ctx, sub.DeliveryAddress, Message{
		Phase:          phase,
		CommitID:       commitID,
		Module:         module,
		SubscriptionID: sub.DeliveryID,
		XPath:          sub.XPath,
		Diffs:          wireDiffs(diffs),
	})
}

func wireDiffs(diffs []types.DiffEntry) []DiffWire {
	out := make([]DiffWire, 0, len(diffs))
	for _, d := range diffs {
		w := DiffWire{Op: d.Op.String(), XPath: d.XPath}
		if d.Old != nil {
			s := d.Old.String()
			w.Old = &s
		}
		if d.New != nil {
			s := d.New.String()
			w.New = &s
		}
		out = append(out, w)
	}
	return out
}
