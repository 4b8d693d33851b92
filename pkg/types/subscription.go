package types

import "sync"

// Subscription is a registered interest in changes, RPCs, actions,
// event notifications, or operational-data requests (§3
// "Subscription"). Owned by the Subscription Registry; referenced
// weakly by in-flight Commit Contexts.
type Subscription struct {
	ID              string
	Module          string
	XPath           string // empty denotes "the whole module"
	Kind            SubscriptionKind
	DeliveryAddress string
	DeliveryID      string
	Priority        int
	EventFilter     EventFilter
	EnablesRunning  bool
}

// WantsVerify reports whether this subscription should receive VERIFY events.
func (s *Subscription) WantsVerify() bool {
	return s.EventFilter == FilterVerify || s.EventFilter == FilterBoth
}

// WantsNotify reports whether this subscription should receive NOTIFY events.
func (s *Subscription) WantsNotify() bool {
	return s.EventFilter == FilterNotify || s.EventFilter == FilterBoth
}

// CommitContext is the retained post-commit snapshot kept alive until
// every notified subscriber acknowledges (§3 "Commit Context", §4.8
// "Commit Context lifecycle").
type CommitContext struct {
	ID                 string
	OriginatingSession  string
	FilesOpened         []string
	PreviousTrees       map[string]*Node // per module
	Diffs               map[string][]DiffEntry
	GeneratedChanges    map[string][]DiffEntry

	mu            sync.Mutex
	waiters       int
	ReleaseFunc   func(id string)
}

// SetWaiters initializes the number of outstanding subscriber
// acknowledgments this context expects.
func (c *CommitContext) SetWaiters(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waiters = n
	if n == 0 && c.ReleaseFunc != nil {
		c.ReleaseFunc(c.ID)
	}
}

// Acknowledge decrements the waiters counter; when it reaches zero the
// context's ReleaseFunc (registered by the commit engine) is invoked
// exactly once.
func (c *CommitContext) Acknowledge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.waiters <= 0 {
		return
	}
	c.waiters--
	if c.waiters == 0 && c.ReleaseFunc != nil {
		c.ReleaseFunc(c.ID)
		c.ReleaseFunc = nil
	}
}

// Waiters reports the current outstanding acknowledgment count.
func (c *CommitContext) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiters
}
