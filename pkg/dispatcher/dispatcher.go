package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/yangstore/pkg/log"
	"github.com/cuemby/yangstore/pkg/session"
	"github.com/cuemby/yangstore/pkg/types"
)

// Kind distinguishes the two ways a request contends for the
// engine-wide reader/writer lock: reads run concurrently with each
// other, commits run exclusively (spec §4.11).
type Kind int

const (
	Read Kind = iota
	Commit
)

// Work is the caller-supplied unit of dispatch: a closure over
// whatever session-bound operation the caller actually wants run,
// invoked with the engine-wide guard already held at the right
// sharing level.
type Work func(ctx context.Context) (interface{}, error)

// request is one bounded-queue entry.
type request struct {
	ctx       context.Context
	sessionID string
	kind      Kind
	work      Work
	result    chan Result
}

// Result is the outcome handed back to Submit's caller.
type Result struct {
	Value interface{}
	Err   error
}

// Dispatcher is the Request Dispatcher (spec §4.11): a bounded queue
// drained by a fixed pool of workers, each serializing dispatch for
// one session at a time and holding an engine-wide reader/writer lock
// around commit-vs-read exclusion.
type Dispatcher struct {
	queue      *queue
	engineLock sync.RWMutex

	sessMu    sync.Mutex
	sessLocks map[string]*sync.Mutex

	workers    int
	spinBase   int
	wakeWindow time.Duration

	wg      sync.WaitGroup
	stopped chan struct{}
}

// Config bounds the Dispatcher's queue and worker pool.
type Config struct {
	QueueCapacity int
	Workers       int
	SpinBase      int
	WakeWindow    time.Duration
}

// New builds a Dispatcher and starts its worker pool.
func New(cfg Config) *Dispatcher {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.SpinBase <= 0 {
		cfg.SpinBase = 32
	}
	if cfg.WakeWindow <= 0 {
		cfg.WakeWindow = 10 * time.Millisecond
	}

	d := &Dispatcher{
		queue:      newQueue(cfg.QueueCapacity),
		sessLocks:  make(map[string]*sync.Mutex),
		workers:    cfg.Workers,
		spinBase:   cfg.SpinBase,
		wakeWindow: cfg.WakeWindow,
		stopped:    make(chan struct{}),
	}

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.runWorker()
	}
	return d
}

// Submit enqueues work bound to sess under kind's sharing level and
// blocks until a worker has run it (or ctx is cancelled first). It is
// safe to call concurrently from many goroutines; the dispatcher
// itself serializes same-session dispatch.
func (d *Dispatcher) Submit(ctx context.Context, sess *session.Session, kind Kind, work Work) (interface{}, error) {
	req := &request{
		ctx:       ctx,
		sessionID: sess.ID,
		kind:      kind,
		work:      work,
		result:    make(chan Result, 1),
	}
	if !d.queue.Enqueue(req) {
		return nil, types.NewError(types.OperationFailed, "dispatcher stopped")
	}

	select {
	case res := <-req.result:
		return res.Value, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop drains the queue, lets in-flight work finish, and stops every
// worker. It does not cancel requests already dequeued.
func (d *Dispatcher) Stop() {
	close(d.stopped)
	d.queue.Stop()
	d.wg.Wait()
}

func (d *Dispatcher) runWorker() {
	defer d.wg.Done()

	spinLimit := d.spinBase
	maxSpin := d.spinBase * 64
	lastWake := time.Now()

	for {
		req, ok := d.queue.Dequeue(spinLimit)
		if !ok {
			return
		}

		now := time.Now()
		if now.Sub(lastWake) < d.wakeWindow {
			if spinLimit < maxSpin {
				spinLimit *= 2
			}
		} else if spinLimit > 1 {
			spinLimit /= 2
		}
		lastWake = now

		d.dispatch(req)
	}
}

// dispatch serializes same-session work via a per-session mutex and
// holds the engine-wide guard at the sharing level req.kind demands:
// a shared (RLock) guard for reads so many can run at once, an
// exclusive (Lock) guard for commits so no read observes a commit
// mid-flight (spec §4.11 invariants).
func (d *Dispatcher) dispatch(req *request) {
	sessLock := d.sessionLock(req.sessionID)
	sessLock.Lock()
	defer sessLock.Unlock()

	if req.kind == Commit {
		d.engineLock.Lock()
		defer d.engineLock.Unlock()
	} else {
		d.engineLock.RLock()
		defer d.engineLock.RUnlock()
	}

	value, err := req.work(req.ctx)
	if err != nil {
		log.WithComponent("dispatcher").Warn().Err(err).Str("session", req.sessionID).Msg("dispatched work failed")
	}
	req.result <- Result{Value: value, Err: err}
}

func (d *Dispatcher) sessionLock(id string) *sync.Mutex {
	d.sessMu.Lock()
	defer d.sessMu.Unlock()
	l, ok := d.sessLocks[id]
	if !ok {
		l = &sync.Mutex{}
		d.sessLocks[id] = l
	}
	return l
}

// ForgetSession drops the per-session mutex once a session ends, so
// the map doesn't grow unbounded across a long-lived daemon.
func (d *Dispatcher) ForgetSession(id string) {
	d.sessMu.Lock()
	defer d.sessMu.Unlock()
	delete(d.sessLocks, id)
}
