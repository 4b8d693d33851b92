package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/yangstore/pkg/session"
	"github.com/cuemby/yangstore/pkg/types"
)

func newTestSession(id string) *session.Session {
	return session.New(id, types.Credentials{UserID: id}, types.Running, nil, nil, nil)
}

func TestSubmitRunsWorkAndReturnsResult(t *testing.T) {
	d := New(Config{Workers: 2})
	defer d.Stop()

	sess := newTestSession("s1")
	val, err := d.Submit(context.Background(), sess, Read, func(ctx context.Context) (interface{}, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 42 {
		t.Fatalf("expected 42, got %v", val)
	}
}

func TestSubmitPropagatesWorkError(t *testing.T) {
	d := New(Config{Workers: 2})
	defer d.Stop()

	sess := newTestSession("s1")
	wantErr := types.NewError(types.OperationFailed, "boom")
	_, err := d.Submit(context.Background(), sess, Read, func(ctx context.Context) (interface{}, error) {
		return nil, wantErr
	})
	if err != wantErr {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
}

func TestSameSessionRequestsNeverRunConcurrently(t *testing.T) {
	d := New(Config{Workers: 8})
	defer d.Stop()

	sess := newTestSession("shared")
	var active int32
	var maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Submit(context.Background(), sess, Read, func(ctx context.Context) (interface{}, error) {
				n := atomic.AddInt32(&active, 1)
				for {
					cur := atomic.LoadInt32(&maxActive)
					if n <= cur || atomic.CompareAndSwapInt32(&maxActive, cur, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil, nil
			})
		}()
	}
	wg.Wait()

	if atomic.LoadInt32(&maxActive) != 1 {
		t.Fatalf("expected at most 1 concurrent dispatch for the same session, saw %d", maxActive)
	}
}

func TestDifferentSessionsRunConcurrently(t *testing.T) {
	d := New(Config{Workers: 8})
	defer d.Stop()

	const n = 6
	var active int32
	var maxActive int32
	release := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		sess := newTestSession(string(rune('a' + i)))
		wg.Add(1)
		go func(sess *session.Session) {
			defer wg.Done()
			d.Submit(context.Background(), sess, Read, func(ctx context.Context) (interface{}, error) {
				cur := atomic.AddInt32(&active, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if cur <= m || atomic.CompareAndSwapInt32(&maxActive, m, cur) {
						break
					}
				}
				<-release
				atomic.AddInt32(&active, -1)
				return nil, nil
			})
		}(sess)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if atomic.LoadInt32(&maxActive) < 2 {
		t.Fatalf("expected distinct sessions to dispatch concurrently, max observed %d", maxActive)
	}
}

func TestCommitExcludesConcurrentReads(t *testing.T) {
	d := New(Config{Workers: 8})
	defer d.Stop()

	var inCommit int32
	var violation int32
	commitStarted := make(chan struct{})
	releaseCommit := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sess := newTestSession("writer")
		d.Submit(context.Background(), sess, Commit, func(ctx context.Context) (interface{}, error) {
			atomic.StoreInt32(&inCommit, 1)
			close(commitStarted)
			<-releaseCommit
			atomic.StoreInt32(&inCommit, 0)
			return nil, nil
		})
	}()

	<-commitStarted

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess := newTestSession(string(rune('r' + i)))
			d.Submit(context.Background(), sess, Read, func(ctx context.Context) (interface{}, error) {
				if atomic.LoadInt32(&inCommit) == 1 {
					atomic.StoreInt32(&violation, 1)
				}
				return nil, nil
			})
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(releaseCommit)
	wg.Wait()

	if atomic.LoadInt32(&violation) == 1 {
		t.Fatal("a read observed an in-flight commit")
	}
}

func TestStopAfterSubmittedRequestsRunStopsWorkers(t *testing.T) {
	d := New(Config{Workers: 2})
	sess := newTestSession("s1")

	var ran int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Submit(context.Background(), sess, Read, func(ctx context.Context) (interface{}, error) {
				atomic.AddInt32(&ran, 1)
				return nil, nil
			})
		}()
	}
	wg.Wait()
	d.Stop()

	if atomic.LoadInt32(&ran) != 4 {
		t.Fatalf("expected all 4 requests to run before stop, got %d", ran)
	}
}

func TestForgetSessionRemovesMutex(t *testing.T) {
	d := New(Config{Workers: 1})
	defer d.Stop()

	sess := newTestSession("ephemeral")
	d.Submit(context.Background(), sess, Read, func(ctx context.Context) (interface{}, error) {
		return nil, nil
	})

	d.ForgetSession(sess.ID)

	d.sessMu.Lock()
	_, exists := d.sessLocks[sess.ID]
	d.sessMu.Unlock()
	if exists {
		t.Fatal("expected session mutex to be forgotten")
	}
}
