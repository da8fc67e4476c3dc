package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	contractx "github.com/cloudcraft-labs/archadvisor/agent/contract"
)

func (g *sessionGate) waiting(sessionID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	slot, ok := g.slots[sessionID]
	if !ok {
		return 0
	}
	return len(slot.waiters)
}

func waitForGate(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSessionGateGrantsSlotInArrivalOrder(t *testing.T) {
	t.Parallel()

	g := newSessionGate(3)
	first, err := g.acquire(context.Background(), "s1")
	if err != nil {
		t.Fatalf("acquire() error = %v", err)
	}

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 1; i <= 3; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := g.acquire(context.Background(), "s1")
			if err != nil {
				t.Errorf("waiter %d: acquire() error = %v", i, err)
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			release()
		}()
		// Each waiter must be queued before the next one starts so the
		// expected arrival order is fixed.
		waitForGate(t, func() bool { return g.waiting("s1") == i })
	}

	first()
	wg.Wait()

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("expected waiters served in arrival order, got %v", order)
	}
	if g.waiting("s1") != 0 {
		t.Fatalf("expected empty queue after drain, got %d", g.waiting("s1"))
	}
}

func TestSessionGateRejectsBeyondQueueDepth(t *testing.T) {
	t.Parallel()

	g := newSessionGate(0)
	release, err := g.acquire(context.Background(), "s1")
	if err != nil {
		t.Fatalf("acquire() error = %v", err)
	}

	if _, err := g.acquire(context.Background(), "s1"); !errors.Is(err, contractx.ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy, got %v", err)
	}

	release()
	release2, err := g.acquire(context.Background(), "s1")
	if err != nil {
		t.Fatalf("acquire() after release error = %v", err)
	}
	release2()
}

func TestSessionGateAbandonedWaiterFreesQueueSpot(t *testing.T) {
	t.Parallel()

	g := newSessionGate(1)
	release, err := g.acquire(context.Background(), "s1")
	if err != nil {
		t.Fatalf("acquire() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := g.acquire(ctx, "s1")
		errc <- err
	}()
	waitForGate(t, func() bool { return g.waiting("s1") == 1 })

	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	waitForGate(t, func() bool { return g.waiting("s1") == 0 })

	// The abandoned spot is reusable.
	done := make(chan struct{})
	go func() {
		release2, err := g.acquire(context.Background(), "s1")
		if err != nil {
			t.Errorf("acquire() after abandon error = %v", err)
		} else {
			release2()
		}
		close(done)
	}()
	waitForGate(t, func() bool { return g.waiting("s1") == 1 })
	release()
	<-done
}
