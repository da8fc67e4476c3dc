package orchestrator

import (
	"context"
	"fmt"
	"sync"

	contractx "github.com/cloudcraft-labs/archadvisor/agent/contract"
)

// sessionGate serializes message handling per session. One message holds
// the slot; up to queueDepth more may wait; anything beyond that is
// rejected immediately with ErrSessionBusy. Waiters are woken from an
// explicit queue so the slot is granted in arrival order.
type sessionGate struct {
	mu         sync.Mutex
	queueDepth int
	slots      map[string]*gateSlot
}

type gateSlot struct {
	busy    bool
	holders int
	waiters []chan struct{}
}

func newSessionGate(queueDepth int) *sessionGate {
	if queueDepth < 0 {
		queueDepth = 0
	}
	return &sessionGate{
		queueDepth: queueDepth,
		slots:      make(map[string]*gateSlot),
	}
}

// acquire blocks until the session's slot is free or ctx is done. The
// returned release must be called exactly once.
func (g *sessionGate) acquire(ctx context.Context, sessionID string) (func(), error) {
	g.mu.Lock()
	slot, ok := g.slots[sessionID]
	if !ok {
		slot = &gateSlot{}
		g.slots[sessionID] = slot
	}
	if slot.holders > g.queueDepth {
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: session %s already has %d queued messages",
			contractx.ErrSessionBusy, sessionID, g.queueDepth)
	}
	slot.holders++
	if !slot.busy {
		slot.busy = true
		g.mu.Unlock()
		return func() { g.release(sessionID) }, nil
	}

	turn := make(chan struct{})
	slot.waiters = append(slot.waiters, turn)
	g.mu.Unlock()

	select {
	case <-turn:
		return func() { g.release(sessionID) }, nil
	case <-ctx.Done():
		g.abandon(sessionID, turn)
		return nil, ctx.Err()
	}
}

// release hands the slot to the oldest waiter, or frees it when nobody
// is waiting. Caller must hold the slot.
func (g *sessionGate) release(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handOff(sessionID)
}

func (g *sessionGate) handOff(sessionID string) {
	slot, ok := g.slots[sessionID]
	if !ok {
		return
	}
	slot.holders--
	if len(slot.waiters) > 0 {
		next := slot.waiters[0]
		slot.waiters = slot.waiters[1:]
		close(next)
		return
	}
	slot.busy = false
	if slot.holders == 0 {
		delete(g.slots, sessionID)
	}
}

// abandon removes a waiter whose context expired. If its turn was granted
// in the race window, the slot is passed straight to the next waiter.
func (g *sessionGate) abandon(sessionID string, turn chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	slot, ok := g.slots[sessionID]
	if !ok {
		return
	}
	for i, w := range slot.waiters {
		if w == turn {
			slot.waiters = append(slot.waiters[:i], slot.waiters[i+1:]...)
			slot.holders--
			if slot.holders == 0 && !slot.busy {
				delete(g.slots, sessionID)
			}
			return
		}
	}
	g.handOff(sessionID)
}
