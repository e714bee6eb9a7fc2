package favorites

import (
	"context"
	"sync"
)

// LocalGuard serializes provisioning per owner within one process.
type LocalGuard struct {
	mu     sync.Mutex
	owners map[int64]*ownerSlot
}

type ownerSlot struct {
	sem  chan struct{}
	refs int
}

func NewLocalGuard() *LocalGuard {
	return &LocalGuard{owners: make(map[int64]*ownerSlot)}
}

// Acquire blocks until ownerID's slot is free or ctx is done.
func (g *LocalGuard) Acquire(ctx context.Context, ownerID int64) (func(), error) {
	g.mu.Lock()
	slot, ok := g.owners[ownerID]
	if !ok {
		slot = &ownerSlot{sem: make(chan struct{}, 1)}
		g.owners[ownerID] = slot
	}
	slot.refs++
	g.mu.Unlock()

	select {
	case slot.sem <- struct{}{}:
	case <-ctx.Done():
		g.drop(ownerID, slot)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.sem
			g.drop(ownerID, slot)
		})
	}, nil
}

func (g *LocalGuard) drop(ownerID int64, slot *ownerSlot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(g.owners, ownerID)
	}
}

var _ ProvisionGuard = (*LocalGuard)(nil)
