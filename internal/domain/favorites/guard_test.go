package favorites

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalGuardSerializesPerOwner(t *testing.T) {
	ctx := context.Background()
	g := NewLocalGuard()

	release, err := g.Acquire(ctx, 1)
	require.NoError(t, err)

	// A different owner is not blocked.
	other, err := g.Acquire(ctx, 2)
	require.NoError(t, err)
	other()

	acquired := make(chan struct{})
	go func() {
		r, err := g.Acquire(ctx, 1)
		if err == nil {
			r()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire must wait for release")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	release() // idempotent
	<-acquired

	g.mu.Lock()
	defer g.mu.Unlock()
	require.Empty(t, g.owners)
}

func TestLocalGuardHonoursContext(t *testing.T) {
	g := NewLocalGuard()
	release, err := g.Acquire(context.Background(), 1)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = g.Acquire(ctx, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
