package arpworker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quaylabs/iprouter/internal/router"
	"github.com/stretchr/testify/require"
)

type countingRouter struct {
	ticks atomic.Int64
}

func (c *countingRouter) ARPTick(ctx context.Context) router.Outcome {
	c.ticks.Add(1)
	return router.OK()
}

func TestWorker_TicksEveryManagedRouter(t *testing.T) {
	a := &countingRouter{}
	b := &countingRouter{}
	w := New(map[string]Tickable{"a": a, "b": b}, WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	time.Sleep(55 * time.Millisecond)
	w.Stop()

	require.GreaterOrEqual(t, a.ticks.Load(), int64(3))
	require.GreaterOrEqual(t, b.ticks.Load(), int64(3))
}

type fatalRouter struct {
	ticks atomic.Int64
}

func (f *fatalRouter) ARPTick(ctx context.Context) router.Outcome {
	f.ticks.Add(1)
	return router.Fatal(router.ErrPendingEntryCorrupt)
}

func TestWorker_SurfacesFatalOutcomeViaOnFatal(t *testing.T) {
	fr := &fatalRouter{}
	var gotName string
	var gotErr error
	var mu sync.Mutex
	w := New(map[string]Tickable{"broken": fr}, WithInterval(10*time.Millisecond),
		WithOnFatal(func(name string, err error) {
			mu.Lock()
			defer mu.Unlock()
			gotName, gotErr = name, err
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	time.Sleep(25 * time.Millisecond)
	w.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "broken", gotName)
	require.ErrorIs(t, gotErr, router.ErrPendingEntryCorrupt)
}

func TestWorker_NoFurtherTicksAfterStop(t *testing.T) {
	a := &countingRouter{}
	w := New(map[string]Tickable{"a": a}, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	w.Stop()
	after := a.ticks.Load()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, after, a.ticks.Load(), "no ticks fire after Stop")
}
