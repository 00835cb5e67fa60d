// Package arpworker drives the ARP resolution subsystem's background
// half: a once-per-second tick fanned out, independently
// of inbound frame processing, across every managed router instance.
package arpworker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/quaylabs/iprouter/internal/router"
)

// Tickable is anything that can advance its ARP state by one tick; every
// *router.Router satisfies this. A Fatal outcome means that router's
// internal state is corrupt and the process should stop relying on it.
type Tickable interface {
	ARPTick(ctx context.Context) router.Outcome
}

// Worker runs ARPTick once per second for a fixed set of routers, the same
// ticker-plus-done-channel shape used for other periodic senders in this
// codebase. Per-router ticks within one sweep are fanned out across a
// bounded pool (github.com/alitto/pond/v2) so one slow router never
// delays another's tick.
type Worker struct {
	routers  map[string]Tickable
	interval time.Duration
	pool     pond.Pool
	log      *slog.Logger
	onFatal  func(routerName string, err error)

	done chan struct{}
	wg   sync.WaitGroup
}

// Option configures a Worker.
type Option func(*Worker)

// WithInterval overrides the tick cadence (default 1s).
func WithInterval(d time.Duration) Option {
	return func(w *Worker) { w.interval = d }
}

// WithLogger overrides the worker's logger.
func WithLogger(log *slog.Logger) Option {
	return func(w *Worker) { w.log = log }
}

// WithConcurrency overrides the fan-out pool size (default: one slot per
// managed router, at least one).
func WithConcurrency(n int) Option {
	return func(w *Worker) { w.pool = pond.NewPool(n) }
}

// WithOnFatal registers a callback invoked, outside the ARP mutex, whenever
// a managed router's ARPTick reports a fatal invariant violation. The
// Worker itself never exits the process; it only logs and, if this hook is
// set, hands the caller the chance to (e.g. cancel its context and shut
// down).
func WithOnFatal(fn func(routerName string, err error)) Option {
	return func(w *Worker) { w.onFatal = fn }
}

// New builds a Worker over routers, keyed by name for logging.
func New(routers map[string]Tickable, opts ...Option) *Worker {
	w := &Worker{
		routers:  routers,
		interval: time.Second,
		log:      slog.Default(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.pool == nil {
		n := len(routers)
		if n < 1 {
			n = 1
		}
		w.pool = pond.NewPool(n)
	}
	return w
}

// Start launches the ticking goroutine. Shutdown is cooperative: Stop
// signals between ticks and waits for the in-flight sweep, if any, to
// finish -- no ICMP is emitted and no new ticks start once Stop
// has been called.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.tickAll(ctx)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop requests shutdown and waits for the worker goroutine to exit.
func (w *Worker) Stop() {
	close(w.done)
	w.wg.Wait()
}

func (w *Worker) tickAll(ctx context.Context) {
	var sweep sync.WaitGroup
	for name, r := range w.routers {
		name, r := name, r
		sweep.Add(1)
		w.pool.Submit(func() {
			defer sweep.Done()
			defer func() {
				if rec := recover(); rec != nil {
					w.log.Error("arp tick panicked", "router", name, "panic", rec)
				}
			}()
			out := r.ARPTick(ctx)
			if out.Kind == router.KindFatal {
				w.log.Error("arp tick hit a fatal invariant violation", "router", name, "error", out.Err)
				if w.onFatal != nil {
					w.onFatal(name, out.Err)
				}
			}
		})
	}
	sweep.Wait()
}
