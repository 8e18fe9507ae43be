// Package memwatch samples heap usage and applies backpressure when a
// configured memory limit is crossed. Analysis passes consult the watcher
// as a gate before starting new files, and the cache registers a pressure
// callback to shed its write buffer.
package memwatch

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// DefaultInterval is the sampling period for the background watcher.
const DefaultInterval = 250 * time.Millisecond

// lowWaterFraction sets the hysteresis point: once tripped, the gate stays
// closed until usage drops below this fraction of the limit.
const lowWaterFraction = 0.8

// Watcher monitors heap usage against a soft limit.
// A zero limit disables the watcher entirely.
type Watcher struct {
	limit    uint64
	low      uint64
	interval time.Duration
	read     func() uint64

	mu         sync.Mutex
	over       bool
	gate       chan struct{}
	onPressure []func()

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a watcher with a limit in megabytes. A limit of zero or less
// returns a disabled watcher whose gate is always open.
func New(limitMB int) *Watcher {
	w := &Watcher{
		interval: DefaultInterval,
		read:     heapInUse,
		gate:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	close(w.gate)
	if limitMB > 0 {
		w.limit = uint64(limitMB) << 20
		w.low = uint64(float64(w.limit) * lowWaterFraction)
	}
	return w
}

func heapInUse() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc
}

// Enabled reports whether a limit is configured.
func (w *Watcher) Enabled() bool {
	return w.limit > 0
}

// OnPressure registers a callback fired once per limit crossing.
// Callbacks run outside the watcher lock and must not block.
func (w *Watcher) OnPressure(fn func()) {
	w.mu.Lock()
	w.onPressure = append(w.onPressure, fn)
	w.mu.Unlock()
}

// Pressured reports whether the watcher is currently above its limit.
func (w *Watcher) Pressured() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.over
}

// Start launches the background sampling loop. No-op when disabled.
func (w *Watcher) Start() {
	if !w.Enabled() {
		return
	}
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.done:
				return
			case <-ticker.C:
				w.sample()
			}
		}
	}()
}

// Stop terminates the sampling loop and opens the gate so no waiter is
// left blocked.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.over {
			w.over = false
			close(w.gate)
		}
		w.mu.Unlock()
	})
}

// Wait blocks while the watcher is above its limit. Returns immediately
// when the gate is open or the context is done.
func (w *Watcher) Wait(ctx context.Context) {
	w.mu.Lock()
	gate := w.gate
	w.mu.Unlock()

	select {
	case <-gate:
	case <-ctx.Done():
	}
}

// sample takes one usage reading and applies state transitions.
func (w *Watcher) sample() {
	used := w.read()

	w.mu.Lock()
	var fire []func()
	switch {
	case !w.over && used >= w.limit:
		w.over = true
		w.gate = make(chan struct{})
		fire = append(fire, w.onPressure...)
	case w.over && used <= w.low:
		w.over = false
		close(w.gate)
	}
	w.mu.Unlock()

	if len(fire) > 0 {
		for _, fn := range fire {
			fn()
		}
		// Collect freed buffers now so the next reading reflects the shed.
		runtime.GC()
	}
}
