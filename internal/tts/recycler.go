package tts

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/BlackPool25/corereader-go/internal/metrics"
)

// ModelBuilder constructs a fresh Model, used by the Session Recycler to
// build a replacement in the background.
type ModelBuilder func(ctx context.Context) (Model, error)

// Recycler tracks sentences synthesized since the last rebuild and, once a
// threshold is reached, builds a replacement model on a dedicated worker
// (never the synthesis worker) and atomically swaps it into the
// Synthesizer. This bounds memory/state drift on long streams without ever
// stalling the synthesis path.
type Recycler struct {
	synth     *Synthesizer
	build     ModelBuilder
	threshold int64

	sinceRecycle int64

	mu       sync.Mutex
	building bool
	pending  chan modelBuildResult

	jobs chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

type modelBuildResult struct {
	model Model
	err   error
}

// NewRecycler creates a recycler with the given rebuild threshold (in
// sentences synthesized). threshold <= 0 disables recycling.
func NewRecycler(synth *Synthesizer, build ModelBuilder, threshold int) *Recycler {
	r := &Recycler{
		synth:     synth,
		build:     build,
		threshold: int64(threshold),
		jobs:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	if r.threshold > 0 {
		r.wg.Add(1)
		go r.runBuilder()
	}
	return r
}

// NotifySynthesized implements RecycleNotifier. Called by the Synthesizer
// worker after every successful synthesis.
func (r *Recycler) NotifySynthesized() {
	if r.threshold <= 0 {
		return
	}

	n := atomic.AddInt64(&r.sinceRecycle, 1)
	if n < r.threshold {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending != nil {
		select {
		case res := <-r.pending:
			r.pending = nil
			r.building = false
			if res.err != nil {
				// Background build failed; rebuild synchronously before
				// returning so the live session is never left stale.
				if model, err := r.build(context.Background()); err == nil {
					r.synth.Swap(model)
					metrics.RecycleTotal.Inc()
				}
			} else {
				r.synth.Swap(res.model)
				metrics.RecycleTotal.Inc()
			}
			atomic.StoreInt64(&r.sinceRecycle, 0)
		default:
			// Background build still in flight; leave live session in place
			// and keep counting, per spec: swap only when the pending build
			// is ready.
		}
		return
	}

	if !r.building {
		r.building = true
		r.pending = make(chan modelBuildResult, 1)
		atomic.StoreInt64(&r.sinceRecycle, 0)
		select {
		case r.jobs <- struct{}{}:
		default:
		}
	}
}

func (r *Recycler) runBuilder() {
	defer r.wg.Done()
	for {
		select {
		case <-r.jobs:
			r.mu.Lock()
			resultCh := r.pending
			r.mu.Unlock()
			if resultCh == nil {
				continue
			}
			model, err := r.build(context.Background())
			resultCh <- modelBuildResult{model: model, err: err}
		case <-r.done:
			return
		}
	}
}

// Close stops the background builder.
func (r *Recycler) Close() {
	close(r.done)
	r.wg.Wait()
}
