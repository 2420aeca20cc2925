package tts

import (
	"context"
	"sync"
	"time"

	"github.com/BlackPool25/corereader-go/internal/metrics"
)

// SampleRate is the fixed output sample rate of every synthesis backend.
const SampleRate = 24000

// Model is the opaque acoustic model boundary: a single blocking call that
// turns one sentence into float32 PCM samples at SampleRate. Implementations
// are not assumed to be thread-safe; callers must serialize access (see
// Synthesizer below).
type Model interface {
	Synthesize(ctx context.Context, sentence, voice string, speed float64) ([]float32, error)
	Close() error
}

// RecycleNotifier is notified after every successful synthesis so the
// Session Recycler can track its rebuild-interval counter.
type RecycleNotifier interface {
	NotifySynthesized()
}

// synthJob is one unit of work submitted to the dedicated synthesis worker.
type synthJob struct {
	ctx      context.Context
	sentence string
	voice    string
	speed    float64
	resultCh chan synthResult
}

type synthResult struct {
	samples []float32
	err     error
}

// Synthesizer serializes all calls to a Model onto a single dedicated
// goroutine, mirroring a single-worker executor: the underlying model is
// CPU-bound and not guaranteed reentrant, so concurrency is fixed at 1.
type Synthesizer struct {
	jobs    chan synthJob
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.RWMutex
	model   Model
	recycle RecycleNotifier
}

// NewSynthesizer starts the dedicated worker over model. recycle may be nil.
func NewSynthesizer(model Model, recycle RecycleNotifier) *Synthesizer {
	s := &Synthesizer{
		jobs:    make(chan synthJob),
		done:    make(chan struct{}),
		model:   model,
		recycle: recycle,
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *Synthesizer) run() {
	defer s.wg.Done()
	for {
		select {
		case job := <-s.jobs:
			s.mu.RLock()
			model := s.model
			s.mu.RUnlock()

			start := time.Now()
			samples, err := model.Synthesize(job.ctx, job.sentence, job.voice, job.speed)
			metrics.SynthDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				metrics.Errors.WithLabelValues("synthesize", "model").Inc()
				job.resultCh <- synthResult{err: &SynthesisError{Sentence: job.sentence, Cause: err}}
				continue
			}
			s.mu.RLock()
			recycle := s.recycle
			s.mu.RUnlock()
			if recycle != nil {
				recycle.NotifySynthesized()
			}
			job.resultCh <- synthResult{samples: samples}
		case <-s.done:
			return
		}
	}
}

// Synthesize submits sentence to the worker and blocks for the result.
func (s *Synthesizer) Synthesize(ctx context.Context, sentence, voice string, speed float64) ([]float32, error) {
	job := synthJob{ctx: ctx, sentence: sentence, voice: voice, speed: speed, resultCh: make(chan synthResult, 1)}
	select {
	case s.jobs <- job:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrTTSNotReady
	}
	select {
	case r := <-job.resultCh:
		return r.samples, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SetRecycleNotifier wires the Session Recycler in after both it and the
// Synthesizer have been constructed (the two depend on each other).
func (s *Synthesizer) SetRecycleNotifier(recycle RecycleNotifier) {
	s.mu.Lock()
	s.recycle = recycle
	s.mu.Unlock()
}

// Swap atomically replaces the underlying model, used by the Session
// Recycler after it has rebuilt a fresh session in the background.
func (s *Synthesizer) Swap(model Model) {
	s.mu.Lock()
	old := s.model
	s.model = model
	s.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
}

// Close stops the worker and releases the underlying model.
func (s *Synthesizer) Close() error {
	close(s.done)
	s.wg.Wait()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.model == nil {
		return nil
	}
	return s.model.Close()
}
