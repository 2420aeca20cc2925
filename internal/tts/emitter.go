package tts

import (
	"context"
	"math"
	"time"
)

// FrameBytes returns the byte size of one fixed-duration frame at
// sampleRate, frameMs, per §3: 2 · round(sample_rate · frame_ms / 1000).
func FrameBytes(sampleRate, frameMs int) int {
	return 2 * int(math.Round(float64(sampleRate)*float64(frameMs)/1000.0))
}

// Emitter meters post-processed sentence PCM out of the prefetch queue in
// either frame mode or sentence-atomic mode, calling onSentenceStart once
// per sentence (strictly before its first chunk) and onChunk for every
// binary payload, pacing between chunks when realtime is set.
type Emitter struct {
	SampleRate      int
	Realtime        bool
	OnSentenceStart func(seg Segment, msStart int)
	OnChunk         func(data []byte)
	Cancelled       func() bool
	// WaitIfPaused, if set, is called between every emitted chunk/frame and
	// blocks until unpaused or ctx is done; a non-nil error aborts emission.
	WaitIfPaused func(ctx context.Context) error

	emittedBytes int64
}

func (e *Emitter) waitIfPaused(ctx context.Context) error {
	if e.WaitIfPaused == nil {
		return nil
	}
	return e.WaitIfPaused(ctx)
}

// msStart computes the cumulative playback clock: floor(emitted_samples *
// 1000 / sample_rate), where emitted_samples = emitted_bytes / 2.
func (e *Emitter) msStart() int {
	emittedSamples := e.emittedBytes / 2
	return int(emittedSamples * 1000 / int64(e.SampleRate))
}

func (e *Emitter) pace(n int) {
	if !e.Realtime {
		return
	}
	dur := time.Duration(float64(n) / (2 * float64(e.SampleRate)) * float64(time.Second))
	time.Sleep(dur)
}

func (e *Emitter) emit(data []byte) {
	if len(data) == 0 {
		return
	}
	if e.OnChunk != nil {
		e.OnChunk(data)
	}
	e.emittedBytes += int64(len(data))
	e.pace(len(data))
}

// RunFrameMode slices each sentence's PCM (including its trailing silence)
// into frameBytes-sized frames, emitting any trailing partial frame as-is.
// Checks cancellation between every frame.
func (e *Emitter) RunFrameMode(ctx context.Context, queue <-chan *SynthesizedSentence, frameBytes int) error {
	for {
		if e.Cancelled != nil && e.Cancelled() {
			return nil
		}
		if err := e.waitIfPaused(ctx); err != nil {
			return err
		}

		var s *SynthesizedSentence
		select {
		case s = <-queue:
		case <-ctx.Done():
			return ctx.Err()
		}
		if s == nil {
			return nil
		}

		if e.OnSentenceStart != nil {
			e.OnSentenceStart(s.Segment, e.msStart())
		}

		for off := 0; off < len(s.PCM); off += frameBytes {
			if e.Cancelled != nil && e.Cancelled() {
				return nil
			}
			if err := e.waitIfPaused(ctx); err != nil {
				return err
			}
			end := off + frameBytes
			if end > len(s.PCM) {
				end = len(s.PCM)
			}
			e.emit(s.PCM[off:end])
		}
	}
}

// RunSentenceAtomicMode emits one chunk per sentence containing the full
// PCM (sentence audio + trailing silence) already quantized by PostProcess.
func (e *Emitter) RunSentenceAtomicMode(ctx context.Context, queue <-chan *SynthesizedSentence) error {
	for {
		if e.Cancelled != nil && e.Cancelled() {
			return nil
		}
		if err := e.waitIfPaused(ctx); err != nil {
			return err
		}

		var s *SynthesizedSentence
		select {
		case s = <-queue:
		case <-ctx.Done():
			return ctx.Err()
		}
		if s == nil {
			return nil
		}

		if e.OnSentenceStart != nil {
			e.OnSentenceStart(s.Segment, e.msStart())
		}
		e.emit(s.PCM)
	}
}
