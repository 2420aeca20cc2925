package tts

import (
	"context"
	"time"

	"github.com/BlackPool25/corereader-go/internal/metrics"
)

// SynthesizedSentence is one post-processed sentence chunk flowing through
// the bounded prefetch queue: PCM16 bytes (sentence audio + trailing
// silence), already quantized by PostProcess.
type SynthesizedSentence struct {
	Segment Segment
	PCM     []byte
}

// Producer synthesizes segments in order into a bounded FIFO, providing
// backpressure: the synthesis worker blocks when the consumer lags. A nil
// SynthesizedSentence sentinel marks the end of the stream (completion or
// cancellation).
type Producer struct {
	synth     *Synthesizer
	voice     string
	speed     float64
	queue     chan *SynthesizedSentence
	cancelled func() bool

	// OnSpan, if set, is called once per stage ("synthesize", "postprocess")
	// for every segment, so a caller can record per-sentence trace spans
	// without this package depending on the trace store.
	OnSpan func(seg Segment, stage string, startedAt time.Time, durationMs float64, status, errMsg string)
}

// NewProducer creates a producer with a bounded queue of capacity
// max(1, prefetch). cancelled is polled between segments; once true the
// producer stops synthesizing and enqueues the sentinel.
func NewProducer(synth *Synthesizer, voice string, speed float64, prefetch int, cancelled func() bool) *Producer {
	if prefetch < 1 {
		prefetch = 1
	}
	return &Producer{
		synth:     synth,
		voice:     voice,
		speed:     speed,
		queue:     make(chan *SynthesizedSentence, prefetch),
		cancelled: cancelled,
	}
}

// Queue returns the channel the consumer reads from.
func (p *Producer) Queue() <-chan *SynthesizedSentence {
	return p.queue
}

// Run synthesizes segments in order, pushing each post-processed result into
// the queue; on a synthesis failure it stops and returns that error so the
// caller can terminate the play with an error. It always enqueues the
// sentinel. Run is meant to be invoked as its own goroutine.
func (p *Producer) Run(ctx context.Context, segments []Segment) error {
	defer func() { p.queue <- nil }()

	for _, seg := range segments {
		if p.cancelled != nil && p.cancelled() {
			return nil
		}

		synthStart := time.Now()
		samples, err := p.synth.Synthesize(ctx, seg.Text, p.voice, p.speed)
		p.recordSpan(seg, "synthesize", synthStart, err)
		if err != nil {
			return err
		}

		postStart := time.Now()
		pcm := PostProcess(samples, seg.Text, seg.IsLastInParagraph)
		p.recordSpan(seg, "postprocess", postStart, nil)
		metrics.SentencesSynthesized.Inc()
		metrics.PostprocessDuration.Observe(time.Since(postStart).Seconds())

		select {
		case p.queue <- &SynthesizedSentence{Segment: seg, PCM: pcm}:
			metrics.QueueDepth.Set(float64(len(p.queue)))
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

func (p *Producer) recordSpan(seg Segment, stage string, startedAt time.Time, err error) {
	if p.OnSpan == nil {
		return
	}
	status := "ok"
	errMsg := ""
	if err != nil {
		status = "error"
		errMsg = err.Error()
	}
	p.OnSpan(seg, stage, startedAt, float64(time.Since(startedAt).Milliseconds()), status, errMsg)
}
