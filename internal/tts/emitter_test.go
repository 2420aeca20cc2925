package tts

import (
	"context"
	"testing"
)

func TestFrameBytesSizing(t *testing.T) {
	got := FrameBytes(24000, 200)
	if got != 9600 {
		t.Fatalf("FrameBytes(24000, 200) = %d, want 9600", got)
	}
}

func TestRunFrameModeSlicesIntoFixedFrames(t *testing.T) {
	frameBytes := FrameBytes(24000, 200)
	pcm := make([]byte, 24000*2) // 1 second of 16-bit mono audio

	queue := make(chan *SynthesizedSentence, 2)
	queue <- &SynthesizedSentence{Segment: Segment{Text: "one."}, PCM: pcm}
	queue <- nil

	var chunks [][]byte
	e := &Emitter{SampleRate: 24000}
	e.OnChunk = func(data []byte) {
		cp := append([]byte(nil), data...)
		chunks = append(chunks, cp)
	}

	if err := e.RunFrameMode(context.Background(), queue, frameBytes); err != nil {
		t.Fatalf("RunFrameMode: %v", err)
	}

	if len(chunks) != 5 {
		t.Fatalf("expected 5 frames for a 1s sentence at 200ms frames, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) != frameBytes {
			t.Errorf("frame %d: got %d bytes, want %d", i, len(c), frameBytes)
		}
	}
}

func TestRunSentenceAtomicModeEmitsOneChunkPerSentence(t *testing.T) {
	queue := make(chan *SynthesizedSentence, 3)
	queue <- &SynthesizedSentence{Segment: Segment{Text: "a."}, PCM: make([]byte, 10)}
	queue <- &SynthesizedSentence{Segment: Segment{Text: "b."}, PCM: make([]byte, 20)}
	queue <- nil

	var sentenceStarts int
	var chunkSizes []int
	e := &Emitter{SampleRate: 24000}
	e.OnSentenceStart = func(seg Segment, msStart int) { sentenceStarts++ }
	e.OnChunk = func(data []byte) { chunkSizes = append(chunkSizes, len(data)) }

	if err := e.RunSentenceAtomicMode(context.Background(), queue); err != nil {
		t.Fatalf("RunSentenceAtomicMode: %v", err)
	}

	if sentenceStarts != 2 {
		t.Fatalf("expected 2 sentence-start callbacks, got %d", sentenceStarts)
	}
	if len(chunkSizes) != 2 || chunkSizes[0] != 10 || chunkSizes[1] != 20 {
		t.Fatalf("unexpected chunk sizes: %+v", chunkSizes)
	}
}

func TestMsStartMonotonicNonDecreasing(t *testing.T) {
	queue := make(chan *SynthesizedSentence, 3)
	queue <- &SynthesizedSentence{Segment: Segment{Text: "a."}, PCM: make([]byte, 24000)}
	queue <- &SynthesizedSentence{Segment: Segment{Text: "b."}, PCM: make([]byte, 24000)}
	queue <- nil

	var starts []int
	e := &Emitter{SampleRate: 24000}
	e.OnSentenceStart = func(seg Segment, msStart int) { starts = append(starts, msStart) }

	if err := e.RunSentenceAtomicMode(context.Background(), queue); err != nil {
		t.Fatalf("RunSentenceAtomicMode: %v", err)
	}

	for i := 1; i < len(starts); i++ {
		if starts[i] < starts[i-1] {
			t.Fatalf("ms_start not non-decreasing: %+v", starts)
		}
	}
}
