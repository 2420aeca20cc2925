package tts

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type fakeModel struct {
	id int64
}

func (m *fakeModel) Synthesize(ctx context.Context, sentence, voice string, speed float64) ([]float32, error) {
	return []float32{0, 0, 0}, nil
}
func (m *fakeModel) Close() error { return nil }

func TestRecyclerSchedulesBuildAfterThreshold(t *testing.T) {
	var builds int64
	synth := NewSynthesizer(&fakeModel{id: 0}, nil)
	defer synth.Close()

	var swapped int64
	build := func(ctx context.Context) (Model, error) {
		n := atomic.AddInt64(&builds, 1)
		return &fakeModel{id: n}, nil
	}

	rec := NewRecycler(synth, build, 3)
	defer rec.Close()
	synth.SetRecycleNotifier(rec)

	for i := 0; i < 6; i++ {
		if _, err := synth.Synthesize(context.Background(), "hello", "v", 1.0); err != nil {
			t.Fatalf("synthesize %d: %v", i, err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt64(&builds) < 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
		if _, err := synth.Synthesize(context.Background(), "poke", "v", 1.0); err != nil {
			t.Fatal(err)
		}
	}

	if atomic.LoadInt64(&builds) < 1 {
		t.Fatalf("expected at least one background build to have been scheduled, got %d", builds)
	}
	_ = swapped
}
