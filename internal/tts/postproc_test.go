package tts

import "testing"

func TestPauseDurationByTerminator(t *testing.T) {
	cases := []struct {
		text     string
		lastPara bool
		want     int
	}{
		{"What now?", false, 260},
		{"Stop!", false, 200},
		{"Done.", false, 180},
		{"no terminator", false, 120},
		{"Final sentence.", true, 180 + 240},
	}
	for _, c := range cases {
		got := PauseDurationMs(c.text, c.lastPara)
		if got != c.want {
			t.Errorf("PauseDurationMs(%q, %v) = %d, want %d", c.text, c.lastPara, got, c.want)
		}
	}
}

func TestApplyFadeShortensNothingAndTapers(t *testing.T) {
	samples := make([]float32, 1000)
	for i := range samples {
		samples[i] = 1.0
	}
	ApplyFade(samples, 6)

	if samples[0] != 0 {
		t.Errorf("expected first sample faded to ~0, got %f", samples[0])
	}
	if samples[len(samples)-1] != 0 {
		t.Errorf("expected last sample faded to ~0, got %f", samples[len(samples)-1])
	}
	mid := len(samples) / 2
	if samples[mid] != 1.0 {
		t.Errorf("expected untouched midpoint sample, got %f", samples[mid])
	}
}

func TestApplyFadeSkipsTooShortBuffers(t *testing.T) {
	samples := []float32{1, 1}
	ApplyFade(samples, 6)
	if samples[0] != 1 || samples[1] != 1 {
		t.Errorf("expected no-op fade on a 2-sample buffer, got %+v", samples)
	}
}

func TestQuantizeToPCM16ClampsAndEncodes(t *testing.T) {
	out := QuantizeToPCM16([]float32{0, 1.0, -1.0, 2.0, -2.0})
	if len(out) != 10 {
		t.Fatalf("expected 10 bytes for 5 samples, got %d", len(out))
	}
	// sample 1 (1.0) -> 32767 little-endian
	if out[2] != 0xFF || out[3] != 0x7F {
		t.Errorf("unexpected encoding for 1.0: % x", out[2:4])
	}
}

func TestSilenceSamplesLength(t *testing.T) {
	s := SilenceSamples(180)
	want := SampleRate * 180 / 1000
	if len(s) != want {
		t.Fatalf("expected %d silence samples, got %d", want, len(s))
	}
	for _, v := range s {
		if v != 0 {
			t.Fatalf("expected all-zero silence, found %f", v)
		}
	}
}

func TestPostProcessAppendsSilenceAndQuantizesOnce(t *testing.T) {
	samples := make([]float32, 100)
	for i := range samples {
		samples[i] = 0.5
	}
	out := PostProcess(samples, "Hello.", false)

	wantLen := (100 + SampleRate*180/1000) * 2
	if len(out) != wantLen {
		t.Fatalf("expected %d bytes, got %d", wantLen, len(out))
	}
}
