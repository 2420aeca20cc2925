package tts

import (
	"math"
	"strings"
)

const (
	defaultFadeMs = 6

	questionPauseMs = 260
	exclaimPauseMs  = 200
	periodPauseMs   = 180
	otherPauseMs    = 120
	paragraphEndMs  = 240
)

// ApplyFade applies a raised-cosine fade-in/fade-out in place to samples,
// over min(floor(SampleRate*fadeMs/1000), len(samples)/2) samples at each
// edge. No-op if fewer than 2 samples fit the fade window.
func ApplyFade(samples []float32, fadeMs int) {
	fadeSamples := int(math.Floor(float64(SampleRate) * float64(fadeMs) / 1000.0))
	if half := len(samples) / 2; fadeSamples > half {
		fadeSamples = half
	}
	if fadeSamples < 2 {
		return
	}

	ramp := make([]float64, fadeSamples)
	for i := 0; i < fadeSamples; i++ {
		ramp[i] = 0.5 * (1 - math.Cos(math.Pi*float64(i)/float64(fadeSamples)))
	}

	for i := 0; i < fadeSamples; i++ {
		samples[i] = float32(float64(samples[i]) * ramp[i])
	}
	for i := 0; i < fadeSamples; i++ {
		idx := len(samples) - 1 - i
		samples[idx] = float32(float64(samples[idx]) * ramp[i])
	}
}

// PauseDurationMs returns the inter-sentence silence duration for a sentence
// whose trimmed text ends in the given terminator rune, adding the
// paragraph-end bonus when isLastInParagraph.
func PauseDurationMs(text string, isLastInParagraph bool) int {
	trimmed := strings.TrimRight(text, " \t\n\r")
	ms := otherPauseMs
	if trimmed != "" {
		switch trimmed[len(trimmed)-1] {
		case '?':
			ms = questionPauseMs
		case '!':
			ms = exclaimPauseMs
		case '.':
			ms = periodPauseMs
		}
	}
	if isLastInParagraph {
		ms += paragraphEndMs
	}
	return ms
}

// SilenceSamples returns a zero-valued float32 slice of the given duration.
func SilenceSamples(ms int) []float32 {
	n := int(math.Floor(float64(SampleRate) * float64(ms) / 1000.0))
	if n <= 0 {
		return nil
	}
	return make([]float32, n)
}

// QuantizeToPCM16 converts float32 samples to little-endian signed PCM16
// bytes, scaling each sample by 32767 and clamping the result to
// [-32768, 32767]. This is the single
// quantization point in the pipeline: callers must perform all fades and
// silence concatenation in float32 beforehand.
func QuantizeToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		f := float64(s) * 32767.0
		if f > 32767 {
			f = 32767
		} else if f < -32768 {
			f = -32768
		}
		v := int16(f)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// PostProcess applies the edge fade to samples, then appends the
// inter-sentence silence appropriate to sentenceText/isLastInParagraph, and
// quantizes the result to PCM16 exactly once.
func PostProcess(samples []float32, sentenceText string, isLastInParagraph bool) []byte {
	faded := append([]float32(nil), samples...)
	ApplyFade(faded, defaultFadeMs)

	pauseMs := PauseDurationMs(sentenceText, isLastInParagraph)
	combined := append(faded, SilenceSamples(pauseMs)...)

	return QuantizeToPCM16(combined)
}
