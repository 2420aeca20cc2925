// Package debugrec implements the optional QA recorder: when enabled, a
// session's emitted PCM is also captured to a .wav file for after-the-fact
// listening. The wire protocol itself stays headerless raw PCM; this is the
// one place a WAV container is produced.
package debugrec

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BlackPool25/corereader-go/internal/audio"
)

// Recorder buffers one play's emitted PCM16LE bytes in memory and flushes
// them to a .wav file when the play ends.
type Recorder struct {
	mu         sync.Mutex
	buf        []byte
	sampleRate int
}

// New creates a recorder for one play at the given output sample rate.
func New(sampleRate int) *Recorder {
	return &Recorder{sampleRate: sampleRate}
}

// Write appends an emitted chunk to the buffer.
func (r *Recorder) Write(chunk []byte) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, chunk...)
}

// Flush encodes the buffered PCM as a WAV file under dir, named by
// sessionID and the time of the flush, and returns the path written.
func (r *Recorder) Flush(dir, sessionID string) (string, error) {
	if r == nil {
		return "", nil
	}
	r.mu.Lock()
	pcm := r.buf
	r.mu.Unlock()
	if len(pcm) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("debugrec mkdir: %w", err)
	}
	name := fmt.Sprintf("%s-%d.wav", sessionID, time.Now().UnixNano())
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("debugrec create: %w", err)
	}
	defer f.Close()

	if err := audio.WritePCM16WAV(f, pcm, r.sampleRate); err != nil {
		return "", fmt.Errorf("debugrec encode: %w", err)
	}
	return path, nil
}
