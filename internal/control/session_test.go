package control

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BlackPool25/corereader-go/internal/source"
	"github.com/BlackPool25/corereader-go/internal/tts"
)

// fakeModel synthesizes silence instantly so tests run without a real
// acoustic backend.
type fakeModel struct{}

func (fakeModel) Synthesize(ctx context.Context, sentence, voice string, speed float64) ([]float32, error) {
	return make([]float32, 2400), nil // 100ms of silence at 24kHz
}

func (fakeModel) Close() error { return nil }

// fakeConn is an in-memory Conn: inbound frames are fed on a channel, and
// every WriteMessage call is recorded for assertion.
type fakeConn struct {
	mu      sync.Mutex
	inbound chan fakeFrame
	written []fakeFrame
}

type fakeFrame struct {
	msgType int
	data    []byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan fakeFrame, 16)}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	f, ok := <-c.inbound
	if !ok {
		return 0, nil, errClosed
	}
	return f.msgType, f.data, nil
}

func (c *fakeConn) WriteMessage(msgType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	c.written = append(c.written, fakeFrame{msgType: msgType, data: cp})
	return nil
}

func (c *fakeConn) Close() error {
	return nil
}

func (c *fakeConn) sendText(v interface{}) {
	b, _ := json.Marshal(v)
	c.inbound <- fakeFrame{msgType: TextMessage, data: b}
}

func (c *fakeConn) hangUp() {
	close(c.inbound)
}

func (c *fakeConn) textEvents() []map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]interface{}
	for _, f := range c.written {
		if f.msgType != TextMessage {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal(f.data, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) binaryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, f := range c.written {
		if f.msgType == BinaryMessage {
			n++
		}
	}
	return n
}

type errClosedT struct{}

func (errClosedT) Error() string { return "fake conn closed" }

var errClosed error = errClosedT{}

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	synth := tts.NewSynthesizer(fakeModel{}, nil)
	t.Cleanup(func() { synth.Close() })

	catalog := tts.NewCatalogFromVoices([]string{"alloy"}, map[string][]float32{"alloy": {0, 0}})

	src := &testChapterSource{chapters: map[string]*source.Chapter{
		"http://example.com/ch1": {
			Title:      "Chapter One",
			URL:        "http://example.com/ch1",
			NextURL:    "http://example.com/ch2",
			Paragraphs: []string{"Hello world. This is a test.", "Second paragraph here."},
		},
	}}

	return Deps{Synth: synth, Catalog: catalog, Source: src}
}

// testChapterSource is this package's own ChapterSource fake; it cannot
// reuse source package's unexported test fake across package boundaries.
type testChapterSource struct {
	chapters map[string]*source.Chapter
}

func (s *testChapterSource) Fetch(ctx context.Context, url string) (*source.Chapter, error) {
	ch, ok := s.chapters[url]
	if !ok {
		return nil, errClosedT{}
	}
	return ch, nil
}

func waitForEvent(t *testing.T, conn *fakeConn, eventType string, timeout time.Duration) map[string]interface{} {
	t.Helper()
	deadline := time.After(timeout)
	for {
		for _, ev := range conn.textEvents() {
			if ev["type"] == eventType {
				return ev
			}
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for event %q", eventType)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// TestPlayPauseResumeCompletes exercises the pause/resume part of S5: a pause
// must be observed by the emitter (no further binary frames) until a matching
// resume, after which the play runs to chapter_complete; it also checks that
// the sentence event strictly precedes its audio. Stop is covered by
// TestStopEndsPlaybackWithChapterComplete.
func TestPlayPauseResumeCompletes(t *testing.T) {
	conn := newFakeConn()
	sess := NewSession(conn, newTestDeps(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	conn.sendText(map[string]interface{}{"command": "play", "url": "http://example.com/ch1", "voice": "alloy"})
	waitForEvent(t, conn, "chapter_info", time.Second)
	waitForEvent(t, conn, "sentence", time.Second)

	conn.sendText(map[string]interface{}{"command": "pause"})
	time.Sleep(50 * time.Millisecond)
	if sess.getState() != Paused {
		t.Fatalf("expected Paused, got %v", sess.getState())
	}
	before := conn.binaryCount()
	time.Sleep(200 * time.Millisecond)
	after := conn.binaryCount()
	if after != before {
		t.Fatalf("expected no new binary frames while paused, got %d -> %d", before, after)
	}

	conn.sendText(map[string]interface{}{"command": "resume"})
	waitForEvent(t, conn, "chapter_complete", 2*time.Second)

	if sess.getState() != Idle {
		t.Fatalf("expected Idle after completion, got %v", sess.getState())
	}

	events := conn.textEvents()
	firstSentenceIdx, firstBinaryIdx := -1, -1
	for i, f := range conn.written {
		if f.msgType == TextMessage {
			var m map[string]interface{}
			_ = json.Unmarshal(f.data, &m)
			if m["type"] == "sentence" && firstSentenceIdx == -1 {
				firstSentenceIdx = i
			}
		}
		if f.msgType == BinaryMessage && firstBinaryIdx == -1 {
			firstBinaryIdx = i
		}
	}
	if firstSentenceIdx == -1 || firstBinaryIdx == -1 || firstSentenceIdx > firstBinaryIdx {
		t.Fatalf("sentence event must precede its first audio chunk: sentence=%d binary=%d", firstSentenceIdx, firstBinaryIdx)
	}
	_ = events
}

// TestStopEndsPlaybackWithChapterComplete covers stop during playback: the
// session moves to Cancelling, the emitter stops at its next check, and the
// play still ends with a terminating chapter_complete event.
func TestStopEndsPlaybackWithChapterComplete(t *testing.T) {
	conn := newFakeConn()
	sess := NewSession(conn, newTestDeps(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	conn.sendText(map[string]interface{}{"command": "play", "url": "http://example.com/ch1", "voice": "alloy"})
	waitForEvent(t, conn, "chapter_info", time.Second)

	conn.sendText(map[string]interface{}{"command": "stop"})
	ev := waitForEvent(t, conn, "chapter_complete", 2*time.Second)
	if ev["next_url"] != "http://example.com/ch2" {
		t.Fatalf("unexpected chapter_complete after stop: %v", ev)
	}
}

// TestPlayRejectedOutsideIdle covers invariant: play is only valid from Idle.
func TestPlayRejectedOutsideIdle(t *testing.T) {
	conn := newFakeConn()
	sess := NewSession(conn, newTestDeps(t))
	sess.setState(Playing)

	conn.sendText(map[string]interface{}{"command": "play", "url": "http://example.com/ch1"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	waitForEvent(t, conn, "error", time.Second)
}

// TestUnknownCommandProducesError ensures malformed/unknown commands surface
// as an error event rather than silently dropping.
func TestUnknownCommandProducesError(t *testing.T) {
	conn := newFakeConn()
	sess := NewSession(conn, newTestDeps(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	conn.sendText(map[string]interface{}{"command": "bogus"})
	ev := waitForEvent(t, conn, "error", time.Second)
	if msg, _ := ev["message"].(string); !strings.Contains(msg, "unknown command") {
		t.Fatalf("unexpected error message: %v", ev["message"])
	}
}
