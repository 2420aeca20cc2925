package trace

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	// maxTraceFieldLen caps the length of url/voice/error strings stored in
	// trace rows to avoid bloating the trace database.
	maxTraceFieldLen = 500

	// traceChannelBuffer is how many trace messages can queue before the
	// background drain goroutine writes them to the store.
	traceChannelBuffer = 64
)

type traceMsg struct {
	kind string // "play_create", "play_update", "span"
	// play fields
	playID     string
	sessionID  string
	url        string
	voice      string
	durationMs float64
	status     string
	// span fields
	span SentenceSpan
}

// Tracer writes trace data asynchronously via a buffered channel.
// All methods are nil-safe (no-op on nil receiver).
type Tracer struct {
	store     *Store
	sessionID string
	ch        chan traceMsg
	done      chan struct{}
}

// NewTracer creates a tracer bound to a session.
// Launches a background goroutine (drain) that writes trace messages to the
// store sequentially. Callers MUST call Close() when done to flush pending
// writes and stop the goroutine — otherwise writes are lost and goroutine leaks.
func NewTracer(store *Store, sessionID string) *Tracer {
	t := &Tracer{
		store:     store,
		sessionID: sessionID,
		ch:        make(chan traceMsg, traceChannelBuffer),
		done:      make(chan struct{}),
	}
	go t.drain()
	return t
}

func (t *Tracer) drain() {
	defer close(t.done)
	for msg := range t.ch {
		t.handle(msg)
	}
}

func (t *Tracer) handle(m traceMsg) {
	if err := t.dispatch(m); err != nil {
		slog.Warn("trace write failed", "kind", m.kind, "error", err)
	}
}

func (t *Tracer) dispatch(m traceMsg) error {
	switch m.kind {
	case "play_create":
		return t.store.CreatePlay(m.playID, m.sessionID, m.url, m.voice)
	case "play_update":
		return t.store.UpdatePlay(m.playID, m.durationMs, m.status)
	case "span":
		return t.store.CreateSentenceSpan(m.span)
	}
	return nil
}

// StartPlay begins a new play and returns its ID.
func (t *Tracer) StartPlay(url, voice string) string {
	if t == nil {
		return ""
	}
	id := uuid.NewString()
	t.ch <- traceMsg{kind: "play_create", playID: id, sessionID: t.sessionID, url: truncate(url, maxTraceFieldLen), voice: voice}
	return id
}

// EndPlay finalizes a play.
func (t *Tracer) EndPlay(playID string, durationMs float64, status string) {
	if t == nil {
		return
	}
	t.ch <- traceMsg{kind: "play_update", playID: playID, durationMs: durationMs, status: status}
}

// RecordSentenceSpan records one completed synth/postprocess stage timing.
func (t *Tracer) RecordSentenceSpan(playID string, paragraphIndex, sentenceIndex int, stage string, startedAt time.Time, durationMs float64, status, errMsg string) {
	if t == nil {
		return
	}
	t.ch <- traceMsg{
		kind: "span",
		span: SentenceSpan{
			ID:             uuid.NewString(),
			PlayID:         playID,
			ParagraphIndex: paragraphIndex,
			SentenceIndex:  sentenceIndex,
			Stage:          stage,
			StartedAt:      startedAt,
			DurationMs:     durationMs,
			Status:         status,
			Error:          truncate(errMsg, maxTraceFieldLen),
		},
	}
}

// Close drains pending writes and shuts down the background goroutine.
func (t *Tracer) Close() {
	if t == nil {
		return
	}
	close(t.ch)
	<-t.done
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
