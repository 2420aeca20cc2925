package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BlackPool25/corereader-go/internal/debugrec"
	"github.com/BlackPool25/corereader-go/internal/source"
	"github.com/BlackPool25/corereader-go/internal/trace"
	"github.com/BlackPool25/corereader-go/internal/tts"
)

// Message type constants match the WebSocket RFC 6455 opcodes used by
// gorilla/websocket (TextMessage=1, BinaryMessage=2), so a *websocket.Conn
// satisfies Conn without this package importing gorilla directly.
const (
	TextMessage   = 1
	BinaryMessage = 2
)

// Conn is the minimal surface of a full-duplex framed connection the
// Session Controller needs. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// State is one of the five session states from the data model.
type State int

const (
	Idle State = iota
	Playing
	Paused
	Cancelling
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Cancelling:
		return "cancelling"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	defaultPrefetch = 3
	defaultFrameMs  = 200
	defaultSpeed    = 1.0
)

// playCommand is the play command's argument shape.
type playCommand struct {
	Command        string  `json:"command"`
	URL            string  `json:"url"`
	Voice          string  `json:"voice"`
	Speed          float64 `json:"speed"`
	Prefetch       int     `json:"prefetch"`
	FrameMs        int     `json:"frame_ms"`
	StartParagraph int     `json:"start_paragraph"`
	Realtime       bool    `json:"realtime"`
	Mode           string  `json:"mode"` // "frame" (default) or "sentence_atomic"
}

type audioFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	FrameMs    int    `json:"frame_ms"`
}

type chapterInfoEvent struct {
	Type           string      `json:"type"`
	Title          string      `json:"title"`
	URL            string      `json:"url"`
	Voice          string      `json:"voice"`
	NextURL        string      `json:"next_url"`
	PrevURL        string      `json:"prev_url"`
	Paragraphs     int         `json:"paragraphs"`
	StartParagraph int         `json:"start_paragraph"`
	SentenceTotal  int         `json:"sentence_total"`
	Audio          audioFormat `json:"audio"`
}

type sentenceEvent struct {
	Type           string `json:"type"`
	Text           string `json:"text"`
	ParagraphIndex int    `json:"paragraph_index"`
	SentenceIndex  int    `json:"sentence_index"`
	MsStart        int    `json:"ms_start"`
}

type chapterCompleteEvent struct {
	Type    string `json:"type"`
	NextURL string `json:"next_url"`
	PrevURL string `json:"prev_url"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Deps are the process-wide collaborators a Session wires its play requests
// to. Synth and Catalog are shared across every concurrent session; each is
// owned exactly once by the process (see SPEC_FULL §5).
type Deps struct {
	Synth   *tts.Synthesizer
	Catalog *tts.Catalog
	Source  source.ChapterSource
	Tracer  *trace.Tracer // optional; nil-safe

	// DebugRecordDir, when non-empty, enables the QA recorder: every play's
	// emitted PCM is also captured and flushed to a .wav file under this
	// directory when the play ends.
	DebugRecordDir string
}

// Session runs one client connection's state machine end to end.
type Session struct {
	conn      Conn
	deps      Deps
	sessionID string

	mu    sync.Mutex
	state State

	pause      *PauseGate
	cancelFunc context.CancelFunc

	sendMu sync.Mutex
}

// NewSession wraps conn with the Session Controller. Call Run to drive it.
func NewSession(conn Conn, deps Deps) *Session {
	return &Session{
		conn:      conn,
		deps:      deps,
		sessionID: uuid.NewString(),
		state:     Idle,
		pause:     NewPauseGate(),
	}
}

func (s *Session) getState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

type inboundMsg struct {
	msgType int
	data    []byte
	err     error
}

// Run drives the session until the connection closes. It owns exactly one
// goroutine that ever calls conn.ReadMessage, satisfying "never two
// concurrent receives" by construction rather than by cancel/reissue.
func (s *Session) Run(ctx context.Context) {
	inbound := make(chan inboundMsg)
	go func() {
		defer close(inbound)
		for {
			mt, data, err := s.conn.ReadMessage()
			inbound <- inboundMsg{msgType: mt, data: data, err: err}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-inbound:
			if !ok {
				s.onClientGone()
				return
			}
			if msg.err != nil {
				s.onClientGone()
				return
			}
			if msg.msgType != TextMessage {
				continue
			}
			if s.getState() == Closed {
				return
			}
			s.handleCommand(ctx, msg.data)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) onClientGone() {
	if s.getState() == Playing || s.getState() == Paused {
		s.setState(Cancelling)
		s.cancelCurrentPlay()
	}
	s.setState(Closed)
}

// cancelCurrentPlay invokes the active play's cancel func, if any, guarding
// the read with the same mutex runPlay uses to write it.
func (s *Session) cancelCurrentPlay() {
	s.mu.Lock()
	cancel := s.cancelFunc
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Session) handleCommand(ctx context.Context, data []byte) {
	var raw struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		s.sendError(tts.ErrProtocolViolation)
		return
	}

	switch raw.Command {
	case "play":
		var cmd playCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.sendError(tts.ErrProtocolViolation)
			return
		}
		s.handlePlay(ctx, cmd)
	case "pause":
		if s.getState() != Playing {
			s.sendError(fmt.Errorf("%w: pause outside playing state", tts.ErrBadRequest))
			return
		}
		s.pause.Pause()
		s.setState(Paused)
	case "resume":
		if s.getState() != Paused {
			s.sendError(fmt.Errorf("%w: resume outside paused state", tts.ErrBadRequest))
			return
		}
		s.pause.Resume()
		s.setState(Playing)
	case "stop":
		st := s.getState()
		if st != Playing && st != Paused {
			s.sendError(fmt.Errorf("%w: stop outside playing/paused state", tts.ErrBadRequest))
			return
		}
		s.setState(Cancelling)
		s.pause.Resume() // release any paused emitter so it can observe cancellation
		s.cancelCurrentPlay()
	default:
		s.sendError(fmt.Errorf("%w: unknown command %q", tts.ErrProtocolViolation, raw.Command))
	}
}

// handlePlay is the synchronous admission gate: it validates the command and
// transitions Idle -> Playing before returning, so Run's select loop keeps
// dispatching pause/resume/stop while the actual playback (runPlay) proceeds
// on its own goroutine. Without this split, a play in flight would block the
// single command-dispatch loop for its entire duration (see §4.H, §5).
func (s *Session) handlePlay(ctx context.Context, cmd playCommand) {
	if s.getState() != Idle {
		s.sendError(fmt.Errorf("%w: play outside idle state", tts.ErrBadRequest))
		return
	}
	if cmd.URL == "" {
		s.sendError(fmt.Errorf("%w: play requires url", tts.ErrBadRequest))
		return
	}

	playCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.state = Playing
	s.cancelFunc = cancel
	s.mu.Unlock()

	go s.runPlay(playCtx, cmd)
}

// runPlay performs the fetch, synthesis, and emission for one play request.
// It runs on its own goroutine so pause/resume/stop commands arriving on
// Run's loop are never blocked behind it.
func (s *Session) runPlay(ctx context.Context, cmd playCommand) {
	voices, err := s.deps.Catalog.Voices()
	if err != nil || len(voices) == 0 {
		s.sendError(tts.ErrTTSNotReady)
		s.resetAfterPlay()
		return
	}
	voice := cmd.Voice
	if !contains(voices, voice) {
		voice = voices[0]
	}

	chapter, err := s.deps.Source.Fetch(ctx, cmd.URL)
	if err != nil {
		s.sendError(fmt.Errorf("%w: %v", tts.ErrSourceUnavailable, err))
		s.resetAfterPlay()
		return
	}

	speed := cmd.Speed
	if speed <= 0 {
		speed = defaultSpeed
	}
	prefetch := cmd.Prefetch
	if prefetch < 1 {
		prefetch = defaultPrefetch
	}
	frameMs := cmd.FrameMs
	if frameMs <= 0 {
		frameMs = defaultFrameMs
	}
	startParagraph := cmd.StartParagraph
	if startParagraph < 0 || startParagraph > len(chapter.Paragraphs) {
		startParagraph = 0
	}

	segments := tts.Flatten(chapter.Paragraphs[startParagraph:])
	for i := range segments {
		segments[i].ParagraphIndex += startParagraph
	}

	playID := s.deps.Tracer.StartPlay(cmd.URL, voice)
	playStart := time.Now()

	s.send(chapterInfoEvent{
		Type:           "chapter_info",
		Title:          chapter.Title,
		URL:            chapter.URL,
		Voice:          voice,
		NextURL:        chapter.NextURL,
		PrevURL:        chapter.PrevURL,
		Paragraphs:     len(chapter.Paragraphs),
		StartParagraph: startParagraph,
		SentenceTotal:  len(segments),
		Audio: audioFormat{
			Encoding:   "pcm_s16le",
			SampleRate: tts.SampleRate,
			Channels:   1,
			FrameMs:    frameMs,
		},
	})

	var recorder *debugrec.Recorder
	if s.deps.DebugRecordDir != "" {
		recorder = debugrec.New(tts.SampleRate)
	}

	producer := tts.NewProducer(s.deps.Synth, voice, speed, prefetch, func() bool {
		return s.getState() == Cancelling
	})
	producer.OnSpan = func(seg tts.Segment, stage string, startedAt time.Time, durationMs float64, spanStatus, errMsg string) {
		s.deps.Tracer.RecordSentenceSpan(playID, seg.ParagraphIndex, seg.SentenceIndex, stage, startedAt, durationMs, spanStatus, errMsg)
	}

	producerDone := make(chan error, 1)
	go func() {
		err := producer.Run(ctx, segments)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("producer error", "error", err)
		}
		producerDone <- err
	}()

	emitter := &tts.Emitter{
		SampleRate: tts.SampleRate,
		Realtime:   cmd.Realtime,
		Cancelled: func() bool {
			return s.getState() == Cancelling
		},
		WaitIfPaused: s.pause.Wait,
		OnSentenceStart: func(seg tts.Segment, msStart int) {
			s.send(sentenceEvent{
				Type:           "sentence",
				Text:           seg.Text,
				ParagraphIndex: seg.ParagraphIndex,
				SentenceIndex:  seg.SentenceIndex,
				MsStart:        msStart,
			})
		},
		OnChunk: func(data []byte) {
			s.sendBinary(data)
			recorder.Write(data)
		},
	}

	var emitErr error
	if cmd.Mode == "sentence_atomic" {
		emitErr = emitter.RunSentenceAtomicMode(ctx, producer.Queue())
	} else {
		emitErr = emitter.RunFrameMode(ctx, producer.Queue(), tts.FrameBytes(tts.SampleRate, frameMs))
	}

	// A nil emitErr outside Cancelling means the emitter reached the sentinel,
	// so the producer has returned; a synthesis failure ends the play with error.
	if st := s.getState(); emitErr == nil && (st == Playing || st == Paused) {
		if perr := <-producerDone; perr != nil {
			emitErr = perr
		}
	}

	status := "completed"
	if emitErr != nil && !errors.Is(emitErr, context.Canceled) {
		status = "error"
		var synthErr *tts.SynthesisError
		if !errors.As(emitErr, &synthErr) {
			synthErr = &tts.SynthesisError{Cause: emitErr}
		}
		s.send(errorEvent{Type: "error", Message: synthErr.Error()})
	} else {
		s.send(chapterCompleteEvent{Type: "chapter_complete", NextURL: chapter.NextURL, PrevURL: chapter.PrevURL})
	}
	s.deps.Tracer.EndPlay(playID, float64(time.Since(playStart).Milliseconds()), status)

	if recorder != nil {
		if path, err := recorder.Flush(s.deps.DebugRecordDir, s.sessionID); err != nil {
			slog.Warn("debug recording flush failed", "error", err)
		} else if path != "" {
			slog.Info("debug recording written", "path", path)
		}
	}

	s.resetAfterPlay()
}

// resetAfterPlay clears the cancel func and leaves the session ready for
// another play, unless the request ended via stop (Cancelling drains to
// Closed per §4.H).
func (s *Session) resetAfterPlay() {
	s.mu.Lock()
	s.cancelFunc = nil
	if s.state == Cancelling {
		s.state = Closed
	} else {
		s.state = Idle
	}
	s.mu.Unlock()
}

func (s *Session) send(event interface{}) {
	b, err := json.Marshal(event)
	if err != nil {
		return
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := s.conn.WriteMessage(TextMessage, b); err != nil {
		slog.Warn("write event failed", "error", err)
	}
}

func (s *Session) sendBinary(data []byte) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := s.conn.WriteMessage(BinaryMessage, data); err != nil {
		slog.Warn("write audio chunk failed", "error", err)
	}
}

func (s *Session) sendError(err error) {
	s.send(errorEvent{Type: "error", Message: err.Error()})
}

func contains(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
