package tts

import "errors"

var (
	// ErrBadRequest indicates a play/pause/resume/stop command was missing or
	// carried invalid arguments.
	ErrBadRequest = errors.New("bad request")

	// ErrTTSNotReady indicates the synthesizer failed to initialize or the
	// voice catalog is empty.
	ErrTTSNotReady = errors.New("tts not ready")

	// ErrSourceUnavailable indicates the chapter source could not be reached.
	ErrSourceUnavailable = errors.New("chapter source unavailable")

	// ErrSynthesisFailed indicates the underlying model call raised. The
	// triggering sentence and cause are carried by SynthesisError.
	ErrSynthesisFailed = errors.New("synthesis failed")

	// ErrClientGone indicates the control channel closed mid-stream.
	ErrClientGone = errors.New("client gone")

	// ErrProtocolViolation indicates a malformed command frame or an unknown
	// command name.
	ErrProtocolViolation = errors.New("protocol violation")
)

// SynthesisError wraps a synthesis failure with the sentence that triggered it.
type SynthesisError struct {
	Sentence string
	Cause    error
}

func (e *SynthesisError) Error() string {
	return "synthesis failed for sentence: " + e.Cause.Error()
}

func (e *SynthesisError) Unwrap() error {
	return e.Cause
}

func (e *SynthesisError) Is(target error) bool {
	return target == ErrSynthesisFailed
}
