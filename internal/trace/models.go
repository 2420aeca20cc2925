package trace

import "time"

// Session represents one WebSocket connection. A session may carry several
// play requests across its lifetime (e.g. following next_url into the next
// chapter).
type Session struct {
	ID        string     `json:"id"`
	Metadata  string     `json:"metadata"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	PlayCount int        `json:"play_count,omitempty"`
}

// Play represents one `play` command's lifetime, from chapter_info to
// chapter_complete/error.
type Play struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs float64   `json:"duration_ms,omitempty"`
	URL        string    `json:"url,omitempty"`
	Voice      string    `json:"voice,omitempty"`
	Status     string    `json:"status"`
	SpanCount  int       `json:"span_count,omitempty"`
}

// SentenceSpan represents one timed stage (synthesize or postprocess) for
// one sentence within a play.
type SentenceSpan struct {
	ID             string    `json:"id"`
	PlayID         string    `json:"play_id"`
	ParagraphIndex int       `json:"paragraph_index"`
	SentenceIndex  int       `json:"sentence_index"`
	Stage          string    `json:"stage"`
	StartedAt      time.Time `json:"started_at"`
	DurationMs     float64   `json:"duration_ms"`
	Status         string    `json:"status"`
	Error          string    `json:"error,omitempty"`
}
