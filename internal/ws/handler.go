package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/BlackPool25/corereader-go/internal/control"
	"github.com/BlackPool25/corereader-go/internal/metrics"
	"github.com/BlackPool25/corereader-go/internal/trace"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades incoming connections and runs one Session Controller per
// connection. All sessions share the same process-wide synthesizer, voice
// catalog, and chapter source; each connection gets its own trace.Tracer
// bound to a fresh trace session row, matching the teacher's one-tracer-
// per-call pattern.
type Handler struct {
	deps       control.Deps
	traceStore *trace.Store

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewHandler creates a WebSocket handler with the shared pipeline deps.
// traceStore may be nil to disable tracing.
func NewHandler(deps control.Deps, traceStore *trace.Store) *Handler {
	return &Handler{deps: deps, traceStore: traceStore, cancels: make(map[string]context.CancelFunc)}
}

// ServeHTTP upgrades the connection and drives its session until it closes.
// The session's context is independent of the request's, since a hijacked
// websocket connection keeps running after the *http.Server stops tracking
// it; Shutdown cancels every such context directly.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	deps := h.deps
	if h.traceStore != nil {
		sessionID := uuid.NewString()
		if err := h.traceStore.CreateSession(sessionID, ""); err != nil {
			slog.Warn("create trace session", "error", err)
		}
		tracer := trace.NewTracer(h.traceStore, sessionID)
		defer func() {
			tracer.Close()
			_ = h.traceStore.EndSession(sessionID)
		}()
		deps.Tracer = tracer
	}

	connID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	h.track(connID, cancel)
	defer h.untrack(connID)

	sess := control.NewSession(conn, deps)

	h.wg.Add(1)
	defer h.wg.Done()
	sess.Run(ctx)
}

func (h *Handler) track(id string, cancel context.CancelFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancels[id] = cancel
}

func (h *Handler) untrack(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.cancels, id)
}

// Shutdown cancels every in-flight session's context and waits (up to ctx's
// deadline) for their Run loops to return, draining them before the process
// exits.
func (h *Handler) Shutdown(ctx context.Context) {
	h.mu.Lock()
	for _, cancel := range h.cancels {
		cancel()
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("shutdown deadline reached with sessions still draining")
	}
}
