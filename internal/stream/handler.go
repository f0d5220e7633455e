package stream

import (
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/roman-kulish/sniper-scope/internal/scope"
)

// ScopeIDPathValue is the name of the path wildcard holding the scope identifier
const ScopeIDPathValue = "scopeID"

// WithHandlerLogger sets the logger sessions derive their loggers from
func WithHandlerLogger(logger *slog.Logger) func(*Handler) {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithOriginPatterns sets the host patterns of origins allowed to connect,
// in addition to the request host itself.
func WithOriginPatterns(patterns ...string) func(*Handler) {
	return func(h *Handler) {
		h.acceptOptions.OriginPatterns = patterns
	}
}

// WithReadLimit sets the maximum size in bytes of an inbound message
func WithReadLimit(limit int64) func(*Handler) {
	return func(h *Handler) {
		h.readLimit = limit
	}
}

// WithInitialBatches makes every session send a batch as soon as it becomes active
func WithInitialBatches(enabled bool) func(*Handler) {
	return func(h *Handler) {
		h.initialBatch = enabled
	}
}

// Handler upgrades requests to WebSocket connections and serves one Session
// per connection. The scope identifier is taken from the ScopeIDPathValue
// path wildcard.
type Handler struct {
	lookup scope.Lookup
	logger *slog.Logger

	acceptOptions websocket.AcceptOptions
	readLimit     int64
	initialBatch  bool

	active atomic.Int64
	wg     sync.WaitGroup
}

// NewHandler creates a new Handler with a discard logger
func NewHandler(lookup scope.Lookup, options ...func(*Handler)) *Handler {
	h := Handler{
		lookup: lookup,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&h)
	}

	return &h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	scopeID := r.PathValue(ScopeIDPathValue)
	if scopeID == "" {
		http.Error(w, "missing scope id", http.StatusBadRequest)
		return
	}

	logger := h.logger.With(
		slog.String("session", uuid.NewString()),
		slog.String("scopeID", scopeID),
		slog.String("remoteAddr", r.RemoteAddr),
	)

	conn, err := websocket.Accept(w, r, &h.acceptOptions)
	if err != nil {
		logger.Warn("accepting connection", slog.String("error", err.Error()))
		return
	}
	if h.readLimit > 0 {
		conn.SetReadLimit(h.readLimit)
	}

	h.wg.Add(1)
	h.active.Add(1)
	defer func() {
		h.active.Add(-1)
		h.wg.Done()
	}()

	logger.Debug("connection accepted")

	// outcome is logged by the session itself
	_ = NewSession(scopeID, conn, h.lookup, WithLogger(logger), WithInitialBatch(h.initialBatch)).Run(r.Context())
}

// Active returns the number of sessions currently being served
func (h *Handler) Active() int64 {
	return h.active.Load()
}

// Wait blocks until every session has finished
func (h *Handler) Wait() {
	h.wg.Wait()
}
