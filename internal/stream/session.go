package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/dustin/go-humanize"
	"github.com/roman-kulish/sniper-scope/internal/scope"
	"github.com/roman-kulish/sniper-scope/internal/waveform"
)

// State is the lifecycle state of a Session
type State int32

const (
	StateConnecting State = iota // waiting for the scope lookup
	StateActive                  // serving update requests
	StateClosed                  // terminated normally, including lookup failures
	StateErrored                 // terminated by a protocol or transport fault
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

func (s State) terminal() bool {
	return s == StateClosed || s == StateErrored
}

// ErrAlreadyStarted is returned when Run is called more than once on a Session
var ErrAlreadyStarted = errors.New("session already started")

// Conn is the bidirectional message connection a Session is served over.
// *websocket.Conn satisfies it.
type Conn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// WithLogger sets the logger for the session
func WithLogger(logger *slog.Logger) func(*Session) {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithInitialBatch makes the session send a batch at the stored frequency as
// soon as it becomes active, before any update request arrives.
func WithInitialBatch(enabled bool) func(*Session) {
	return func(s *Session) {
		s.initialBatch = enabled
	}
}

// Session serves a single connection from accept to close. Amplitude and phase
// are loaded once from the scope lookup; every update request re-tunes the
// frequency and is answered with a freshly computed batch, strictly in order.
type Session struct {
	scopeID string
	conn    Conn
	lookup  scope.Lookup

	initialBatch bool
	logger       *slog.Logger

	started   atomic.Bool
	state     atomic.Int32
	generator waveform.Generator
	frequency float64

	updates   atomic.Int64
	bytesSent atomic.Uint64
	createdAt time.Time

	closeOnce sync.Once
	closeErr  error
}

// NewSession creates a new Session with a discard logger
func NewSession(scopeID string, conn Conn, lookup scope.Lookup, options ...func(*Session)) *Session {
	s := Session{
		scopeID:   scopeID,
		conn:      conn,
		lookup:    lookup,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		createdAt: time.Now(),
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return State(s.state.Load())
}

// Parameters returns the waveform parameters the session last served. It must
// not be called while Run is in progress.
func (s *Session) Parameters() waveform.Parameters {
	return waveform.Parameters{
		Frequency: s.frequency,
		Amplitude: s.generator.Amplitude,
		Phase:     s.generator.Phase,
	}
}

// setState moves the session to next unless it has already terminated.
func (s *Session) setState(next State) bool {
	for {
		cur := s.state.Load()
		if State(cur).terminal() {
			return false
		}
		if s.state.CompareAndSwap(cur, int32(next)) {
			return true
		}
	}
}

// Run serves the session until the peer disconnects, ctx is cancelled or a
// fault occurs. The connection is closed exactly once on every path. A nil
// error means the peer closed the connection.
func (s *Session) Run(ctx context.Context) (err error) {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	defer func() { s.finish(err) }()

	if err = s.open(ctx); err != nil {
		if errors.Is(err, errPeerClosed) {
			return nil
		}
		return err
	}

	if s.initialBatch {
		if err = s.respond(ctx, s.frequency); err != nil {
			return err
		}
	}

	for {
		var frequency float64
		if frequency, err = s.receive(ctx); err != nil {
			if errors.Is(err, errPeerClosed) || s.State().terminal() {
				return nil
			}
			return err
		}

		if err = s.respond(ctx, frequency); err != nil {
			if s.State().terminal() {
				return nil
			}
			return err
		}
	}
}

// Close terminates the session with a normal closure. Pending reads and writes
// are unblocked. It is safe to call Close multiple times and concurrently with Run.
func (s *Session) Close() error {
	s.finish(nil)
	return s.closeErr
}

func (s *Session) open(ctx context.Context) error {
	sc, err := s.lookup.Scope(ctx, s.scopeID)
	if err != nil {
		msg := lookupFailed
		if errors.Is(err, scope.ErrNotFound) {
			msg = notFoundMessage
		}

		lookupErr := &LookupError{ScopeID: s.scopeID, Err: err}
		if sendErr := s.send(ctx, &ErrorMessage{Error: msg}); sendErr != nil {
			return errors.Join(lookupErr, sendErr)
		}
		return lookupErr
	}

	s.generator = waveform.New(sc.Amplitude, sc.Phase)
	s.frequency = sc.Frequency

	if !s.setState(StateActive) {
		return errPeerClosed
	}

	s.logger.Debug("session active",
		slog.Float64("frequency", sc.Frequency),
		slog.Float64("amplitude", sc.Amplitude),
		slog.Float64("phase", sc.Phase))

	return nil
}

var errPeerClosed = errors.New("peer closed the connection")

func (s *Session) receive(ctx context.Context) (float64, error) {
	typ, p, err := s.conn.Read(ctx)
	if err != nil {
		if websocket.CloseStatus(err) != -1 {
			return 0, errPeerClosed
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, &TransportError{Op: "read", Err: err}
	}

	if typ != websocket.MessageText {
		return 0, &ProtocolError{Err: fmt.Errorf("unexpected %s message", typ)}
	}

	frequency, err := decodeUpdateRequest(p)
	if err != nil {
		return 0, &ProtocolError{Err: err}
	}
	return frequency, nil
}

func (s *Session) respond(ctx context.Context, frequency float64) error {
	s.frequency = frequency

	batch := s.generator.Batch(frequency)
	if err := s.send(ctx, newUpdate(batch)); err != nil {
		return err
	}

	s.updates.Add(1)
	return nil
}

func (s *Session) send(ctx context.Context, v any) error {
	p, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	if err = s.conn.Write(ctx, websocket.MessageText, p); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &TransportError{Op: "write", Err: err}
	}

	s.bytesSent.Add(uint64(len(p)))
	return nil
}

// finish runs the close procedure once, whatever ended the session.
func (s *Session) finish(cause error) {
	s.closeOnce.Do(func() {
		state := StateClosed
		code, reason := websocket.StatusNormalClosure, ""
		level := slog.LevelInfo

		var lookupErr *LookupError
		var protocolErr *ProtocolError
		var transportErr *TransportError

		switch {
		case cause == nil:

		case errors.Is(cause, context.Canceled), errors.Is(cause, context.DeadlineExceeded):
			code, reason = websocket.StatusGoingAway, "server shutting down"

		case errors.As(cause, &lookupErr):
			reason = "scope lookup failed"
			level = slog.LevelWarn

		case errors.As(cause, &protocolErr):
			state = StateErrored
			code, reason = websocket.StatusUnsupportedData, "malformed update request"
			level = slog.LevelError

		case errors.As(cause, &transportErr):
			state = StateErrored
			code = websocket.StatusInternalError
			level = slog.LevelError

		default:
			state = StateErrored
			code = websocket.StatusInternalError
			level = slog.LevelError
		}

		s.state.Store(int32(state))
		s.closeErr = s.conn.Close(code, reason)

		attrs := []any{
			slog.String("state", state.String()),
			slog.String("updates", humanize.Comma(s.updates.Load())),
			slog.String("sent", humanize.Bytes(s.bytesSent.Load())),
			slog.Duration("duration", time.Since(s.createdAt)),
		}
		if cause != nil {
			attrs = append(attrs, slog.String("error", cause.Error()))
		}
		if s.closeErr != nil {
			s.logger.Debug("closing connection", slog.String("error", s.closeErr.Error()))
		}

		s.logger.Log(context.Background(), level, "session closed", attrs...)
	})
}
