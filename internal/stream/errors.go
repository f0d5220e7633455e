package stream

import "fmt"

// LookupError is returned when the scope of a session could not be resolved.
// The session never becomes active.
type LookupError struct {
	ScopeID string
	Err     error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("looking up scope %s: %s", e.ScopeID, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// ProtocolError is returned when the peer sends a malformed or unexpected message.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol fault: %s", e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// TransportError is returned when the connection fails mid-exchange.
type TransportError struct {
	Op  string // "read" or "write"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport fault on %s: %s", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
