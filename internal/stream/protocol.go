package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/roman-kulish/sniper-scope/internal/waveform"
)

const (
	updateMessage   = "Real-time signal update"
	notFoundMessage = "Scope not found"
	lookupFailed    = "Scope lookup failed"
)

// UpdateRequest is the inbound message asking for a batch at a new frequency.
// Fields other than frequency are ignored.
type UpdateRequest struct {
	Frequency *float64 `json:"frequency"`
}

// Update is the outbound response carrying a recomputed sample batch.
type Update struct {
	Message      string `json:"message"`
	Frequency    Float  `json:"frequency"`
	TimeValues   Floats `json:"time_values"`
	SignalValues Floats `json:"signal_values"`
}

// ErrorMessage is sent once when a session cannot become active.
type ErrorMessage struct {
	Error string `json:"error"`
}

func newUpdate(b waveform.Batch) *Update {
	return &Update{
		Message:      updateMessage,
		Frequency:    Float(b.Frequency),
		TimeValues:   b.Times,
		SignalValues: b.Values,
	}
}

func decodeUpdateRequest(p []byte) (float64, error) {
	dec := json.NewDecoder(bytes.NewReader(p))

	var req UpdateRequest
	if err := dec.Decode(&req); err != nil {
		return 0, fmt.Errorf("decoding update request: %w", err)
	}
	if dec.More() {
		return 0, fmt.Errorf("decoding update request: unexpected data after message")
	}
	if req.Frequency == nil {
		return 0, fmt.Errorf("decoding update request: missing frequency")
	}

	return *req.Frequency, nil
}

// Float is a float64 that encodes NaN and ±Inf as JSON null.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	return appendFloat(nil, float64(f)), nil
}

// Floats is a float64 slice that encodes NaN and ±Inf elements as JSON null.
type Floats []float64

func (fs Floats) MarshalJSON() ([]byte, error) {
	if fs == nil {
		return []byte("null"), nil
	}

	// roughly 20 bytes per sample
	b := make([]byte, 0, len(fs)*20+2)
	b = append(b, '[')
	for i, f := range fs {
		if i > 0 {
			b = append(b, ',')
		}
		b = appendFloat(b, f)
	}
	return append(b, ']'), nil
}

// appendFloat formats f the way encoding/json does, or as null when f is not finite.
func appendFloat(b []byte, f float64) []byte {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return append(b, "null"...)
	}

	abs := math.Abs(f)
	format := byte('f')
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}

	b = strconv.AppendFloat(b, f, format, -1, 64)
	if format == 'e' {
		// clean up e-09 to e-9
		n := len(b)
		if n >= 4 && b[n-4] == 'e' && b[n-3] == '-' && b[n-2] == '0' {
			b[n-2] = b[n-1]
			b = b[:n-1]
		}
	}
	return b
}
