package scope

import (
	"context"
	"errors"
	"time"

	"github.com/roman-kulish/sniper-scope/internal/waveform"
)

// ErrNotFound is returned when no scope matches the requested identifier
var ErrNotFound = errors.New("scope not found")

// Scope is a named oscillator configuration owned by the scope store.
type Scope struct {
	ID        string    `json:"id"`        // Unique identifier of the scope
	Name      string    `json:"name"`      // Human readable name
	Frequency float64   `json:"frequency"` // Frequency of the sine wave in Hz
	Amplitude float64   `json:"amplitude"` // Amplitude of the sine wave
	Phase     float64   `json:"phase"`     // Phase shift in radians
	CreatedAt time.Time `json:"createdAt"` // When the scope was stored
}

// Parameters returns the waveform parameters of the scope
func (s *Scope) Parameters() waveform.Parameters {
	return waveform.Parameters{
		Frequency: s.Frequency,
		Amplitude: s.Amplitude,
		Phase:     s.Phase,
	}
}

// Lookup resolves a scope by its identifier. Implementations return an error
// wrapping ErrNotFound when the scope does not exist.
type Lookup interface {
	Scope(ctx context.Context, id string) (*Scope, error)
}
