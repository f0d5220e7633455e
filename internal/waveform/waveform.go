// Package waveform generates the sniper-scope sine signal and the fixed
// sample batches streamed to clients.
package waveform

import "math"

const (
	// SampleCount is the number of points in every batch
	SampleCount = 1000

	// SampleStep is the time distance between two consecutive points
	SampleStep = 0.001
)

// Parameters describe a single oscillator configuration.
type Parameters struct {
	Frequency float64 `json:"frequency"` // Frequency in Hz
	Amplitude float64 `json:"amplitude"` // Peak amplitude
	Phase     float64 `json:"phase"`     // Phase shift in radians
}

// SampleFunc returns the signal value at time t
type SampleFunc func(t float64) float64

// Build returns the sample function amplitude * sin(2π·frequency·t + phase)
func Build(frequency, amplitude, phase float64) SampleFunc {
	return New(amplitude, phase).WithFrequency(frequency)
}

// Generator holds the amplitude and phase of an oscillator. The frequency is
// supplied per call so that a generator can be re-tuned without rebuilding.
type Generator struct {
	Amplitude float64
	Phase     float64
}

// New creates a new Generator
func New(amplitude, phase float64) Generator {
	return Generator{Amplitude: amplitude, Phase: phase}
}

// SampleAt evaluates the signal at time t for the given frequency.
func (g Generator) SampleAt(frequency, t float64) float64 {
	// explicit conversion keeps the argument rounded before the phase is added
	return g.Amplitude * math.Sin(float64(2*math.Pi*frequency*t)+g.Phase)
}

// WithFrequency returns a sample function tuned to frequency, keeping the
// generator amplitude and phase.
func (g Generator) WithFrequency(frequency float64) SampleFunc {
	return func(t float64) float64 {
		return g.SampleAt(frequency, t)
	}
}

// Batch computes a fresh sample batch at frequency over the fixed schedule.
func (g Generator) Batch(frequency float64) Batch {
	times := Schedule()
	values := make([]float64, len(times))
	for i, t := range times {
		values[i] = g.SampleAt(frequency, t)
	}

	return Batch{
		Frequency: frequency,
		Times:     times,
		Values:    values,
	}
}

// Batch is an ordered sequence of (time, value) pairs. Times and Values always
// have the same length.
type Batch struct {
	Frequency float64
	Times     []float64
	Values    []float64
}

// Len returns the number of samples in the batch
func (b Batch) Len() int {
	return len(b.Times)
}

// Schedule returns the sample times: SampleCount points, SampleStep apart,
// starting at zero. A new slice is returned on every call.
func Schedule() []float64 {
	times := make([]float64, SampleCount)
	for i := range times {
		times[i] = float64(i) * SampleStep
	}
	return times
}

// Evaluate applies fn to every time point in order.
func Evaluate(fn SampleFunc, times []float64) []float64 {
	values := make([]float64, len(times))
	for i, t := range times {
		values[i] = fn(t)
	}
	return values
}

// Bounds returns the minimum and maximum finite values of the batch. ok is
// false when the batch holds no finite value.
func (b Batch) Bounds() (lo, hi float64, ok bool) {
	for _, v := range b.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if !ok {
			lo, hi, ok = v, v, true
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return
}
