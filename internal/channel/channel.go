// Package channel models the medium between modulator and demodulator.
package channel

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// Channel transforms transmitted samples into received samples. Apply
// returns a new slice and never modifies its input.
type Channel interface {
	Apply(samples []complex128) []complex128
}

// Ideal passes samples through unchanged.
type Ideal struct{}

// Apply returns a copy of samples.
func (Ideal) Apply(samples []complex128) []complex128 {
	out := make([]complex128, len(samples))
	copy(out, samples)
	return out
}

// AWGN adds circular white Gaussian noise at a fixed symbol SNR (Es/N0).
type AWGN struct {
	snrDB float64
	sigma float64 // per-dimension standard deviation

	mu  sync.Mutex
	rng *rand.Rand
}

// NewAWGN creates a noise channel for symbols of average energy es at the
// given Es/N0 in dB. The seed makes runs reproducible.
func NewAWGN(es, snrDB float64, seed int64) (*AWGN, error) {
	if es <= 0 || math.IsNaN(es) || math.IsInf(es, 0) {
		return nil, fmt.Errorf("symbol energy must be positive and finite, got %v", es)
	}
	if math.IsNaN(snrDB) {
		return nil, fmt.Errorf("snr is NaN")
	}

	n0 := es / math.Pow(10, snrDB/10)
	return &AWGN{
		snrDB: snrDB,
		sigma: math.Sqrt(n0 / 2),
		rng:   rand.New(rand.NewSource(seed)),
	}, nil
}

// SNR returns the configured Es/N0 in dB.
func (a *AWGN) SNR() float64 { return a.snrDB }

// Sigma returns the noise standard deviation per real dimension.
func (a *AWGN) Sigma() float64 { return a.sigma }

// Apply returns samples with independent noise added to each component.
func (a *AWGN) Apply(samples []complex128) []complex128 {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]complex128, len(samples))
	for i, s := range samples {
		out[i] = s + complex(a.rng.NormFloat64()*a.sigma, a.rng.NormFloat64()*a.sigma)
	}
	return out
}

// MeasureSNR estimates Es/N0 in dB from transmitted and received samples.
// It returns +Inf when the two are identical.
func MeasureSNR(sent, received []complex128) float64 {
	n := min(len(sent), len(received))
	if n == 0 {
		return math.NaN()
	}

	var signal, noise float64
	for i := 0; i < n; i++ {
		s := sent[i]
		e := received[i] - s
		signal += real(s)*real(s) + imag(s)*imag(s)
		noise += real(e)*real(e) + imag(e)*imag(e)
	}
	if noise == 0 {
		return math.Inf(1)
	}
	return 10 * math.Log10(signal/noise)
}
