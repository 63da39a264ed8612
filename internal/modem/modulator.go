package modem

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Modulate packs data into symbol indices using the constellation's bits per
// symbol and maps each index to its point.
func Modulate(data []byte, c *Constellation) ([]complex128, error) {
	indices, err := Pack(data, c.BitsPerSymbol())
	if err != nil {
		return nil, err
	}
	return MapSymbols(indices, c)
}

// MapSymbols maps symbol indices to constellation points.
func MapSymbols(indices []uint, c *Constellation) ([]complex128, error) {
	samples := make([]complex128, len(indices))
	for i, idx := range indices {
		p, err := c.Point(idx)
		if err != nil {
			return nil, fmt.Errorf("symbol %d: %w", i, err)
		}
		samples[i] = p
	}
	return samples, nil
}

// DemapSymbols decides the nearest constellation index for every sample.
func DemapSymbols(samples []complex128, c *Constellation) []uint {
	indices := make([]uint, len(samples))
	decideInto(indices, samples, c)
	return indices
}

// Demodulate decides every sample and unpacks the indices back into bytes.
func Demodulate(samples []complex128, c *Constellation) ([]byte, error) {
	return Unpack(DemapSymbols(samples, c), c.BitsPerSymbol())
}

func decideInto(dst []uint, samples []complex128, c *Constellation) {
	for i, s := range samples {
		dst[i] = c.Decide(s)
	}
}

// Modulator converts bytes into complex samples for one constellation.
type Modulator struct {
	constellation *Constellation
}

// NewModulator creates a modulator for the given modulation.
func NewModulator(mod Modulation) (*Modulator, error) {
	c, err := mod.Constellation()
	if err != nil {
		return nil, err
	}
	return &Modulator{constellation: c}, nil
}

// Constellation returns the modulator's constellation.
func (m *Modulator) Constellation() *Constellation { return m.constellation }

// Modulate converts data bytes into complex samples.
func (m *Modulator) Modulate(data []byte) ([]complex128, error) {
	return Modulate(data, m.constellation)
}

// MinParallelSamples is the batch size below which a Demodulator decides
// samples on the calling goroutine.
const MinParallelSamples = 4096

// Demodulator converts received samples back into bytes. With more than one
// worker, large batches are split into contiguous chunks decided
// concurrently.
type Demodulator struct {
	constellation *Constellation
	workers       int
}

// NewDemodulator creates a demodulator for the given modulation.
func NewDemodulator(mod Modulation, workers int) (*Demodulator, error) {
	c, err := mod.Constellation()
	if err != nil {
		return nil, err
	}
	return NewDemodulatorFor(c, workers), nil
}

// NewDemodulatorFor creates a demodulator around an existing constellation.
func NewDemodulatorFor(c *Constellation, workers int) *Demodulator {
	if workers < 1 {
		workers = 1
	}
	return &Demodulator{constellation: c, workers: workers}
}

// Constellation returns the demodulator's constellation.
func (d *Demodulator) Constellation() *Constellation { return d.constellation }

// DemapSymbols decides the nearest index for every sample.
func (d *Demodulator) DemapSymbols(samples []complex128) []uint {
	indices := make([]uint, len(samples))
	if d.workers == 1 || len(samples) < MinParallelSamples {
		decideInto(indices, samples, d.constellation)
		return indices
	}

	chunk := (len(samples) + d.workers - 1) / d.workers
	var g errgroup.Group
	for start := 0; start < len(samples); start += chunk {
		start := start
		end := min(start+chunk, len(samples))
		g.Go(func() error {
			decideInto(indices[start:end], samples[start:end], d.constellation)
			return nil
		})
	}
	_ = g.Wait()
	return indices
}

// Demodulate decides every sample and unpacks the result into bytes.
func (d *Demodulator) Demodulate(samples []complex128) ([]byte, error) {
	return Unpack(d.DemapSymbols(samples), d.constellation.BitsPerSymbol())
}
