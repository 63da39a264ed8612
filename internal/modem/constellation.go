package modem

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"

	"github.com/jeongseonghan/iqmodem/internal/seq"
)

// Scheme selects the constellation geometry.
type Scheme int

const (
	SchemePSK Scheme = iota + 1 // points on the unit circle
	SchemeQAM                   // points on a square grid
)

// String returns the scheme name.
func (s Scheme) String() string {
	switch s {
	case SchemePSK:
		return "PSK"
	case SchemeQAM:
		return "QAM"
	default:
		return "Unknown"
	}
}

// pskBitsPerSymbol lists the PSK orders BuildPSK accepts.
var pskBitsPerSymbol = map[int]bool{1: true, 2: true, 3: true, 4: true}

// MaxQAMBitsPerSymbol bounds square QAM at 256 points.
const MaxQAMBitsPerSymbol = 8

// qamSpan is the half-width of the QAM grid on each axis.
var qamSpan = math.Sqrt2 / 2

// Constellation is an immutable mapping from symbol index to complex point.
// Index i is stored at points[i].
type Constellation struct {
	scheme Scheme
	bps    int
	points []complex128
}

// NewConstellation builds the constellation for the given scheme and
// bits per symbol.
func NewConstellation(scheme Scheme, bps int) (*Constellation, error) {
	switch scheme {
	case SchemePSK:
		return BuildPSK(bps)
	case SchemeQAM:
		return BuildQAM(bps)
	default:
		return nil, fmt.Errorf("%w: unknown scheme %d", ErrInvalidArgument, int(scheme))
	}
}

// BuildPSK builds a PSK constellation. One bit per symbol gives BPSK at
// (-1,0) and (1,0); higher orders place index i at angle i*2pi/2^bps on the
// unit circle.
func BuildPSK(bps int) (*Constellation, error) {
	if !pskBitsPerSymbol[bps] {
		return nil, fmt.Errorf("%w: PSK does not support %d bits per symbol", ErrInvalidArgument, bps)
	}

	c := &Constellation{scheme: SchemePSK, bps: bps}
	if bps == 1 {
		c.points = []complex128{complex(-1, 0), complex(1, 0)}
		return c, nil
	}

	size := 1 << bps
	step := 2 * math.Pi / float64(size)
	angles, err := seq.Arange(0, 2*math.Pi, step)
	if err != nil {
		return nil, fmt.Errorf("psk angles: %w", err)
	}
	if len(angles) != size {
		return nil, fmt.Errorf("psk angles: got %d, want %d", len(angles), size)
	}

	c.points = make([]complex128, size)
	for i, theta := range angles {
		c.points[i] = cmplx.Rect(1, theta)
	}
	return c, nil
}

// BuildQAM builds a square QAM constellation with side 2^(bps/2). Row and
// column are Gray coded separately and concatenated, row bits high, so
// horizontal and vertical neighbours differ in exactly one bit.
func BuildQAM(bps int) (*Constellation, error) {
	if bps <= 0 || bps%2 != 0 || bps > MaxQAMBitsPerSymbol {
		return nil, fmt.Errorf("%w: QAM needs an even bits per symbol in [2, %d], got %d",
			ErrInvalidArgument, MaxQAMBitsPerSymbol, bps)
	}

	half := bps / 2
	side := 1 << half

	levels, err := seq.Linspace(-qamSpan, qamSpan, side)
	if err != nil {
		return nil, fmt.Errorf("qam levels: %w", err)
	}
	gray, err := GrayCode(half)
	if err != nil {
		return nil, fmt.Errorf("qam gray code: %w", err)
	}

	c := &Constellation{
		scheme: SchemeQAM,
		bps:    bps,
		points: make([]complex128, side*side),
	}
	for row := 0; row < side; row++ {
		for col := 0; col < side; col++ {
			idx := gray[row]<<half | gray[col]
			c.points[idx] = complex(levels[col], levels[row])
		}
	}
	return c, nil
}

// Scheme returns the constellation geometry.
func (c *Constellation) Scheme() Scheme { return c.scheme }

// BitsPerSymbol returns the number of bits carried by one point.
func (c *Constellation) BitsPerSymbol() int { return c.bps }

// Size returns the number of points, 2^bps.
func (c *Constellation) Size() int { return len(c.points) }

// Name returns a display name such as "QPSK" or "16-QAM".
func (c *Constellation) Name() string {
	return Modulation{Scheme: c.scheme, BitsPerSymbol: c.bps}.String()
}

// Point returns the point for a symbol index.
func (c *Constellation) Point(idx uint) (complex128, error) {
	if idx >= uint(len(c.points)) {
		return 0, fmt.Errorf("%w: index %d, size %d", ErrLookup, idx, len(c.points))
	}
	return c.points[idx], nil
}

// Points returns a copy of all points ordered by symbol index.
func (c *Constellation) Points() []complex128 {
	out := make([]complex128, len(c.points))
	copy(out, c.points)
	return out
}

// Decide returns the index of the point nearest to sample. Equidistant
// points resolve to the lowest index.
func (c *Constellation) Decide(sample complex128) uint {
	minDist := math.Inf(1)
	minIdx := 0

	for i, p := range c.points {
		d := sqDist(sample, p)
		if d < minDist {
			minDist = d
			minIdx = i
		}
	}
	return uint(minIdx)
}

// MinDistance returns the smallest Euclidean distance between two points.
func (c *Constellation) MinDistance() float64 {
	minDist := math.Inf(1)
	for i := range c.points {
		for j := i + 1; j < len(c.points); j++ {
			if d := sqDist(c.points[i], c.points[j]); d < minDist {
				minDist = d
			}
		}
	}
	return math.Sqrt(minDist)
}

// AverageEnergy returns the mean squared magnitude of the points.
func (c *Constellation) AverageEnergy() float64 {
	var sum float64
	for _, p := range c.points {
		sum += real(p)*real(p) + imag(p)*imag(p)
	}
	return sum / float64(len(c.points))
}

func sqDist(a, b complex128) float64 {
	d := a - b
	return real(d)*real(d) + imag(d)*imag(d)
}

// Modulation names a scheme together with its bits per symbol.
type Modulation struct {
	Scheme        Scheme
	BitsPerSymbol int
}

// Common modulations.
var (
	ModBPSK   = Modulation{SchemePSK, 1}
	ModQPSK   = Modulation{SchemePSK, 2}
	Mod8PSK   = Modulation{SchemePSK, 3}
	Mod16PSK  = Modulation{SchemePSK, 4}
	Mod4QAM   = Modulation{SchemeQAM, 2}
	Mod16QAM  = Modulation{SchemeQAM, 4}
	Mod64QAM  = Modulation{SchemeQAM, 6}
	Mod256QAM = Modulation{SchemeQAM, 8}
)

// String returns the modulation name.
func (m Modulation) String() string {
	switch {
	case m == ModBPSK:
		return "BPSK"
	case m == ModQPSK:
		return "QPSK"
	case m.Scheme == SchemePSK:
		return fmt.Sprintf("%dPSK", 1<<m.BitsPerSymbol)
	case m.Scheme == SchemeQAM:
		return fmt.Sprintf("%d-QAM", 1<<m.BitsPerSymbol)
	default:
		return "Unknown"
	}
}

// Constellation builds the constellation for m.
func (m Modulation) Constellation() (*Constellation, error) {
	return NewConstellation(m.Scheme, m.BitsPerSymbol)
}

// ParseModulation parses names like "BPSK", "QPSK", "8PSK", "16-QAM" or
// "64QAM". Matching ignores case.
func ParseModulation(name string) (Modulation, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", "")) {
	case "BPSK", "2PSK":
		return ModBPSK, nil
	case "QPSK", "4PSK":
		return ModQPSK, nil
	case "8PSK":
		return Mod8PSK, nil
	case "16PSK":
		return Mod16PSK, nil
	case "4QAM":
		return Mod4QAM, nil
	case "16QAM":
		return Mod16QAM, nil
	case "64QAM":
		return Mod64QAM, nil
	case "256QAM":
		return Mod256QAM, nil
	default:
		return Modulation{}, fmt.Errorf("%w: unknown modulation %q", ErrInvalidArgument, name)
	}
}
