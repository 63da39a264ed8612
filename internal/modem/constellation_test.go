package modem

import (
	"errors"
	"math"
	"math/bits"
	"math/cmplx"
	"testing"
)

var supported = []Modulation{
	ModBPSK, ModQPSK, Mod8PSK, Mod16PSK,
	Mod4QAM, Mod16QAM, Mod64QAM, Mod256QAM,
}

func mustConstellation(t *testing.T, mod Modulation) *Constellation {
	t.Helper()
	c, err := mod.Constellation()
	if err != nil {
		t.Fatalf("%v: build constellation: %v", mod, err)
	}
	return c
}

func TestConstellation_Bijective(t *testing.T) {
	for _, mod := range supported {
		t.Run(mod.String(), func(t *testing.T) {
			c := mustConstellation(t, mod)

			want := 1 << mod.BitsPerSymbol
			if c.Size() != want {
				t.Fatalf("size %d, expected %d", c.Size(), want)
			}

			points := c.Points()
			for i := range points {
				for j := i + 1; j < len(points); j++ {
					if cmplx.Abs(points[i]-points[j]) < 1e-9 {
						t.Errorf("indices %d and %d share point %v", i, j, points[i])
					}
				}
			}
		})
	}
}

func TestQAM_GrayAdjacency(t *testing.T) {
	for _, bps := range []int{2, 4, 6, 8} {
		c, err := BuildQAM(bps)
		if err != nil {
			t.Fatalf("BuildQAM(%d): %v", bps, err)
		}

		side := 1 << (bps / 2)
		step := 2 * qamSpan / float64(side-1)
		points := c.Points()
		neighbours := 0

		for i := range points {
			for j := i + 1; j < len(points); j++ {
				dx := math.Abs(real(points[i]) - real(points[j]))
				dy := math.Abs(imag(points[i]) - imag(points[j]))
				horizontal := math.Abs(dx-step) < 1e-9 && dy < 1e-9
				vertical := math.Abs(dy-step) < 1e-9 && dx < 1e-9
				if !horizontal && !vertical {
					continue
				}
				neighbours++
				if d := bits.OnesCount(uint(i ^ j)); d != 1 {
					t.Errorf("%d-QAM: neighbours %d and %d differ in %d bits", side*side, i, j, d)
				}
			}
		}

		// Each row and each column of a side x side grid has side-1 adjacent pairs.
		if want := 2 * side * (side - 1); neighbours != want {
			t.Errorf("%d-QAM: found %d adjacent pairs, expected %d", side*side, neighbours, want)
		}
	}
}

func TestQAM_GridLevels(t *testing.T) {
	c, err := BuildQAM(4)
	if err != nil {
		t.Fatalf("BuildQAM: %v", err)
	}

	for _, p := range c.Points() {
		for _, v := range []float64{real(p), imag(p)} {
			if math.Abs(v) > qamSpan+1e-12 {
				t.Errorf("point %v outside [-%v, %v]", p, qamSpan, qamSpan)
			}
		}
	}

	// Index 0 is the Gray code origin: bottom-left corner.
	p0, _ := c.Point(0)
	if cmplx.Abs(p0-complex(-qamSpan, -qamSpan)) > 1e-12 {
		t.Errorf("point 0 = %v, expected (%v, %v)", p0, -qamSpan, -qamSpan)
	}
}

func TestBPSK_Points(t *testing.T) {
	c, err := BuildPSK(1)
	if err != nil {
		t.Fatalf("BuildPSK(1): %v", err)
	}

	p0, _ := c.Point(0)
	p1, _ := c.Point(1)
	if p0 != complex(-1, 0) {
		t.Errorf("index 0 = %v, expected (-1,0)", p0)
	}
	if p1 != complex(1, 0) {
		t.Errorf("index 1 = %v, expected (1,0)", p1)
	}

	if got := c.Decide(complex(0.9, 0.05)); got != 1 {
		t.Errorf("Decide(0.9+0.05i) = %d, expected 1", got)
	}
}

func TestPSK_PhaseOrder(t *testing.T) {
	for _, bps := range []int{2, 3, 4} {
		c, err := BuildPSK(bps)
		if err != nil {
			t.Fatalf("BuildPSK(%d): %v", bps, err)
		}

		size := 1 << bps
		for i, p := range c.Points() {
			want := cmplx.Rect(1, float64(i)*2*math.Pi/float64(size))
			if cmplx.Abs(p-want) > 1e-12 {
				t.Errorf("%d-PSK index %d = %v, expected %v", size, i, p, want)
			}
		}
	}
}

func TestConstellation_Energy(t *testing.T) {
	for _, mod := range []Modulation{ModBPSK, ModQPSK, Mod8PSK, Mod16PSK, Mod4QAM} {
		c := mustConstellation(t, mod)
		if e := c.AverageEnergy(); math.Abs(e-1) > 1e-12 {
			t.Errorf("%v average energy %v, expected 1", mod, e)
		}
	}

	// Larger grids share the 4-QAM span, so their energy falls below one.
	c := mustConstellation(t, Mod16QAM)
	if e := c.AverageEnergy(); e >= 1 || e <= 0 {
		t.Errorf("16-QAM average energy %v, expected in (0, 1)", e)
	}
}

func TestConstellation_MinDistance(t *testing.T) {
	tests := []struct {
		mod  Modulation
		want float64
	}{
		{ModBPSK, 2},
		{Mod4QAM, math.Sqrt2},
		{ModQPSK, math.Sqrt2},
		{Mod16QAM, math.Sqrt2 / 3},
	}

	for _, tt := range tests {
		c := mustConstellation(t, tt.mod)
		if d := c.MinDistance(); math.Abs(d-tt.want) > 1e-12 {
			t.Errorf("%v min distance %v, expected %v", tt.mod, d, tt.want)
		}
	}
}

func TestConstellation_Decide_Exact(t *testing.T) {
	for _, mod := range supported {
		c := mustConstellation(t, mod)
		for i, p := range c.Points() {
			if got := c.Decide(p); got != uint(i) {
				t.Errorf("%v: Decide(point %d) = %d", mod, i, got)
			}
		}
	}
}

func TestConstellation_Decide_NoiseBelowHalfDistance(t *testing.T) {
	for _, mod := range supported {
		c := mustConstellation(t, mod)
		radius := 0.49 * c.MinDistance()

		for i, p := range c.Points() {
			for k := 0; k < 16; k++ {
				offset := cmplx.Rect(radius, float64(k)*2*math.Pi/16)
				if got := c.Decide(p + offset); got != uint(i) {
					t.Errorf("%v: point %d perturbed by %v decided as %d", mod, i, offset, got)
				}
			}
		}
	}
}

func TestConstellation_Decide_TieLowestIndex(t *testing.T) {
	c := mustConstellation(t, Mod4QAM)
	if got := c.Decide(0); got != 0 {
		t.Errorf("origin decided as %d, expected 0", got)
	}

	c = mustConstellation(t, ModBPSK)
	if got := c.Decide(complex(0, 0.3)); got != 0 {
		t.Errorf("imaginary axis decided as %d, expected 0", got)
	}
}

func TestConstellation_InvalidArgs(t *testing.T) {
	tests := []struct {
		name   string
		scheme Scheme
		bps    int
	}{
		{"QAM odd", SchemeQAM, 3},
		{"QAM zero", SchemeQAM, 0},
		{"QAM negative", SchemeQAM, -2},
		{"QAM too large", SchemeQAM, 10},
		{"PSK zero", SchemePSK, 0},
		{"PSK too large", SchemePSK, 5},
		{"unknown scheme", Scheme(9), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewConstellation(tt.scheme, tt.bps)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
			if c != nil {
				t.Errorf("expected nil constellation on error")
			}
		})
	}
}

func TestConstellation_PointLookup(t *testing.T) {
	c := mustConstellation(t, Mod16QAM)
	if _, err := c.Point(15); err != nil {
		t.Errorf("Point(15): %v", err)
	}
	if _, err := c.Point(16); !errors.Is(err, ErrLookup) {
		t.Errorf("Point(16): expected ErrLookup, got %v", err)
	}

	// Points returns a copy.
	pts := c.Points()
	pts[0] = 42
	if p, _ := c.Point(0); p == 42 {
		t.Error("Points exposed internal storage")
	}
}

func TestParseModulation(t *testing.T) {
	tests := []struct {
		name string
		want Modulation
	}{
		{"bpsk", ModBPSK},
		{"QPSK", ModQPSK},
		{"8psk", Mod8PSK},
		{"16PSK", Mod16PSK},
		{"4-QAM", Mod4QAM},
		{"16-QAM", Mod16QAM},
		{"64QAM", Mod64QAM},
		{" 256-qam ", Mod256QAM},
	}

	for _, tt := range tests {
		got, err := ParseModulation(tt.name)
		if err != nil {
			t.Errorf("ParseModulation(%q): %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseModulation(%q) = %v, expected %v", tt.name, got, tt.want)
		}
	}

	if _, err := ParseModulation("32-QAM"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("32-QAM: expected ErrInvalidArgument, got %v", err)
	}
}

func TestModulation_String(t *testing.T) {
	names := map[Modulation]string{
		ModBPSK:   "BPSK",
		ModQPSK:   "QPSK",
		Mod8PSK:   "8PSK",
		Mod16PSK:  "16PSK",
		Mod16QAM:  "16-QAM",
		Mod256QAM: "256-QAM",
	}
	for mod, want := range names {
		if got := mod.String(); got != want {
			t.Errorf("String() = %q, expected %q", got, want)
		}
	}

	c := mustConstellation(t, Mod64QAM)
	if c.Name() != "64-QAM" || c.Scheme() != SchemeQAM || c.BitsPerSymbol() != 6 {
		t.Errorf("unexpected constellation identity: %s %v %d", c.Name(), c.Scheme(), c.BitsPerSymbol())
	}
}
