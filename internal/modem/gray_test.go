package modem

import (
	"errors"
	"math/bits"
	"testing"
)

func TestGrayCode_Known(t *testing.T) {
	tests := []struct {
		n    int
		want []uint
	}{
		{1, []uint{0, 1}},
		{2, []uint{0, 1, 3, 2}},
		{3, []uint{0, 1, 3, 2, 6, 7, 5, 4}},
	}

	for _, tt := range tests {
		got, err := GrayCode(tt.n)
		if err != nil {
			t.Fatalf("GrayCode(%d): %v", tt.n, err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("GrayCode(%d) length %d, expected %d", tt.n, len(got), len(tt.want))
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("GrayCode(%d)[%d] = %d, expected %d", tt.n, i, got[i], tt.want[i])
			}
		}
	}
}

func TestGrayCode_Properties(t *testing.T) {
	for n := 1; n <= 10; n++ {
		code, err := GrayCode(n)
		if err != nil {
			t.Fatalf("GrayCode(%d): %v", n, err)
		}
		if len(code) != 1<<n {
			t.Fatalf("GrayCode(%d) length %d", n, len(code))
		}

		seen := make(map[uint]bool, len(code))
		for k, v := range code {
			if v >= 1<<n {
				t.Errorf("n=%d: entry %d = %d out of range", n, k, v)
			}
			if seen[v] {
				t.Errorf("n=%d: value %d repeated", n, v)
			}
			seen[v] = true

			if k > 0 {
				if d := bits.OnesCount(code[k] ^ code[k-1]); d != 1 {
					t.Errorf("n=%d: entries %d and %d differ in %d bits", n, k-1, k, d)
				}
			}
			// Reflected binary code has the closed form k ^ (k >> 1).
			if want := uint(k ^ (k >> 1)); v != want {
				t.Errorf("n=%d: entry %d = %d, expected %d", n, k, v, want)
			}
		}
	}
}

func TestGrayCode_InvalidWidth(t *testing.T) {
	for _, n := range []int{0, -1, MaxGrayWidth + 1} {
		if _, err := GrayCode(n); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("GrayCode(%d): expected ErrInvalidArgument, got %v", n, err)
		}
	}
}
