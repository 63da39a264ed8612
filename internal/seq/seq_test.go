package seq

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinspace(t *testing.T) {
	tests := []struct {
		name       string
		start, end float64
		count      int
		want       []float64
	}{
		{"single", 3, 7, 1, []float64{3}},
		{"two", -1, 1, 2, []float64{-1, 1}},
		{"four", -3, 3, 4, []float64{-3, -1, 1, 3}},
		{"descending", 1, 0, 3, []float64{1, 0.5, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Linspace(tt.start, tt.end, tt.count)
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-12, "index %d", i)
			}
		})
	}
}

func TestLinspace_InvalidCount(t *testing.T) {
	_, err := Linspace(0, 1, 0)
	assert.Error(t, err)
	_, err = Linspace(0, 1, -2)
	assert.Error(t, err)
}

func TestArange(t *testing.T) {
	got, err := Arange(0.0, 1.0, 0.25)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75}, got)

	// Stop is exclusive even when it lands exactly on a step.
	got, err = Arange(0.0, 2*math.Pi, 2*math.Pi/8)
	require.NoError(t, err)
	assert.Len(t, got, 8)
	assert.InDelta(t, 7*2*math.Pi/8, got[7], 1e-12)

	got32, err := Arange[float32](1, 2, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1.5}, got32)
}

func TestArange_Edges(t *testing.T) {
	got, err := Arange(1.0, 1.0, 0.1)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = Arange(0.0, 1.0, 0)
	assert.Error(t, err)
	_, err = Arange(0.0, 1.0, -0.5)
	assert.Error(t, err)
}
