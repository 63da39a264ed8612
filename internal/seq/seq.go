// Package seq generates evenly spaced numeric sequences.
package seq

import (
	"fmt"

	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/floats"
)

// Linspace returns count values evenly spaced from start to end inclusive.
// A count of 1 yields just start.
func Linspace(start, end float64, count int) ([]float64, error) {
	switch {
	case count <= 0:
		return nil, fmt.Errorf("linspace: count must be positive, got %d", count)
	case count == 1:
		return []float64{start}, nil
	}
	return floats.Span(make([]float64, count), start, end), nil
}

// Arange returns start, start+step, ... up to but excluding stop.
func Arange[T constraints.Float](start, stop, step T) ([]T, error) {
	if step <= 0 {
		return nil, fmt.Errorf("arange: step must be positive, got %v", step)
	}
	if stop <= start {
		return nil, nil
	}

	// Index-based stepping keeps accumulated rounding out of the values.
	n := int((stop - start) / step)
	if start+T(n)*step < stop {
		n++
	}
	values := make([]T, 0, n)
	for i := 0; i < n; i++ {
		v := start + T(i)*step
		if v >= stop {
			break
		}
		values = append(values, v)
	}
	return values, nil
}
