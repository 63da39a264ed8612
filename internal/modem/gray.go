package modem

import "fmt"

// MaxGrayWidth is the widest Gray code GrayCode will build.
const MaxGrayWidth = 16

// GrayCode returns the reflected binary code of width n: 2^n values where
// entry 0 is 0 and each entry differs from the previous one in exactly one bit.
func GrayCode(n int) ([]uint, error) {
	if n <= 0 || n > MaxGrayWidth {
		return nil, fmt.Errorf("%w: gray code width %d not in [1, %d]", ErrInvalidArgument, n, MaxGrayWidth)
	}

	code := make([]uint, 1, 1<<n)
	// Reflect the sequence built so far and prefix the mirrored half with the
	// next bit.
	for bit := 0; bit < n; bit++ {
		prefix := uint(1) << bit
		for i := len(code) - 1; i >= 0; i-- {
			code = append(code, code[i]|prefix)
		}
	}
	return code, nil
}
