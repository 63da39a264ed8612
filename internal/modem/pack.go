package modem

import (
	"fmt"
	"math/bits"
)

// checkPackWidth validates bits per symbol for byte packing.
func checkPackWidth(bps int) error {
	if bps <= 0 || bps > 8 {
		return fmt.Errorf("%w: bits per symbol %d not in [1, 8]", ErrInvalidArgument, bps)
	}
	if 8%bps != 0 {
		return fmt.Errorf("%w: %d bits per symbol does not divide a byte", ErrUnsupported, bps)
	}
	return nil
}

// Pack splits each byte, most significant bits first, into 8/bps symbol
// indices of bps bits each. Symbols never straddle a byte boundary.
func Pack(data []byte, bps int) ([]uint, error) {
	if err := checkPackWidth(bps); err != nil {
		return nil, err
	}

	perByte := 8 / bps
	mask := byte(1<<bps - 1)
	indices := make([]uint, 0, len(data)*perByte)
	for _, b := range data {
		for shift := 8 - bps; shift >= 0; shift -= bps {
			indices = append(indices, uint((b>>shift)&mask))
		}
	}
	return indices, nil
}

// Unpack reassembles bytes from runs of 8/bps indices, first index in the
// most significant bits.
func Unpack(indices []uint, bps int) ([]byte, error) {
	if err := checkPackWidth(bps); err != nil {
		return nil, err
	}

	perByte := 8 / bps
	if len(indices)%perByte != 0 {
		return nil, fmt.Errorf("%w: %d indices leave an incomplete final byte (%d per byte)",
			ErrInvalidArgument, len(indices), perByte)
	}
	limit := uint(1) << bps
	for i, idx := range indices {
		if idx >= limit {
			return nil, fmt.Errorf("%w: index %d at position %d exceeds %d bits", ErrInvalidArgument, idx, i, bps)
		}
	}

	data := make([]byte, len(indices)/perByte)
	for i := range data {
		var b byte
		for _, idx := range indices[i*perByte : (i+1)*perByte] {
			b = b<<bps | byte(idx)
		}
		data[i] = b
	}
	return data, nil
}

// BitErrors counts differing bits between two byte slices of equal length.
// Extra bytes in the longer slice count as fully wrong.
func BitErrors(want, got []byte) int {
	n := min(len(want), len(got))
	errs := 8 * (max(len(want), len(got)) - n)
	for i := 0; i < n; i++ {
		errs += bits.OnesCount8(want[i] ^ got[i])
	}
	return errs
}

// SymbolErrors counts positions where two index sequences disagree.
// Extra indices in the longer slice count as errors.
func SymbolErrors(want, got []uint) int {
	n := min(len(want), len(got))
	errs := max(len(want), len(got)) - n
	for i := 0; i < n; i++ {
		if want[i] != got[i] {
			errs++
		}
	}
	return errs
}
