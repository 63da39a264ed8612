package modem

import "errors"

// Modem errors
var (
	// ErrInvalidArgument indicates malformed configuration or input, such as
	// an unsupported bits-per-symbol value or an incomplete final byte.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupported indicates a structurally valid but unimplemented
	// combination, such as packing with bits-per-symbol that does not divide 8.
	ErrUnsupported = errors.New("unsupported")

	// ErrLookup indicates a symbol index outside the constellation domain.
	// It is an internal consistency failure, not a user input error.
	ErrLookup = errors.New("symbol index out of constellation domain")
)
