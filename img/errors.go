package img

import "errors"

// Error taxonomy shared by the image type and the processing frameworks.
// These are deterministic precondition failures: they are reported before any
// iteration starts, never retried, and never silently coerced.
var (
	ErrNotForged                  = errors.New("image not forged")
	ErrSizesDontMatch             = errors.New("sizes don't match")
	ErrDataTypeNotSupported       = errors.New("data type not supported")
	ErrArrayWrongLength           = errors.New("array parameter has wrong length")
	ErrParameterOutOfRange        = errors.New("parameter value out of range")
	ErrInvalidFlag                = errors.New("invalid flag value")
	ErrDimensionalityNotSupported = errors.New("dimensionality not supported")
	ErrNotScalar                  = errors.New("image is not scalar")
	ErrTensorShapeMismatch        = errors.New("tensor shapes don't match")
	ErrMaskNotValid               = errors.New("mask image not valid")
)
