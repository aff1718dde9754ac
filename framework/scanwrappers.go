package framework

import (
	"fmt"

	"github.com/imago-ml/imago/dtype"
	"github.com/imago-ml/imago/img"
)

// ScanSingleOutput calls Scan with no inputs and one output, which must be
// forged; its geometry defines the scan domain.
func ScanSingleOutput(out *img.Image, bufferType dtype.Type, filter ScanLineFilter, opts ScanOptions) error {
	return Scan(nil, []*img.Image{out},
		nil,
		[]dtype.Type{bufferType},
		[]dtype.Type{out.DataType()},
		[]int{out.TensorLen()},
		filter, opts)
}

// ScanSingleInput calls Scan with one input and no outputs; used by
// reductions that accumulate into filter state. A forged mask is checked,
// singleton-expanded to the input's sizes, and passed as a second input
// whose buffer keeps the binary type.
func ScanSingleInput(in, mask *img.Image, bufferType dtype.Type, filter ScanLineFilter, opts ScanOptions) error {
	ins := []*img.Image{in}
	bufTypes := []dtype.Type{bufferType}
	if mask != nil && mask.IsForged() {
		m := mask.View()
		if err := m.CheckIsMask(in.Sizes()); err != nil {
			return fmt.Errorf("ScanSingleInput: %w", err)
		}
		if err := m.ExpandSingletonDimensions(in.Sizes()); err != nil {
			return fmt.Errorf("ScanSingleInput: %w", err)
		}
		ins = append(ins, m)
		bufTypes = append(bufTypes, m.DataType())
	}
	return Scan(ins, nil, bufTypes, nil, nil, nil, filter, opts)
}

// ScanMonadic calls Scan with one input and one output, using the same
// buffer type on both sides.
func ScanMonadic(in, out *img.Image, bufferType, outImageType dtype.Type, nTensorElements int, filter ScanLineFilter, opts ScanOptions) error {
	return Scan([]*img.Image{in}, []*img.Image{out},
		[]dtype.Type{bufferType},
		[]dtype.Type{bufferType},
		[]dtype.Type{outImageType},
		[]int{nTensorElements},
		filter, opts)
}

// ScanDyadic calls Scan with two inputs and one output. A scalar input is
// broadcast over the other's tensor elements; non-scalar inputs must have
// the same tensor length. The filter always sees scalar samples.
func ScanDyadic(in1, in2, out *img.Image, inBufferType, outBufferType, outImageType dtype.Type, filter ScanLineFilter, opts ScanOptions) error {
	nTensor := in1.TensorLen()
	switch {
	case in1.IsScalar():
		nTensor = in2.TensorLen()
	case in2.IsScalar() || in1.TensorLen() == in2.TensorLen():
		// nTensor already set.
	default:
		return fmt.Errorf("ScanDyadic: %w", img.ErrTensorShapeMismatch)
	}
	return Scan([]*img.Image{in1, in2}, []*img.Image{out},
		[]dtype.Type{inBufferType, inBufferType},
		[]dtype.Type{outBufferType},
		[]dtype.Type{outImageType},
		[]int{nTensor},
		filter, opts|ScanTensorAsSpatialDim)
}
