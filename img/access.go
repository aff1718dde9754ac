package img

import (
	"fmt"

	"github.com/imago-ml/imago/dtype"
)

// Sample access. The closures returned by the dtype package resolve the
// sample type once; per-sample access after that is a plain indexed read or
// write.

// Float returns the sample at the given coordinates (tensor element 0) as a
// float64.
func (im *Image) Float(coords ...int) float64 {
	return dtype.FloatGetter(im.data)(im.Offset(coords))
}

// FloatSample returns tensor element t of the pixel at the given coordinates
// as a float64.
func (im *Image) FloatSample(t int, coords []int) float64 {
	return dtype.FloatGetter(im.data)(im.Offset(coords) + t*im.tensorStride)
}

// Complex returns the sample at the given coordinates as a complex128.
func (im *Image) Complex(coords ...int) complex128 {
	return dtype.ComplexGetter(im.data)(im.Offset(coords))
}

// SetFloat writes a float64 into the sample at the given coordinates,
// clamping to the sample type's range.
func (im *Image) SetFloat(v float64, coords ...int) {
	dtype.FloatSetter(im.data)(im.Offset(coords), v)
}

// SetFloatSample writes tensor element t of the pixel at the given
// coordinates.
func (im *Image) SetFloatSample(v float64, t int, coords []int) {
	dtype.FloatSetter(im.data)(im.Offset(coords)+t*im.tensorStride, v)
}

// SetComplex writes a complex128 into the sample at the given coordinates.
func (im *Image) SetComplex(v complex128, coords ...int) {
	dtype.ComplexSetter(im.data)(im.Offset(coords), v)
}

// Fill writes v into every sample of the image.
func (im *Image) Fill(v float64) {
	set := dtype.FloatSetter(im.data)
	it := NewIterator(im)
	for it.Next() {
		off := it.Offset()
		for t := 0; t < im.tensorLen; t++ {
			set(off+t*im.tensorStride, v)
		}
	}
}

// CopyFrom copies the samples of src into the image, converting the sample
// type where it differs. Shapes must match exactly.
func (im *Image) CopyFrom(src *Image) error {
	if err := src.MustBeForged(); err != nil {
		return fmt.Errorf("CopyFrom: %w", err)
	}
	if err := im.MustBeForged(); err != nil {
		return fmt.Errorf("CopyFrom: %w", err)
	}
	if !im.SameSizes(src) || im.tensorLen != src.tensorLen {
		return fmt.Errorf("CopyFrom: %w", ErrSizesDontMatch)
	}
	get := dtype.ComplexGetter(src.data)
	set := dtype.ComplexSetter(im.data)
	dstIt := NewIterator(im)
	srcIt := NewIterator(src)
	for dstIt.Next() && srcIt.Next() {
		d, s := dstIt.Offset(), srcIt.Offset()
		for t := 0; t < im.tensorLen; t++ {
			set(d+t*im.tensorStride, get(s+t*src.tensorStride))
		}
	}
	return nil
}

// Iterator visits the pixels of an image in row-major order with dimension 0
// fastest. Within one image this order is fixed, which is what makes
// single-threaded runs exactly reproducible.
type Iterator struct {
	im     *Image
	coords []int
	offset int
	done   bool
	first  bool
}

// NewIterator returns an iterator positioned before the first pixel.
func NewIterator(im *Image) *Iterator {
	it := &Iterator{im: im, coords: make([]int, len(im.sizes)), offset: im.origin, first: true}
	for _, s := range im.sizes {
		if s == 0 {
			it.done = true
		}
	}
	return it
}

// Next advances to the next pixel, returning false when the image is
// exhausted.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	if it.first {
		it.first = false
		return true
	}
	for d := 0; d < len(it.coords); d++ {
		it.coords[d]++
		it.offset += it.im.strides[d]
		if it.coords[d] < it.im.sizes[d] {
			return true
		}
		it.offset -= it.coords[d] * it.im.strides[d]
		it.coords[d] = 0
	}
	it.done = true
	return false
}

// Offset returns the sample index of the current pixel (tensor element 0).
func (it *Iterator) Offset() int { return it.offset }

// Coords returns the coordinates of the current pixel. The slice is reused
// between calls.
func (it *Iterator) Coords() []int { return it.coords }

// CheckIsMask validates that the image can serve as a mask for an operand of
// the given sizes: binary sample type, scalar tensor, and sizes that are
// equal or singleton-expandable to the operand's.
func (im *Image) CheckIsMask(sizes []int) error {
	if err := im.MustBeForged(); err != nil {
		return fmt.Errorf("CheckIsMask: %w", err)
	}
	if im.dt != dtype.Binary {
		return fmt.Errorf("CheckIsMask: %w: mask must be binary", ErrMaskNotValid)
	}
	if !im.IsScalar() {
		return fmt.Errorf("CheckIsMask: %w: mask must be scalar", ErrNotScalar)
	}
	if len(im.sizes) > len(sizes) {
		return fmt.Errorf("CheckIsMask: %w", ErrSizesDontMatch)
	}
	for i, s := range im.sizes {
		if s != sizes[i] && s != 1 {
			return fmt.Errorf("CheckIsMask: %w", ErrSizesDontMatch)
		}
	}
	return nil
}
