// Package img provides the strided N-dimensional image (array view) type
// consumed by the processing frameworks.
//
// An Image describes a region of a typed sample slice: a per-dimension size
// and signed stride (in samples), a tensor (per-pixel channel vector) length
// and stride, and an origin offset. Multiple images may share one backing
// slice; reversed, broadcast and sub-sampled views are all expressed through
// strides, never through copying.
package img

import (
	"fmt"
	"reflect"

	"github.com/imago-ml/imago/dtype"
)

// Image is a strided view over a typed sample slice. The zero value is an
// unforged header: it has no backing storage and most operations on it fail
// until Forge is called.
type Image struct {
	data         any // typed slice per dtype.Alloc; nil while unforged
	origin       int // index of the sample at coordinate (0,0,...), tensor 0
	dt           dtype.Type
	sizes        []int
	strides      []int // in samples, may be negative or zero
	tensorLen    int
	tensorStride int
}

// New returns a forged scalar (single-channel) image with normal strides.
func New(dt dtype.Type, sizes ...int) (*Image, error) {
	return NewTensor(dt, 1, sizes...)
}

// NewTensor returns a forged image with tensorLen channels per pixel and
// normal strides: tensor stride 1, dimension 0 fastest.
func NewTensor(dt dtype.Type, tensorLen int, sizes ...int) (*Image, error) {
	im := &Image{dt: dt, sizes: append([]int(nil), sizes...), tensorLen: tensorLen}
	if err := im.Forge(); err != nil {
		return nil, err
	}
	return im, nil
}

// NewHeader returns an unforged header with the given shape. The processing
// frameworks forge output headers themselves.
func NewHeader() *Image {
	return &Image{dt: dtype.Float32, tensorLen: 1}
}

// Forge allocates backing storage for the current sizes, tensor length and
// data type, with normal strides. Forging a forged image is an error.
func (im *Image) Forge() error {
	if im.IsForged() {
		return fmt.Errorf("Forge: image already forged")
	}
	if im.tensorLen < 1 {
		return fmt.Errorf("Forge: %w", ErrTensorShapeMismatch)
	}
	n := im.tensorLen
	for _, s := range im.sizes {
		if s < 0 {
			return fmt.Errorf("Forge: %w", ErrParameterOutOfRange)
		}
		n *= s
	}
	im.tensorStride = 1
	im.strides = normalStrides(im.sizes, im.tensorLen)
	im.origin = 0
	im.data = dtype.Alloc(im.dt, n)
	return nil
}

func normalStrides(sizes []int, tensorLen int) []int {
	strides := make([]int, len(sizes))
	s := tensorLen
	for i := range sizes {
		strides[i] = s
		s *= sizes[i]
	}
	return strides
}

// Strip discards the backing storage, leaving an unforged header.
func (im *Image) Strip() {
	im.data = nil
	im.origin = 0
	im.strides = nil
}

// ReForge gives the image the requested shape and type, reusing the current
// allocation when it already matches exactly.
func (im *Image) ReForge(sizes []int, tensorLen int, dt dtype.Type) error {
	if im.IsForged() && im.dt == dt && im.tensorLen == tensorLen && sameInts(im.sizes, sizes) {
		return nil
	}
	im.Strip()
	im.dt = dt
	im.sizes = append([]int(nil), sizes...)
	im.tensorLen = tensorLen
	return im.Forge()
}

// IsForged reports whether the image has backing storage.
func (im *Image) IsForged() bool {
	return im.data != nil
}

// MustBeForged returns ErrNotForged when the image has no backing storage.
func (im *Image) MustBeForged() error {
	if !im.IsForged() {
		return ErrNotForged
	}
	return nil
}

// View returns a shallow copy of the header, sharing the backing storage.
// Engines take views so they can reshape operands freely without touching the
// caller's image.
func (im *Image) View() *Image {
	v := *im
	v.sizes = append([]int(nil), im.sizes...)
	v.strides = append([]int(nil), im.strides...)
	return &v
}

// DataType returns the sample type.
func (im *Image) DataType() dtype.Type { return im.dt }

// SetDataType changes the sample type of an unforged header.
func (im *Image) SetDataType(dt dtype.Type) { im.dt = dt }

// Dimensionality returns the number of spatial dimensions.
func (im *Image) Dimensionality() int { return len(im.sizes) }

// Sizes returns the per-dimension sizes. The slice is owned by the image.
func (im *Image) Sizes() []int { return im.sizes }

// Size returns the size along dimension d.
func (im *Image) Size(d int) int { return im.sizes[d] }

// SetSizes replaces the sizes of an unforged header.
func (im *Image) SetSizes(sizes []int) { im.sizes = append([]int(nil), sizes...) }

// Strides returns the per-dimension strides, in samples.
func (im *Image) Strides() []int { return im.strides }

// Stride returns the stride of dimension d, in samples.
func (im *Image) Stride(d int) int { return im.strides[d] }

// TensorLen returns the number of tensor elements (channels) per pixel.
func (im *Image) TensorLen() int { return im.tensorLen }

// SetTensorLen changes the tensor length of an unforged header.
func (im *Image) SetTensorLen(n int) { im.tensorLen = n }

// TensorStride returns the stride between tensor elements, in samples.
func (im *Image) TensorStride() int { return im.tensorStride }

// IsScalar reports whether the image has a single channel per pixel.
func (im *Image) IsScalar() bool { return im.tensorLen == 1 }

// Data returns the backing typed slice (one of []bool, []uint8, ...,
// []complex128), or nil when unforged.
func (im *Image) Data() any { return im.data }

// Origin returns the sample index of coordinate (0,0,...), tensor element 0.
func (im *Image) Origin() int { return im.origin }

// ShiftOrigin moves the origin by the given number of samples. Used by the
// frameworks to address sub-views without copying headers around.
func (im *Image) ShiftOrigin(offset int) { im.origin += offset }

// NumPixels returns the number of pixels (tensor elements not counted).
func (im *Image) NumPixels() int {
	n := 1
	for _, s := range im.sizes {
		n *= s
	}
	return n
}

// NumSamples returns the total number of samples, tensor elements included.
func (im *Image) NumSamples() int {
	return im.NumPixels() * im.tensorLen
}

// Offset returns the sample index for the given coordinates (tensor element
// 0). Coordinates are not bounds-checked.
func (im *Image) Offset(coords []int) int {
	off := im.origin
	for i, c := range coords {
		off += c * im.strides[i]
	}
	return off
}

// SharesData reports whether the two images use the same backing slice.
func (im *Image) SharesData(other *Image) bool {
	if !im.IsForged() || !other.IsForged() {
		return false
	}
	return reflect.ValueOf(im.data).Pointer() == reflect.ValueOf(other.data).Pointer()
}

// Aliases reports whether the two images may touch the same samples. The
// test intersects the sample index intervals covered by each view; it can
// report true for interleaved views that never actually collide, which is
// the safe direction (the caller makes a copy).
func (im *Image) Aliases(other *Image) bool {
	if !im.SharesData(other) {
		return false
	}
	aLo, aHi := im.sampleInterval()
	bLo, bHi := other.sampleInterval()
	return aLo <= bHi && bLo <= aHi
}

// IsOverlappingView reports whether the image aliases any of the given
// images.
func (im *Image) IsOverlappingView(others ...*Image) bool {
	for _, o := range others {
		if o != nil && im.Aliases(o) {
			return true
		}
	}
	return false
}

func (im *Image) sampleInterval() (lo, hi int) {
	lo, hi = im.origin, im.origin
	for i, s := range im.sizes {
		d := (s - 1) * im.strides[i]
		if d < 0 {
			lo += d
		} else {
			hi += d
		}
	}
	d := (im.tensorLen - 1) * im.tensorStride
	if d < 0 {
		lo += d
	} else {
		hi += d
	}
	return lo, hi
}

// SameSizes reports whether the two images have identical spatial sizes.
func (im *Image) SameSizes(other *Image) bool {
	return sameInts(im.sizes, other.sizes)
}

// Center returns the coordinates of the image center, (size-1)/2 per
// dimension.
func (im *Image) Center() []float64 {
	c := make([]float64, len(im.sizes))
	for i, s := range im.sizes {
		c[i] = float64(s-1) / 2
	}
	return c
}

// IsInside reports whether the (real-valued) coordinates fall inside the
// image domain.
func (im *Image) IsInside(coords []float64) bool {
	if len(coords) != len(im.sizes) {
		return false
	}
	for i, c := range coords {
		if c < 0 || c > float64(im.sizes[i]-1) {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer for diagnostics.
func (im *Image) String() string {
	if !im.IsForged() {
		return fmt.Sprintf("unforged image, sizes %v, %s", im.sizes, im.dt)
	}
	return fmt.Sprintf("image, sizes %v, strides %v, %d-tensor, %s", im.sizes, im.strides, im.tensorLen, im.dt)
}

func sameInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
