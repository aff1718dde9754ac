package img

import (
	"fmt"
	"sort"
)

// View transforms. All of these rewrite the header in place and never move
// samples; engines apply them to View() copies of the caller's operands.

// ExpandSingletonDimensions broadcasts the image to newSizes: each dimension
// where the image has size 1 and newSizes is larger gets the new size with
// stride 0. Missing trailing dimensions are appended as broadcast dimensions.
// A non-singleton size mismatch is an error.
func (im *Image) ExpandSingletonDimensions(newSizes []int) error {
	if len(newSizes) < len(im.sizes) {
		return fmt.Errorf("ExpandSingletonDimensions: %w", ErrSizesDontMatch)
	}
	for len(im.sizes) < len(newSizes) {
		im.sizes = append(im.sizes, 1)
		im.strides = append(im.strides, 0)
	}
	for i, n := range newSizes {
		switch {
		case im.sizes[i] == n:
			// Nothing to do.
		case im.sizes[i] == 1:
			im.sizes[i] = n
			im.strides[i] = 0
		default:
			return fmt.Errorf("ExpandSingletonDimensions: %w", ErrSizesDontMatch)
		}
	}
	return nil
}

// UnexpandSingletonDimension undoes a singleton expansion of dimension d,
// returning it to size 1.
func (im *Image) UnexpandSingletonDimension(d int) {
	im.sizes[d] = 1
	im.strides[d] = 0
}

// ExpandSingletonTensor broadcasts a scalar image to n tensor elements with
// tensor stride 0.
func (im *Image) ExpandSingletonTensor(n int) error {
	if im.tensorLen == n {
		return nil
	}
	if im.tensorLen != 1 {
		return fmt.Errorf("ExpandSingletonTensor: %w", ErrTensorShapeMismatch)
	}
	im.tensorLen = n
	im.tensorStride = 0
	return nil
}

// UnexpandSingletonTensor undoes ExpandSingletonTensor.
func (im *Image) UnexpandSingletonTensor() {
	im.tensorLen = 1
	im.tensorStride = 0
}

// TensorToSpatial converts the tensor dimension into a spatial dimension
// inserted at position d, leaving a scalar image. This is how one engine
// implementation covers both "per pixel" and "per tensor element" iteration.
func (im *Image) TensorToSpatial(d int) {
	im.sizes = append(im.sizes, 0)
	copy(im.sizes[d+1:], im.sizes[d:])
	im.sizes[d] = im.tensorLen
	im.strides = append(im.strides, 0)
	copy(im.strides[d+1:], im.strides[d:])
	im.strides[d] = im.tensorStride
	im.tensorLen = 1
	im.tensorStride = 0
}

// Squeeze removes all dimensions of size 1.
func (im *Image) Squeeze() {
	j := 0
	for i := range im.sizes {
		if im.sizes[i] != 1 {
			im.sizes[j] = im.sizes[i]
			im.strides[j] = im.strides[i]
			j++
		}
	}
	im.sizes = im.sizes[:j]
	im.strides = im.strides[:j]
}

// HasNormalStrides reports whether the image has the strides Forge creates.
func (im *Image) HasNormalStrides() bool {
	if im.tensorStride != 1 {
		return false
	}
	return sameInts(im.strides, normalStrides(im.sizes, im.tensorLen))
}

// SimpleStride returns the single stride with which all pixels of the image
// can be visited (in some order), and whether such a stride exists. Pixels
// are simply strided when the dimensions, sorted by stride, tile the sample
// range without gaps; tensor elements must be dense under the pixel stride.
func (im *Image) SimpleStride() (int, bool) {
	type ext struct{ stride, size int }
	dims := make([]ext, 0, len(im.sizes))
	for i, s := range im.sizes {
		if s == 0 {
			return 0, false
		}
		if s > 1 {
			dims = append(dims, ext{im.strides[i], s})
		}
	}
	if im.tensorLen > 1 && im.tensorStride != 1 {
		return 0, false
	}
	sort.Slice(dims, func(i, j int) bool { return dims[i].stride < dims[j].stride })
	expect := im.tensorLen
	for _, d := range dims {
		if d.stride != expect {
			return 0, false
		}
		expect *= d.size
	}
	if len(dims) == 0 {
		return im.tensorLen, true
	}
	return dims[0].stride, true
}

// HasSimpleStride reports whether SimpleStride succeeds.
func (im *Image) HasSimpleStride() bool {
	_, ok := im.SimpleStride()
	return ok
}

// Flatten reshapes the image into a 1-D view over the same samples. It
// requires a simple stride.
func (im *Image) Flatten() error {
	stride, ok := im.SimpleStride()
	if !ok {
		return fmt.Errorf("Flatten: image does not have a simple stride")
	}
	im.sizes = []int{im.NumPixels()}
	im.strides = []int{stride}
	return nil
}

// HasSameDimensionOrder reports whether the two images visit their
// dimensions in the same stride order, considering only dimensions of size
// greater than 1.
func (im *Image) HasSameDimensionOrder(other *Image) bool {
	if len(im.sizes) != len(other.sizes) {
		return false
	}
	a := dimOrder(im)
	b := dimOrder(other)
	return sameInts(a, b)
}

func dimOrder(im *Image) []int {
	order := make([]int, 0, len(im.sizes))
	for i, s := range im.sizes {
		if s > 1 && im.strides[i] != 0 {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return abs(im.strides[order[i]]) < abs(im.strides[order[j]])
	})
	return order
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// SingletonExpandedSize computes the common size a set of images broadcasts
// to, growing size-1 dimensions to match. It fails when two images disagree
// in a non-singleton dimension.
func SingletonExpandedSize(in []*Image) ([]int, error) {
	sizes := append([]int(nil), in[0].Sizes()...)
	for _, im := range in[1:] {
		s2 := im.Sizes()
		for len(sizes) < len(s2) {
			sizes = append(sizes, 1)
		}
		for j := range s2 {
			if sizes[j] != s2[j] {
				switch {
				case sizes[j] == 1:
					sizes[j] = s2[j]
				case s2[j] != 1:
					return nil, ErrSizesDontMatch
				}
			}
		}
	}
	return sizes, nil
}

// SingletonExpandedTensorLen computes the common tensor length a set of
// images broadcasts to.
func SingletonExpandedTensorLen(in []*Image) (int, error) {
	n := in[0].TensorLen()
	for _, im := range in[1:] {
		n2 := im.TensorLen()
		if n != n2 {
			switch {
			case n == 1:
				n = n2
			case n2 != 1:
				return 0, ErrSizesDontMatch
			}
		}
	}
	return n, nil
}
