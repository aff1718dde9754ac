package framework

import (
	"fmt"

	"github.com/imago-ml/imago/img"
)

// BoundaryCondition selects how samples outside the image domain are
// synthesized when a separable filter reads across the edge.
type BoundaryCondition int

const (
	// BoundaryMirror reflects the image at the edge (abc -> cba|abc|cba).
	BoundaryMirror BoundaryCondition = iota
	// BoundaryAsymMirror reflects and negates.
	BoundaryAsymMirror
	// BoundaryPeriodic tiles the image (abc -> abc|abc|abc).
	BoundaryPeriodic
	// BoundaryAsymPeriodic tiles and negates.
	BoundaryAsymPeriodic
	// BoundaryZero pads with zeros.
	BoundaryZero
	// BoundaryClamp repeats the edge sample.
	BoundaryClamp
)

// ParseBoundaryCondition maps a name to a BoundaryCondition. The empty
// string selects the default, mirroring.
func ParseBoundaryCondition(s string) (BoundaryCondition, error) {
	switch s {
	case "", "mirror":
		return BoundaryMirror, nil
	case "asymmetric mirror":
		return BoundaryAsymMirror, nil
	case "periodic":
		return BoundaryPeriodic, nil
	case "asymmetric periodic":
		return BoundaryAsymPeriodic, nil
	case "zeros":
		return BoundaryZero, nil
	case "clamp":
		return BoundaryClamp, nil
	default:
		return 0, fmt.Errorf("ParseBoundaryCondition: %q: %w", s, img.ErrInvalidFlag)
	}
}

func (bc BoundaryCondition) String() string {
	switch bc {
	case BoundaryMirror:
		return "mirror"
	case BoundaryAsymMirror:
		return "asymmetric mirror"
	case BoundaryPeriodic:
		return "periodic"
	case BoundaryAsymPeriodic:
		return "asymmetric periodic"
	case BoundaryZero:
		return "zeros"
	case BoundaryClamp:
		return "clamp"
	}
	return "unknown"
}

// expandBuffer fills the border samples on both sides of a line buffer
// according to the boundary condition. The buffer's Offset addresses the
// first in-domain pixel; the border samples sit before and after it.
func expandBuffer(buf SeparableBuffer, bc BoundaryCondition) {
	if buf.Border <= 0 {
		return
	}
	switch d := buf.Data.(type) {
	case []bool:
		expandLine(d, buf, bc, func(v bool) bool { return !v })
	case []uint8:
		expandLine(d, buf, bc, func(uint8) uint8 { return 0 })
	case []int8:
		expandLine(d, buf, bc, negSigned[int8])
	case []uint16:
		expandLine(d, buf, bc, func(uint16) uint16 { return 0 })
	case []int16:
		expandLine(d, buf, bc, negSigned[int16])
	case []uint32:
		expandLine(d, buf, bc, func(uint32) uint32 { return 0 })
	case []int32:
		expandLine(d, buf, bc, negSigned[int32])
	case []uint64:
		expandLine(d, buf, bc, func(uint64) uint64 { return 0 })
	case []int64:
		expandLine(d, buf, bc, negSigned[int64])
	case []float32:
		expandLine(d, buf, bc, func(v float32) float32 { return -v })
	case []float64:
		expandLine(d, buf, bc, func(v float64) float64 { return -v })
	case []complex64:
		expandLine(d, buf, bc, func(v complex64) complex64 { return -v })
	case []complex128:
		expandLine(d, buf, bc, func(v complex128) complex128 { return -v })
	}
}

// negSigned saturates at the maximum so the minimum value does not wrap.
func negSigned[T int8 | int16 | int32 | int64](v T) T {
	if -v == v && v != 0 { // minimum of T negates to itself
		return ^v
	}
	return -v
}

func expandLine[T any](d []T, buf SeparableBuffer, bc BoundaryCondition, neg func(T) T) {
	n, b := buf.Length, buf.Border
	var zero T
	for j := 0; j < buf.TensorLen; j++ {
		base := buf.Offset + j*buf.TensorStride
		for i := -b; i < 0; i++ {
			d[base+i*buf.Stride] = boundarySample(d, base, buf.Stride, i, n, bc, neg, zero)
		}
		for i := n; i < n+b; i++ {
			d[base+i*buf.Stride] = boundarySample(d, base, buf.Stride, i, n, bc, neg, zero)
		}
	}
}

func boundarySample[T any](d []T, base, stride, i, n int, bc BoundaryCondition, neg func(T) T, zero T) T {
	switch bc {
	case BoundaryZero:
		return zero
	case BoundaryClamp:
		if i < 0 {
			return d[base]
		}
		return d[base+(n-1)*stride]
	case BoundaryPeriodic:
		return d[base+modIndex(i, n)*stride]
	case BoundaryAsymPeriodic:
		return neg(d[base+modIndex(i, n)*stride])
	case BoundaryAsymMirror:
		return neg(d[base+mirrorIndex(i, n)*stride])
	default: // BoundaryMirror
		return d[base+mirrorIndex(i, n)*stride]
	}
}

func modIndex(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

func mirrorIndex(i, n int) int {
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}
