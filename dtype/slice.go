package dtype

import "math"

// Sample is the constraint matching the Go types that back each Type tag.
type Sample interface {
	~bool | ~uint8 | ~int8 | ~uint16 | ~int16 | ~uint32 | ~int32 |
		~uint64 | ~int64 | ~float32 | ~float64 | ~complex64 | ~complex128
}

// Real is the constraint matching the orderable sample types.
type Real interface {
	~uint8 | ~int8 | ~uint16 | ~int16 | ~uint32 | ~int32 |
		~uint64 | ~int64 | ~float32 | ~float64
}

// Alloc returns a zeroed typed slice of n samples of type t. The result is
// one of []bool, []uint8, ..., []complex128, held as any.
func Alloc(t Type, n int) any {
	switch t {
	case Binary:
		return make([]bool, n)
	case Uint8:
		return make([]uint8, n)
	case Int8:
		return make([]int8, n)
	case Uint16:
		return make([]uint16, n)
	case Int16:
		return make([]int16, n)
	case Uint32:
		return make([]uint32, n)
	case Int32:
		return make([]int32, n)
	case Uint64:
		return make([]uint64, n)
	case Int64:
		return make([]int64, n)
	case Float32:
		return make([]float32, n)
	case Float64:
		return make([]float64, n)
	case Complex64:
		return make([]complex64, n)
	case Complex128:
		return make([]complex128, n)
	default:
		panic("unknown data type")
	}
}

// Len returns the length of a typed slice produced by Alloc.
func Len(data any) int {
	switch d := data.(type) {
	case []bool:
		return len(d)
	case []uint8:
		return len(d)
	case []int8:
		return len(d)
	case []uint16:
		return len(d)
	case []int16:
		return len(d)
	case []uint32:
		return len(d)
	case []int32:
		return len(d)
	case []uint64:
		return len(d)
	case []int64:
		return len(d)
	case []float32:
		return len(d)
	case []float64:
		return len(d)
	case []complex64:
		return len(d)
	case []complex128:
		return len(d)
	default:
		panic("not a sample slice")
	}
}

// FloatGetter returns a function reading sample i of the typed slice as a
// float64. Complex samples yield their real component, binary samples 0 or 1.
// The type switch is resolved here, once, so callers can loop without
// re-dispatching per sample.
func FloatGetter(data any) func(i int) float64 {
	switch d := data.(type) {
	case []bool:
		return func(i int) float64 {
			if d[i] {
				return 1
			}
			return 0
		}
	case []uint8:
		return func(i int) float64 { return float64(d[i]) }
	case []int8:
		return func(i int) float64 { return float64(d[i]) }
	case []uint16:
		return func(i int) float64 { return float64(d[i]) }
	case []int16:
		return func(i int) float64 { return float64(d[i]) }
	case []uint32:
		return func(i int) float64 { return float64(d[i]) }
	case []int32:
		return func(i int) float64 { return float64(d[i]) }
	case []uint64:
		return func(i int) float64 { return float64(d[i]) }
	case []int64:
		return func(i int) float64 { return float64(d[i]) }
	case []float32:
		return func(i int) float64 { return float64(d[i]) }
	case []float64:
		return func(i int) float64 { return d[i] }
	case []complex64:
		return func(i int) float64 { return float64(real(d[i])) }
	case []complex128:
		return func(i int) float64 { return real(d[i]) }
	default:
		panic("not a sample slice")
	}
}

// ComplexGetter returns a function reading sample i of the typed slice as a
// complex128. Real samples have a zero imaginary component.
func ComplexGetter(data any) func(i int) complex128 {
	switch d := data.(type) {
	case []complex64:
		return func(i int) complex128 { return complex128(d[i]) }
	case []complex128:
		return func(i int) complex128 { return d[i] }
	default:
		g := FloatGetter(data)
		return func(i int) complex128 { return complex(g(i), 0) }
	}
}

// FloatSetter returns a function writing a float64 into sample i of the typed
// slice, clamping to the destination range. Values are truncated (not
// rounded) when the destination is an integer type; writing into a binary
// slice stores v != 0.
func FloatSetter(data any) func(i int, v float64) {
	switch d := data.(type) {
	case []bool:
		return func(i int, v float64) { d[i] = v != 0 }
	case []uint8:
		return func(i int, v float64) { d[i] = uint8(clamp(v, 0, math.MaxUint8)) }
	case []int8:
		return func(i int, v float64) { d[i] = int8(clamp(v, math.MinInt8, math.MaxInt8)) }
	case []uint16:
		return func(i int, v float64) { d[i] = uint16(clamp(v, 0, math.MaxUint16)) }
	case []int16:
		return func(i int, v float64) { d[i] = int16(clamp(v, math.MinInt16, math.MaxInt16)) }
	case []uint32:
		return func(i int, v float64) { d[i] = uint32(clamp(v, 0, math.MaxUint32)) }
	case []int32:
		return func(i int, v float64) { d[i] = int32(clamp(v, math.MinInt32, math.MaxInt32)) }
	case []uint64:
		return func(i int, v float64) { d[i] = uint64(clamp(v, 0, maxUint64Float)) }
	case []int64:
		return func(i int, v float64) { d[i] = int64(clamp(v, math.MinInt64, maxInt64Float)) }
	case []float32:
		return func(i int, v float64) { d[i] = float32(v) }
	case []float64:
		return func(i int, v float64) { d[i] = v }
	case []complex64:
		return func(i int, v float64) { d[i] = complex(float32(v), 0) }
	case []complex128:
		return func(i int, v float64) { d[i] = complex(v, 0) }
	default:
		panic("not a sample slice")
	}
}

// ComplexSetter returns a function writing a complex128 into sample i of the
// typed slice. Real destinations keep the real component only, clamped like
// FloatSetter.
func ComplexSetter(data any) func(i int, v complex128) {
	switch d := data.(type) {
	case []complex64:
		return func(i int, v complex128) { d[i] = complex64(v) }
	case []complex128:
		return func(i int, v complex128) { d[i] = v }
	default:
		s := FloatSetter(data)
		return func(i int, v complex128) { s(i, real(v)) }
	}
}

// The float64 values nearest to but not exceeding the 64-bit integer limits.
// float64(MaxUint64) rounds up to 2^64, and converting that back to uint64
// overflows, so the limits themselves cannot be used as clamp bounds.
const (
	maxUint64Float = 18446744073709549568.0
	maxInt64Float  = 9223372036854774784.0
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
