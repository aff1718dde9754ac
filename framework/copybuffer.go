package framework

import (
	"github.com/imago-ml/imago/dtype"
)

// copyBuffer copies pixels worth of samples from src to dst, converting
// between the slice types with clamping where needed. Both strides zero
// means every pixel is the same pixel, so only one is copied.
func copyBuffer(src Buffer, srcType dtype.Type, dst Buffer, dstType dtype.Type, pixels int) {
	if src.Stride == 0 && dst.Stride == 0 {
		pixels = 1
	}
	tlen := dst.TensorLen
	if src.TensorLen < tlen {
		tlen = src.TensorLen
	}
	if pixels == 0 || tlen == 0 {
		return
	}
	if srcType == dstType && copySameType(src, dst, pixels, tlen) {
		return
	}
	if srcType.IsComplex() || dstType.IsComplex() {
		get := dtype.ComplexGetter(src.Data)
		set := dtype.ComplexSetter(dst.Data)
		for p := 0; p < pixels; p++ {
			so := src.Offset + p*src.Stride
			do := dst.Offset + p*dst.Stride
			for t := 0; t < tlen; t++ {
				set(do+t*dst.TensorStride, get(so+t*src.TensorStride))
			}
		}
		return
	}
	get := dtype.FloatGetter(src.Data)
	set := dtype.FloatSetter(dst.Data)
	for p := 0; p < pixels; p++ {
		so := src.Offset + p*src.Stride
		do := dst.Offset + p*dst.Stride
		for t := 0; t < tlen; t++ {
			set(do+t*dst.TensorStride, get(so+t*src.TensorStride))
		}
	}
}

func copySameType(src, dst Buffer, pixels, tlen int) bool {
	switch s := src.Data.(type) {
	case []bool:
		copyStrided(s, src, dst.Data.([]bool), dst, pixels, tlen)
	case []uint8:
		copyStrided(s, src, dst.Data.([]uint8), dst, pixels, tlen)
	case []int8:
		copyStrided(s, src, dst.Data.([]int8), dst, pixels, tlen)
	case []uint16:
		copyStrided(s, src, dst.Data.([]uint16), dst, pixels, tlen)
	case []int16:
		copyStrided(s, src, dst.Data.([]int16), dst, pixels, tlen)
	case []uint32:
		copyStrided(s, src, dst.Data.([]uint32), dst, pixels, tlen)
	case []int32:
		copyStrided(s, src, dst.Data.([]int32), dst, pixels, tlen)
	case []uint64:
		copyStrided(s, src, dst.Data.([]uint64), dst, pixels, tlen)
	case []int64:
		copyStrided(s, src, dst.Data.([]int64), dst, pixels, tlen)
	case []float32:
		copyStrided(s, src, dst.Data.([]float32), dst, pixels, tlen)
	case []float64:
		copyStrided(s, src, dst.Data.([]float64), dst, pixels, tlen)
	case []complex64:
		copyStrided(s, src, dst.Data.([]complex64), dst, pixels, tlen)
	case []complex128:
		copyStrided(s, src, dst.Data.([]complex128), dst, pixels, tlen)
	default:
		return false
	}
	return true
}

func copyStrided[T any](s []T, src Buffer, d []T, dst Buffer, pixels, tlen int) {
	if src.Stride == 1 && dst.Stride == 1 && tlen == 1 {
		copy(d[dst.Offset:dst.Offset+pixels], s[src.Offset:src.Offset+pixels])
		return
	}
	for p := 0; p < pixels; p++ {
		so := src.Offset + p*src.Stride
		do := dst.Offset + p*dst.Stride
		for t := 0; t < tlen; t++ {
			d[do+t*dst.TensorStride] = s[so+t*src.TensorStride]
		}
	}
}
