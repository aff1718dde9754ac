// Package arith provides element-wise arithmetic and comparison on images.
// Each operation is a small scan line filter; operand promotion follows the
// dtype suggestion tables, tensors are broadcast per the dyadic scan rules,
// and the filters work on staged float64 or complex128 lines so one
// implementation serves every sample type.
package arith

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/imago-ml/imago/dtype"
	"github.com/imago-ml/imago/framework"
	"github.com/imago-ml/imago/img"
)

type dyadicFloatFilter struct {
	framework.LineFilterBase
	op func(a, b float64) float64
}

func (f *dyadicFloatFilter) Filter(p *framework.ScanLineParams) error {
	in1 := framework.Samples[float64](p.In[0])
	in2 := framework.Samples[float64](p.In[1])
	out := framework.Samples[float64](p.Out[0])
	o1, s1 := p.In[0].Offset, p.In[0].Stride
	o2, s2 := p.In[1].Offset, p.In[1].Stride
	oo, so := p.Out[0].Offset, p.Out[0].Stride
	for i := 0; i < p.Length; i++ {
		out[oo] = f.op(in1[o1], in2[o2])
		o1 += s1
		o2 += s2
		oo += so
	}
	return nil
}

type dyadicComplexFilter struct {
	framework.LineFilterBase
	op func(a, b complex128) complex128
}

func (f *dyadicComplexFilter) Filter(p *framework.ScanLineParams) error {
	in1 := framework.Samples[complex128](p.In[0])
	in2 := framework.Samples[complex128](p.In[1])
	out := framework.Samples[complex128](p.Out[0])
	o1, s1 := p.In[0].Offset, p.In[0].Stride
	o2, s2 := p.In[1].Offset, p.In[1].Stride
	oo, so := p.Out[0].Offset, p.Out[0].Stride
	for i := 0; i < p.Length; i++ {
		out[oo] = f.op(in1[o1], in2[o2])
		o1 += s1
		o2 += s2
		oo += so
	}
	return nil
}

func dyadic(op string, in1, in2, out *img.Image, fop func(a, b float64) float64, cop func(a, b complex128) complex128) error {
	if err := in1.MustBeForged(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := in2.MustBeForged(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	outType := dtype.SuggestArithmetic(in1.DataType(), in2.DataType())
	bufType := dtype.SuggestDouble(outType)
	var filter framework.ScanLineFilter
	if bufType.IsComplex() {
		filter = &dyadicComplexFilter{op: cop}
	} else {
		filter = &dyadicFloatFilter{op: fop}
	}
	if err := framework.ScanDyadic(in1, in2, out, bufType, bufType, outType, filter, 0); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Add writes the element-wise sum of in1 and in2 to out. Operands are
// broadcast over singleton dimensions and scalar tensors; the output type
// is the arithmetic promotion of the two input types.
func Add(in1, in2, out *img.Image) error {
	return dyadic("Add", in1, in2, out,
		func(a, b float64) float64 { return a + b },
		func(a, b complex128) complex128 { return a + b })
}

// Subtract writes the element-wise difference of in1 and in2 to out.
func Subtract(in1, in2, out *img.Image) error {
	return dyadic("Subtract", in1, in2, out,
		func(a, b float64) float64 { return a - b },
		func(a, b complex128) complex128 { return a - b })
}

// Multiply writes the element-wise product of in1 and in2 to out.
func Multiply(in1, in2, out *img.Image) error {
	return dyadic("Multiply", in1, in2, out,
		func(a, b float64) float64 { return a * b },
		func(a, b complex128) complex128 { return a * b })
}

// Divide writes the element-wise quotient of in1 and in2 to out. Division
// by zero follows float64 semantics before the result is cast to the
// output type.
func Divide(in1, in2, out *img.Image) error {
	return dyadic("Divide", in1, in2, out,
		func(a, b float64) float64 { return a / b },
		func(a, b complex128) complex128 { return a / b })
}

type equalFilter struct {
	framework.LineFilterBase
	complex bool
}

func (f *equalFilter) Filter(p *framework.ScanLineParams) error {
	out := framework.Samples[bool](p.Out[0])
	o1, s1 := p.In[0].Offset, p.In[0].Stride
	o2, s2 := p.In[1].Offset, p.In[1].Stride
	oo, so := p.Out[0].Offset, p.Out[0].Stride
	if f.complex {
		in1 := framework.Samples[complex128](p.In[0])
		in2 := framework.Samples[complex128](p.In[1])
		for i := 0; i < p.Length; i++ {
			out[oo] = in1[o1] == in2[o2]
			o1 += s1
			o2 += s2
			oo += so
		}
		return nil
	}
	in1 := framework.Samples[float64](p.In[0])
	in2 := framework.Samples[float64](p.In[1])
	for i := 0; i < p.Length; i++ {
		out[oo] = in1[o1] == in2[o2]
		o1 += s1
		o2 += s2
		oo += so
	}
	return nil
}

// Equal writes the element-wise comparison of in1 and in2 to out as a
// binary image. Operands are compared in their common promoted type.
func Equal(in1, in2, out *img.Image) error {
	if err := in1.MustBeForged(); err != nil {
		return fmt.Errorf("Equal: %w", err)
	}
	if err := in2.MustBeForged(); err != nil {
		return fmt.Errorf("Equal: %w", err)
	}
	common := dtype.SuggestDyadicOperation(in1.DataType(), in2.DataType())
	bufType := dtype.SuggestDouble(common)
	filter := &equalFilter{complex: bufType.IsComplex()}
	if err := framework.ScanDyadic(in1, in2, out, bufType, dtype.Binary, dtype.Binary, filter, 0); err != nil {
		return fmt.Errorf("Equal: %w", err)
	}
	return nil
}

type absFilter struct {
	framework.LineFilterBase
	complex bool
}

func (f *absFilter) Filter(p *framework.ScanLineParams) error {
	out := framework.Samples[float64](p.Out[0])
	oi, si := p.In[0].Offset, p.In[0].Stride
	oo, so := p.Out[0].Offset, p.Out[0].Stride
	if f.complex {
		in := framework.Samples[complex128](p.In[0])
		for i := 0; i < p.Length; i++ {
			out[oo] = cmplx.Abs(in[oi])
			oi += si
			oo += so
		}
		return nil
	}
	in := framework.Samples[float64](p.In[0])
	for i := 0; i < p.Length; i++ {
		out[oo] = math.Abs(in[oi])
		oi += si
		oo += so
	}
	return nil
}

// Abs writes the element-wise absolute value (modulus for complex types)
// of in to out. The output type is the abs promotion of the input type:
// unsigned types pass through, signed and complex types lose their sign or
// phase.
func Abs(in, out *img.Image) error {
	if err := in.MustBeForged(); err != nil {
		return fmt.Errorf("Abs: %w", err)
	}
	inBuf := dtype.SuggestDouble(in.DataType())
	filter := &absFilter{complex: inBuf.IsComplex()}
	err := framework.Scan([]*img.Image{in}, []*img.Image{out},
		[]dtype.Type{inBuf},
		[]dtype.Type{dtype.Float64},
		[]dtype.Type{dtype.SuggestAbs(in.DataType())},
		[]int{in.TensorLen()},
		filter, framework.ScanTensorAsSpatialDim)
	if err != nil {
		return fmt.Errorf("Abs: %w", err)
	}
	return nil
}
