package stats

import (
	"fmt"
	"math"

	"github.com/imago-ml/imago/dtype"
	"github.com/imago-ml/imago/framework"
	"github.com/imago-ml/imago/img"
)

// radialSumFilter accumulates per-bin sums; when withCount is set the last
// tensor element of the output counts the pixels per bin.
type radialSumFilter struct {
	framework.LineFilterBase
	withCount bool
}

func (radialSumFilter) InitializeOutput(out *img.Image) error {
	out.Fill(0)
	return nil
}

func (f radialSumFilter) ProcessLine(p *framework.RadialLineParams) error {
	in := framework.Samples[float64](p.In)
	out := p.Out.Data().([]float64)
	origin := p.Out.Origin()
	binStride := p.Out.Stride(0)
	tStride := p.Out.TensorStride()
	nTensor := p.In.TensorLen
	var mask []bool
	if p.Mask.Data != nil {
		mask = framework.Samples[bool](p.Mask)
	}
	off, moff := p.In.Offset, p.Mask.Offset
	for i := 0; i < p.Length; i++ {
		bin := p.BinIndex[i]
		if bin >= 0 && (mask == nil || mask[moff]) {
			o := origin + bin*binStride
			for t := 0; t < nTensor; t++ {
				out[o+t*tStride] += in[off+t*p.In.TensorStride]
			}
			if f.withCount {
				out[o+nTensor*tStride]++
			}
		}
		off += p.In.Stride
		moff += p.Mask.Stride
	}
	return nil
}

func (radialSumFilter) Merge(out, private *img.Image) error {
	d := out.Data().([]float64)
	p := private.Data().([]float64)
	for bin := 0; bin < out.Size(0); bin++ {
		for t := 0; t < out.TensorLen(); t++ {
			do := out.Origin() + bin*out.Stride(0) + t*out.TensorStride()
			po := private.Origin() + bin*private.Stride(0) + t*private.TensorStride()
			d[do] += p[po]
		}
	}
	return nil
}

type radialMinMaxFilter struct {
	framework.LineFilterBase
	max bool
}

func (f radialMinMaxFilter) identity() float64 {
	if f.max {
		return -math.MaxFloat64
	}
	return math.MaxFloat64
}

func (f radialMinMaxFilter) pick(a, b float64) float64 {
	if f.max {
		return math.Max(a, b)
	}
	return math.Min(a, b)
}

func (f radialMinMaxFilter) InitializeOutput(out *img.Image) error {
	out.Fill(f.identity())
	return nil
}

func (f radialMinMaxFilter) ProcessLine(p *framework.RadialLineParams) error {
	in := framework.Samples[float64](p.In)
	get := dtype.FloatGetter(p.Out.Data())
	set := dtype.FloatSetter(p.Out.Data())
	origin := p.Out.Origin()
	binStride := p.Out.Stride(0)
	tStride := p.Out.TensorStride()
	var mask []bool
	if p.Mask.Data != nil {
		mask = framework.Samples[bool](p.Mask)
	}
	off, moff := p.In.Offset, p.Mask.Offset
	for i := 0; i < p.Length; i++ {
		bin := p.BinIndex[i]
		if bin >= 0 && (mask == nil || mask[moff]) {
			o := origin + bin*binStride
			for t := 0; t < p.In.TensorLen; t++ {
				v := in[off+t*p.In.TensorStride]
				set(o+t*tStride, f.pick(get(o+t*tStride), v))
			}
		}
		off += p.In.Stride
		moff += p.Mask.Stride
	}
	return nil
}

func (f radialMinMaxFilter) Merge(out, private *img.Image) error {
	get := dtype.FloatGetter(out.Data())
	set := dtype.FloatSetter(out.Data())
	pget := dtype.FloatGetter(private.Data())
	for bin := 0; bin < out.Size(0); bin++ {
		for t := 0; t < out.TensorLen(); t++ {
			do := out.Origin() + bin*out.Stride(0) + t*out.TensorStride()
			po := private.Origin() + bin*private.Stride(0) + t*private.TensorStride()
			set(do, f.pick(get(do), pget(po)))
		}
	}
	return nil
}

func radialCheck(op string, in *img.Image) error {
	if err := in.MustBeForged(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if in.DataType().IsComplex() {
		return fmt.Errorf("%s: %w", op, img.ErrDataTypeNotSupported)
	}
	return nil
}

// RadialSum projects in onto the distance to center, summing all samples
// whose distance falls in the same bin of width binSize. maxRadius is
// "outer radius" (default) to bin out to the farthest image corner, or
// "inner radius" to stop at the nearest image edge; center defaults to the
// image center. The output is a 1-D image over the bins with in's tensor
// elements. A forged mask restricts the input samples.
func RadialSum(in, mask, out *img.Image, binSize float64, maxRadius string, center []float64) error {
	if err := radialCheck("RadialSum", in); err != nil {
		return err
	}
	mode, err := framework.ParseRadiusMode(maxRadius)
	if err != nil {
		return fmt.Errorf("RadialSum: %w", err)
	}
	err = framework.RadialProjectionScan(in, mask, out, dtype.Float64, dtype.Float64,
		in.TensorLen(), binSize, mode, center, radialSumFilter{}, 0)
	if err != nil {
		return fmt.Errorf("RadialSum: %w", err)
	}
	return nil
}

// RadialMean is RadialSum divided by the per-bin pixel count; bins that
// receive no pixels yield 0.
func RadialMean(in, mask, out *img.Image, binSize float64, maxRadius string, center []float64) error {
	if err := radialCheck("RadialMean", in); err != nil {
		return err
	}
	mode, err := framework.ParseRadiusMode(maxRadius)
	if err != nil {
		return fmt.Errorf("RadialMean: %w", err)
	}
	// Accumulate sums with the bin count in one extra tensor element, then
	// normalize into the real output.
	nTensor := in.TensorLen()
	sums := img.NewHeader()
	err = framework.RadialProjectionScan(in, mask, sums, dtype.Float64, dtype.Float64,
		nTensor+1, binSize, mode, center, radialSumFilter{withCount: true}, 0)
	if err != nil {
		return fmt.Errorf("RadialMean: %w", err)
	}
	if err := out.ReForge([]int{sums.Size(0)}, nTensor, dtype.Float64); err != nil {
		return fmt.Errorf("RadialMean: %w", err)
	}
	d := sums.Data().([]float64)
	for bin := 0; bin < sums.Size(0); bin++ {
		o := sums.Origin() + bin*sums.Stride(0)
		n := d[o+nTensor*sums.TensorStride()]
		for t := 0; t < nTensor; t++ {
			v := 0.0
			if n > 0 {
				v = d[o+t*sums.TensorStride()] / n
			}
			out.SetFloatSample(v, t, []int{bin})
		}
	}
	return nil
}

// RadialMinimum projects in onto the distance to center, keeping the
// smallest sample per bin; parameters as in RadialSum. Empty bins hold the
// largest value the output type can represent.
func RadialMinimum(in, mask, out *img.Image, binSize float64, maxRadius string, center []float64) error {
	if err := radialCheck("RadialMinimum", in); err != nil {
		return err
	}
	mode, err := framework.ParseRadiusMode(maxRadius)
	if err != nil {
		return fmt.Errorf("RadialMinimum: %w", err)
	}
	err = framework.RadialProjectionScan(in, mask, out, dtype.Float64, in.DataType(),
		in.TensorLen(), binSize, mode, center, radialMinMaxFilter{}, 0)
	if err != nil {
		return fmt.Errorf("RadialMinimum: %w", err)
	}
	return nil
}

// RadialMaximum projects in onto the distance to center, keeping the
// largest sample per bin; parameters as in RadialSum. Empty bins hold the
// smallest value the output type can represent.
func RadialMaximum(in, mask, out *img.Image, binSize float64, maxRadius string, center []float64) error {
	if err := radialCheck("RadialMaximum", in); err != nil {
		return err
	}
	mode, err := framework.ParseRadiusMode(maxRadius)
	if err != nil {
		return fmt.Errorf("RadialMaximum: %w", err)
	}
	err = framework.RadialProjectionScan(in, mask, out, dtype.Float64, in.DataType(),
		in.TensorLen(), binSize, mode, center, radialMinMaxFilter{max: true}, 0)
	if err != nil {
		return fmt.Errorf("RadialMaximum: %w", err)
	}
	return nil
}
