package stats

import (
	"fmt"

	"github.com/imago-ml/imago/dtype"
	"github.com/imago-ml/imago/framework"
	"github.com/imago-ml/imago/img"
)

// maskSelectFilter copies its first input where the mask is set and writes
// zero elsewhere.
type maskSelectFilter struct {
	framework.LineFilterBase
}

func (maskSelectFilter) Filter(p *framework.ScanLineParams) error {
	mask := framework.Samples[bool](p.In[1])
	moff, mstride := p.In[1].Offset, p.In[1].Stride
	switch in := p.In[0].Data.(type) {
	case []float64:
		out := framework.Samples[float64](p.Out[0])
		off, stride := p.In[0].Offset, p.In[0].Stride
		ooff, ostride := p.Out[0].Offset, p.Out[0].Stride
		for i := 0; i < p.Length; i++ {
			if mask[moff] {
				out[ooff] = in[off]
			} else {
				out[ooff] = 0
			}
			off += stride
			moff += mstride
			ooff += ostride
		}
	case []complex128:
		out := framework.Samples[complex128](p.Out[0])
		off, stride := p.In[0].Offset, p.In[0].Stride
		ooff, ostride := p.Out[0].Offset, p.Out[0].Stride
		for i := 0; i < p.Length; i++ {
			if mask[moff] {
				out[ooff] = in[off]
			} else {
				out[ooff] = 0
			}
			off += stride
			moff += mstride
			ooff += ostride
		}
	default:
		return fmt.Errorf("maskSelectFilter: %w", img.ErrDataTypeNotSupported)
	}
	return nil
}

type cumSumFilter struct {
	framework.LineFilterBase
}

func (cumSumFilter) Cost(lineLength, nTensor, border, dim int) int { return lineLength }

func (cumSumFilter) Filter(p *framework.SeparableLineParams) error {
	switch in := p.In.Data.(type) {
	case []float64:
		out := framework.Samples[float64](p.Out.Buffer)
		off, stride := p.In.Offset, p.In.Stride
		ooff, ostride := p.Out.Offset, p.Out.Stride
		sum := 0.0
		for i := 0; i < p.In.Length; i++ {
			sum += in[off]
			out[ooff] = sum
			off += stride
			ooff += ostride
		}
	case []complex128:
		out := framework.Samples[complex128](p.Out.Buffer)
		off, stride := p.In.Offset, p.In.Stride
		ooff, ostride := p.Out.Offset, p.Out.Stride
		sum := complex128(0)
		for i := 0; i < p.In.Length; i++ {
			sum += in[off]
			out[ooff] = sum
			off += stride
			ooff += ostride
		}
	default:
		return fmt.Errorf("cumSumFilter: %w", img.ErrDataTypeNotSupported)
	}
	return nil
}

// CumulativeSum replaces each sample by the sum of all samples with equal
// or smaller coordinates along the dimensions flagged in process (all of
// them when process is nil). Masked-out samples contribute zero to the
// running sums. The passes over the flagged dimensions are sequential, so
// unlike the reductions above the result depends on dimension order only
// through rounding.
func CumulativeSum(in, mask, out *img.Image, process []bool) error {
	if err := in.MustBeForged(); err != nil {
		return fmt.Errorf("CumulativeSum: %w", err)
	}
	if in.Dimensionality() < 1 {
		return fmt.Errorf("CumulativeSum: %w", img.ErrDimensionalityNotSupported)
	}
	bufType := dtype.SuggestDouble(in.DataType())
	outType := dtype.SuggestFlex(in.DataType())
	var filter cumSumFilter
	if mask != nil && mask.IsForged() {
		m := mask.View()
		if err := m.CheckIsMask(in.Sizes()); err != nil {
			return fmt.Errorf("CumulativeSum: %w", err)
		}
		if err := m.ExpandSingletonDimensions(in.Sizes()); err != nil {
			return fmt.Errorf("CumulativeSum: %w", err)
		}
		err := framework.Scan([]*img.Image{in, m}, []*img.Image{out},
			[]dtype.Type{bufType, m.DataType()},
			[]dtype.Type{bufType},
			[]dtype.Type{outType},
			[]int{in.TensorLen()},
			maskSelectFilter{}, framework.ScanTensorAsSpatialDim)
		if err != nil {
			return fmt.Errorf("CumulativeSum: %w", err)
		}
		err = framework.Separable(out, out, bufType, outType, process, []int{0}, nil,
			filter, framework.SeparableAsScalarImage)
		if err != nil {
			return fmt.Errorf("CumulativeSum: %w", err)
		}
		return nil
	}
	err := framework.Separable(in, out, bufType, outType, process, []int{0}, nil,
		filter, framework.SeparableAsScalarImage)
	if err != nil {
		return fmt.Errorf("CumulativeSum: %w", err)
	}
	return nil
}
