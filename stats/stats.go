// Package stats computes image-wide and per-dimension statistics. The
// whole-image reducers run as scan line filters with one accumulator per
// worker, merged in worker order; the per-dimension reducers run on the
// projection engine (see projection.go) or, for the cumulative sum, the
// separable engine.
package stats

import (
	"fmt"

	"github.com/imago-ml/imago/accum"
	"github.com/imago-ml/imago/dtype"
	"github.com/imago-ml/imago/framework"
	"github.com/imago-ml/imago/img"
)

type countFilter struct {
	framework.LineFilterBase
	counts []int
}

func (f *countFilter) SetThreads(n int) { f.counts = make([]int, n) }

func (f *countFilter) Cost(int) int { return 2 }

func (f *countFilter) Filter(p *framework.ScanLineParams) error {
	in := framework.Samples[bool](p.In[0])
	off := p.In[0].Offset
	stride := p.In[0].Stride
	count := 0
	if len(p.In) > 1 {
		mask := framework.Samples[bool](p.In[1])
		moff := p.In[1].Offset
		mstride := p.In[1].Stride
		for i := 0; i < p.Length; i++ {
			if mask[moff] && in[off] {
				count++
			}
			off += stride
			moff += mstride
		}
	} else {
		for i := 0; i < p.Length; i++ {
			if in[off] {
				count++
			}
			off += stride
		}
	}
	f.counts[p.Thread] += count
	return nil
}

// Count returns the number of nonzero samples in the scalar image in,
// restricted to mask when it is forged.
func Count(in, mask *img.Image) (int, error) {
	if err := in.MustBeForged(); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	if !in.IsScalar() {
		return 0, fmt.Errorf("Count: %w", img.ErrNotScalar)
	}
	var filter countFilter
	if err := framework.ScanSingleInput(in, mask, dtype.Binary, &filter, 0); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	n := 0
	for _, c := range filter.counts {
		n += c
	}
	return n, nil
}

type minMaxFilter struct {
	framework.LineFilterBase
	acc []accum.MinMax
}

func (f *minMaxFilter) SetThreads(n int) {
	f.acc = make([]accum.MinMax, n)
	for i := range f.acc {
		f.acc[i] = accum.NewMinMax()
	}
}

func (f *minMaxFilter) Cost(int) int { return 3 }

func (f *minMaxFilter) Filter(p *framework.ScanLineParams) error {
	in := framework.Samples[float64](p.In[0])
	off := p.In[0].Offset
	stride := p.In[0].Stride
	vars := accum.NewMinMax()
	if len(p.In) > 1 {
		mask := framework.Samples[bool](p.In[1])
		moff := p.In[1].Offset
		mstride := p.In[1].Stride
		for i := 0; i < p.Length; i++ {
			if mask[moff] {
				vars.Push(in[off])
			}
			off += stride
			moff += mstride
		}
	} else {
		i := 0
		for ; i+1 < p.Length; i += 2 {
			v := in[off]
			off += stride
			vars.PushPair(v, in[off])
			off += stride
		}
		if i < p.Length {
			vars.Push(in[off])
		}
	}
	f.acc[p.Thread].Merge(vars)
	return nil
}

// MaximumAndMinimum returns the extrema over all samples of in, restricted
// to mask when it is forged. Tensor elements count as samples.
func MaximumAndMinimum(in, mask *img.Image) (accum.MinMax, error) {
	if err := in.MustBeForged(); err != nil {
		return accum.MinMax{}, fmt.Errorf("MaximumAndMinimum: %w", err)
	}
	if in.DataType().IsComplex() {
		return accum.MinMax{}, fmt.Errorf("MaximumAndMinimum: %w", img.ErrDataTypeNotSupported)
	}
	var filter minMaxFilter
	err := framework.ScanSingleInput(in, mask, dtype.Float64, &filter, framework.ScanTensorAsSpatialDim)
	if err != nil {
		return accum.MinMax{}, fmt.Errorf("MaximumAndMinimum: %w", err)
	}
	out := filter.acc[0]
	for _, a := range filter.acc[1:] {
		out.Merge(a)
	}
	return out, nil
}

type sampleStatisticsFilter struct {
	framework.LineFilterBase
	acc []accum.Statistics
}

func (f *sampleStatisticsFilter) SetThreads(n int) { f.acc = make([]accum.Statistics, n) }

func (f *sampleStatisticsFilter) Cost(int) int { return 23 }

func (f *sampleStatisticsFilter) Filter(p *framework.ScanLineParams) error {
	in := framework.Samples[float64](p.In[0])
	off := p.In[0].Offset
	stride := p.In[0].Stride
	var vars accum.Statistics
	if len(p.In) > 1 {
		mask := framework.Samples[bool](p.In[1])
		moff := p.In[1].Offset
		mstride := p.In[1].Stride
		for i := 0; i < p.Length; i++ {
			if mask[moff] {
				vars.Push(in[off])
			}
			off += stride
			moff += mstride
		}
	} else {
		for i := 0; i < p.Length; i++ {
			vars.Push(in[off])
			off += stride
		}
	}
	f.acc[p.Thread].Merge(vars)
	return nil
}

// SampleStatistics returns the first four central moments of the samples of
// in, restricted to mask when it is forged.
func SampleStatistics(in, mask *img.Image) (accum.Statistics, error) {
	if err := in.MustBeForged(); err != nil {
		return accum.Statistics{}, fmt.Errorf("SampleStatistics: %w", err)
	}
	if in.DataType().IsComplex() {
		return accum.Statistics{}, fmt.Errorf("SampleStatistics: %w", img.ErrDataTypeNotSupported)
	}
	var filter sampleStatisticsFilter
	err := framework.ScanSingleInput(in, mask, dtype.Float64, &filter, framework.ScanTensorAsSpatialDim)
	if err != nil {
		return accum.Statistics{}, fmt.Errorf("SampleStatistics: %w", err)
	}
	out := filter.acc[0]
	for _, a := range filter.acc[1:] {
		out.Merge(a)
	}
	return out, nil
}

type covarianceFilter struct {
	framework.LineFilterBase
	acc []accum.Covariance
}

func (f *covarianceFilter) SetThreads(n int) { f.acc = make([]accum.Covariance, n) }

func (f *covarianceFilter) Cost(int) int { return 10 }

func (f *covarianceFilter) Filter(p *framework.ScanLineParams) error {
	in1 := framework.Samples[float64](p.In[0])
	in2 := framework.Samples[float64](p.In[1])
	off1, stride1 := p.In[0].Offset, p.In[0].Stride
	off2, stride2 := p.In[1].Offset, p.In[1].Stride
	var vars accum.Covariance
	if len(p.In) > 2 {
		mask := framework.Samples[bool](p.In[2])
		moff, mstride := p.In[2].Offset, p.In[2].Stride
		for i := 0; i < p.Length; i++ {
			if mask[moff] {
				vars.Push(in1[off1], in2[off2])
			}
			off1 += stride1
			off2 += stride2
			moff += mstride
		}
	} else {
		for i := 0; i < p.Length; i++ {
			vars.Push(in1[off1], in2[off2])
			off1 += stride1
			off2 += stride2
		}
	}
	f.acc[p.Thread].Merge(vars)
	return nil
}

// PairwiseStatistics returns the sample covariance statistics of the
// corresponding samples of in1 and in2, restricted to mask when it is
// forged. The two images must have the same sizes; either can be broadcast
// over singleton dimensions of the other.
func PairwiseStatistics(in1, in2, mask *img.Image) (accum.Covariance, error) {
	if err := in1.MustBeForged(); err != nil {
		return accum.Covariance{}, fmt.Errorf("PairwiseStatistics: %w", err)
	}
	if err := in2.MustBeForged(); err != nil {
		return accum.Covariance{}, fmt.Errorf("PairwiseStatistics: %w", err)
	}
	if in1.DataType().IsComplex() || in2.DataType().IsComplex() {
		return accum.Covariance{}, fmt.Errorf("PairwiseStatistics: %w", img.ErrDataTypeNotSupported)
	}
	ins := []*img.Image{in1, in2}
	bufTypes := []dtype.Type{dtype.Float64, dtype.Float64}
	if mask != nil && mask.IsForged() {
		m := mask.View()
		if err := m.CheckIsMask(in1.Sizes()); err != nil {
			return accum.Covariance{}, fmt.Errorf("PairwiseStatistics: %w", err)
		}
		if err := m.ExpandSingletonDimensions(in1.Sizes()); err != nil {
			return accum.Covariance{}, fmt.Errorf("PairwiseStatistics: %w", err)
		}
		ins = append(ins, m)
		bufTypes = append(bufTypes, m.DataType())
	}
	var filter covarianceFilter
	err := framework.Scan(ins, nil, bufTypes, nil, nil, nil, &filter, framework.ScanTensorAsSpatialDim)
	if err != nil {
		return accum.Covariance{}, fmt.Errorf("PairwiseStatistics: %w", err)
	}
	out := filter.acc[0]
	for _, a := range filter.acc[1:] {
		out.Merge(a)
	}
	return out, nil
}

type momentsFilter struct {
	framework.LineFilterBase
	nDims int
	acc   []*accum.Moment
}

func (f *momentsFilter) SetThreads(n int) {
	f.acc = make([]*accum.Moment, n)
	for i := range f.acc {
		f.acc[i] = accum.NewMoment(f.nDims)
	}
}

func (f *momentsFilter) Cost(int) int { return f.nDims*(f.nDims+1)/2*3 + f.nDims + 2 }

func (f *momentsFilter) Filter(p *framework.ScanLineParams) error {
	in := framework.Samples[float64](p.In[0])
	off := p.In[0].Offset
	stride := p.In[0].Stride
	vars := accum.NewMoment(f.nDims)
	pos := make([]float64, len(p.Position))
	for d, c := range p.Position {
		pos[d] = float64(c)
	}
	if len(p.In) > 1 {
		mask := framework.Samples[bool](p.In[1])
		moff, mstride := p.In[1].Offset, p.In[1].Stride
		for i := 0; i < p.Length; i++ {
			if mask[moff] {
				vars.Push(pos, in[off])
			}
			off += stride
			moff += mstride
			pos[p.Dim]++
		}
	} else {
		for i := 0; i < p.Length; i++ {
			vars.Push(pos, in[off])
			off += stride
			pos[p.Dim]++
		}
	}
	f.acc[p.Thread].Merge(vars)
	return nil
}

// Moments returns the geometric moments of order up to two of the scalar
// image in, each sample weighing by its value, restricted to mask when it
// is forged.
func Moments(in, mask *img.Image) (*accum.Moment, error) {
	if err := in.MustBeForged(); err != nil {
		return nil, fmt.Errorf("Moments: %w", err)
	}
	if !in.IsScalar() {
		return nil, fmt.Errorf("Moments: %w", img.ErrNotScalar)
	}
	if in.DataType().IsComplex() {
		return nil, fmt.Errorf("Moments: %w", img.ErrDataTypeNotSupported)
	}
	filter := momentsFilter{nDims: in.Dimensionality()}
	err := framework.ScanSingleInput(in, mask, dtype.Float64, &filter, framework.ScanNeedCoordinates)
	if err != nil {
		return nil, fmt.Errorf("Moments: %w", err)
	}
	out := filter.acc[0]
	for _, a := range filter.acc[1:] {
		out.Merge(a)
	}
	return out, nil
}

// CenterOfMass returns the coordinates of the center of mass of the scalar
// image in, restricted to mask when it is forged. An all-zero image yields
// the origin.
func CenterOfMass(in, mask *img.Image) ([]float64, error) {
	m, err := Moments(in, mask)
	if err != nil {
		return nil, fmt.Errorf("CenterOfMass: %w", err)
	}
	return m.FirstOrder(), nil
}
