package stats

import (
	"fmt"
	"math"

	"github.com/imago-ml/imago/accum"
	"github.com/imago-ml/imago/dtype"
	"github.com/imago-ml/imago/framework"
	"github.com/imago-ml/imago/img"
)

// eachFloat visits every sample of in as a float64, skipping samples where
// mask is false. Tensor elements were folded into a spatial dimension by
// the projection engine, so pixel iteration covers them.
func eachFloat(in, mask *img.Image, fn func(v float64)) {
	get := dtype.FloatGetter(in.Data())
	it := img.NewIterator(in)
	if mask != nil && mask.IsForged() {
		md := mask.Data().([]bool)
		mit := img.NewIterator(mask)
		for it.Next() && mit.Next() {
			if md[mit.Offset()] {
				fn(get(it.Offset()))
			}
		}
		return
	}
	for it.Next() {
		fn(get(it.Offset()))
	}
}

func eachComplex(in, mask *img.Image, fn func(v complex128)) {
	get := dtype.ComplexGetter(in.Data())
	it := img.NewIterator(in)
	if mask != nil && mask.IsForged() {
		md := mask.Data().([]bool)
		mit := img.NewIterator(mask)
		for it.Next() && mit.Next() {
			if md[mit.Offset()] {
				fn(get(it.Offset()))
			}
		}
		return
	}
	for it.Next() {
		fn(get(it.Offset()))
	}
}

type projectionSumMean struct {
	framework.LineFilterBase
	mean bool
}

func (f *projectionSumMean) Cost(nPixels int) int { return nPixels }

func (f *projectionSumMean) Project(in, mask *img.Image, out *framework.Sample, thread int) error {
	if in.DataType().IsComplex() {
		n := 0
		sum := complex128(0)
		eachComplex(in, mask, func(v complex128) {
			sum += v
			n++
		})
		if f.mean && n > 0 {
			sum /= complex(float64(n), 0)
		}
		out.SetComplex(sum)
		return nil
	}
	n := 0
	sum := 0.0
	eachFloat(in, mask, func(v float64) {
		sum += v
		n++
	})
	if f.mean && n > 0 {
		sum /= float64(n)
	}
	out.SetFloat(sum)
	return nil
}

type projectionMeanDirectional struct {
	framework.LineFilterBase
	stdDev   bool
	variance bool
}

func (f *projectionMeanDirectional) Cost(nPixels int) int { return 10 * nPixels }

func (f *projectionMeanDirectional) Project(in, mask *img.Image, out *framework.Sample, thread int) error {
	var acc accum.Directional
	eachFloat(in, mask, acc.Push)
	switch {
	case f.stdDev:
		out.SetFloat(acc.StandardDeviation())
	case f.variance:
		out.SetFloat(acc.Variance())
	default:
		out.SetFloat(acc.Mean())
	}
	return nil
}

// Sum reduces the dimensions of in flagged in process (all of them when
// process is nil) by summation, restricted to mask when it is forged.
func Sum(in, mask, out *img.Image, process []bool) error {
	if err := framework.Projection(in, mask, out, dtype.SuggestFlex(in.DataType()), process,
		&projectionSumMean{}, 0); err != nil {
		return fmt.Errorf("Sum: %w", err)
	}
	return nil
}

// Mean reduces the dimensions of in flagged in process by taking the mean
// over them, restricted to mask when it is forged. Mode is "" for the
// arithmetic mean or "directional" for the angular mean, which treats the
// samples as angles in radians. A fully masked-out projection yields 0.
func Mean(in, mask, out *img.Image, mode string, process []bool) error {
	var function framework.ProjectionFunction
	outType := dtype.SuggestFlex(in.DataType())
	switch mode {
	case "":
		function = &projectionSumMean{mean: true}
	case "directional":
		if in.DataType().IsComplex() {
			return fmt.Errorf("Mean: %w", img.ErrDataTypeNotSupported)
		}
		function = &projectionMeanDirectional{}
		outType = dtype.SuggestFloat(in.DataType())
	default:
		return fmt.Errorf("Mean: %w: %q", img.ErrInvalidFlag, mode)
	}
	if err := framework.Projection(in, mask, out, outType, process, function, 0); err != nil {
		return fmt.Errorf("Mean: %w", err)
	}
	return nil
}

// MeanDirection is Mean with the "directional" mode.
func MeanDirection(in, mask, out *img.Image, process []bool) error {
	return Mean(in, mask, out, "directional", process)
}

type projectionMaxMin struct {
	framework.LineFilterBase
	max bool
}

func (f *projectionMaxMin) Cost(nPixels int) int { return nPixels }

func (f *projectionMaxMin) Project(in, mask *img.Image, out *framework.Sample, thread int) error {
	if f.max {
		res := math.Inf(-1)
		eachFloat(in, mask, func(v float64) { res = math.Max(res, v) })
		out.SetFloat(res)
	} else {
		res := math.Inf(1)
		eachFloat(in, mask, func(v float64) { res = math.Min(res, v) })
		out.SetFloat(res)
	}
	return nil
}

// Maximum reduces the dimensions of in flagged in process by taking the
// maximum over them, restricted to mask when it is forged. Use
// MaximumAndMinimum to reduce over all dimensions.
func Maximum(in, mask, out *img.Image, process []bool) error {
	if in.IsForged() && in.DataType().IsComplex() {
		return fmt.Errorf("Maximum: %w", img.ErrDataTypeNotSupported)
	}
	if err := framework.Projection(in, mask, out, in.DataType(), process,
		&projectionMaxMin{max: true}, 0); err != nil {
		return fmt.Errorf("Maximum: %w", err)
	}
	return nil
}

// Minimum reduces the dimensions of in flagged in process by taking the
// minimum over them, restricted to mask when it is forged.
func Minimum(in, mask, out *img.Image, process []bool) error {
	if in.IsForged() && in.DataType().IsComplex() {
		return fmt.Errorf("Minimum: %w", img.ErrDataTypeNotSupported)
	}
	if err := framework.Projection(in, mask, out, in.DataType(), process,
		&projectionMaxMin{}, 0); err != nil {
		return fmt.Errorf("Minimum: %w", err)
	}
	return nil
}

type varianceMode int

const (
	varianceStable varianceMode = iota
	varianceFast
	varianceDirectional
)

type projectionVariance struct {
	framework.LineFilterBase
	mode   varianceMode
	stdDev bool
}

func (f *projectionVariance) Cost(nPixels int) int { return 10 * nPixels }

func (f *projectionVariance) Project(in, mask *img.Image, out *framework.Sample, thread int) error {
	var v, s float64
	switch f.mode {
	case varianceFast:
		var acc accum.FastVariance
		eachFloat(in, mask, acc.Push)
		v, s = acc.Variance(), acc.StandardDeviation()
	case varianceDirectional:
		var acc accum.Directional
		eachFloat(in, mask, acc.Push)
		v, s = acc.Variance(), acc.StandardDeviation()
	default:
		var acc accum.Variance
		eachFloat(in, mask, acc.Push)
		v, s = acc.Variance(), acc.StandardDeviation()
	}
	if f.stdDev {
		out.SetFloat(s)
	} else {
		out.SetFloat(v)
	}
	return nil
}

func parseVarianceMode(mode string, dt dtype.Type) (varianceMode, error) {
	// Low-precision types get the stable accumulator no matter what was
	// asked for; the fast sum-of-squares form cancels catastrophically on
	// them.
	if dt.SizeOf() <= 2 && mode == "fast" {
		mode = "stable"
	}
	switch mode {
	case "", "stable":
		return varianceStable, nil
	case "fast":
		return varianceFast, nil
	case "directional":
		return varianceDirectional, nil
	default:
		return 0, fmt.Errorf("%w: %q", img.ErrInvalidFlag, mode)
	}
}

// Variance reduces the dimensions of in flagged in process by taking the
// unbiased sample variance over them, restricted to mask when it is
// forged. Mode is "stable" (the default), "fast" or "directional".
func Variance(in, mask, out *img.Image, mode string, process []bool) error {
	if in.IsForged() && in.DataType().IsComplex() {
		return fmt.Errorf("Variance: %w", img.ErrDataTypeNotSupported)
	}
	m, err := parseVarianceMode(mode, in.DataType())
	if err != nil {
		return fmt.Errorf("Variance: %w", err)
	}
	if err := framework.Projection(in, mask, out, dtype.SuggestFloat(in.DataType()), process,
		&projectionVariance{mode: m}, 0); err != nil {
		return fmt.Errorf("Variance: %w", err)
	}
	return nil
}

// StandardDeviation reduces the dimensions of in flagged in process by
// taking the sample standard deviation over them; modes as in Variance.
func StandardDeviation(in, mask, out *img.Image, mode string, process []bool) error {
	if in.IsForged() && in.DataType().IsComplex() {
		return fmt.Errorf("StandardDeviation: %w", img.ErrDataTypeNotSupported)
	}
	m, err := parseVarianceMode(mode, in.DataType())
	if err != nil {
		return fmt.Errorf("StandardDeviation: %w", err)
	}
	if err := framework.Projection(in, mask, out, dtype.SuggestFloat(in.DataType()), process,
		&projectionVariance{mode: m, stdDev: true}, 0); err != nil {
		return fmt.Errorf("StandardDeviation: %w", err)
	}
	return nil
}

type projectionPercentile struct {
	percentile float64
	buffers    [][]float64
}

func (f *projectionPercentile) SetThreads(n int) { f.buffers = make([][]float64, n) }

func (f *projectionPercentile) Cost(nPixels int) int { return 4 * nPixels }

func (f *projectionPercentile) Project(in, mask *img.Image, out *framework.Sample, thread int) error {
	buf := f.buffers[thread][:0]
	eachFloat(in, mask, func(v float64) {
		if !math.IsNaN(v) {
			buf = append(buf, v)
		}
	})
	f.buffers[thread] = buf
	if len(buf) == 0 {
		out.SetFloat(0)
		return nil
	}
	rank := rankFromPercentile(f.percentile, len(buf))
	out.SetFloat(nthElement(buf, rank))
	return nil
}

// rankFromPercentile maps a percentile to an index into n sorted samples:
// round(p/100*(n-1)) for p up to the median, mirrored above it so that
// complementary percentiles pick mirrored ranks.
func rankFromPercentile(p float64, n int) int {
	if p > 50 {
		return n - 1 - rankFromPercentile(100-p, n)
	}
	return int(math.Floor(p/100*float64(n-1) + 0.5))
}

// nthElement returns the value that would be at index k if v were sorted,
// partially reordering v. Expected linear time.
func nthElement(v []float64, k int) float64 {
	lo, hi := 0, len(v)-1
	for lo < hi {
		// Median-of-three pivot keeps sorted and reversed inputs from
		// degrading to quadratic.
		mid := lo + (hi-lo)/2
		if v[mid] < v[lo] {
			v[mid], v[lo] = v[lo], v[mid]
		}
		if v[hi] < v[lo] {
			v[hi], v[lo] = v[lo], v[hi]
		}
		if v[hi] < v[mid] {
			v[hi], v[mid] = v[mid], v[hi]
		}
		pivot := v[mid]
		i, j := lo, hi
		for i <= j {
			for v[i] < pivot {
				i++
			}
			for v[j] > pivot {
				j--
			}
			if i <= j {
				v[i], v[j] = v[j], v[i]
				i++
				j--
			}
		}
		if k <= j {
			hi = j
		} else if k >= i {
			lo = i
		} else {
			break
		}
	}
	return v[k]
}

// Percentile reduces the dimensions of in flagged in process to the given
// percentile of the samples over them, restricted to mask when it is
// forged. NaN samples are ignored; an empty sample set yields 0. The 0th
// and 100th percentiles reduce to Minimum and Maximum.
func Percentile(in, mask, out *img.Image, percentile float64, process []bool) error {
	if percentile < 0 || percentile > 100 {
		return fmt.Errorf("Percentile: %w", img.ErrParameterOutOfRange)
	}
	if in.IsForged() && in.DataType().IsComplex() {
		return fmt.Errorf("Percentile: %w", img.ErrDataTypeNotSupported)
	}
	switch percentile {
	case 0:
		return Minimum(in, mask, out, process)
	case 100:
		return Maximum(in, mask, out, process)
	}
	function := &projectionPercentile{percentile: percentile}
	if err := framework.Projection(in, mask, out, in.DataType(), process, function, 0); err != nil {
		return fmt.Errorf("Percentile: %w", err)
	}
	return nil
}

// Median is the 50th Percentile.
func Median(in, mask, out *img.Image, process []bool) error {
	return Percentile(in, mask, out, 50, process)
}
