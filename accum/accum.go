// Package accum provides online statistics accumulators. Samples are pushed
// one at a time; accumulators filled on different goroutines combine with
// Merge, which makes parallel reductions independent of how the work was
// split (up to floating-point rounding in a fixed merge order).
package accum

import (
	"math"
	"math/cmplx"
)

// Statistics accumulates the first four central moments of a sample
// stream, from which mean, variance, skewness and excess kurtosis follow.
// The update is numerically stable; the merge follows Terriberry's pairwise
// update of higher-order moments.
type Statistics struct {
	n              int
	m1, m2, m3, m4 float64
}

// Reset returns the accumulator to its initial state.
func (a *Statistics) Reset() { *a = Statistics{} }

// Push adds a sample.
func (a *Statistics) Push(x float64) {
	a.n++
	n := float64(a.n)
	delta := x - a.m1
	term1 := delta / n
	term2 := term1 * term1
	term3 := delta * term1 * (n - 1)
	// Higher moments must read the not-yet-updated lower ones.
	a.m4 += term3*term2*(n*n-3*n+3) + 6*term2*a.m2 - 4*term1*a.m3
	a.m3 += term3*term1*(n-2) - 3*term1*a.m2
	a.m2 += term3
	a.m1 += term1
}

// Merge combines another accumulator into this one.
func (a *Statistics) Merge(b Statistics) {
	if b.n == 0 {
		return
	}
	if a.n == 0 {
		*a = b
		return
	}
	an := float64(a.n)
	bn := float64(b.n)
	an2 := an * an
	bn2 := bn * bn
	xn2 := an * bn
	a.n += b.n
	nn := float64(a.n)
	n2 := nn * nn
	delta := b.m1 - a.m1
	delta2 := delta * delta
	a.m4 += b.m4 + delta2*delta2*xn2*(an2-xn2+bn2)/(n2*nn) +
		6*delta2*(an2*b.m2+bn2*a.m2)/n2 +
		4*delta*(an*b.m3-bn*a.m3)/nn
	a.m3 += b.m3 + delta*delta2*xn2*(an-bn)/n2 +
		3*delta*(an*b.m2-bn*a.m2)/nn
	a.m2 += b.m2 + delta2*xn2/nn
	a.m1 += bn * delta / nn
}

// Number returns the number of samples seen.
func (a *Statistics) Number() int { return a.n }

// Mean returns the sample mean.
func (a *Statistics) Mean() float64 { return a.m1 }

// Variance returns the unbiased estimator of the population variance.
func (a *Statistics) Variance() float64 {
	if a.n > 1 {
		return a.m2 / float64(a.n-1)
	}
	return 0
}

// StandardDeviation returns the square root of Variance.
func (a *Statistics) StandardDeviation() float64 {
	return math.Sqrt(a.Variance())
}

// Skewness estimates the population skewness; unbiased only for symmetric
// distributions.
func (a *Statistics) Skewness() float64 {
	if a.n > 2 && a.m2 != 0 {
		n := float64(a.n)
		return (n * n) / ((n - 1) * (n - 2)) * (a.m3 / (n * math.Pow(a.Variance(), 1.5)))
	}
	return 0
}

// ExcessKurtosis estimates the population excess kurtosis; unbiased only
// for normally distributed data.
func (a *Statistics) ExcessKurtosis() float64 {
	if a.n > 3 && a.m2 != 0 {
		n := float64(a.n)
		return (n - 1) / ((n - 2) * (n - 3)) * ((n+1)*n*a.m4/(a.m2*a.m2) - 3*(n-1))
	}
	return 0
}

// Variance accumulates mean and second central moment with Welford's
// update, which avoids the catastrophic cancellation the plain
// sum-of-squares formula suffers when the variance is small relative to the
// mean.
type Variance struct {
	n      int
	m1, m2 float64
}

// Reset returns the accumulator to its initial state.
func (a *Variance) Reset() { *a = Variance{} }

// Push adds a sample.
func (a *Variance) Push(x float64) {
	a.n++
	delta := x - a.m1
	a.m1 += delta / float64(a.n)
	a.m2 += delta * (x - a.m1)
}

// Pop removes a sample that was previously pushed.
func (a *Variance) Pop(x float64) {
	if a.n > 0 {
		delta := x - a.m1
		a.m1 = (a.m1*float64(a.n) - x) / float64(a.n-1)
		a.m2 -= delta * (x - a.m1)
		a.n--
	}
}

// Merge combines another accumulator into this one.
func (a *Variance) Merge(b Variance) {
	if b.n == 0 {
		return
	}
	if a.n == 0 {
		*a = b
		return
	}
	oldn := float64(a.n)
	a.n += b.n
	n := float64(a.n)
	bn := float64(b.n)
	delta := b.m1 - a.m1
	a.m1 += bn * delta / n
	a.m2 += b.m2 + delta*delta*(oldn*bn)/n
}

// Number returns the number of samples seen.
func (a *Variance) Number() int { return a.n }

// Mean returns the sample mean.
func (a *Variance) Mean() float64 { return a.m1 }

// Variance returns the unbiased estimator of the population variance.
func (a *Variance) Variance() float64 {
	if a.n > 1 {
		return a.m2 / float64(a.n-1)
	}
	return 0
}

// StandardDeviation returns the square root of Variance.
func (a *Variance) StandardDeviation() float64 {
	return math.Sqrt(a.Variance())
}

// FastVariance accumulates the plain sum and sum of squares. Cheaper per
// sample than Variance, but subject to cancellation when the variance is
// small relative to the mean.
type FastVariance struct {
	n      int
	m1, m2 float64
}

// Reset returns the accumulator to its initial state.
func (a *FastVariance) Reset() { *a = FastVariance{} }

// Push adds a sample.
func (a *FastVariance) Push(x float64) {
	a.n++
	a.m1 += x
	a.m2 += x * x
}

// Pop removes a sample that was previously pushed.
func (a *FastVariance) Pop(x float64) {
	if a.n > 0 {
		a.n--
		a.m1 -= x
		a.m2 -= x * x
	}
}

// Merge combines another accumulator into this one.
func (a *FastVariance) Merge(b FastVariance) {
	a.n += b.n
	a.m1 += b.m1
	a.m2 += b.m2
}

// Number returns the number of samples seen.
func (a *FastVariance) Number() int { return a.n }

// Mean returns the sample mean.
func (a *FastVariance) Mean() float64 { return a.m1 / float64(a.n) }

// Variance returns the unbiased estimator of the population variance.
func (a *FastVariance) Variance() float64 {
	if a.n > 1 {
		n := float64(a.n)
		return (a.m2 - (a.m1*a.m1)/n) / (n - 1)
	}
	return 0
}

// StandardDeviation returns the square root of Variance.
func (a *FastVariance) StandardDeviation() float64 {
	return math.Sqrt(a.Variance())
}

// Covariance accumulates the first two central moments and cross-moment of
// a stream of sample pairs, with a stable update.
type Covariance struct {
	n          int
	meanX, m2x float64
	meanY, m2y float64
	c          float64
}

// Reset returns the accumulator to its initial state.
func (a *Covariance) Reset() { *a = Covariance{} }

// Push adds a pair of samples.
func (a *Covariance) Push(x, y float64) {
	a.n++
	dx := x - a.meanX
	a.meanX += dx / float64(a.n)
	a.m2x += dx * (x - a.meanX)
	dy := y - a.meanY
	a.meanY += dy / float64(a.n)
	dyNew := y - a.meanY
	a.m2y += dy * dyNew
	a.c += dx * dyNew
}

// Merge combines another accumulator into this one.
func (a *Covariance) Merge(b Covariance) {
	if b.n == 0 {
		return
	}
	if a.n == 0 {
		*a = b
		return
	}
	n := float64(a.n + b.n)
	dx := b.meanX - a.meanX
	dy := b.meanY - a.meanY
	a.meanX = (float64(a.n)*a.meanX + float64(b.n)*b.meanX) / n
	a.meanY = (float64(a.n)*a.meanY + float64(b.n)*b.meanY) / n
	f := float64(a.n) * float64(b.n) / n
	a.m2x += b.m2x + dx*dx*f
	a.m2y += b.m2y + dy*dy*f
	a.c += b.c + dx*dy*f
	a.n += b.n
}

// Number returns the number of sample pairs seen.
func (a *Covariance) Number() int { return a.n }

// MeanX returns the mean of the first variable.
func (a *Covariance) MeanX() float64 { return a.meanX }

// MeanY returns the mean of the second variable.
func (a *Covariance) MeanY() float64 { return a.meanY }

// VarianceX returns the unbiased variance estimate of the first variable.
func (a *Covariance) VarianceX() float64 {
	if a.n > 1 {
		return a.m2x / float64(a.n-1)
	}
	return 0
}

// VarianceY returns the unbiased variance estimate of the second variable.
func (a *Covariance) VarianceY() float64 {
	if a.n > 1 {
		return a.m2y / float64(a.n-1)
	}
	return 0
}

// StandardDeviationX returns the square root of VarianceX.
func (a *Covariance) StandardDeviationX() float64 { return math.Sqrt(a.VarianceX()) }

// StandardDeviationY returns the square root of VarianceY.
func (a *Covariance) StandardDeviationY() float64 { return math.Sqrt(a.VarianceY()) }

// Covariance returns the unbiased covariance estimate.
func (a *Covariance) Covariance() float64 {
	if a.n > 1 {
		return a.c / float64(a.n-1)
	}
	return 0
}

// Correlation returns the correlation coefficient of the two variables.
func (a *Covariance) Correlation() float64 {
	s := math.Sqrt(a.m2x * a.m2y)
	if a.n > 1 && s != 0 {
		return a.c / s
	}
	return 0
}

// Slope returns the slope of the least-squares fit of y = a + b*x.
func (a *Covariance) Slope() float64 {
	if a.m2x != 0 {
		return a.c / a.m2x
	}
	return 0
}

// Regression holds the parameters of the least-squares fit of y = a + b*x.
type Regression struct {
	Intercept float64
	Slope     float64
}

// Regression returns the slope and intercept of the regression line.
func (a *Covariance) Regression() Regression {
	slope := a.Slope()
	return Regression{Intercept: a.meanY - slope*a.meanX, Slope: slope}
}

// Directional accumulates angles as unit vectors, yielding the directional
// mean and variance.
type Directional struct {
	n   int
	sum complex128
}

// Reset returns the accumulator to its initial state.
func (a *Directional) Reset() { *a = Directional{} }

// Push adds an angle, in radians.
func (a *Directional) Push(x float64) {
	a.n++
	a.sum += complex(math.Cos(x), math.Sin(x))
}

// Merge combines another accumulator into this one.
func (a *Directional) Merge(b Directional) {
	a.n += b.n
	a.sum += b.sum
}

// Number returns the number of samples seen.
func (a *Directional) Number() int { return a.n }

// Mean returns the directional mean angle.
func (a *Directional) Mean() float64 { return cmplx.Phase(a.sum) }

// Variance returns the directional variance, in [0, 1].
func (a *Directional) Variance() float64 {
	if a.n > 0 {
		return 1 - cmplx.Abs(a.sum)/float64(a.n)
	}
	return 0
}

// StandardDeviation returns the directional standard deviation.
func (a *Directional) StandardDeviation() float64 {
	if a.n > 0 {
		// Rounding can push abs(sum)/n over 1, making the log positive.
		return math.Sqrt(math.Max(-2*math.Log(cmplx.Abs(a.sum)/float64(a.n)), 0))
	}
	return 0
}

// MinMax tracks the smallest and largest sample seen.
type MinMax struct {
	min float64
	max float64
}

// NewMinMax returns an empty MinMax accumulator.
func NewMinMax() MinMax {
	return MinMax{min: math.MaxFloat64, max: -math.MaxFloat64}
}

// Reset returns the accumulator to its initial state.
func (a *MinMax) Reset() { *a = NewMinMax() }

// Push adds a sample.
func (a *MinMax) Push(x float64) {
	a.max = math.Max(a.max, x)
	a.min = math.Min(a.min, x)
}

// PushPair adds two samples with a single comparison between them; prefer
// it over two Push calls.
func (a *MinMax) PushPair(x, y float64) {
	if x > y {
		a.max = math.Max(a.max, x)
		a.min = math.Min(a.min, y)
	} else {
		a.max = math.Max(a.max, y)
		a.min = math.Min(a.min, x)
	}
}

// Merge combines another accumulator into this one.
func (a *MinMax) Merge(b MinMax) {
	a.min = math.Min(a.min, b.min)
	a.max = math.Max(a.max, b.max)
}

// Minimum returns the smallest sample seen.
func (a *MinMax) Minimum() float64 { return a.min }

// Maximum returns the largest sample seen.
func (a *MinMax) Maximum() float64 { return a.max }

// Moment accumulates the zeroth order moment, first order moments and
// second order moments of weighted positions in N dimensions. The second
// order moments are stored diagonal first, then the off-diagonal elements
// column-wise (2-D: xx, yy, xy; 3-D: xx, yy, zz, xy, xz, yz).
type Moment struct {
	m0 float64
	m1 []float64
	m2 []float64
}

// NewMoment returns a moment accumulator for n-dimensional positions.
func NewMoment(n int) *Moment {
	return &Moment{
		m1: make([]float64, n),
		m2: make([]float64, n*(n+1)/2),
	}
}

// Reset returns the accumulator to its initial state.
func (a *Moment) Reset() {
	a.m0 = 0
	for i := range a.m1 {
		a.m1[i] = 0
	}
	for i := range a.m2 {
		a.m2[i] = 0
	}
}

// Push adds a weighted position; pos must have the accumulator's
// dimensionality.
func (a *Moment) Push(pos []float64, weight float64) {
	n := len(a.m1)
	a.m0 += weight
	for i := 0; i < n; i++ {
		a.m1[i] += pos[i] * weight
		a.m2[i] += pos[i] * pos[i] * weight
	}
	for i, k := 1, n; i < n; i++ {
		for j := 0; j < i; j, k = j+1, k+1 {
			a.m2[k] += pos[i] * pos[j] * weight
		}
	}
}

// Merge combines another accumulator into this one.
func (a *Moment) Merge(b *Moment) {
	a.m0 += b.m0
	for i := range a.m1 {
		a.m1[i] += b.m1[i]
	}
	for i := range a.m2 {
		a.m2[i] += b.m2[i]
	}
}

// Sum returns the zeroth order moment, the sum of weights.
func (a *Moment) Sum() float64 { return a.m0 }

// FirstOrder returns the normalized first order moments, the center of
// mass.
func (a *Moment) FirstOrder() []float64 {
	out := make([]float64, len(a.m1))
	if a.m0 == 0 {
		return out
	}
	for i, v := range a.m1 {
		out[i] = v / a.m0
	}
	return out
}

// PlainSecondOrder returns the normalized second order central moments, in
// the storage order documented on Moment.
func (a *Moment) PlainSecondOrder() []float64 {
	out := make([]float64, len(a.m2))
	if a.m0 == 0 {
		return out
	}
	n := len(a.m1)
	for i := 0; i < n; i++ {
		out[i] = (a.m2[i] - a.m1[i]*a.m1[i]/a.m0) / a.m0
	}
	for i, k := 1, n; i < n; i++ {
		for j := 0; j < i; j, k = j+1, k+1 {
			out[k] = (a.m2[k] - a.m1[i]*a.m1[j]/a.m0) / a.m0
		}
	}
	return out
}

// SecondOrder returns the normalized second order central moment tensor
// (the inertia tensor), in the storage order documented on Moment.
func (a *Moment) SecondOrder() []float64 {
	out := make([]float64, len(a.m2))
	if a.m0 == 0 {
		return out
	}
	n := len(a.m1)
	m2 := a.PlainSecondOrder()
	for i := 0; i < n; i++ {
		acc := 0.0
		for j := 0; j < n; j++ {
			if j != i {
				acc += m2[j]
			}
		}
		out[i] = acc
	}
	for i := n; i < len(m2); i++ {
		out[i] = -m2[i]
	}
	return out
}
