package accum

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

var samples = []float64{
	2.5, -1.25, 3.75, 0.5, 8.0, -2.25, 4.5, 1.0, 0.25, 6.5,
	-0.75, 2.0, 5.25, 3.0, -1.0, 7.25, 0.0, 4.0, 2.75, 1.5,
}

func TestStatisticsMatchesGonum(t *testing.T) {
	var acc Statistics
	for _, x := range samples {
		acc.Push(x)
	}
	require.Equal(t, len(samples), acc.Number())
	assert.InDelta(t, stat.Mean(samples, nil), acc.Mean(), 1e-12)
	assert.InDelta(t, stat.Variance(samples, nil), acc.Variance(), 1e-12)
	assert.InDelta(t, math.Sqrt(stat.Variance(samples, nil)), acc.StandardDeviation(), 1e-12)
	assert.InDelta(t, stat.Skew(samples, nil), acc.Skewness(), 1e-12)
	assert.InDelta(t, stat.ExKurtosis(samples, nil), acc.ExcessKurtosis(), 1e-12)
}

func TestStatisticsMergeEqualsSequential(t *testing.T) {
	for _, split := range []int{1, 7, 10, 19} {
		var whole, a, b Statistics
		for _, x := range samples {
			whole.Push(x)
		}
		for _, x := range samples[:split] {
			a.Push(x)
		}
		for _, x := range samples[split:] {
			b.Push(x)
		}
		a.Merge(b)
		require.Equal(t, whole.Number(), a.Number())
		assert.InDelta(t, whole.Mean(), a.Mean(), 1e-12)
		assert.InDelta(t, whole.Variance(), a.Variance(), 1e-12)
		assert.InDelta(t, whole.Skewness(), a.Skewness(), 1e-10)
		assert.InDelta(t, whole.ExcessKurtosis(), a.ExcessKurtosis(), 1e-10)
	}
}

func TestStatisticsDegenerate(t *testing.T) {
	var acc Statistics
	assert.Zero(t, acc.Variance())
	acc.Push(5)
	assert.Equal(t, 5.0, acc.Mean())
	assert.Zero(t, acc.Variance())
	assert.Zero(t, acc.Skewness())
	assert.Zero(t, acc.ExcessKurtosis())
}

func TestVarianceWelford(t *testing.T) {
	var acc Variance
	for _, x := range samples {
		acc.Push(x)
	}
	assert.InDelta(t, stat.Mean(samples, nil), acc.Mean(), 1e-12)
	assert.InDelta(t, stat.Variance(samples, nil), acc.Variance(), 1e-12)
}

func TestVariancePop(t *testing.T) {
	var acc Variance
	for _, x := range samples {
		acc.Push(x)
	}
	acc.Push(123.5)
	acc.Pop(123.5)
	require.Equal(t, len(samples), acc.Number())
	assert.InDelta(t, stat.Mean(samples, nil), acc.Mean(), 1e-9)
	assert.InDelta(t, stat.Variance(samples, nil), acc.Variance(), 1e-9)
}

func TestVarianceMerge(t *testing.T) {
	var a, b Variance
	for _, x := range samples[:8] {
		a.Push(x)
	}
	for _, x := range samples[8:] {
		b.Push(x)
	}
	a.Merge(b)
	assert.InDelta(t, stat.Variance(samples, nil), a.Variance(), 1e-12)
}

func TestFastVariance(t *testing.T) {
	var acc FastVariance
	for _, x := range samples {
		acc.Push(x)
	}
	assert.InDelta(t, stat.Mean(samples, nil), acc.Mean(), 1e-12)
	assert.InDelta(t, stat.Variance(samples, nil), acc.Variance(), 1e-10)
}

func TestCovarianceMatchesGonum(t *testing.T) {
	x := samples[:10]
	y := samples[10:]
	var acc Covariance
	for i := range x {
		acc.Push(x[i], y[i])
	}
	require.Equal(t, len(x), acc.Number())
	assert.InDelta(t, stat.Mean(x, nil), acc.MeanX(), 1e-12)
	assert.InDelta(t, stat.Mean(y, nil), acc.MeanY(), 1e-12)
	assert.InDelta(t, stat.Variance(x, nil), acc.VarianceX(), 1e-12)
	assert.InDelta(t, stat.Variance(y, nil), acc.VarianceY(), 1e-12)
	assert.InDelta(t, stat.Covariance(x, y, nil), acc.Covariance(), 1e-12)
	assert.InDelta(t, stat.Correlation(x, y, nil), acc.Correlation(), 1e-12)
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	assert.InDelta(t, beta, acc.Slope(), 1e-12)
	reg := acc.Regression()
	assert.InDelta(t, beta, reg.Slope, 1e-12)
	assert.InDelta(t, alpha, reg.Intercept, 1e-12)
}

func TestCovarianceMerge(t *testing.T) {
	x := samples[:10]
	y := samples[10:]
	var whole, a, b Covariance
	for i := range x {
		whole.Push(x[i], y[i])
	}
	for i := 0; i < 4; i++ {
		a.Push(x[i], y[i])
	}
	for i := 4; i < 10; i++ {
		b.Push(x[i], y[i])
	}
	a.Merge(b)
	assert.InDelta(t, whole.Covariance(), a.Covariance(), 1e-12)
	assert.InDelta(t, whole.Correlation(), a.Correlation(), 1e-12)
}

func TestDirectional(t *testing.T) {
	var acc Directional
	acc.Push(0.1)
	acc.Push(-0.1)
	assert.InDelta(t, 0, acc.Mean(), 1e-12)

	// Angles straddling the +-pi wrap must average to pi, not 0.
	acc.Reset()
	acc.Push(math.Pi - 0.1)
	acc.Push(-math.Pi + 0.1)
	assert.InDelta(t, math.Pi, math.Abs(acc.Mean()), 1e-12)

	acc.Reset()
	for i := 0; i < 5; i++ {
		acc.Push(1.25)
	}
	assert.InDelta(t, 1.25, acc.Mean(), 1e-12)
	assert.InDelta(t, 0, acc.Variance(), 1e-12)
	assert.InDelta(t, 0, acc.StandardDeviation(), 1e-6)
}

func TestMinMax(t *testing.T) {
	acc := NewMinMax()
	for _, x := range samples {
		acc.Push(x)
	}
	assert.Equal(t, -2.25, acc.Minimum())
	assert.Equal(t, 8.0, acc.Maximum())

	paired := NewMinMax()
	for i := 0; i+1 < len(samples); i += 2 {
		paired.PushPair(samples[i], samples[i+1])
	}
	assert.Equal(t, acc.Minimum(), paired.Minimum())
	assert.Equal(t, acc.Maximum(), paired.Maximum())

	a := NewMinMax()
	b := NewMinMax()
	for _, x := range samples[:5] {
		a.Push(x)
	}
	for _, x := range samples[5:] {
		b.Push(x)
	}
	a.Merge(b)
	assert.Equal(t, acc.Minimum(), a.Minimum())
	assert.Equal(t, acc.Maximum(), a.Maximum())
}

func TestMoment2D(t *testing.T) {
	// Two unit weights at (0,0) and (2,4).
	m := NewMoment(2)
	m.Push([]float64{0, 0}, 1)
	m.Push([]float64{2, 4}, 1)
	assert.Equal(t, 2.0, m.Sum())
	assert.Equal(t, []float64{1, 2}, m.FirstOrder())

	// Central second moments: var_x = 1, var_y = 4, cov = 2 (population).
	plain := m.PlainSecondOrder()
	require.Len(t, plain, 3)
	assert.InDelta(t, 1, plain[0], 1e-12)
	assert.InDelta(t, 4, plain[1], 1e-12)
	assert.InDelta(t, 2, plain[2], 1e-12)

	// The inertia form swaps the diagonal and negates the off-diagonal.
	inertia := m.SecondOrder()
	assert.InDelta(t, 4, inertia[0], 1e-12)
	assert.InDelta(t, 1, inertia[1], 1e-12)
	assert.InDelta(t, -2, inertia[2], 1e-12)
}

func TestMomentMerge(t *testing.T) {
	whole := NewMoment(3)
	a := NewMoment(3)
	b := NewMoment(3)
	points := [][]float64{{0, 1, 2}, {3, 1, 0}, {1, 1, 1}, {2, 0, 2}}
	weights := []float64{1, 2, 0.5, 1.5}
	for i, p := range points {
		whole.Push(p, weights[i])
		if i < 2 {
			a.Push(p, weights[i])
		} else {
			b.Push(p, weights[i])
		}
	}
	a.Merge(b)
	assert.InDelta(t, whole.Sum(), a.Sum(), 1e-12)
	assert.InDeltaSlice(t, whole.FirstOrder(), a.FirstOrder(), 1e-12)
	assert.InDeltaSlice(t, whole.PlainSecondOrder(), a.PlainSecondOrder(), 1e-12)
}

func TestMomentEmpty(t *testing.T) {
	m := NewMoment(2)
	assert.Zero(t, m.Sum())
	assert.Equal(t, []float64{0, 0}, m.FirstOrder())
	assert.Equal(t, []float64{0, 0, 0}, m.PlainSecondOrder())
}
