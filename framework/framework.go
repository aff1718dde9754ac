// Package framework provides the generic execution engines that numeric
// operations plug into: an element-wise Scan engine, a line-by-line
// Separable engine, and a dimensionality-reducing Projection engine (with a
// radial variant). The engines handle shape reconciliation, singleton
// (broadcast) expansion, temporary type-converted buffers, work partitioning
// across goroutines and deterministic merging of per-worker results; the
// plugged-in filter only ever computes.
package framework

import (
	"github.com/imago-ml/imago/dtype"
	"github.com/imago-ml/imago/img"
)

// Buffer describes one operand's samples for a single filter call: a typed
// slice, the sample index of the first pixel, and the strides with which the
// filter walks pixels and tensor elements. When the engine stages samples in
// a temporary buffer, Data is that buffer and Offset is 0; otherwise Data is
// the operand's own backing slice.
type Buffer struct {
	Data         any
	Offset       int
	Stride       int
	TensorStride int
	TensorLen    int
}

// Samples returns the buffer's slice as []T. It panics when T does not match
// the buffer type agreed on for the call; filters resolve this once per line,
// never per sample.
func Samples[T dtype.Sample](b Buffer) []T {
	return b.Data.([]T)
}

// LineFilterBase provides default implementations for the optional filter
// methods. Filters embed it and override what they need.
type LineFilterBase struct{}

// SetThreads pre-sizes per-thread state; the default keeps none.
func (LineFilterBase) SetThreads(int) {}

// Cost estimates elementary operations per pixel; the default assumes one.
func (LineFilterBase) Cost(int) int { return 1 }

// smallDim is the size below which a dimension is a poor processing
// dimension even when its stride is the smallest; a good value depends on
// cache size.
const smallDim = 63

// optimalProcessingDim returns the dimension with the smallest nonzero
// stride magnitude, except that a very short dimension loses to a longer
// one.
func optimalProcessingDim(im *img.Image) int {
	sizes := im.Sizes()
	strides := im.Strides()
	dim := 0
	for i := 1; i < len(strides); i++ {
		if strides[i] != 0 && absInt(strides[i]) < absInt(strides[dim]) {
			if sizes[i] > smallDim || sizes[i] > sizes[dim] {
				dim = i
			}
		} else if sizes[dim] <= smallDim && sizes[i] > sizes[dim] {
			dim = i
		}
	}
	return dim
}

// splitForProcessing divides the coordinate space of sizes, excluding
// excludeDim, into workers contiguous blocks of linesPerWorker lines each,
// returning the start coordinates per worker. Blocks never split a line
// along excludeDim. excludeDim == len(sizes) excludes nothing (used by the
// projection engine, which iterates pixels, not lines).
func splitForProcessing(sizes []int, workers, linesPerWorker, excludeDim int) [][]int {
	starts := make([][]int, workers)
	starts[0] = make([]int, len(sizes))
	for t := 1; t < workers; t++ {
		start := append([]int(nil), starts[t-1]...)
		n := linesPerWorker
		for d := 0; d < len(sizes); d++ {
			if d == excludeDim {
				continue
			}
			n, start[d] = addCarry(n, start[d], sizes[d])
			if n == 0 {
				break
			}
		}
		starts[t] = start
	}
	return starts
}

// addCarry adds n to coordinate c in a dimension of the given size,
// returning the carry into the next dimension and the new coordinate.
func addCarry(n, c, size int) (carry, coord int) {
	c += n
	return c / size, c % size
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func divCeil(a, b int) int {
	return (a + b - 1) / b
}
