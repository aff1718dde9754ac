package framework

import (
	"fmt"
	"math"

	"github.com/imago-ml/imago/dtype"
	"github.com/imago-ml/imago/img"
	"github.com/imago-ml/imago/internal/parallel"
)

// RadiusMode selects how far the radial bins of RadialProjectionScan reach.
type RadiusMode int

const (
	// RadiusInner covers the largest ball around the center that fits the
	// image; pixels beyond it are ignored.
	RadiusInner RadiusMode = iota
	// RadiusOuter covers every pixel, out to the farthest corner.
	RadiusOuter
)

// ParseRadiusMode maps a name to a RadiusMode. The empty string selects the
// default, "outer radius".
func ParseRadiusMode(s string) (RadiusMode, error) {
	switch s {
	case "", "outer radius":
		return RadiusOuter, nil
	case "inner radius":
		return RadiusInner, nil
	default:
		return 0, fmt.Errorf("ParseRadiusMode: %q: %w", s, img.ErrInvalidFlag)
	}
}

// RadialLineParams is handed to a RadialProjectionFunction for every image
// line.
type RadialLineParams struct {
	// In is the input line in the agreed buffer type.
	In Buffer
	// Mask is the mask line ([]bool samples); Data is nil when no mask was
	// given.
	Mask   Buffer
	Length int
	// BinIndex holds, per pixel on the line, the radial bin it falls in, or
	// -1 when the pixel is outside the binned range.
	BinIndex []int
	// Out is this worker's private output: a 1-D image with one pixel per
	// radial bin.
	Out    *img.Image
	Thread int
}

// RadialProjectionFunction accumulates pixels into radial bins. The engine
// computes bin indices and hands out per-worker private outputs; the
// function implements the identity value, the per-line accumulation, and
// the merge of two partial outputs.
type RadialProjectionFunction interface {
	// InitializeOutput fills a forged output image with the identity value.
	InitializeOutput(out *img.Image) error
	ProcessLine(p *RadialLineParams) error
	// Merge folds a worker's private output into out.
	Merge(out, private *img.Image) error
	SetThreads(n int)
}

// RadialProjectionScan reduces an image to a 1-D image indexed by the
// distance to center, with bins of binSize. The output is reforged to
// numBins pixels of outImageType with nTensor elements each; input lines
// reach the function in inBufferType. Workers accumulate into private
// outputs, merged in worker order, so results do not depend on the worker
// count.
func RadialProjectionScan(
	in, mask, out *img.Image,
	inBufferType, outImageType dtype.Type,
	nTensor int,
	binSize float64,
	mode RadiusMode,
	center []float64,
	function RadialProjectionFunction,
	opts ProjectionOptions,
) error {
	if err := in.MustBeForged(); err != nil {
		return fmt.Errorf("RadialProjectionScan: %w", err)
	}
	nDims := in.Dimensionality()
	if nDims < 2 {
		return fmt.Errorf("RadialProjectionScan: needs at least 2 dimensions: %w", img.ErrDimensionalityNotSupported)
	}
	if binSize <= 0 {
		return fmt.Errorf("RadialProjectionScan: bin size %g: %w", binSize, img.ErrParameterOutOfRange)
	}

	input := in.View()

	var maskView *img.Image
	if mask != nil && mask.IsForged() {
		maskView = mask.View()
		if err := maskView.CheckIsMask(input.Sizes()); err != nil {
			return fmt.Errorf("RadialProjectionScan: %w", err)
		}
		if err := maskView.ExpandSingletonDimensions(input.Sizes()); err != nil {
			return fmt.Errorf("RadialProjectionScan: %w", err)
		}
	}

	if center == nil {
		center = input.Center()
	} else {
		if len(center) != nDims {
			return fmt.Errorf("RadialProjectionScan: center: %w", img.ErrArrayWrongLength)
		}
		if !input.IsInside(center) {
			return fmt.Errorf("RadialProjectionScan: center outside image: %w", img.ErrParameterOutOfRange)
		}
	}

	// The binned range: inner mode stops at the nearest edge, outer mode
	// reaches the farthest corner.
	var radius float64
	if mode == RadiusInner {
		radius = math.MaxFloat64
		for d := 0; d < nDims; d++ {
			radius = math.Min(radius, center[d])
			radius = math.Min(radius, float64(input.Size(d)-1)-center[d])
		}
	} else {
		for d := 0; d < nDims; d++ {
			dimMax := math.Max(center[d], float64(input.Size(d)-1)-center[d])
			radius += dimMax * dimMax
		}
		radius = math.Sqrt(radius)
	}
	numBins := int(radius/binSize) + 1

	if err := out.ReForge([]int{numBins}, nTensor, outImageType); err != nil {
		return fmt.Errorf("RadialProjectionScan: %w", err)
	}
	if err := function.InitializeOutput(out); err != nil {
		return fmt.Errorf("RadialProjectionScan: %w", err)
	}

	procDim := optimalProcessingDim(input)
	sizes := input.Sizes()
	lineLength := sizes[procDim]
	nLines := 1
	for d, s := range sizes {
		if d != procDim {
			nLines *= s
		}
	}

	nThreads := 1
	if !opts.is(ProjectionNoMultiThreading) {
		nThreads = parallel.Workers(input.NumSamples(), nLines)
	}
	nLinesPerThread := divCeil(nLines, nThreads)
	nThreads = min(divCeil(nLines, nLinesPerThread), nThreads)
	function.SetThreads(nThreads)

	// Worker 0 accumulates straight into out; the others get private
	// outputs, merged below in worker order.
	private := make([]*img.Image, nThreads)
	private[0] = out
	for t := 1; t < nThreads; t++ {
		p := img.NewHeader()
		p.SetSizes([]int{numBins})
		p.SetTensorLen(nTensor)
		p.SetDataType(outImageType)
		if err := p.Forge(); err != nil {
			return fmt.Errorf("RadialProjectionScan: %w", err)
		}
		if err := function.InitializeOutput(p); err != nil {
			return fmt.Errorf("RadialProjectionScan: %w", err)
		}
		private[t] = p
	}

	startCoords := splitForProcessing(sizes, nThreads, nLinesPerThread, procDim)
	useBuffer := input.DataType() != inBufferType

	err := parallel.Run(nThreads, func(thread int) error {
		params := RadialLineParams{
			Length:   lineLength,
			BinIndex: make([]int, lineLength),
			Out:      private[thread],
			Thread:   thread,
		}
		if useBuffer {
			params.In = Buffer{
				Data:         dtype.Alloc(inBufferType, lineLength*input.TensorLen()),
				Stride:       input.TensorLen(),
				TensorStride: 1,
				TensorLen:    input.TensorLen(),
			}
		} else {
			params.In = Buffer{
				Data:         input.Data(),
				Stride:       input.Stride(procDim),
				TensorStride: input.TensorStride(),
				TensorLen:    input.TensorLen(),
			}
		}
		if maskView != nil {
			params.Mask = Buffer{
				Data:         maskView.Data(),
				Stride:       maskView.Stride(procDim),
				TensorStride: maskView.TensorStride(),
				TensorLen:    1,
			}
		}

		position := append([]int(nil), startCoords[thread]...)
		inOffset := input.Offset(position)
		maskOffset := 0
		if maskView != nil {
			maskOffset = maskView.Offset(position)
		}

		for line := 0; line < nLinesPerThread; line++ {
			// Squared distance to the center over all dimensions except the
			// processing one; constant along the line.
			partial := 0.0
			for d := 0; d < nDims; d++ {
				if d != procDim {
					dist := float64(position[d]) - center[d]
					partial += dist * dist
				}
			}
			for p := 0; p < lineLength; p++ {
				dist := float64(p) - center[procDim]
				r := math.Sqrt(partial + dist*dist)
				bin := int(math.Floor(r / binSize))
				if bin >= numBins {
					bin = -1
				}
				params.BinIndex[p] = bin
			}

			if useBuffer {
				copyBuffer(
					Buffer{
						Data:         input.Data(),
						Offset:       inOffset,
						Stride:       input.Stride(procDim),
						TensorStride: input.TensorStride(),
						TensorLen:    input.TensorLen(),
					},
					input.DataType(),
					params.In, inBufferType,
					lineLength,
				)
			} else {
				params.In.Offset = inOffset
			}
			if maskView != nil {
				params.Mask.Offset = maskOffset
			}

			if err := function.ProcessLine(&params); err != nil {
				return err
			}

			more := false
			for d := 0; d < nDims; d++ {
				if d == procDim {
					continue
				}
				position[d]++
				inOffset += input.Stride(d)
				if maskView != nil {
					maskOffset += maskView.Stride(d)
				}
				if position[d] < sizes[d] {
					more = true
					break
				}
				inOffset -= position[d] * input.Stride(d)
				if maskView != nil {
					maskOffset -= position[d] * maskView.Stride(d)
				}
				position[d] = 0
			}
			if !more {
				break
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("RadialProjectionScan: %w", err)
	}

	for t := 1; t < nThreads; t++ {
		if err := function.Merge(out, private[t]); err != nil {
			return fmt.Errorf("RadialProjectionScan: %w", err)
		}
	}
	return nil
}
