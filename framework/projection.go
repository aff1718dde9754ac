package framework

import (
	"fmt"

	"github.com/imago-ml/imago/dtype"
	"github.com/imago-ml/imago/img"
	"github.com/imago-ml/imago/internal/parallel"
)

// ProjectionOptions modify how Projection runs.
type ProjectionOptions uint

const (
	// ProjectionNoMultiThreading runs everything on the calling goroutine.
	ProjectionNoMultiThreading ProjectionOptions = 1 << iota
)

func (o ProjectionOptions) is(f ProjectionOptions) bool { return o&f != 0 }

// Sample is a writable reference to one sample of an image or buffer. The
// type dispatch is resolved when the Sample is created, not per write.
type Sample struct {
	data   any
	offset int
	getF   func(i int) float64
	getC   func(i int) complex128
	setF   func(i int, v float64)
	setC   func(i int, v complex128)
}

// NewSample wraps a typed slice; offset selects the sample.
func NewSample(data any) *Sample {
	return &Sample{
		data: data,
		getF: dtype.FloatGetter(data),
		getC: dtype.ComplexGetter(data),
		setF: dtype.FloatSetter(data),
		setC: dtype.ComplexSetter(data),
	}
}

// SetOffset points the sample at a different element of its slice.
func (s *Sample) SetOffset(i int) { s.offset = i }

// Float reads the sample as a float64.
func (s *Sample) Float() float64 { return s.getF(s.offset) }

// Complex reads the sample as a complex128.
func (s *Sample) Complex() complex128 { return s.getC(s.offset) }

// SetFloat writes the sample, clamping to the underlying type's range.
func (s *Sample) SetFloat(v float64) { s.setF(s.offset, v) }

// SetComplex writes the sample; real types keep the real component.
func (s *Sample) SetComplex(v complex128) { s.setC(s.offset, v) }

// ProjectionFunction reduces all samples of an image (view) to a single
// value. mask is nil when no mask was given; otherwise it has the same sizes
// as in.
type ProjectionFunction interface {
	Project(in, mask *img.Image, out *Sample, thread int) error
	SetThreads(n int)
	// Cost estimates elementary operations for projecting nPixels pixels.
	Cost(nPixels int) int
}

// Projection reduces the processed dimensions of an image to size 1,
// calling the projection function once per output pixel with a view over
// the samples that project onto it. Tensor elements are reduced
// independently. A singleton dimension counts as processed, which maximizes
// the chance that a single call covers the whole image.
func Projection(
	in, mask, out *img.Image,
	outImageType dtype.Type,
	process []bool,
	function ProjectionFunction,
	opts ProjectionOptions,
) error {
	if err := in.MustBeForged(); err != nil {
		return fmt.Errorf("Projection: %w", err)
	}
	inSizes := append([]int(nil), in.Sizes()...)
	nDims := len(inSizes)

	switch {
	case process == nil:
		process = make([]bool, nDims)
		for i := range process {
			process[i] = true
		}
	case len(process) != nDims:
		return fmt.Errorf("Projection: %w", img.ErrArrayWrongLength)
	default:
		process = append([]bool(nil), process...)
	}

	input := in.View()

	var maskView *img.Image
	if mask != nil && mask.IsForged() {
		maskView = mask.View()
		if err := maskView.CheckIsMask(inSizes); err != nil {
			return fmt.Errorf("Projection: %w", err)
		}
		if err := maskView.ExpandSingletonDimensions(inSizes); err != nil {
			return fmt.Errorf("Projection: %w", err)
		}
		if err := maskView.ExpandSingletonTensor(input.TensorLen()); err != nil {
			return fmt.Errorf("Projection: %w", err)
		}
	}

	outSizes := append([]int(nil), inSizes...)
	procSizes := append([]int(nil), inSizes...)
	for d := 0; d < nDims; d++ {
		if inSizes[d] == 1 {
			process[d] = true
		}
		if process[d] {
			outSizes[d] = 1
		} else {
			procSizes[d] = 1
		}
	}

	nTensor := input.TensorLen()
	if out.Aliases(input) || (maskView != nil && out.Aliases(maskView)) {
		out.Strip()
	}
	if out.IsForged() && sameInts(out.Sizes(), outSizes) && out.TensorLen() == nTensor {
		// Keep the allocation and its type.
	} else if err := out.ReForge(outSizes, nTensor, outImageType); err != nil {
		return fmt.Errorf("Projection: %w", err)
	}
	output := out.View()

	// Each tensor element projects independently; fold the tensor into a
	// non-processed spatial dimension.
	if nTensor > 1 {
		input.TensorToSpatial(0)
		if maskView != nil {
			maskView.TensorToSpatial(0)
		}
		output.TensorToSpatial(0)
		process = append([]bool{false}, process...)
		procSizes = append([]int{1}, procSizes...)
		outSizes = append([]int(nil), output.Sizes()...)
		nDims++
	}

	useOutputBuffer := output.DataType() != outImageType

	// All dimensions processed: a single call covers the whole image.
	allProcessed := true
	for _, p := range process {
		if !p {
			allProcessed = false
			break
		}
	}
	if allProcessed {
		function.SetThreads(1)
		if useOutputBuffer {
			buf := dtype.Alloc(outImageType, 1)
			s := NewSample(buf)
			if err := function.Project(input, maskView, s, 0); err != nil {
				return fmt.Errorf("Projection: %w", err)
			}
			copyBuffer(
				Buffer{Data: buf, TensorLen: 1},
				outImageType,
				Buffer{Data: output.Data(), Offset: output.Origin(), TensorLen: 1},
				output.DataType(),
				1,
			)
		} else {
			s := NewSample(output.Data())
			s.SetOffset(output.Origin())
			if err := function.Project(input, maskView, s, 0); err != nil {
				return fmt.Errorf("Projection: %w", err)
			}
		}
		return nil
	}

	// View over the processing dimensions only; the function loops over as
	// few dimensions as possible.
	tempIn := input.View()
	tempIn.SetSizes(procSizes)
	var tempMask *img.Image
	if maskView != nil {
		tempMask = maskView.View()
		tempMask.SetSizes(procSizes)
	}
	switch {
	case tempMask != nil && sameInts(tempIn.Strides(), tempMask.Strides()) && tempIn.HasSimpleStride():
		// Same strides means Flatten applies the same transform to both.
		_ = tempIn.Flatten()
		_ = tempMask.Flatten()
	case tempMask == nil && tempIn.HasSimpleStride():
		_ = tempIn.Flatten()
	default:
		tempIn.Squeeze()
		if tempMask != nil {
			tempMask.Squeeze()
		}
	}

	// Strides for stepping tempIn, tempMask and the output through the
	// non-processed dimensions, with singleton dimensions dropped.
	var loopSizes, inStride, maskStride, outStride []int
	for d := 0; d < nDims; d++ {
		if outSizes[d] > 1 {
			loopSizes = append(loopSizes, outSizes[d])
			inStride = append(inStride, input.Stride(d))
			if maskView != nil {
				maskStride = append(maskStride, maskView.Stride(d))
			}
			outStride = append(outStride, output.Stride(d))
		}
	}
	nLoop := 1
	for _, s := range loopSizes {
		nLoop *= s
	}

	nThreads := 1
	if !opts.is(ProjectionNoMultiThreading) {
		nThreads = parallel.Workers(nLoop*function.Cost(tempIn.NumPixels()), nLoop)
	}
	nLoopPerThread := divCeil(nLoop, nThreads)
	nThreads = min(divCeil(nLoop, nLoopPerThread), nThreads)
	function.SetThreads(nThreads)

	startCoords := splitForProcessing(loopSizes, nThreads, nLoopPerThread, len(loopSizes))

	err := parallel.Run(nThreads, func(thread int) error {
		position := append([]int(nil), startCoords[thread]...)
		localIn := tempIn.View()
		localIn.ShiftOrigin(strideOffset(position, inStride))
		var localMask *img.Image
		if tempMask != nil {
			localMask = tempMask.View()
			localMask.ShiftOrigin(strideOffset(position, maskStride))
		}
		outOffset := output.Origin() + strideOffset(position, outStride)

		outSample := NewSample(output.Data())
		var bufSample *Sample
		var buf any
		if useOutputBuffer {
			buf = dtype.Alloc(outImageType, 1)
			bufSample = NewSample(buf)
		}

		for i := 0; i < nLoopPerThread; i++ {
			if useOutputBuffer {
				if err := function.Project(localIn, localMask, bufSample, thread); err != nil {
					return err
				}
				outSample.SetOffset(outOffset)
				if outImageType.IsComplex() {
					outSample.SetComplex(bufSample.Complex())
				} else {
					outSample.SetFloat(bufSample.Float())
				}
			} else {
				outSample.SetOffset(outOffset)
				if err := function.Project(localIn, localMask, outSample, thread); err != nil {
					return err
				}
			}

			// Next output pixel.
			d := 0
			for ; d < len(loopSizes); d++ {
				position[d]++
				localIn.ShiftOrigin(inStride[d])
				if localMask != nil {
					localMask.ShiftOrigin(maskStride[d])
				}
				outOffset += outStride[d]
				if position[d] != loopSizes[d] {
					break
				}
				localIn.ShiftOrigin(-inStride[d] * position[d])
				if localMask != nil {
					localMask.ShiftOrigin(-maskStride[d] * position[d])
				}
				outOffset -= outStride[d] * position[d]
				position[d] = 0
			}
			if d == len(loopSizes) {
				break
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("Projection: %w", err)
	}
	return nil
}

func strideOffset(coords, strides []int) int {
	off := 0
	for i, c := range coords {
		off += c * strides[i]
	}
	return off
}
