package framework

import (
	"fmt"
	"sort"

	"github.com/imago-ml/imago/dtype"
	"github.com/imago-ml/imago/img"
	"github.com/imago-ml/imago/internal/parallel"
)

// SeparableOptions modify how Separable runs.
type SeparableOptions uint

const (
	// SeparableNoMultiThreading runs everything on the calling goroutine.
	SeparableNoMultiThreading SeparableOptions = 1 << iota
	// SeparableAsScalarImage folds the tensor into a spatial dimension that
	// is never processed, so a scalar filter applies per channel.
	SeparableAsScalarImage
	// SeparableExpandTensorInBuffer stages inputs whose tensor elements are
	// not densely packed into a contiguous buffer.
	SeparableExpandTensorInBuffer
	// SeparableUseOutputBorder allocates border samples around the output
	// buffer too, for filters that write past the line ends.
	SeparableUseOutputBorder
	// SeparableDontResizeOutput keeps the output sizes as they are; per-pass
	// line lengths then differ between input and output.
	SeparableDontResizeOutput
	// SeparableUseInputBuffer forces an input buffer even when the types
	// match, for filters that modify their input.
	SeparableUseInputBuffer
	// SeparableUseOutputBuffer forces an output buffer even when the types
	// match.
	SeparableUseOutputBuffer
	// SeparableCanWorkInPlace lets a pass read and write the same samples
	// without a buffer in between.
	SeparableCanWorkInPlace
	// SeparableUseRealComponentOfOutput writes only the real component of a
	// complex buffer to a real-valued output.
	SeparableUseRealComponentOfOutput
)

func (o SeparableOptions) is(f SeparableOptions) bool { return o&f != 0 }

// SeparableBuffer is one line of samples with optional border samples on
// either end. Offset addresses the first in-domain pixel; indexes
// -Border*Stride through (Length+Border-1)*Stride relative to it are valid.
type SeparableBuffer struct {
	Buffer
	Length int
	Border int
}

// SeparableLineParams is handed to a SeparableLineFilter for every line.
type SeparableLineParams struct {
	In  SeparableBuffer
	Out SeparableBuffer
	// Dim is the dimension this pass runs along.
	Dim int
	// Pass counts the current pass, 0 <= Pass < NPasses.
	Pass    int
	NPasses int
	// Position holds the coordinates of the line's first pixel. Shared
	// across calls, do not retain.
	Position []int
	// TensorToSpatial is set when the tensor dimension was folded into the
	// spatial dimensions.
	TensorToSpatial bool
	Thread          int
}

// SeparableLineFilter computes one output line from one input line.
type SeparableLineFilter interface {
	Filter(p *SeparableLineParams) error
	SetThreads(n int)
	// Cost estimates elementary operations per output pixel for a pass along
	// dim with the given line length and border.
	Cost(lineLength, nTensor, border, dim int) int
}

// Separable applies a one-dimensional filter along each selected dimension
// in turn, reading the previous pass's result. process selects the
// dimensions (nil means all), border gives the number of boundary samples
// the filter reads past the line ends per dimension, and boundaryConditions
// says how those are synthesized. Lines are staged in bufferType; the
// output is reforged to outImageType.
func Separable(
	in, out *img.Image,
	bufferType, outImageType dtype.Type,
	process []bool,
	border []int,
	boundaryConditions []BoundaryCondition,
	filter SeparableLineFilter,
	opts SeparableOptions,
) error {
	if err := in.MustBeForged(); err != nil {
		return fmt.Errorf("Separable: %w", err)
	}
	inSizes := append([]int(nil), in.Sizes()...)
	nDims := len(inSizes)
	if nDims < 1 {
		return fmt.Errorf("Separable: %w", img.ErrDimensionalityNotSupported)
	}

	switch {
	case process == nil:
		process = make([]bool, nDims)
		for i := range process {
			process[i] = true
		}
	case len(process) != nDims:
		return fmt.Errorf("Separable: %w", img.ErrArrayWrongLength)
	default:
		process = append([]bool(nil), process...)
	}
	var err error
	if border, err = perDimension(border, nDims); err != nil {
		return fmt.Errorf("Separable: border: %w", err)
	}
	if boundaryConditions, err = perDimension(boundaryConditions, nDims); err != nil {
		return fmt.Errorf("Separable: boundary conditions: %w", err)
	}

	input := in.View()
	if out.IsOverlappingView(input) && !identicalView(out, []*img.Image{input}) {
		out.Strip()
	}

	var outSizes []int
	if opts.is(SeparableDontResizeOutput) {
		if err := out.MustBeForged(); err != nil {
			return fmt.Errorf("Separable: %w", err)
		}
		outSizes = append([]int(nil), out.Sizes()...)
		if len(outSizes) != nDims {
			return fmt.Errorf("Separable: %w", img.ErrDimensionalityNotSupported)
		}
		for d := 0; d < nDims; d++ {
			if !process[d] && inSizes[d] != outSizes[d] {
				return fmt.Errorf("Separable: unprocessed dimension %d changes size: %w", d, img.ErrSizesDontMatch)
			}
		}
	} else {
		outSizes = append([]int(nil), inSizes...)
	}

	for d := 0; d < nDims; d++ {
		if inSizes[d] == 1 && outSizes[d] == 1 {
			process[d] = false
		}
	}

	// Fold the tensor into an unprocessed spatial dimension if requested.
	tensorToSpatial := false
	outTensor := input.TensorLen()
	nTensor := input.TensorLen()
	if opts.is(SeparableAsScalarImage) && !input.IsScalar() {
		input.TensorToSpatial(nDims)
		process = append(process, false)
		border = append(border, 0)
		boundaryConditions = append(boundaryConditions, BoundaryMirror)
		tensorToSpatial = true
		nDims++
		inSizes = append([]int(nil), input.Sizes()...)
		nTensor = 1
	}

	if out.IsForged() && sameInts(out.Sizes(), outSizes) && out.TensorLen() == outTensor {
		// Keep the allocation and its type.
	} else if err := out.ReForge(outSizes, outTensor, outImageType); err != nil {
		return fmt.Errorf("Separable: %w", err)
	}
	output := out.View()
	if tensorToSpatial {
		output.TensorToSpatial(nDims - 1)
		outSizes = append([]int(nil), output.Sizes()...)
	}

	// Pass order: smallest stride first, and when the output shrinks, the
	// most-reducing dimension first so later passes have less work.
	var order []int
	for d := 0; d < nDims; d++ {
		if process[d] {
			order = append(order, d)
		}
	}
	if len(order) == 0 {
		if err := out.CopyFrom(in); err != nil {
			return fmt.Errorf("Separable: %w", err)
		}
		return nil
	}
	sort.SliceStable(order, func(i, j int) bool {
		return absInt(input.Stride(order[i])) < absInt(input.Stride(order[j]))
	})
	if opts.is(SeparableDontResizeOutput) {
		sort.SliceStable(order, func(i, j int) bool {
			gi := float64(outSizes[order[i]]) / float64(inSizes[order[i]])
			gj := float64(outSizes[order[j]]) / float64(inSizes[order[j]])
			return gi < gj
		})
	}

	// Intermediate image between passes, when the output cannot hold the
	// buffer type losslessly or is too small for an intermediate pass.
	useIntermediate := output.DataType() != bufferType
	intermSizes := append([]int(nil), outSizes...)
	for _, d := range order[1:] {
		if inSizes[d] > outSizes[d] {
			intermSizes[d] = inSizes[d]
			useIntermediate = true
		}
	}
	var intermediate *img.Image
	if useIntermediate {
		intermediate = img.NewHeader()
		intermediate.SetSizes(intermSizes)
		intermediate.SetTensorLen(output.TensorLen())
		intermediate.SetDataType(bufferType)
		if err := intermediate.Forge(); err != nil {
			return fmt.Errorf("Separable: %w", err)
		}
	}

	// One threading decision for all passes, sized by the total work.
	nThreads := 1
	if !opts.is(SeparableNoMultiThreading) {
		operations := 0
		maxNLines := 0
		sizes := append([]int(nil), inSizes...)
		for _, d := range order {
			lineLength := outSizes[d]
			sizes[d] = lineLength
			nLines := 1
			for _, s := range sizes {
				nLines *= s
			}
			if lineLength > 0 {
				nLines /= lineLength
			}
			if nLines > maxNLines {
				maxNLines = nLines
			}
			if nLines > 1 {
				operations += nLines * lineLength * filter.Cost(lineLength, nTensor, border[d], d)
			}
		}
		nThreads = parallel.Workers(operations, maxNLines)
	}
	filter.SetThreads(nThreads)

	inIm := input
	for rep, dim := range order {
		// First pass reads the input, later passes read the previous pass's
		// result. All passes write the intermediate except the last, which
		// writes the output.
		target := output
		if rep < len(order)-1 && useIntermediate {
			target = intermediate
		}
		outIm := target.View()
		sizes := append([]int(nil), inIm.Sizes()...)
		sizes[dim] = outSizes[dim]
		outIm.SetSizes(sizes)

		if err := separablePass(inIm, outIm, dim, rep, len(order), bufferType,
			inSizes[dim], outSizes[dim], border[dim], boundaryConditions[dim],
			sizes, tensorToSpatial, nThreads, filter, opts); err != nil {
			return fmt.Errorf("Separable: %w", err)
		}
		inIm = outIm
	}
	return nil
}

// OneDimensional calls Separable with a single processed dimension.
func OneDimensional(
	in, out *img.Image,
	bufferType, outImageType dtype.Type,
	dim, border int,
	bc BoundaryCondition,
	filter SeparableLineFilter,
	opts SeparableOptions,
) error {
	nDims := in.Dimensionality()
	if dim < 0 || dim >= nDims {
		return fmt.Errorf("OneDimensional: dimension %d: %w", dim, img.ErrParameterOutOfRange)
	}
	process := make([]bool, nDims)
	process[dim] = true
	borders := make([]int, nDims)
	borders[dim] = border
	bcs := make([]BoundaryCondition, nDims)
	bcs[dim] = bc
	return Separable(in, out, bufferType, outImageType, process, borders, bcs, filter, opts)
}

// separablePass runs one pass of the separable engine along dim.
func separablePass(
	inIm, outIm *img.Image,
	dim, pass, nPasses int,
	bufferType dtype.Type,
	inLength, outLength, border int,
	bc BoundaryCondition,
	sizes []int,
	tensorToSpatial bool,
	nThreads int,
	filter SeparableLineFilter,
	opts SeparableOptions,
) error {
	nLines := 1
	for d, s := range sizes {
		if d != dim {
			nLines *= s
		}
	}
	nLinesPerThread := divCeil(nLines, nThreads)
	dThreads := min(divCeil(nLines, nLinesPerThread), nThreads)
	startCoords := splitForProcessing(sizes, dThreads, nLinesPerThread, dim)

	outBorder := 0
	if opts.is(SeparableUseOutputBorder) {
		outBorder = border
	}
	inUseBuffer := inIm.DataType() != bufferType || border > 0 ||
		opts.is(SeparableUseInputBuffer) ||
		(opts.is(SeparableExpandTensorInBuffer) && inIm.TensorLen() > 1 && inIm.TensorStride() != 1)
	outUseBuffer := outIm.DataType() != bufferType || outBorder > 0 ||
		opts.is(SeparableUseOutputBuffer)
	if !inUseBuffer && !outUseBuffer && inIm.Origin() == outIm.Origin() && inIm.SharesData(outIm) {
		// Reading and writing the same samples needs at least one buffer.
		inUseBuffer = !opts.is(SeparableCanWorkInPlace)
	}
	realComponent := outUseBuffer && bufferType.IsComplex() &&
		!outIm.DataType().IsComplex() && opts.is(SeparableUseRealComponentOfOutput)

	return parallel.Run(dThreads, func(thread int) error {
		inBuf := SeparableBuffer{Length: inLength, Border: border}
		if inUseBuffer {
			inBuf.TensorLen = inIm.TensorLen()
			inBuf.TensorStride = 1
			inBuf.Stride = inBuf.TensorLen
			inBuf.Data = dtype.Alloc(bufferType, (inLength+2*border)*inBuf.TensorLen)
			inBuf.Offset = border * inBuf.TensorLen
		} else {
			inBuf.TensorLen = inIm.TensorLen()
			inBuf.TensorStride = inIm.TensorStride()
			inBuf.Stride = inIm.Stride(dim)
		}
		outBuf := SeparableBuffer{Length: outLength, Border: outBorder}
		outBuf.TensorLen = outIm.TensorLen()
		if outUseBuffer {
			outBuf.TensorStride = 1
			outBuf.Stride = outBuf.TensorLen
			outBuf.Data = dtype.Alloc(bufferType, (outLength+2*outBorder)*outBuf.TensorLen)
			outBuf.Offset = outBorder * outBuf.TensorLen
		} else {
			outBuf.TensorStride = outIm.TensorStride()
			outBuf.Stride = outIm.Stride(dim)
		}

		position := append([]int(nil), startCoords[thread]...)
		params := SeparableLineParams{
			In:              inBuf,
			Out:             outBuf,
			Dim:             dim,
			Pass:            pass,
			NPasses:         nPasses,
			Position:        position,
			TensorToSpatial: tensorToSpatial,
			Thread:          thread,
		}
		inOffset := inIm.Offset(position)
		outOffset := outIm.Offset(position)

		for line := 0; line < nLinesPerThread; line++ {
			if inUseBuffer {
				copyBuffer(
					Buffer{
						Data:         inIm.Data(),
						Offset:       inOffset,
						Stride:       inIm.Stride(dim),
						TensorStride: inIm.TensorStride(),
						TensorLen:    inIm.TensorLen(),
					},
					inIm.DataType(),
					params.In.Buffer, bufferType,
					inLength,
				)
				expandBuffer(params.In, bc)
			} else {
				params.In.Data = inIm.Data()
				params.In.Offset = inOffset
			}
			if !outUseBuffer {
				params.Out.Data = outIm.Data()
				params.Out.Offset = outOffset
			}

			if err := filter.Filter(&params); err != nil {
				return err
			}

			if outUseBuffer {
				dst := Buffer{
					Data:         outIm.Data(),
					Offset:       outOffset,
					Stride:       outIm.Stride(dim),
					TensorStride: outIm.TensorStride(),
					TensorLen:    outIm.TensorLen(),
				}
				if realComponent {
					copyRealComponent(params.Out.Buffer, dst, outLength)
				} else {
					copyBuffer(params.Out.Buffer, bufferType, dst, outIm.DataType(), outLength)
				}
			}

			if !advanceJointLine(position, sizes, dim, inIm, &inOffset, outIm, &outOffset) {
				break
			}
		}
		return nil
	})
}

// copyRealComponent writes the real parts of a complex buffer into a real
// destination.
func copyRealComponent(src, dst Buffer, pixels int) {
	get := dtype.ComplexGetter(src.Data)
	set := dtype.FloatSetter(dst.Data)
	tlen := dst.TensorLen
	for p := 0; p < pixels; p++ {
		so := src.Offset + p*src.Stride
		do := dst.Offset + p*dst.Stride
		for t := 0; t < tlen; t++ {
			set(do+t*dst.TensorStride, real(get(so+t*src.TensorStride)))
		}
	}
}

// advanceJointLine advances position and both offsets to the next line,
// skipping dim. It returns false after the last line.
func advanceJointLine(position, sizes []int, dim int, a *img.Image, aOff *int, b *img.Image, bOff *int) bool {
	for d := 0; d < len(sizes); d++ {
		if d == dim {
			continue
		}
		position[d]++
		*aOff += a.Stride(d)
		*bOff += b.Stride(d)
		if position[d] < sizes[d] {
			return true
		}
		*aOff -= position[d] * a.Stride(d)
		*bOff -= position[d] * b.Stride(d)
		position[d] = 0
	}
	return false
}

// perDimension resizes a per-dimension parameter array: empty means the zero
// value everywhere, a single element is replicated, and a full-length array
// passes through. Anything else is an error.
func perDimension[T any](v []T, nDims int) ([]T, error) {
	switch len(v) {
	case 0:
		return make([]T, nDims), nil
	case 1:
		r := make([]T, nDims)
		for i := range r {
			r[i] = v[0]
		}
		return r, nil
	case nDims:
		return append([]T(nil), v...), nil
	default:
		return nil, img.ErrArrayWrongLength
	}
}
