package framework

import (
	"fmt"

	"github.com/imago-ml/imago/dtype"
	"github.com/imago-ml/imago/img"
	"github.com/imago-ml/imago/internal/parallel"
)

// ScanOptions modify how Scan runs.
type ScanOptions uint

const (
	// ScanNoMultiThreading runs everything on the calling goroutine.
	ScanNoMultiThreading ScanOptions = 1 << iota
	// ScanNeedCoordinates keeps Position valid, at the cost of the 1-D fast
	// path.
	ScanNeedCoordinates
	// ScanTensorAsSpatialDim converts the tensor dimension to a spatial one,
	// so a scalar filter applies to every sample.
	ScanTensorAsSpatialDim
	// ScanExpandTensorInBuffer stages inputs whose tensor elements are not
	// densely packed into a contiguous buffer.
	ScanExpandTensorInBuffer
	// ScanNoSingletonExpansion requires all inputs to have identical sizes.
	ScanNoSingletonExpansion
	// ScanNotInPlace buffers any output that shares samples with an input.
	ScanNotInPlace
)

func (o ScanOptions) is(f ScanOptions) bool { return o&f != 0 }

// maxBufferSize caps the temporary buffer length, in pixels, when a
// flattened image is chunked for buffered processing.
const maxBufferSize = 256 * 1024

// ScanLineParams is handed to a ScanLineFilter for every line (or chunk)
// of the image.
type ScanLineParams struct {
	In  []Buffer // one per input operand, in the agreed buffer types
	Out []Buffer // one per output operand
	// Length is the number of pixels in this call. It can differ between
	// calls when the image was flattened and chunked.
	Length int
	// Dim is the dimension along which the buffers run.
	Dim int
	// Position holds the coordinates of the line's first pixel. Only valid
	// under ScanNeedCoordinates; shared across calls, do not retain.
	Position []int
	// TensorToSpatial is set when the tensor dimension was folded into the
	// spatial dimensions for this call.
	TensorToSpatial bool
	// Thread identifies the worker, 0 <= Thread < the value given to
	// SetThreads. Index per-thread state with it.
	Thread int
}

// ScanLineFilter computes output samples from input samples, one line at a
// time. Implementations resolve buffer types once per call, never per
// sample.
type ScanLineFilter interface {
	Filter(p *ScanLineParams) error
	// SetThreads announces the worker count before the first Filter call.
	SetThreads(n int)
	// Cost estimates the number of elementary operations per sample; the
	// engine uses it to decide whether goroutines pay off.
	Cost(nTensor int) int
}

// Scan applies a per-pixel filter over any number of input and output
// operands. Inputs are singleton-expanded to a common size, outputs are
// reforged to that size with the requested tensor lengths and types, and the
// filter sees lines staged in the requested buffer types. An output may be
// one of the inputs.
func Scan(
	in []*img.Image,
	out []*img.Image,
	inBufferTypes []dtype.Type,
	outBufferTypes []dtype.Type,
	outImageTypes []dtype.Type,
	nTensorElements []int,
	filter ScanLineFilter,
	opts ScanOptions,
) error {
	nIn, nOut := len(in), len(out)
	if nIn == 0 && nOut == 0 {
		return nil
	}
	if len(inBufferTypes) != nIn || len(outBufferTypes) != nOut ||
		len(outImageTypes) != nOut || len(nTensorElements) != nOut {
		return fmt.Errorf("Scan: %w", img.ErrArrayWrongLength)
	}

	// Work on header copies so operands can be reshaped freely, and so an
	// output image can be stripped without losing the input samples.
	inView := make([]*img.Image, nIn)
	for i, im := range in {
		if err := im.MustBeForged(); err != nil {
			return fmt.Errorf("Scan: input %d: %w", i, err)
		}
		inView[i] = im.View()
	}

	// Either all images get their tensor folded into a spatial dimension, or
	// none do, so that dimensions keep matching.
	tensorToSpatial := false
	if opts.is(ScanTensorAsSpatialDim) {
		for _, v := range inView {
			if !v.IsScalar() {
				tensorToSpatial = true
				break
			}
		}
	}

	// Reconcile sizes, singleton-expanding the inputs.
	var sizes []int
	tSize := 1
	switch {
	case nIn == 1:
		sizes = append([]int(nil), inView[0].Sizes()...)
		tSize = inView[0].TensorLen()
	case nIn > 1 && !opts.is(ScanNoSingletonExpansion):
		var err error
		sizes, err = img.SingletonExpandedSize(inView)
		if err != nil {
			return fmt.Errorf("Scan: %w", err)
		}
		if tensorToSpatial {
			tSize, err = img.SingletonExpandedTensorLen(inView)
			if err != nil {
				return fmt.Errorf("Scan: %w", err)
			}
		}
		for _, v := range inView {
			if err := v.ExpandSingletonDimensions(sizes); err != nil {
				return fmt.Errorf("Scan: %w", err)
			}
			if tensorToSpatial {
				if err := v.ExpandSingletonTensor(tSize); err != nil {
					return fmt.Errorf("Scan: %w", err)
				}
			}
		}
	case nIn > 1:
		sizes = append([]int(nil), inView[0].Sizes()...)
		tSize = inView[0].TensorLen()
		for _, v := range inView[1:] {
			if !sameInts(sizes, v.Sizes()) {
				return fmt.Errorf("Scan: %w", img.ErrSizesDontMatch)
			}
		}
	default:
		// Outputs only: their current geometry defines the domain.
		if err := out[0].MustBeForged(); err != nil {
			return fmt.Errorf("Scan: output 0: %w", err)
		}
		sizes = append([]int(nil), out[0].Sizes()...)
		tSize = out[0].TensorLen()
	}

	// A dimension that is singleton-expanded in every input holds identical
	// pixels; process it once and expand the outputs afterwards.
	trueSizes := append([]int(nil), sizes...)
	trueTSize := tSize
	if nIn > 0 {
		for d := range sizes {
			if sizes[d] <= 1 {
				continue
			}
			expanded := true
			for _, v := range inView {
				if v.Stride(d) != 0 {
					expanded = false
					break
				}
			}
			if expanded {
				sizes[d] = 1
				for _, v := range inView {
					v.UnexpandSingletonDimension(d)
				}
			}
		}
		if tensorToSpatial && tSize > 1 {
			expanded := true
			for _, v := range inView {
				if v.TensorStride() != 0 {
					expanded = false
					break
				}
			}
			if expanded {
				tSize = 1
				for _, v := range inView {
					v.UnexpandSingletonTensor()
				}
			}
		}
	}

	// Reforge the outputs. A forged output with matching geometry is kept
	// even when its type differs from the requested one; the type mismatch
	// is absorbed by an output buffer.
	for i, o := range out {
		nTensor := nTensorElements[i]
		if opts.is(ScanTensorAsSpatialDim) {
			nTensor = tSize
		}
		if o.IsForged() && o.IsOverlappingView(inView...) && !identicalView(o, inView) {
			o.Strip()
		}
		if o.IsForged() && sameInts(o.Sizes(), sizes) && o.TensorLen() == nTensor {
			// Keep the allocation and its type.
		} else if err := o.ReForge(sizes, nTensor, outImageTypes[i]); err != nil {
			return fmt.Errorf("Scan: output %d: %w", i, err)
		}
	}
	outView := make([]*img.Image, nOut)
	for i, o := range out {
		outView[i] = o.View()
	}

	// An empty domain has no lines to process. The outputs were still
	// reforged above, and a reducing filter keeps its identity value.
	for _, s := range sizes {
		if s == 0 {
			filter.SetThreads(1)
			return nil
		}
	}

	if tensorToSpatial {
		d := len(sizes)
		for _, v := range inView {
			v.TensorToSpatial(d)
		}
		for _, v := range outView {
			v.TensorToSpatial(d)
		}
		sizes = append(sizes, tSize)
	}

	// When no filter needs coordinates and every operand covers its samples
	// with a single stride in the same dimension order, the whole image is
	// one long line.
	scan1D := len(sizes) <= 1
	if !scan1D && !opts.is(ScanNeedCoordinates) {
		scan1D = true
		for i, v := range inView {
			if !v.HasSimpleStride() || (i > 0 && !v.HasSameDimensionOrder(inView[0])) {
				scan1D = false
				break
			}
		}
		if scan1D {
			for i, v := range outView {
				if !v.HasSimpleStride() || (i > 0 && !v.HasSameDimensionOrder(outView[0])) {
					scan1D = false
					break
				}
			}
		}
		if scan1D && nIn > 0 && nOut > 0 && !inView[0].HasSameDimensionOrder(outView[0]) {
			scan1D = false
		}
	}
	if scan1D {
		for _, v := range inView {
			if err := v.Flatten(); err != nil {
				return fmt.Errorf("Scan: %w", err)
			}
		}
		for _, v := range outView {
			if err := v.Flatten(); err != nil {
				return fmt.Errorf("Scan: %w", err)
			}
		}
		if nIn > 0 {
			sizes = append([]int(nil), inView[0].Sizes()...)
		} else {
			sizes = append([]int(nil), outView[0].Sizes()...)
		}
	}

	// Decide which operands need a type-converting buffer.
	needBuffers := false
	inUseBuffer := make([]bool, nIn)
	for i, v := range inView {
		inUseBuffer[i] = v.DataType() != inBufferTypes[i]
		if opts.is(ScanExpandTensorInBuffer) && !opts.is(ScanTensorAsSpatialDim) &&
			v.TensorLen() > 1 && v.TensorStride() != 1 {
			inUseBuffer[i] = true
		}
		needBuffers = needBuffers || inUseBuffer[i]
	}
	outUseBuffer := make([]bool, nOut)
	for i, v := range outView {
		outUseBuffer[i] = v.DataType() != outBufferTypes[i]
		if !outUseBuffer[i] && opts.is(ScanNotInPlace) {
			for j, iv := range inView {
				if !inUseBuffer[j] && iv.Aliases(v) {
					outUseBuffer[i] = true
					break
				}
			}
		}
		needBuffers = needBuffers || outUseBuffer[i]
	}

	costRef := tSize
	if nIn > 0 {
		costRef = inView[0].TensorLen()
	} else if nOut > 0 {
		costRef = outView[0].TensorLen()
	}
	costPerPixel := filter.Cost(costRef)

	// Partition the work.
	processingDim := 0
	var lineLength, bufferSize, nLines, nThreads int
	if scan1D {
		// A flattened image can be enormous; chunk it both for threading and
		// to keep buffers small.
		lineLength = sizes[0]
		bufferSize = lineLength
		nLines = 1
		nThreads = 1
		if !opts.is(ScanNoMultiThreading) {
			nThreads = parallel.Workers(lineLength*costPerPixel, parallel.MaxWorkers())
		}
		if nThreads > 1 {
			lineLength = divCeil(lineLength, nThreads)
			bufferSize = lineLength
		}
		if needBuffers && bufferSize > maxBufferSize {
			nLines = divCeil(bufferSize, maxBufferSize)
			bufferSize = divCeil(bufferSize, nLines)
		}
		nLines *= nThreads
		nThreads = min(nThreads, divCeil(sizes[0], lineLength))
	} else {
		ref := outView
		if nIn > 0 {
			ref = inView
		}
		processingDim = optimalProcessingDim(ref[0])
		lineLength = sizes[processingDim]
		bufferSize = lineLength
		nLines = 1
		for d, s := range sizes {
			if d != processingDim {
				nLines *= s
			}
		}
		nThreads = 1
		if !opts.is(ScanNoMultiThreading) {
			nThreads = parallel.Workers(nLines*lineLength*costPerPixel, nLines)
		}
	}
	nLinesPerThread := divCeil(nLines, nThreads)
	if !scan1D {
		nThreads = min(nThreads, divCeil(nLines, nLinesPerThread))
	}

	filter.SetThreads(nThreads)

	var startCoords [][]int
	if scan1D {
		startCoords = make([][]int, nThreads)
		for t := range startCoords {
			startCoords[t] = []int{t * lineLength}
		}
	} else {
		startCoords = splitForProcessing(sizes, nThreads, nLinesPerThread, processingDim)
	}

	err := parallel.Run(nThreads, func(thread int) error {
		inBuf := make([]Buffer, nIn)
		for i, v := range inView {
			if inUseBuffer[i] {
				inBuf[i].TensorLen = v.TensorLen()
				inBuf[i].TensorStride = 1
				if v.Stride(processingDim) == 0 {
					// All pixels on the line are the same pixel.
					inBuf[i].Stride = 0
					inBuf[i].Data = dtype.Alloc(inBufferTypes[i], inBuf[i].TensorLen)
				} else {
					inBuf[i].Stride = inBuf[i].TensorLen
					inBuf[i].Data = dtype.Alloc(inBufferTypes[i], bufferSize*inBuf[i].TensorLen)
				}
			} else {
				inBuf[i].TensorLen = v.TensorLen()
				inBuf[i].TensorStride = v.TensorStride()
				inBuf[i].Stride = v.Stride(processingDim)
			}
		}
		outBuf := make([]Buffer, nOut)
		for i, v := range outView {
			if outUseBuffer[i] {
				outBuf[i].TensorLen = v.TensorLen()
				outBuf[i].TensorStride = 1
				outBuf[i].Stride = outBuf[i].TensorLen
				outBuf[i].Data = dtype.Alloc(outBufferTypes[i], bufferSize*outBuf[i].TensorLen)
			} else {
				outBuf[i].TensorLen = v.TensorLen()
				outBuf[i].TensorStride = v.TensorStride()
				outBuf[i].Stride = v.Stride(processingDim)
			}
		}

		position := append([]int(nil), startCoords[thread]...)
		params := ScanLineParams{
			In:              inBuf,
			Out:             outBuf,
			Length:          bufferSize,
			Dim:             processingDim,
			Position:        position,
			TensorToSpatial: tensorToSpatial,
			Thread:          thread,
		}
		inOffsets := make([]int, nIn)
		for i, v := range inView {
			inOffsets[i] = v.Offset(position)
		}
		outOffsets := make([]int, nOut)
		for i, v := range outView {
			outOffsets[i] = v.Offset(position)
		}
		lastCoord := 0
		if scan1D {
			lastCoord = min(position[0]+lineLength, sizes[0])
		}

		for line := 0; line < nLinesPerThread; line++ {
			if scan1D {
				if position[0] >= lastCoord {
					break
				}
				params.Length = min(bufferSize, lastCoord-position[0])
			}

			for i, v := range inView {
				if inUseBuffer[i] {
					copyBuffer(
						Buffer{
							Data:         v.Data(),
							Offset:       inOffsets[i],
							Stride:       v.Stride(processingDim),
							TensorStride: v.TensorStride(),
							TensorLen:    v.TensorLen(),
						},
						v.DataType(),
						inBuf[i], inBufferTypes[i],
						params.Length,
					)
				} else {
					inBuf[i].Data = v.Data()
					inBuf[i].Offset = inOffsets[i]
				}
			}
			for i, v := range outView {
				if !outUseBuffer[i] {
					outBuf[i].Data = v.Data()
					outBuf[i].Offset = outOffsets[i]
				}
			}

			if err := filter.Filter(&params); err != nil {
				return err
			}

			for i, v := range outView {
				if outUseBuffer[i] {
					copyBuffer(
						outBuf[i], outBufferTypes[i],
						Buffer{
							Data:         v.Data(),
							Offset:       outOffsets[i],
							Stride:       v.Stride(processingDim),
							TensorStride: v.TensorStride(),
							TensorLen:    v.TensorLen(),
						},
						v.DataType(),
						params.Length,
					)
				}
			}

			if scan1D {
				position[0] += bufferSize
				for i, v := range inView {
					inOffsets[i] += bufferSize * v.Stride(0)
				}
				for i, v := range outView {
					outOffsets[i] += bufferSize * v.Stride(0)
				}
			} else {
				more := advanceScanLine(position, sizes, processingDim, inView, inOffsets, outView, outOffsets)
				if !more {
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("Scan: %w", err)
	}

	// Restore the broadcast geometry on the outputs.
	for _, o := range out {
		if err := o.ExpandSingletonDimensions(trueSizes); err != nil {
			return fmt.Errorf("Scan: %w", err)
		}
		if tensorToSpatial && o.IsScalar() && trueTSize > 1 {
			if err := o.ExpandSingletonTensor(trueTSize); err != nil {
				return fmt.Errorf("Scan: %w", err)
			}
		}
	}
	return nil
}

// advanceScanLine advances position and both offset sets to the next line,
// skipping dim. It returns false after the last line.
func advanceScanLine(position, sizes []int, dim int, in []*img.Image, inOffsets []int, out []*img.Image, outOffsets []int) bool {
	for d := 0; d < len(sizes); d++ {
		if d == dim {
			continue
		}
		position[d]++
		for i, v := range in {
			inOffsets[i] += v.Stride(d)
		}
		for i, v := range out {
			outOffsets[i] += v.Stride(d)
		}
		if position[d] < sizes[d] {
			return true
		}
		for i, v := range in {
			inOffsets[i] -= position[d] * v.Stride(d)
		}
		for i, v := range out {
			outOffsets[i] -= position[d] * v.Stride(d)
		}
		position[d] = 0
	}
	return false
}

// identicalView reports whether o is byte-identical, as a view, to one of
// the given images; that is the legitimate in-place case.
func identicalView(o *img.Image, views []*img.Image) bool {
	for _, v := range views {
		if o.SharesData(v) && o.Origin() == v.Origin() &&
			sameInts(o.Sizes(), v.Sizes()) && sameInts(o.Strides(), v.Strides()) &&
			o.TensorLen() == v.TensorLen() && o.TensorStride() == v.TensorStride() {
			return true
		}
	}
	return false
}

func sameInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
