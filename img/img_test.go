package img

import (
	"errors"
	"testing"

	"github.com/imago-ml/imago/dtype"
)

func newRamp(t *testing.T, dt dtype.Type, sizes ...int) *Image {
	t.Helper()
	im, err := New(dt, sizes...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	it := NewIterator(im)
	v := 0.0
	for it.Next() {
		im.SetFloat(v, it.Coords()...)
		v++
	}
	return im
}

func TestForgeStrides(t *testing.T) {
	im, err := NewTensor(dtype.Float32, 3, 4, 5)
	if err != nil {
		t.Fatalf("NewTensor: %v", err)
	}
	if got, want := im.TensorStride(), 1; got != want {
		t.Errorf("tensor stride = %d, want %d", got, want)
	}
	if got, want := im.Stride(0), 3; got != want {
		t.Errorf("stride 0 = %d, want %d", got, want)
	}
	if got, want := im.Stride(1), 12; got != want {
		t.Errorf("stride 1 = %d, want %d", got, want)
	}
	if got, want := im.NumSamples(), 60; got != want {
		t.Errorf("NumSamples = %d, want %d", got, want)
	}
	if !im.HasNormalStrides() {
		t.Error("freshly forged image should have normal strides")
	}
}

func TestMustBeForged(t *testing.T) {
	im := NewHeader()
	if err := im.MustBeForged(); !errors.Is(err, ErrNotForged) {
		t.Errorf("MustBeForged on header = %v, want ErrNotForged", err)
	}
	im.SetSizes([]int{2, 2})
	if err := im.Forge(); err != nil {
		t.Fatalf("Forge: %v", err)
	}
	if err := im.MustBeForged(); err != nil {
		t.Errorf("MustBeForged after Forge = %v", err)
	}
	im.Strip()
	if im.IsForged() {
		t.Error("image still forged after Strip")
	}
}

func TestIteratorOrder(t *testing.T) {
	im := newRamp(t, dtype.Uint8, 2, 3)
	// Dimension 0 varies fastest.
	want := [][]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}, {0, 2}, {1, 2}}
	it := NewIterator(im)
	for i, w := range want {
		if !it.Next() {
			t.Fatalf("iterator exhausted after %d pixels", i)
		}
		c := it.Coords()
		if c[0] != w[0] || c[1] != w[1] {
			t.Errorf("pixel %d at %v, want %v", i, c, w)
		}
	}
	if it.Next() {
		t.Error("iterator did not stop after the last pixel")
	}
}

func TestIteratorEmptyImage(t *testing.T) {
	im := NewHeader()
	im.SetSizes([]int{3, 0})
	if err := im.Forge(); err != nil {
		t.Fatalf("Forge: %v", err)
	}
	if NewIterator(im).Next() {
		t.Error("iterator over an empty image returned a pixel")
	}
}

func TestExpandSingletonDimensions(t *testing.T) {
	im := newRamp(t, dtype.Float64, 3, 1)
	v := im.View()
	if err := v.ExpandSingletonDimensions([]int{3, 4}); err != nil {
		t.Fatalf("ExpandSingletonDimensions: %v", err)
	}
	if v.Stride(1) != 0 {
		t.Errorf("expanded stride = %d, want 0", v.Stride(1))
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 3; x++ {
			if got, want := v.Float(x, y), float64(x); got != want {
				t.Errorf("v(%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
	// The expansion appends missing trailing dimensions too.
	w := im.View()
	if err := w.ExpandSingletonDimensions([]int{3, 1, 5}); err != nil {
		t.Fatalf("ExpandSingletonDimensions (append): %v", err)
	}
	if w.Dimensionality() != 3 || w.Size(2) != 5 {
		t.Errorf("appended sizes = %v, want [3 1 5]", w.Sizes())
	}
	// A non-singleton mismatch is refused.
	if err := im.View().ExpandSingletonDimensions([]int{4, 1}); !errors.Is(err, ErrSizesDontMatch) {
		t.Errorf("mismatched expansion = %v, want ErrSizesDontMatch", err)
	}
}

func TestExpandSingletonTensor(t *testing.T) {
	im := newRamp(t, dtype.Float64, 2)
	v := im.View()
	if err := v.ExpandSingletonTensor(3); err != nil {
		t.Fatalf("ExpandSingletonTensor: %v", err)
	}
	for tt := 0; tt < 3; tt++ {
		if got := v.FloatSample(tt, []int{1}); got != 1 {
			t.Errorf("sample %d = %v, want 1", tt, got)
		}
	}
	tens, _ := NewTensor(dtype.Float64, 2, 2)
	if err := tens.View().ExpandSingletonTensor(3); !errors.Is(err, ErrTensorShapeMismatch) {
		t.Errorf("expanding a 2-tensor = %v, want ErrTensorShapeMismatch", err)
	}
}

func TestTensorToSpatial(t *testing.T) {
	im, err := NewTensor(dtype.Float64, 2, 3)
	if err != nil {
		t.Fatalf("NewTensor: %v", err)
	}
	for x := 0; x < 3; x++ {
		im.SetFloatSample(float64(10*x), 0, []int{x})
		im.SetFloatSample(float64(10*x+1), 1, []int{x})
	}
	v := im.View()
	v.TensorToSpatial(0)
	if !v.IsScalar() {
		t.Fatal("image not scalar after TensorToSpatial")
	}
	if got, want := v.Sizes(), []int{2, 3}; !sameInts(got, want) {
		t.Fatalf("sizes = %v, want %v", got, want)
	}
	for x := 0; x < 3; x++ {
		for tt := 0; tt < 2; tt++ {
			if got, want := v.Float(tt, x), float64(10*x+tt); got != want {
				t.Errorf("v(%d,%d) = %v, want %v", tt, x, got, want)
			}
		}
	}
}

func TestSqueeze(t *testing.T) {
	im := newRamp(t, dtype.Uint16, 1, 4, 1, 3)
	v := im.View()
	v.Squeeze()
	if got, want := v.Sizes(), []int{4, 3}; !sameInts(got, want) {
		t.Errorf("squeezed sizes = %v, want %v", got, want)
	}
	if got, want := v.Float(2, 1), im.Float(0, 2, 0, 1); got != want {
		t.Errorf("squeezed sample = %v, want %v", got, want)
	}
}

func TestFlatten(t *testing.T) {
	im := newRamp(t, dtype.Float64, 3, 4)
	v := im.View()
	if err := v.Flatten(); err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if got, want := v.Sizes(), []int{12}; !sameInts(got, want) {
		t.Fatalf("flat sizes = %v, want %v", got, want)
	}
	for i := 0; i < 12; i++ {
		if got := v.Float(i); got != float64(i) {
			t.Errorf("flat sample %d = %v, want %d", i, got, i)
		}
	}

	// A broadcast view is not simply strided and cannot be flattened.
	b := newRamp(t, dtype.Float64, 3, 1).View()
	if err := b.ExpandSingletonDimensions([]int{3, 4}); err != nil {
		t.Fatalf("ExpandSingletonDimensions: %v", err)
	}
	if err := b.Flatten(); err == nil {
		t.Error("Flatten of a broadcast view succeeded")
	}
}

func TestSimpleStride(t *testing.T) {
	im := newRamp(t, dtype.Float64, 3, 4)
	if s, ok := im.SimpleStride(); !ok || s != 1 {
		t.Errorf("SimpleStride = %d, %v, want 1, true", s, ok)
	}
	// A subsampled view leaves gaps between samples.
	line := newRamp(t, dtype.Float64, 8)
	sub := line.View()
	sub.SetSizes([]int{4})
	sub.Strides()[0] = 2
	if sub.HasSimpleStride() {
		t.Error("subsampled view reported a simple stride")
	}
	// Transposed but dense pixels still stride simply.
	tr := im.View()
	tr.SetSizes([]int{4, 3})
	copy(tr.Strides(), []int{3, 1})
	if s, ok := tr.SimpleStride(); !ok || s != 1 {
		t.Errorf("transposed SimpleStride = %d, %v, want 1, true", s, ok)
	}
}

func TestAliasDetection(t *testing.T) {
	im := newRamp(t, dtype.Float64, 6)
	a := im.View()
	a.SetSizes([]int{3})
	b := im.View()
	b.SetSizes([]int{3})
	b.ShiftOrigin(3)
	if a.Aliases(b) {
		t.Error("disjoint halves reported as aliasing")
	}
	b2 := im.View()
	b2.SetSizes([]int{3})
	b2.ShiftOrigin(2)
	if !a.Aliases(b2) {
		t.Error("overlapping views not reported as aliasing")
	}
	other := newRamp(t, dtype.Float64, 6)
	if im.SharesData(other) {
		t.Error("distinct allocations reported as sharing data")
	}
	if !im.IsOverlappingView(nil, b2) {
		t.Error("IsOverlappingView missed the overlapping view")
	}
}

func TestCheckIsMask(t *testing.T) {
	mask, err := New(dtype.Binary, 3, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := mask.CheckIsMask([]int{3, 4}); err != nil {
		t.Errorf("singleton-expandable mask rejected: %v", err)
	}
	if err := mask.CheckIsMask([]int{5, 4}); !errors.Is(err, ErrSizesDontMatch) {
		t.Errorf("wrong-size mask = %v, want ErrSizesDontMatch", err)
	}
	notBin := newRamp(t, dtype.Uint8, 3, 4)
	if err := notBin.CheckIsMask([]int{3, 4}); !errors.Is(err, ErrMaskNotValid) {
		t.Errorf("non-binary mask = %v, want ErrMaskNotValid", err)
	}
	tens, _ := NewTensor(dtype.Binary, 2, 3, 4)
	if err := tens.CheckIsMask([]int{3, 4}); !errors.Is(err, ErrNotScalar) {
		t.Errorf("tensor mask = %v, want ErrNotScalar", err)
	}
	if err := NewHeader().CheckIsMask([]int{3}); !errors.Is(err, ErrNotForged) {
		t.Errorf("unforged mask = %v, want ErrNotForged", err)
	}
}

func TestCopyFromConverts(t *testing.T) {
	src := newRamp(t, dtype.Float64, 4)
	src.SetFloat(300.7, 3)
	dst, err := New(dtype.Uint8, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := dst.CopyFrom(src); err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}
	want := []float64{0, 1, 2, 255}
	for x := 0; x < 4; x++ {
		if got := dst.Float(x); got != want[x] {
			t.Errorf("dst(%d) = %v, want %v", x, got, want[x])
		}
	}
	wrong, _ := New(dtype.Uint8, 5)
	if err := wrong.CopyFrom(src); !errors.Is(err, ErrSizesDontMatch) {
		t.Errorf("size-mismatched copy = %v, want ErrSizesDontMatch", err)
	}
}

func TestSingletonExpandedSize(t *testing.T) {
	a := newRamp(t, dtype.Float64, 3, 1)
	b := newRamp(t, dtype.Float64, 1, 4)
	c := newRamp(t, dtype.Float64, 3)
	sizes, err := SingletonExpandedSize([]*Image{a, b, c})
	if err != nil {
		t.Fatalf("SingletonExpandedSize: %v", err)
	}
	if want := []int{3, 4}; !sameInts(sizes, want) {
		t.Errorf("common size = %v, want %v", sizes, want)
	}
	d := newRamp(t, dtype.Float64, 5, 4)
	if _, err := SingletonExpandedSize([]*Image{a, d}); !errors.Is(err, ErrSizesDontMatch) {
		t.Errorf("incompatible sizes = %v, want ErrSizesDontMatch", err)
	}

	t1, _ := NewTensor(dtype.Float64, 3, 2)
	t2, _ := New(dtype.Float64, 2)
	n, err := SingletonExpandedTensorLen([]*Image{t1, t2})
	if err != nil || n != 3 {
		t.Errorf("common tensor length = %d, %v, want 3, nil", n, err)
	}
	t3, _ := NewTensor(dtype.Float64, 2, 2)
	if _, err := SingletonExpandedTensorLen([]*Image{t1, t3}); !errors.Is(err, ErrSizesDontMatch) {
		t.Errorf("incompatible tensors = %v, want ErrSizesDontMatch", err)
	}
}

func TestCenterAndIsInside(t *testing.T) {
	im := newRamp(t, dtype.Uint8, 5, 4)
	center := im.Center()
	if center[0] != 2 || center[1] != 1.5 {
		t.Errorf("Center = %v, want [2 1.5]", center)
	}
	if !im.IsInside(center) {
		t.Error("center reported outside the image")
	}
	if im.IsInside([]float64{5, 0}) {
		t.Error("coordinate past the last pixel reported inside")
	}
	if im.IsInside([]float64{1}) {
		t.Error("wrong dimensionality reported inside")
	}
}

func TestReForge(t *testing.T) {
	im := newRamp(t, dtype.Uint8, 2, 2)
	if err := im.ReForge([]int{3}, 2, dtype.Float64); err != nil {
		t.Fatalf("ReForge: %v", err)
	}
	if got, want := im.Sizes(), []int{3}; !sameInts(got, want) {
		t.Errorf("sizes = %v, want %v", got, want)
	}
	if im.TensorLen() != 2 || im.DataType() != dtype.Float64 {
		t.Errorf("reforged as %v", im)
	}
	if _, ok := im.Data().([]float64); !ok {
		t.Errorf("backing slice is %T, want []float64", im.Data())
	}
}
