package arith

import (
	"testing"

	"github.com/imago-ml/imago/dtype"
	"github.com/imago-ml/imago/img"
)

func newFilled(t *testing.T, dt dtype.Type, sizes []int, f func(coords []int) float64) *img.Image {
	t.Helper()
	im, err := img.New(dt, sizes...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	it := img.NewIterator(im)
	set := dtype.FloatSetter(im.Data())
	for it.Next() {
		set(it.Offset(), f(it.Coords()))
	}
	return im
}

func TestAddPromotesTypes(t *testing.T) {
	a := newFilled(t, dtype.Uint8, []int{4}, func(c []int) float64 { return float64(c[0]) })
	b := newFilled(t, dtype.Float32, []int{4}, func(c []int) float64 { return 0.5 })
	out := img.NewHeader()
	if err := Add(a, b, out); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if want := dtype.SuggestArithmetic(dtype.Uint8, dtype.Float32); out.DataType() != want {
		t.Fatalf("output type = %v, want %v", out.DataType(), want)
	}
	for x := 0; x < 4; x++ {
		if got, want := out.Float(x), float64(x)+0.5; got != want {
			t.Errorf("out(%d) = %v, want %v", x, got, want)
		}
	}
}

func TestSubtractBroadcast(t *testing.T) {
	a := newFilled(t, dtype.Float64, []int{3, 2}, func(c []int) float64 {
		return float64(c[0] + 10*c[1])
	})
	b := newFilled(t, dtype.Float64, []int{1, 2}, func(c []int) float64 {
		return float64(100 * c[1])
	})
	out := img.NewHeader()
	if err := Subtract(a, b, out); err != nil {
		t.Fatalf("Subtract: %v", err)
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			want := float64(x+10*y) - float64(100*y)
			if got := out.Float(x, y); got != want {
				t.Errorf("out(%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestMultiplyTensorScalarBroadcast(t *testing.T) {
	a, err := img.NewTensor(dtype.Float64, 2, 3)
	if err != nil {
		t.Fatalf("NewTensor: %v", err)
	}
	for x := 0; x < 3; x++ {
		a.SetFloatSample(float64(x+1), 0, []int{x})
		a.SetFloatSample(float64(-(x + 1)), 1, []int{x})
	}
	b := newFilled(t, dtype.Float64, []int{3}, func([]int) float64 { return 2 })
	out := img.NewHeader()
	if err := Multiply(a, b, out); err != nil {
		t.Fatalf("Multiply: %v", err)
	}
	if out.TensorLen() != 2 {
		t.Fatalf("output tensor length = %d, want 2", out.TensorLen())
	}
	for x := 0; x < 3; x++ {
		if got, want := out.FloatSample(0, []int{x}), float64(2*(x+1)); got != want {
			t.Errorf("out(%d)[0] = %v, want %v", x, got, want)
		}
		if got, want := out.FloatSample(1, []int{x}), float64(-2*(x+1)); got != want {
			t.Errorf("out(%d)[1] = %v, want %v", x, got, want)
		}
	}
}

func TestDivide(t *testing.T) {
	a := newFilled(t, dtype.Float64, []int{3}, func(c []int) float64 { return float64(6 * (c[0] + 1)) })
	b := newFilled(t, dtype.Float64, []int{3}, func(c []int) float64 { return float64(c[0] + 1) })
	out := img.NewHeader()
	if err := Divide(a, b, out); err != nil {
		t.Fatalf("Divide: %v", err)
	}
	for x := 0; x < 3; x++ {
		if got := out.Float(x); got != 6 {
			t.Errorf("out(%d) = %v, want 6", x, got)
		}
	}
}

func TestEqual(t *testing.T) {
	a := newFilled(t, dtype.Int32, []int{5}, func(c []int) float64 { return float64(c[0]) })
	b := newFilled(t, dtype.Float64, []int{5}, func(c []int) float64 { return 2 })
	out := img.NewHeader()
	if err := Equal(a, b, out); err != nil {
		t.Fatalf("Equal: %v", err)
	}
	if out.DataType() != dtype.Binary {
		t.Fatalf("output type = %v, want binary", out.DataType())
	}
	d := out.Data().([]bool)
	for x := 0; x < 5; x++ {
		want := x == 2
		if got := d[out.Offset([]int{x})]; got != want {
			t.Errorf("out(%d) = %v, want %v", x, got, want)
		}
	}
}

func TestAbs(t *testing.T) {
	a := newFilled(t, dtype.Int16, []int{4}, func(c []int) float64 { return float64(-5 * c[0]) })
	out := img.NewHeader()
	if err := Abs(a, out); err != nil {
		t.Fatalf("Abs: %v", err)
	}
	if want := dtype.SuggestAbs(dtype.Int16); out.DataType() != want {
		t.Fatalf("output type = %v, want %v", out.DataType(), want)
	}
	for x := 0; x < 4; x++ {
		if got, want := out.Float(x), float64(5*x); got != want {
			t.Errorf("out(%d) = %v, want %v", x, got, want)
		}
	}
}

func TestAbsComplex(t *testing.T) {
	a, err := img.New(dtype.Complex128, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d := a.Data().([]complex128)
	d[a.Offset([]int{0})] = 3 + 4i
	d[a.Offset([]int{1})] = -1
	out := img.NewHeader()
	if err := Abs(a, out); err != nil {
		t.Fatalf("Abs: %v", err)
	}
	if out.DataType().IsComplex() {
		t.Fatalf("output type = %v, want real", out.DataType())
	}
	if got := out.Float(0); got != 5 {
		t.Errorf("out(0) = %v, want 5", got)
	}
	if got := out.Float(1); got != 1 {
		t.Errorf("out(1) = %v, want 1", got)
	}
}
