package framework

import (
	"testing"

	"github.com/imago-ml/imago/dtype"
	"github.com/imago-ml/imago/img"
)

// addFilter sums its two input lines.
type addFilter struct {
	LineFilterBase
}

func (addFilter) Filter(p *ScanLineParams) error {
	a := Samples[float64](p.In[0])
	b := Samples[float64](p.In[1])
	out := Samples[float64](p.Out[0])
	ao, bo, oo := p.In[0].Offset, p.In[1].Offset, p.Out[0].Offset
	for i := 0; i < p.Length; i++ {
		out[oo] = a[ao] + b[bo]
		ao += p.In[0].Stride
		bo += p.In[1].Stride
		oo += p.Out[0].Stride
	}
	return nil
}

// addOneFilter increments its single input line in place.
type addOneFilter struct {
	LineFilterBase
}

func (addOneFilter) Filter(p *ScanLineParams) error {
	in := Samples[float64](p.In[0])
	out := Samples[float64](p.Out[0])
	io, oo := p.In[0].Offset, p.Out[0].Offset
	for i := 0; i < p.Length; i++ {
		out[oo] = in[io] + 1
		io += p.In[0].Stride
		oo += p.Out[0].Stride
	}
	return nil
}

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

func TestScanDyadicBroadcast(t *testing.T) {
	in1 := newFilled(t, dtype.Float64, []int{3, 4}, func(c []int) float64 {
		return float64(c[0] + 10*c[1])
	})
	in2 := newFilled(t, dtype.Float64, []int{3, 1}, func(c []int) float64 {
		return float64(100 * (c[0] + 1))
	})
	// The same values with the singleton dimension physically replicated.
	in2Rep := newFilled(t, dtype.Float64, []int{3, 4}, func(c []int) float64 {
		return float64(100 * (c[0] + 1))
	})

	out := img.NewHeader()
	if err := ScanDyadic(in1, in2, out, dtype.Float64, dtype.Float64, dtype.Float64, addFilter{}, 0); err != nil {
		t.Fatalf("ScanDyadic: %v", err)
	}
	outRep := img.NewHeader()
	if err := ScanDyadic(in1, in2Rep, outRep, dtype.Float64, dtype.Float64, dtype.Float64, addFilter{}, 0); err != nil {
		t.Fatalf("ScanDyadic replicated: %v", err)
	}

	if !sameInts(out.Sizes(), []int{3, 4}) {
		t.Fatalf("output sizes = %v, want [3 4]", out.Sizes())
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 3; x++ {
			want := float64(x+10*y) + float64(100*(x+1))
			if got := out.Float(x, y); got != want {
				t.Errorf("out(%d,%d) = %v, want %v", x, y, got, want)
			}
			if got, gotRep := out.Float(x, y), outRep.Float(x, y); got != gotRep {
				t.Errorf("broadcast out(%d,%d) = %v, replicated gives %v", x, y, got, gotRep)
			}
		}
	}
}

func TestScanMonadicTypeConversion(t *testing.T) {
	in := newFilled(t, dtype.Uint8, []int{5}, func(c []int) float64 {
		return float64(50 * c[0])
	})
	out := img.NewHeader()
	if err := ScanMonadic(in, out, dtype.Float64, dtype.Float32, 1, addOneFilter{}, 0); err != nil {
		t.Fatalf("ScanMonadic: %v", err)
	}
	if out.DataType() != dtype.Float32 {
		t.Fatalf("output type = %v, want float32", out.DataType())
	}
	for x := 0; x < 5; x++ {
		want := float64(50*x) + 1
		if got := out.Float(x); got != want {
			t.Errorf("out(%d) = %v, want %v", x, got, want)
		}
	}
}

func TestScanInPlace(t *testing.T) {
	im := newFilled(t, dtype.Float64, []int{4, 3}, func(c []int) float64 {
		return float64(c[0] - c[1])
	})
	if err := ScanMonadic(im, im, dtype.Float64, dtype.Float64, 1, addOneFilter{}, 0); err != nil {
		t.Fatalf("ScanMonadic in place: %v", err)
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			want := float64(x-y) + 1
			if got := im.Float(x, y); got != want {
				t.Errorf("im(%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

// coordsFilter writes the sum of each pixel's coordinates.
type coordsFilter struct {
	LineFilterBase
}

func (coordsFilter) Filter(p *ScanLineParams) error {
	out := Samples[float64](p.Out[0])
	oo := p.Out[0].Offset
	for i := 0; i < p.Length; i++ {
		s := 0
		for d, c := range p.Position {
			if d == p.Dim {
				c += i
			}
			s += c
		}
		out[oo] = float64(s)
		oo += p.Out[0].Stride
	}
	return nil
}

func TestScanNeedCoordinates(t *testing.T) {
	out, err := img.New(dtype.Float64, 4, 3, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ScanSingleOutput(out, dtype.Float64, coordsFilter{}, ScanNeedCoordinates); err != nil {
		t.Fatalf("ScanSingleOutput: %v", err)
	}
	for z := 0; z < 2; z++ {
		for y := 0; y < 3; y++ {
			for x := 0; x < 4; x++ {
				if got, want := out.Float(x, y, z), float64(x+y+z); got != want {
					t.Errorf("out(%d,%d,%d) = %v, want %v", x, y, z, got, want)
				}
			}
		}
	}
}

func TestScanSingletonDimensionPreserved(t *testing.T) {
	in1 := newFilled(t, dtype.Float64, []int{1, 4}, func(c []int) float64 { return float64(c[1]) })
	in2 := newFilled(t, dtype.Float64, []int{1, 4}, func(c []int) float64 { return 10 })
	out := img.NewHeader()
	if err := ScanDyadic(in1, in2, out, dtype.Float64, dtype.Float64, dtype.Float64, addFilter{}, 0); err != nil {
		t.Fatalf("ScanDyadic: %v", err)
	}
	if !sameInts(out.Sizes(), []int{1, 4}) {
		t.Fatalf("output sizes = %v, want [1 4]", out.Sizes())
	}
	for y := 0; y < 4; y++ {
		if got, want := out.Float(0, y), float64(y)+10; got != want {
			t.Errorf("out(0,%d) = %v, want %v", y, got, want)
		}
	}
}

func TestScanEmptyImage(t *testing.T) {
	// A 1-D image with zero samples would otherwise hit the flattening fast
	// path, which cannot represent an empty extent.
	in := newFilled(t, dtype.Float64, []int{0}, func([]int) float64 { return 0 })
	out := img.NewHeader()
	if err := ScanMonadic(in, out, dtype.Float64, dtype.Float64, 1, addOneFilter{}, 0); err != nil {
		t.Fatalf("ScanMonadic on empty 1-D image: %v", err)
	}
	if !sameInts(out.Sizes(), []int{0}) {
		t.Errorf("output sizes = %v, want [0]", out.Sizes())
	}
	if out.DataType() != dtype.Float64 {
		t.Errorf("output type = %v, want float64", out.DataType())
	}

	// Same with an empty dimension among non-empty ones.
	in2 := newFilled(t, dtype.Float64, []int{3, 0, 2}, func([]int) float64 { return 0 })
	out2 := img.NewHeader()
	if err := ScanMonadic(in2, out2, dtype.Float64, dtype.Float64, 1, addOneFilter{}, 0); err != nil {
		t.Fatalf("ScanMonadic on 3x0x2 image: %v", err)
	}
	if !sameInts(out2.Sizes(), []int{3, 0, 2}) {
		t.Errorf("output sizes = %v, want [3 0 2]", out2.Sizes())
	}
}
