package framework

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/imago-ml/imago/dtype"
	"github.com/imago-ml/imago/img"
)

// sumProjection adds all samples of its view.
type sumProjection struct {
	LineFilterBase
}

func (sumProjection) Project(in, mask *img.Image, out *Sample, thread int) error {
	get := dtype.FloatGetter(in.Data())
	sum := 0.0
	it := img.NewIterator(in)
	if mask != nil {
		md := mask.Data().([]bool)
		mit := img.NewIterator(mask)
		for it.Next() && mit.Next() {
			if md[mit.Offset()] {
				sum += get(it.Offset())
			}
		}
	} else {
		for it.Next() {
			sum += get(it.Offset())
		}
	}
	out.SetFloat(sum)
	return nil
}

func TestProjectionShape(t *testing.T) {
	in := newFilled(t, dtype.Float64, []int{3, 4, 2}, func(c []int) float64 {
		return float64(c[0] + 10*c[1] + 100*c[2])
	})
	out := img.NewHeader()
	err := Projection(in, nil, out, dtype.Float64, []bool{false, true, false}, sumProjection{}, 0)
	if err != nil {
		t.Fatalf("Projection: %v", err)
	}
	if diff := cmp.Diff([]int{3, 1, 2}, out.Sizes()); diff != "" {
		t.Fatalf("output sizes mismatch (-want +got):\n%s", diff)
	}
	var got, want []float64
	for z := 0; z < 2; z++ {
		for x := 0; x < 3; x++ {
			got = append(got, out.Float(x, 0, z))
			// Sum over y of x + 10y + 100z.
			want = append(want, float64(4*x+10*(0+1+2+3)+4*100*z))
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("projected sums mismatch (-want +got):\n%s", diff)
	}
}

func TestProjectionFullReduction(t *testing.T) {
	in := newFilled(t, dtype.Float64, []int{3, 4}, func(c []int) float64 {
		return float64(c[0] + 1)
	})
	out := img.NewHeader()
	if err := Projection(in, nil, out, dtype.Float64, nil, sumProjection{}, 0); err != nil {
		t.Fatalf("Projection: %v", err)
	}
	if !sameInts(out.Sizes(), []int{1, 1}) {
		t.Fatalf("output sizes = %v, want [1 1]", out.Sizes())
	}
	if got, want := out.Float(0, 0), float64(4*(1+2+3)); got != want {
		t.Errorf("out = %v, want %v", got, want)
	}
}

func TestProjectionWithMask(t *testing.T) {
	in := newFilled(t, dtype.Float64, []int{4, 2}, func(c []int) float64 {
		return float64(c[0] + 1)
	})
	mask, err := img.New(dtype.Binary, 4, 2)
	if err != nil {
		t.Fatalf("New mask: %v", err)
	}
	md := mask.Data().([]bool)
	it := img.NewIterator(mask)
	for it.Next() {
		md[it.Offset()] = it.Coords()[0]%2 == 0
	}
	out := img.NewHeader()
	err = Projection(in, mask, out, dtype.Float64, []bool{true, false}, sumProjection{}, 0)
	if err != nil {
		t.Fatalf("Projection: %v", err)
	}
	// Only x = 0 and x = 2 contribute: 1 + 3.
	for y := 0; y < 2; y++ {
		if got, want := out.Float(0, y), 4.0; got != want {
			t.Errorf("out(0,%d) = %v, want %v", y, got, want)
		}
	}
}

func TestProjectionTensorElementsIndependent(t *testing.T) {
	in, err := img.NewTensor(dtype.Float64, 2, 3)
	if err != nil {
		t.Fatalf("NewTensor: %v", err)
	}
	for x := 0; x < 3; x++ {
		in.SetFloatSample(float64(x+1), 0, []int{x})
		in.SetFloatSample(float64(10*(x+1)), 1, []int{x})
	}
	out := img.NewHeader()
	if err := Projection(in, nil, out, dtype.Float64, nil, sumProjection{}, 0); err != nil {
		t.Fatalf("Projection: %v", err)
	}
	if out.TensorLen() != 2 {
		t.Fatalf("output tensor length = %d, want 2", out.TensorLen())
	}
	if got, want := out.FloatSample(0, []int{0}), 6.0; got != want {
		t.Errorf("out[0] = %v, want %v", got, want)
	}
	if got, want := out.FloatSample(1, []int{0}), 60.0; got != want {
		t.Errorf("out[1] = %v, want %v", got, want)
	}
}
