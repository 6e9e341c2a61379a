package ctf

import (
	"errors"
	"math"
	"testing"
)

func testFilter() *Radial {
	f, err := NewRadial(5, 200, 1.5e4, 2.0, 0.1)
	if err != nil {
		panic(err)
	}
	return f
}

func TestEvaluateKAtDC(t *testing.T) {
	f := testFilter()
	if got := f.EvaluateK(0); math.Abs(got-f.Alpha) > 1e-15 {
		t.Errorf("CTF at DC = %g, want amplitude contrast %g", got, f.Alpha)
	}
}

func TestEvaluateKBounded(t *testing.T) {
	f := testFilter()
	for k := 0.0; k <= 0.5; k += 0.01 {
		v := f.EvaluateK(k)
		if math.Abs(v) > 1+1e-12 {
			t.Fatalf("CTF magnitude %g at k=%g exceeds 1", v, k)
		}
	}
}

func TestEvaluateKOscillates(t *testing.T) {
	f := testFilter()
	signChanges := 0
	prev := f.EvaluateK(0)
	for k := 0.005; k <= 0.5; k += 0.005 {
		v := f.EvaluateK(k)
		if prev*v < 0 {
			signChanges++
		}
		prev = v
	}
	if signChanges == 0 {
		t.Error("expected at least one zero crossing over the Nyquist band")
	}
}

func TestEvaluateGridIsRadial(t *testing.T) {
	f := testFilter()
	size := 8
	g := f.EvaluateGrid(size)

	// The centered grid is symmetric about (size/2, size/2) for even sizes,
	// excluding the unpaired first row/column.
	c := size / 2
	for i := 1; i < size; i++ {
		for j := 1; j < size; j++ {
			oi, oj := 2*c-i, 2*c-j
			if math.Abs(g[i*size+j]-g[oi*size+oj]) > 1e-14 {
				t.Fatalf("grid not symmetric at (%d,%d)", i, j)
			}
		}
	}
}

func TestDefocusSeries(t *testing.T) {
	base := *testFilter()
	series, err := DefocusSeries(base, 7, 1.5e4, 2.5e4)
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 7 {
		t.Fatalf("got %d filters, want 7", len(series))
	}
	if series[0].Defocus != 1.5e4 || series[6].Defocus != 2.5e4 {
		t.Errorf("endpoints %g, %g; want 1.5e4, 2.5e4", series[0].Defocus, series[6].Defocus)
	}
	for i := 1; i < len(series); i++ {
		if series[i].Defocus <= series[i-1].Defocus {
			t.Errorf("defocus not increasing at %d", i)
		}
	}
}

func TestNewRadialValidation(t *testing.T) {
	if _, err := NewRadial(0, 200, 1.5e4, 2, 0.1); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("zero pixel size: got %v, want ErrInvalidParam", err)
	}
	if _, err := NewRadial(5, 200, 1.5e4, 2, 1); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("alpha=1: got %v, want ErrInvalidParam", err)
	}
}

func TestIdentity(t *testing.T) {
	var id Identity
	if id.EvaluateK(0.3) != 1 {
		t.Error("identity filter must be 1 everywhere")
	}
	for _, v := range id.EvaluateGrid(4) {
		if v != 1 {
			t.Fatal("identity grid must be all ones")
		}
	}
}
