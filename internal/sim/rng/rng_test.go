package rng

import "testing"

func TestSameSeedSameStream(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 100; i++ {
		if x, y := a.Float64(), b.Float64(); x != y {
			t.Fatalf("draw %d diverged: %v vs %v", i, x, y)
		}
	}
}

func TestStateRestore(t *testing.T) {
	g := New(7)
	_ = g.IntN(10)
	st, err := g.State()
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	want := []float64{g.Float64(), g.Float64(), g.Float64()}

	h := New(999)
	if err := h.Restore(st); err != nil {
		t.Fatalf("restore: %v", err)
	}
	for i, w := range want {
		if got := h.Float64(); got != w {
			t.Fatalf("draw %d after restore: got %v want %v", i, got, w)
		}
	}
}

func TestWeightedSkipsZeroWeights(t *testing.T) {
	g := New(1)
	for i := 0; i < 200; i++ {
		if idx := g.Weighted([]float64{0, 1, 0}); idx != 1 {
			t.Fatalf("expected index 1, got %d", idx)
		}
	}
	if idx := g.Weighted(nil); idx != -1 {
		t.Fatalf("empty weights: got %d", idx)
	}
}

func TestRange(t *testing.T) {
	g := New(3)
	for i := 0; i < 200; i++ {
		v := g.Range(5, 8)
		if v < 5 || v >= 8 {
			t.Fatalf("out of range: %d", v)
		}
	}
	if v := g.Range(4, 4); v != 4 {
		t.Fatalf("degenerate range: %d", v)
	}
}
