package entropy

import "testing"

func TestNewRand_Reproducible(t *testing.T) {
	a, b := NewRand(42), NewRand(42)
	for i := 0; i < 100; i++ {
		if x, y := a.Float64(), b.Float64(); x != y {
			t.Fatalf("draw %d: %v != %v", i, x, y)
		}
	}
}

func TestDerive_DistinctChildren(t *testing.T) {
	seen := map[int64]int{}
	for k := 0; k < 1000; k++ {
		s := Derive(7, k)
		if s < 0 {
			t.Fatalf("child %d negative: %d", k, s)
		}
		if prev, ok := seen[s]; ok {
			t.Fatalf("children %d and %d collide", prev, k)
		}
		seen[s] = k
	}
	if Derive(7, 3) != Derive(7, 3) {
		t.Fatalf("Derive not deterministic")
	}
	if Derive(7, 0) == Derive(8, 0) {
		t.Fatalf("different parents share a child")
	}
}

func TestNewSeedAndCryptoFloat(t *testing.T) {
	if s := NewSeed(); s < 0 {
		t.Fatalf("NewSeed = %d", s)
	}
	for i := 0; i < 100; i++ {
		if f := CryptoFloat(); f < 0 || f >= 1 {
			t.Fatalf("CryptoFloat = %v", f)
		}
	}
}
