package world

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCountNeighbors_ZeroPadded(t *testing.T) {
	g := &Grid{Rows: 3, Cols: 3, Cells: []uint8{
		0, 1, 0,
		0, 0, 1,
		1, 0, 0,
	}}
	got := CountNeighbors(g, func(v uint8) bool { return v == 1 })
	want := []int{
		1, 1, 2,
		2, 3, 1,
		0, 2, 1,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("neighbor counts (-want +got):\n%s", diff)
	}
}

func TestGrid_RowMajorAddressing(t *testing.T) {
	g := NewGrid(4, 5)
	g.Set(2, 3, 7)
	if id := g.ID(2, 3); id != 13 {
		t.Fatalf("ID(2,3) = %d, want 13", id)
	}
	if r, c := g.RowCol(13); r != 2 || c != 3 {
		t.Fatalf("RowCol(13) = (%d,%d), want (2,3)", r, c)
	}
	if g.At(2, 3) != 7 || g.At(-1, 0) != 0 || g.At(4, 0) != 0 {
		t.Fatalf("unexpected At results")
	}
	c := g.Clone()
	c.Set(0, 0, 1)
	if g.At(0, 0) != 0 {
		t.Fatalf("clone shares storage")
	}
}

func TestKDIndex_MatchesScan(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pts := ScatterPoints(500, DefaultLayoutConfig(), rng)
	kd := NewKDIndex(pts)
	scan := NewScanIndex(pts)

	if kd.Len() != 500 || scan.Len() != 500 {
		t.Fatalf("Len: kd=%d scan=%d", kd.Len(), scan.Len())
	}
	for i := 0; i < 200; i++ {
		q := Point{X: rng.Float64(), Y: rng.Float64()}
		r := rng.Float64() * 0.2
		if diff := cmp.Diff(scan.Within(q, r), kd.Within(q, r)); diff != "" {
			t.Fatalf("query %d at %+v r=%.3f (-scan +kd):\n%s", i, q, r, diff)
		}
	}
}

func TestKDIndex_BoundaryInclusive(t *testing.T) {
	pts := []Point{{X: 0.5, Y: 0.5}, {X: 0.75, Y: 0.5}, {X: 0.5, Y: 1}}
	kd := NewKDIndex(pts)
	got := kd.Within(Point{X: 0.5, Y: 0.5}, 0.25)
	if diff := cmp.Diff([]int{0, 1}, got); diff != "" {
		t.Fatalf("within (-want +got):\n%s", diff)
	}
	if got := NewKDIndex(nil).Within(Point{}, 1); len(got) != 0 {
		t.Fatalf("empty index returned %v", got)
	}

	far := Point{X: 0.1, Y: 0.9}
	if diff := cmp.Diff(NewScanIndex(pts).Within(far, 0.05), kd.Within(far, 0.05)); diff != "" {
		t.Fatalf("empty range differs (-scan +kd):\n%s", diff)
	}
	if got := kd.Within(far, 0.05); got != nil {
		t.Fatalf("empty range = %#v, want nil", got)
	}
}

func TestScatterPoints_StayInUnitSquare(t *testing.T) {
	for _, kind := range []LayoutKind{LayoutUniform, LayoutClustered} {
		cfg := DefaultLayoutConfig()
		cfg.Kind = kind
		pts := ScatterPoints(1000, cfg, rand.New(rand.NewSource(3)))
		for i, p := range pts {
			if !p.InUnitSquare() {
				t.Fatalf("%s point %d out of bounds: %+v", kind, i, p)
			}
		}
	}
}

func TestAliveMask_Density(t *testing.T) {
	mask := AliveMask(50, 50, 0.4, DefaultLayoutConfig(), rand.New(rand.NewSource(11)))
	alive := 0
	for _, a := range mask {
		if a {
			alive++
		}
	}
	frac := float64(alive) / float64(len(mask))
	if frac < 0.33 || frac > 0.47 {
		t.Fatalf("alive fraction %.3f far from 0.4", frac)
	}
}

func TestPoint_ClampAndCentroid(t *testing.T) {
	if got := (Point{X: -0.2, Y: 1.4}).Clamp(); got != (Point{X: 0, Y: 1}) {
		t.Fatalf("Clamp = %+v", got)
	}
	c := Centroid([]Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0.5, Y: 0.9}})
	if d := Distance(c, Point{X: 0.5, Y: 0.3}); d > 1e-12 {
		t.Fatalf("Centroid = %+v", c)
	}
	if got := Centroid(nil); got != (Point{}) {
		t.Fatalf("empty centroid = %+v", got)
	}
}
