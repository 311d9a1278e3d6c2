package world

import (
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// RadiusIndex answers "which points lie within r of p" over a fixed point set.
// Results are point indices in ascending order, nil when nothing is in range;
// the boundary is inclusive.
type RadiusIndex interface {
	Within(p Point, r float64) []int
	Len() int
}

// IndexBuilder constructs a RadiusIndex over pts. Positions change every day,
// so engines rebuild their index through one of these.
type IndexBuilder func(pts []Point) RadiusIndex

// KDIndex is a RadiusIndex backed by a gonum k-d tree.
type KDIndex struct {
	tree *kdtree.Tree
	n    int
}

// NewKDIndex builds a k-d tree over pts.
func NewKDIndex(pts []Point) RadiusIndex {
	s := make(sites, len(pts))
	for i, p := range pts {
		s[i] = site{id: i, x: p.X, y: p.Y}
	}
	// kdtree.New partitions s in place; ids travel with the sites.
	return &KDIndex{tree: kdtree.New(s, false), n: len(pts)}
}

// Within returns the indices of all points within r of p.
func (k *KDIndex) Within(p Point, r float64) []int {
	if k.n == 0 || r < 0 {
		return nil
	}
	keep := kdtree.NewDistKeeper(r * r) // site distances are squared
	k.tree.NearestSet(keep, site{id: -1, x: p.X, y: p.Y})

	var out []int
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue
		}
		out = append(out, c.Comparable.(site).id)
	}
	sort.Ints(out)
	return out
}

// Len returns the number of indexed points.
func (k *KDIndex) Len() int { return k.n }

// ScanIndex is an exact linear-scan RadiusIndex. It is the reference the
// k-d tree is checked against and is adequate for small populations.
type ScanIndex struct {
	pts []Point
}

// NewScanIndex copies pts into a scanning index.
func NewScanIndex(pts []Point) RadiusIndex {
	return &ScanIndex{pts: append([]Point(nil), pts...)}
}

// Within returns the indices of all points within r of p.
func (s *ScanIndex) Within(p Point, r float64) []int {
	if r < 0 {
		return nil
	}
	var out []int
	r2 := r * r
	for i, q := range s.pts {
		dx, dy := q.X-p.X, q.Y-p.Y
		if dx*dx+dy*dy <= r2 {
			out = append(out, i)
		}
	}
	return out
}

// Len returns the number of indexed points.
func (s *ScanIndex) Len() int { return len(s.pts) }

// site is a kdtree.Comparable carrying its point index.
type site struct {
	id   int
	x, y float64
}

func (s site) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(site)
	switch d {
	case 0:
		return s.x - q.x
	case 1:
		return s.y - q.y
	default:
		panic("illegal dimension")
	}
}

func (s site) Dims() int { return 2 }

func (s site) Distance(c kdtree.Comparable) float64 {
	q := c.(site)
	dx, dy := s.x-q.x, s.y-q.y
	return dx*dx + dy*dy
}

// sites satisfies kdtree.Interface.
type sites []site

func (s sites) Index(i int) kdtree.Comparable         { return s[i] }
func (s sites) Len() int                              { return len(s) }
func (s sites) Pivot(d kdtree.Dim) int                { return plane{sites: s, Dim: d}.Pivot() }
func (s sites) Slice(start, end int) kdtree.Interface { return s[start:end] }

type plane struct {
	kdtree.Dim
	sites
}

func (p plane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.sites[i].x < p.sites[j].x
	case 1:
		return p.sites[i].y < p.sites[j].y
	default:
		panic("illegal dimension")
	}
}

func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.sites = p.sites[start:end]
	return p
}

func (p plane) Swap(i, j int) {
	p.sites[i], p.sites[j] = p.sites[j], p.sites[i]
}
