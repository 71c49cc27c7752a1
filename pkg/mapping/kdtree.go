package mapping

import (
	"gonum.org/v1/gonum/spatial/kdtree"

	"taviplan/pkg/geometry"
)

// columnPoint adapts one column's centerline position to the kdtree
// interfaces for nearest-column queries.
type columnPoint struct {
	pos   geometry.Vec3
	index int
}

// Compare implements the kdtree.Comparable interface.
func (p columnPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(columnPoint)
	switch d {
	case 0:
		return p.pos.X - q.pos.X
	case 1:
		return p.pos.Y - q.pos.Y
	case 2:
		return p.pos.Z - q.pos.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree.
func (p columnPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points.
func (p columnPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(columnPoint)
	d := p.pos.Sub(q.pos)
	return d.Dot(d) // Return squared distance for efficiency
}

// columnPoints is a collection of columnPoint that satisfies kdtree.Interface
type columnPoints []columnPoint

func (p columnPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p columnPoints) Len() int                              { return len(p) }
func (p columnPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p columnPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(columnPlane{columnPoints: p, Dim: d}, kdtree.MedianOfRandoms(columnPlane{columnPoints: p, Dim: d}, 100))
}

// columnPlane implements sort.Interface and kdtree.SortSlicer for columnPoints
type columnPlane struct {
	columnPoints
	kdtree.Dim
}

func (p columnPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.columnPoints[i].pos.X < p.columnPoints[j].pos.X
	case 1:
		return p.columnPoints[i].pos.Y < p.columnPoints[j].pos.Y
	case 2:
		return p.columnPoints[i].pos.Z < p.columnPoints[j].pos.Z
	default:
		panic("illegal dimension")
	}
}

func (p columnPlane) Slice(start, end int) kdtree.SortSlicer {
	return columnPlane{columnPoints: p.columnPoints[start:end], Dim: p.Dim}
}

func (p columnPlane) Swap(i, j int) {
	p.columnPoints[i], p.columnPoints[j] = p.columnPoints[j], p.columnPoints[i]
}
