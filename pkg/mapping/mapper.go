// Package mapping converts positions between reformation-image pixel space
// and 3D patient space. A Mapper binds to exactly one immutable
// TransformRecord; when the reformation image is regenerated the mapper
// must be discarded and rebuilt, which is what makes stale-transform usage
// structurally impossible rather than a runtime error to catch.
package mapping

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"

	"taviplan/internal/models"
	"taviplan/pkg/geometry"
)

// Mapper maps pixel positions of one reformation image to patient space and
// back. It never mutates the record it is bound to.
type Mapper struct {
	record *models.TransformRecord
	tree   *kdtree.Tree

	// tolerance bounds the residual distance a patient-space point may
	// have to its chosen column before it is reported out of bounds.
	tolerance float64
}

// NewMapper builds a mapper over the given transform record. The record
// must have at least one column.
func NewMapper(record *models.TransformRecord) (*Mapper, error) {
	if record == nil || len(record.Columns) == 0 {
		return nil, fmt.Errorf("mapper requires a transform record with columns")
	}

	points := make(columnPoints, len(record.Columns))
	for i, c := range record.Columns {
		points[i] = columnPoint{pos: c.Position, index: i}
	}

	tol := record.ColumnSpacing()
	if half := record.SlabThickness / 2; half > tol {
		tol = half
	}
	if tol <= 0 {
		tol = 1
	}

	return &Mapper{
		record:    record,
		tree:      kdtree.New(points, true),
		tolerance: tol,
	}, nil
}

// Record returns the transform record this mapper is bound to.
func (m *Mapper) Record() *models.TransformRecord { return m.record }

// ToPatientSpace converts an image pixel position to patient space. The
// returned flag is false when the pixel lies outside the image or its
// lateral offset exceeds the column's recorded extent; out-of-bounds pixels
// are reported, never clamped.
func (m *Mapper) ToPatientSpace(px, py float64) (geometry.Vec3, bool) {
	col := int(math.Round(px))
	if col < 0 || col >= len(m.record.Columns) {
		return geometry.Vec3{}, false
	}
	c := m.record.Columns[col]

	lateral := (py - float64(m.record.ImageHeight-1)/2) * m.record.LateralSpacing
	if math.Abs(lateral) > c.HalfExtent+1e-9 {
		return geometry.Vec3{}, false
	}

	return c.Position.Add(c.FrameRight.Scale(lateral)), true
}

// ToImageSpace converts a patient-space point to an image pixel position.
// The point is projected onto the centerline by a nearest-sample search (a
// kd-tree query refined over neighbouring columns by frame-plane distance,
// not a true arc-length projection, to bound cost); the lateral offset is
// the point's displacement projected onto that column's lateral axis.
//
// The returned flag is false when the point does not lie within the
// resampled slab: lateral offset beyond the recorded extent, or residual
// displacement from the column (along the tangent or off the reformation
// surface) beyond the slab tolerance. The pixel position is still returned
// for out-of-bounds points so callers can show direction hints.
func (m *Mapper) ToImageSpace(p geometry.Vec3) (px, py float64, ok bool) {
	got, _ := m.tree.Nearest(columnPoint{pos: p})
	nearest := got.(columnPoint).index

	// The Euclidean nearest column is not always the frame-plane nearest
	// one on curved paths; refine over a small neighbourhood.
	best := nearest
	bestDist := math.MaxFloat64
	for i := nearest - 2; i <= nearest+2; i++ {
		if i < 0 || i >= len(m.record.Columns) {
			continue
		}
		c := m.record.Columns[i]
		d := math.Abs(p.Sub(c.Position).Dot(c.Tangent))
		if d < bestDist {
			bestDist = d
			best = i
		}
	}

	c := m.record.Columns[best]
	disp := p.Sub(c.Position)
	lateral := disp.Dot(c.FrameRight)
	axial := disp.Dot(c.Tangent)
	offSurface := disp.Dot(c.FrameUp)

	px = float64(best)
	py = lateral/m.record.LateralSpacing + float64(m.record.ImageHeight-1)/2

	ok = math.Abs(lateral) <= c.HalfExtent+1e-9 &&
		math.Abs(axial) <= m.tolerance+1e-9 &&
		math.Abs(offSurface) <= m.tolerance+1e-9
	return px, py, ok
}
