// Package models defines the shared data types of the TAVI planning engine:
// anatomical landmarks, centerline paths, reformation images with their
// transform records, and derived contour measurements.
package models

import (
	"taviplan/pkg/geometry"
)

// LandmarkRole identifies the anatomical meaning of a landmark point.
type LandmarkRole string

const (
	// RoleInflow marks the ventricular (inflow) end of the planning path.
	RoleInflow LandmarkRole = "inflow"

	// RoleValvePlane marks the aortic annulus, the zero-offset datum for
	// all measurement levels.
	RoleValvePlane LandmarkRole = "valvePlane"

	// RoleOutflow marks the aortic (outflow) end of the planning path.
	RoleOutflow LandmarkRole = "outflow"

	// RoleGeneric marks an intermediate shaping point with no special
	// anatomical meaning.
	RoleGeneric LandmarkRole = "generic"
)

// LandmarkPoint is a user-placed anatomical reference point. Landmarks are
// ordered from inflow to outflow and are immutable once a centerline has
// been built from them; an edit triggers a full rebuild.
type LandmarkPoint struct {
	// Position is the landmark location in patient space (mm).
	Position geometry.Vec3

	// Role is the semantic role of this landmark.
	Role LandmarkRole

	// Label is a free-form display label.
	Label string
}

// CenterlineSample is one sample of a built centerline: a position together
// with an orthonormal, twist-minimized orientation frame and the cumulative
// arc length from the start of the path.
type CenterlineSample struct {
	// Position is the sample location in patient space (mm).
	Position geometry.Vec3

	// Tangent is the unit tangent of the path at this sample.
	Tangent geometry.Vec3

	// FrameUp is the unit up-vector of the rotation-minimizing frame.
	FrameUp geometry.Vec3

	// FrameRight is the unit right-vector completing the frame
	// (Tangent x FrameUp).
	FrameRight geometry.Vec3

	// ArcLength is the cumulative path length from the first sample (mm).
	// Strictly increasing along the path.
	ArcLength float64
}

// CenterlinePath is an ordered sequence of centerline samples. A path is
// owned by the session that built it and is rebuilt wholesale on any
// landmark change, never mutated in place.
type CenterlinePath struct {
	// Samples are ordered from inflow to outflow.
	Samples []CenterlineSample
}

// Length returns the total arc length of the path in mm.
func (p *CenterlinePath) Length() float64 {
	if len(p.Samples) == 0 {
		return 0
	}
	return p.Samples[len(p.Samples)-1].ArcLength
}

// ProjectionMode selects how samples across the slab thickness are combined
// into one output pixel.
type ProjectionMode string

const (
	ProjectionNone    ProjectionMode = "none"
	ProjectionAverage ProjectionMode = "average"
	ProjectionMax     ProjectionMode = "max"
	ProjectionMin     ProjectionMode = "min"
)

// LayoutMode selects how reformation columns are spaced along the path.
type LayoutMode string

const (
	// LayoutStretched spaces columns proportionally to true arc length,
	// preserving real-world distances along the path.
	LayoutStretched LayoutMode = "stretched"

	// LayoutStraightened places one column per centerline sample
	// regardless of local curvature, trading metric fidelity along the
	// path for undistorted cross-sections.
	LayoutStraightened LayoutMode = "straightened"
)

// ColumnTransform records, for one image column, the centerline position and
// sampling frame that generated it. FrameRight and FrameUp already include
// the rotation about the tangent that was in effect during resampling.
type ColumnTransform struct {
	// ArcLength is the arc-length position of this column on the path.
	ArcLength float64

	// Position is the centerline point the column was sampled around.
	Position geometry.Vec3

	// Tangent is the unit tangent at the column.
	Tangent geometry.Vec3

	// FrameRight is the rotated lateral sampling direction.
	FrameRight geometry.Vec3

	// FrameUp is the rotated off-surface direction.
	FrameUp geometry.Vec3

	// HalfExtent is half the lateral extent covered by the column (mm).
	HalfExtent float64
}

// TransformRecord is the immutable sampling metadata of one reformation
// image. The coordinate mapper binds to exactly one record; regenerating the
// image produces a new record and invalidates all mappers built on the old
// one.
type TransformRecord struct {
	// ID uniquely identifies the render that produced this record.
	ID string

	// Columns holds one entry per image column, left to right.
	Columns []ColumnTransform

	// Layout is the column layout mode in effect during resampling.
	Layout LayoutMode

	// Rotation is the frame rotation about the tangent, in radians.
	Rotation float64

	// Width is the full lateral extent of the image in mm.
	Width float64

	// Projection and the slab parameters describe the thickness
	// integration in effect when the image was generated.
	Projection    ProjectionMode
	SlabThickness float64
	SlabSamples   int

	// LateralSpacing is the mm covered by one pixel along a column.
	LateralSpacing float64

	// ImageWidth and ImageHeight are the pixel dimensions of the image.
	ImageWidth  int
	ImageHeight int
}

// ColumnSpacing returns the nominal arc-length distance between adjacent
// columns in mm.
func (t *TransformRecord) ColumnSpacing() float64 {
	if len(t.Columns) < 2 {
		return 0
	}
	first := t.Columns[0].ArcLength
	last := t.Columns[len(t.Columns)-1].ArcLength
	return (last - first) / float64(len(t.Columns)-1)
}

// ReformationImage is a flattened cross-sectional image produced by curved
// planar reformation. Pixels are stored row-major; column x of row y is at
// index y*Width + x. Column x corresponds to Transform.Columns[x] and row y
// to a lateral offset of (y - (Height-1)/2) * Transform.LateralSpacing.
type ReformationImage struct {
	// Pixels holds the resampled scalar values.
	Pixels []float64

	// Width and Height are the pixel dimensions.
	Width  int
	Height int

	// SpacingX is the mm between adjacent columns (nominal for the
	// straightened layout); SpacingY the mm between adjacent rows.
	SpacingX float64
	SpacingY float64

	// Origin is the patient-space position of the first column's
	// centerline point, reported as display metadata.
	Origin geometry.Vec3

	// Transform is the sampling metadata for this image.
	Transform *TransformRecord
}

// At returns the pixel value at column x, row y.
func (r *ReformationImage) At(x, y int) float64 {
	return r.Pixels[y*r.Width+x]
}

// ContourMeasurement holds a closed contour and the geometric statistics
// derived from it. It is read-only once computed and recomputed whenever the
// source contour changes.
type ContourMeasurement struct {
	// Points is the ordered closed contour in patient space.
	Points []geometry.Vec3

	// Area is the enclosed area in mm^2, measured in the contour's
	// best-fit plane.
	Area float64

	// Perimeter is the closed-loop length in mm.
	Perimeter float64

	// AreaDerivedDiameter is the diameter of the circle with the same
	// area: 2*sqrt(Area/pi).
	AreaDerivedDiameter float64

	// PerimeterDerivedDiameter is the diameter of the circle with the
	// same perimeter: Perimeter/pi.
	PerimeterDerivedDiameter float64

	// LongAxis is the point pair with globally maximum distance and
	// LongAxisLength that distance.
	LongAxis       [2]geometry.Vec3
	LongAxisLength float64

	// ShortAxis joins the point of maximum perpendicular distance to the
	// long axis on each side of it; ShortAxisLength is the span across
	// the long axis (the sum of the two per-side maximum distances).
	ShortAxis       [2]geometry.Vec3
	ShortAxisLength float64
}
