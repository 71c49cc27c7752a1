// Package centerline builds smooth, consistently oriented 3D paths from
// sparse ordered landmark points. The output path carries a
// rotation-minimizing orientation frame at every sample so that downstream
// curved reformation shows no seam discontinuities between columns.
package centerline

import (
	"fmt"
	"math"

	"taviplan/internal/models"
	"taviplan/pkg/geometry"
)

// DefaultSampleCount is the number of path samples generated when the caller
// does not choose one. Tens of samples are enough for smooth reformation
// without excessive resampling cost.
const DefaultSampleCount = 64

// InsufficientLandmarksError reports that too few landmark points were
// supplied to build a centerline.
type InsufficientLandmarksError struct {
	// Got is the number of landmarks supplied; at least 3 are required.
	Got int
}

func (e *InsufficientLandmarksError) Error() string {
	return fmt.Sprintf("centerline requires at least 3 landmarks, got %d", e.Got)
}

// Params configures the centerline builder.
type Params struct {
	// SampleCount is the number of samples in the built path.
	// Defaults to DefaultSampleCount when zero or negative.
	SampleCount int

	// UpHint seeds the initial orientation frame. The patient superior
	// axis (+Z in LPS) is the default; when the first tangent is nearly
	// parallel to the hint the builder falls back to +Y.
	UpHint geometry.Vec3
}

// Builder converts ordered landmark points into sampled centerline paths.
type Builder struct {
	sampleCount int
	upHint      geometry.Vec3
}

// NewBuilder creates a builder with the provided parameters. A nil params
// uses defaults throughout.
func NewBuilder(params *Params) *Builder {
	b := &Builder{
		sampleCount: DefaultSampleCount,
		upHint:      geometry.Vec3{Z: 1},
	}
	if params != nil {
		if params.SampleCount > 1 {
			b.sampleCount = params.SampleCount
		}
		if params.UpHint.Norm() > 0 {
			b.upHint = params.UpHint.Normalize()
		}
	}
	return b
}

// Build constructs a centerline path through the given ordered landmarks.
//
// With exactly 3 landmarks the path is the quadratic Bezier curve with the
// middle landmark as control point. With more landmarks the path is a
// Catmull-Rom spline interpolating every landmark. Orientation frames are
// propagated with the double-reflection rotation-minimizing method so that
// adjacent frames never flip.
//
// Returns an InsufficientLandmarksError when fewer than 3 landmarks are
// supplied.
func (b *Builder) Build(landmarks []models.LandmarkPoint) (*models.CenterlinePath, error) {
	if len(landmarks) < 3 {
		return nil, &InsufficientLandmarksError{Got: len(landmarks)}
	}

	positions := make([]geometry.Vec3, len(landmarks))
	for i, lm := range landmarks {
		positions[i] = lm.Position
	}

	samples := make([]models.CenterlineSample, b.sampleCount)

	// Evaluate positions and tangents at uniform parameter values.
	for i := 0; i < b.sampleCount; i++ {
		t := float64(i) / float64(b.sampleCount-1)
		var pos, tan geometry.Vec3
		if len(positions) == 3 {
			pos = geometry.QuadraticBezier(positions[0], positions[1], positions[2], t)
			tan = geometry.QuadraticBezierTangent(positions[0], positions[1], positions[2], t)
		} else {
			pos, tan = evalCatmullRom(positions, t)
		}
		samples[i].Position = pos
		samples[i].Tangent = tan.Normalize()
	}

	// Degenerate tangents (coincident landmarks) inherit the previous
	// sample's direction so the frame propagation below stays defined.
	for i := range samples {
		if samples[i].Tangent.Norm() == 0 {
			if i > 0 {
				samples[i].Tangent = samples[i-1].Tangent
			} else {
				samples[i].Tangent = geometry.Vec3{Z: 1}
			}
		}
	}

	// Cumulative arc length. Coincident samples would break the strictly
	// increasing invariant, so a tiny epsilon keeps the table monotone.
	samples[0].ArcLength = 0
	for i := 1; i < len(samples); i++ {
		seg := samples[i].Position.DistanceTo(samples[i-1].Position)
		if seg <= 0 {
			seg = 1e-9
		}
		samples[i].ArcLength = samples[i-1].ArcLength + seg
	}

	b.propagateFrames(samples)

	return &models.CenterlinePath{Samples: samples}, nil
}

// evalCatmullRom evaluates the piecewise Catmull-Rom spline through the
// given control points at global parameter t in [0,1], returning the
// position and (unnormalized) tangent. End segments use reflected phantom
// control points.
func evalCatmullRom(pts []geometry.Vec3, t float64) (geometry.Vec3, geometry.Vec3) {
	nseg := len(pts) - 1
	scaled := t * float64(nseg)
	seg := int(scaled)
	if seg >= nseg {
		seg = nseg - 1
	}
	local := scaled - float64(seg)

	p1 := pts[seg]
	p2 := pts[seg+1]
	var p0, p3 geometry.Vec3
	if seg > 0 {
		p0 = pts[seg-1]
	} else {
		p0 = p1.Scale(2).Sub(p2)
	}
	if seg+2 < len(pts) {
		p3 = pts[seg+2]
	} else {
		p3 = p2.Scale(2).Sub(p1)
	}

	pos := geometry.CatmullRom(p0, p1, p2, p3, local)
	tan := geometry.CatmullRomTangent(p0, p1, p2, p3, local)
	return pos, tan
}

// propagateFrames assigns a twist-minimized orthonormal frame to every
// sample using the double-reflection method (Wang et al. 2008). The first
// frame is seeded from the builder's up hint projected off the initial
// tangent; each following frame is the rotation-minimizing transport of its
// predecessor, so there are no discontinuous flips between adjacent samples.
func (b *Builder) propagateFrames(samples []models.CenterlineSample) {
	up := b.upHint
	t0 := samples[0].Tangent
	if math.Abs(up.Dot(t0)) > 0.999 {
		up = geometry.Vec3{Y: 1}
		if math.Abs(up.Dot(t0)) > 0.999 {
			up = geometry.Vec3{X: 1}
		}
	}
	// Project the hint onto the plane normal to the first tangent.
	up = up.Sub(t0.Scale(up.Dot(t0))).Normalize()
	setFrame(&samples[0], up)

	for i := 0; i < len(samples)-1; i++ {
		ti := samples[i].Tangent
		ui := samples[i].FrameUp

		v1 := samples[i+1].Position.Sub(samples[i].Position)
		c1 := v1.Dot(v1)
		if c1 == 0 {
			// Coincident samples: carry the frame forward unchanged.
			setFrame(&samples[i+1], ui)
			continue
		}
		// First reflection across the bisecting plane of the segment.
		uL := ui.Sub(v1.Scale(2 / c1 * v1.Dot(ui)))
		tL := ti.Sub(v1.Scale(2 / c1 * v1.Dot(ti)))

		// Second reflection aligning the transported tangent with the
		// next sample's tangent.
		v2 := samples[i+1].Tangent.Sub(tL)
		c2 := v2.Dot(v2)
		next := uL
		if c2 != 0 {
			next = uL.Sub(v2.Scale(2 / c2 * v2.Dot(uL)))
		}
		setFrame(&samples[i+1], next)
	}
}

// setFrame stores an orthonormalized frame on the sample from the given up
// candidate.
func setFrame(s *models.CenterlineSample, up geometry.Vec3) {
	right := s.Tangent.Cross(up).Normalize()
	s.FrameUp = right.Cross(s.Tangent).Normalize()
	s.FrameRight = right
}
