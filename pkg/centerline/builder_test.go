package centerline

import (
	"errors"
	"math"
	"testing"

	"taviplan/internal/models"
	"taviplan/pkg/geometry"
)

// curvedLandmarks returns three non-collinear landmarks bending through
// the aortic-root region.
func curvedLandmarks() []models.LandmarkPoint {
	return []models.LandmarkPoint{
		{Position: geometry.Vec3{X: 0, Y: 0, Z: 0}, Role: models.RoleInflow},
		{Position: geometry.Vec3{X: 10, Y: 5, Z: 20}, Role: models.RoleValvePlane},
		{Position: geometry.Vec3{X: 30, Y: 0, Z: 35}, Role: models.RoleOutflow},
	}
}

// TestBuildRejectsInsufficientLandmarks verifies the minimum landmark count
func TestBuildRejectsInsufficientLandmarks(t *testing.T) {
	b := NewBuilder(nil)

	_, err := b.Build(curvedLandmarks()[:2])
	if err == nil {
		t.Fatal("expected an error for 2 landmarks")
	}
	var insufficient *InsufficientLandmarksError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientLandmarksError, got %T", err)
	}
	if insufficient.Got != 2 {
		t.Errorf("expected Got=2, got %d", insufficient.Got)
	}
}

// TestBuildEndpoints verifies that the path starts and ends at the first
// and last landmarks
func TestBuildEndpoints(t *testing.T) {
	landmarks := curvedLandmarks()
	path, err := NewBuilder(nil).Build(landmarks)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	first := path.Samples[0].Position
	last := path.Samples[len(path.Samples)-1].Position
	if first.DistanceTo(landmarks[0].Position) > 1e-9 {
		t.Errorf("path start %+v does not match first landmark %+v", first, landmarks[0].Position)
	}
	if last.DistanceTo(landmarks[2].Position) > 1e-9 {
		t.Errorf("path end %+v does not match last landmark %+v", last, landmarks[2].Position)
	}
}

// TestFramesOrthonormal verifies that every sample carries an orthonormal
// tangent/up/right triple
func TestFramesOrthonormal(t *testing.T) {
	path, err := NewBuilder(&Params{SampleCount: 48}).Build(curvedLandmarks())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	for i, s := range path.Samples {
		for name, v := range map[string]geometry.Vec3{
			"tangent": s.Tangent, "up": s.FrameUp, "right": s.FrameRight,
		} {
			if math.Abs(v.Norm()-1) > 1e-9 {
				t.Errorf("sample %d: %s is not unit length (%f)", i, name, v.Norm())
			}
		}
		if d := math.Abs(s.Tangent.Dot(s.FrameUp)); d > 1e-9 {
			t.Errorf("sample %d: tangent.up = %e", i, d)
		}
		if d := math.Abs(s.Tangent.Dot(s.FrameRight)); d > 1e-9 {
			t.Errorf("sample %d: tangent.right = %e", i, d)
		}
		if d := math.Abs(s.FrameUp.Dot(s.FrameRight)); d > 1e-9 {
			t.Errorf("sample %d: up.right = %e", i, d)
		}
	}
}

// TestFramesTwistMinimized verifies that adjacent frames never flip: the
// up-vectors of neighbouring samples stay closely aligned along the whole
// curved path
func TestFramesTwistMinimized(t *testing.T) {
	path, err := NewBuilder(&Params{SampleCount: 96}).Build(curvedLandmarks())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	for i := 1; i < len(path.Samples); i++ {
		dot := path.Samples[i].FrameUp.Dot(path.Samples[i-1].FrameUp)
		if dot < 0.99 {
			t.Errorf("frame discontinuity between samples %d and %d: up dot = %f", i-1, i, dot)
		}
	}
}

// TestArcLengthIncreasing verifies the strictly increasing arc-length
// invariant
func TestArcLengthIncreasing(t *testing.T) {
	path, err := NewBuilder(nil).Build(curvedLandmarks())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	for i := 1; i < len(path.Samples); i++ {
		if path.Samples[i].ArcLength <= path.Samples[i-1].ArcLength {
			t.Fatalf("arc length not strictly increasing at sample %d", i)
		}
	}
}

// TestCatmullRomInterpolatesLandmarks verifies that with more than 3
// landmarks the path passes through every landmark
func TestCatmullRomInterpolatesLandmarks(t *testing.T) {
	landmarks := []models.LandmarkPoint{
		{Position: geometry.Vec3{X: 0, Y: 0, Z: 0}},
		{Position: geometry.Vec3{X: 5, Y: 8, Z: 10}, Role: models.RoleValvePlane},
		{Position: geometry.Vec3{X: 12, Y: 6, Z: 22}},
		{Position: geometry.Vec3{X: 20, Y: 0, Z: 30}},
	}
	// Sample count chosen so every landmark parameter lands on a sample:
	// 3 segments, 30 intervals.
	path, err := NewBuilder(&Params{SampleCount: 31}).Build(landmarks)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	for _, lm := range landmarks {
		best := math.MaxFloat64
		for _, s := range path.Samples {
			if d := s.Position.DistanceTo(lm.Position); d < best {
				best = d
			}
		}
		if best > 1e-6 {
			t.Errorf("landmark %+v missed by %f mm", lm.Position, best)
		}
	}
}

// TestPointAt verifies arc-length interpolation endpoints and midpoints
func TestPointAt(t *testing.T) {
	landmarks := []models.LandmarkPoint{
		{Position: geometry.Vec3{Z: 0}},
		{Position: geometry.Vec3{Z: 10}, Role: models.RoleValvePlane},
		{Position: geometry.Vec3{Z: 20}},
	}
	path, err := NewBuilder(nil).Build(landmarks)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if got := PointAt(path, 0); got.DistanceTo(landmarks[0].Position) > 1e-9 {
		t.Errorf("PointAt(0) = %+v", got)
	}
	if got := PointAt(path, path.Length()); got.DistanceTo(landmarks[2].Position) > 1e-9 {
		t.Errorf("PointAt(total) = %+v", got)
	}
	// A straight path: halfway in arc length is halfway in space.
	mid := PointAt(path, path.Length()/2)
	if math.Abs(mid.Z-10) > 1e-6 {
		t.Errorf("PointAt(half) = %+v, want z=10", mid)
	}
	// Beyond the ends clamps.
	if got := PointAt(path, path.Length()+50); got.DistanceTo(landmarks[2].Position) > 1e-9 {
		t.Errorf("PointAt beyond end = %+v", got)
	}
}

// TestDatumArc verifies that the annulus datum lands at the valve-plane
// landmark
func TestDatumArc(t *testing.T) {
	landmarks := curvedLandmarks()
	path, err := NewBuilder(&Params{SampleCount: 128}).Build(landmarks)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	datum := DatumArc(path, landmarks)
	pos := PointAt(path, datum)

	// The Bezier curve does not pass through the middle landmark, but the
	// datum must be the closest approach to it.
	closest := math.MaxFloat64
	for _, s := range path.Samples {
		if d := s.Position.DistanceTo(landmarks[1].Position); d < closest {
			closest = d
		}
	}
	if d := pos.DistanceTo(landmarks[1].Position); d > closest+1e-6 {
		t.Errorf("datum point %+v is %f mm from the valve plane, closest sample is %f", pos, d, closest)
	}
}
