package contour

import (
	"errors"
	"math"
	"testing"

	"taviplan/pkg/geometry"
)

// regularPolygon builds an n-gon of circumscribed radius r in the plane
// z = 5, starting at angle 0.
func regularPolygon(n int, r float64) []geometry.Vec3 {
	points := make([]geometry.Vec3, n)
	for i := 0; i < n; i++ {
		angle := 2 * math.Pi * float64(i) / float64(n)
		points[i] = geometry.Vec3{X: r * math.Cos(angle), Y: r * math.Sin(angle), Z: 5}
	}
	return points
}

// TestAnalyzeRejectsInsufficientPoints verifies the minimum contour size
func TestAnalyzeRejectsInsufficientPoints(t *testing.T) {
	_, err := Analyze(regularPolygon(6, 10)[:2])
	var insufficient *InsufficientPointsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientPointsError, got %v", err)
	}
	if insufficient.Got != 2 {
		t.Errorf("expected Got=2, got %d", insufficient.Got)
	}
}

// TestHexagonAxes verifies the long and short axis of a regular hexagon:
// long axis 2R between opposite vertices, short axis sqrt(3)R across
// the flats
func TestHexagonAxes(t *testing.T) {
	const r = 10.0
	m, err := Analyze(regularPolygon(6, r))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if math.Abs(m.LongAxisLength-2*r) > 1e-9 {
		t.Errorf("long axis = %f, want %f", m.LongAxisLength, 2*r)
	}
	if math.Abs(m.ShortAxisLength-math.Sqrt(3)*r) > 1e-9 {
		t.Errorf("short axis = %f, want %f", m.ShortAxisLength, math.Sqrt(3)*r)
	}

	// The short axis endpoints must sit on opposite sides of the long
	// axis, one maximal point per side.
	if m.ShortAxis[0].DistanceTo(m.ShortAxis[1]) < 1e-9 {
		t.Error("short axis endpoints collapsed to one side")
	}
}

// TestHexagonAreaAndPerimeter verifies the area, perimeter, and the
// derived equal-circle diameters
func TestHexagonAreaAndPerimeter(t *testing.T) {
	const r = 10.0
	m, err := Analyze(regularPolygon(6, r))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	wantArea := 3 * math.Sqrt(3) / 2 * r * r
	if math.Abs(m.Area-wantArea) > 1e-6 {
		t.Errorf("area = %f, want %f", m.Area, wantArea)
	}
	wantPerimeter := 6 * r
	if math.Abs(m.Perimeter-wantPerimeter) > 1e-9 {
		t.Errorf("perimeter = %f, want %f", m.Perimeter, wantPerimeter)
	}
	if got := 2 * math.Sqrt(m.Area/math.Pi); math.Abs(m.AreaDerivedDiameter-got) > 1e-9 {
		t.Errorf("area-derived diameter = %f, want %f", m.AreaDerivedDiameter, got)
	}
	if got := m.Perimeter / math.Pi; math.Abs(m.PerimeterDerivedDiameter-got) > 1e-9 {
		t.Errorf("perimeter-derived diameter = %f, want %f", m.PerimeterDerivedDiameter, got)
	}
}

// TestAsymmetricShortAxis verifies that the short axis uses one maximal
// point per side instead of doubling the larger half
func TestAsymmetricShortAxis(t *testing.T) {
	// A kite: long axis along X, 3mm of spread above it, 1mm below.
	points := []geometry.Vec3{
		{X: -10, Y: 0},
		{X: 0, Y: 3},
		{X: 10, Y: 0},
		{X: 0, Y: -1},
	}
	m, err := Analyze(points)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if math.Abs(m.LongAxisLength-20) > 1e-9 {
		t.Errorf("long axis = %f, want 20", m.LongAxisLength)
	}
	// One maximum per side: 3 + 1, not 2*3.
	if math.Abs(m.ShortAxisLength-4) > 1e-9 {
		t.Errorf("short axis = %f, want 4", m.ShortAxisLength)
	}
}

// TestAnalyzeWithPerimeter verifies the precomputed-perimeter path
func TestAnalyzeWithPerimeter(t *testing.T) {
	const measured = 63.1
	m, err := AnalyzeWithPerimeter(regularPolygon(6, 10), measured)
	if err != nil {
		t.Fatalf("AnalyzeWithPerimeter failed: %v", err)
	}

	if m.Perimeter != measured {
		t.Errorf("perimeter = %f, want the supplied %f", m.Perimeter, measured)
	}
	if math.Abs(m.PerimeterDerivedDiameter-measured/math.Pi) > 1e-9 {
		t.Errorf("perimeter-derived diameter = %f", m.PerimeterDerivedDiameter)
	}
}

// TestTiltedContour verifies that area is measured in the contour's own
// plane, not a world-axis projection
func TestTiltedContour(t *testing.T) {
	// A 4x4 square rotated 45 degrees about X: its world XY projection
	// shrinks, its in-plane area does not.
	base := []geometry.Vec3{
		{X: -2, Y: -2}, {X: 2, Y: -2}, {X: 2, Y: 2}, {X: -2, Y: 2},
	}
	axis := geometry.Vec3{X: 1}
	points := make([]geometry.Vec3, len(base))
	for i, p := range base {
		points[i] = p.RotateAround(axis, math.Pi/4)
	}

	m, err := Analyze(points)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if math.Abs(m.Area-16) > 1e-9 {
		t.Errorf("tilted square area = %f, want 16", m.Area)
	}
}
