package mapping

import (
	"context"
	"math"
	"testing"

	"taviplan/internal/models"
	"taviplan/pkg/centerline"
	"taviplan/pkg/geometry"
	"taviplan/pkg/reformation"
	"taviplan/pkg/volume"
)

// renderFixture builds a curved path through a 32^3 volume and renders a
// reformation, returning the image for mapper construction.
func renderFixture(t *testing.T) *models.ReformationImage {
	t.Helper()

	const n = 32
	data := make([]float64, n*n*n)
	grid, err := volume.NewGrid(data, n, n, n, [3]float64{1, 1, 1}, geometry.Vec3{})
	if err != nil {
		t.Fatalf("NewGrid failed: %v", err)
	}

	landmarks := []models.LandmarkPoint{
		{Position: geometry.Vec3{X: 10, Y: 10, Z: 4}, Role: models.RoleInflow},
		{Position: geometry.Vec3{X: 16, Y: 14, Z: 16}, Role: models.RoleValvePlane},
		{Position: geometry.Vec3{X: 24, Y: 10, Z: 27}, Role: models.RoleOutflow},
	}
	path, err := centerline.NewBuilder(&centerline.Params{SampleCount: 40}).Build(landmarks)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	img, err := reformation.Render(context.Background(), grid, path, reformation.Params{
		Width:          10,
		LateralSpacing: 0.5,
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	return img
}

// TestNewMapperValidation verifies the constructor's record checks
func TestNewMapperValidation(t *testing.T) {
	if _, err := NewMapper(nil); err == nil {
		t.Error("expected an error for a nil record")
	}
	if _, err := NewMapper(&models.TransformRecord{}); err == nil {
		t.Error("expected an error for a record without columns")
	}
}

// TestToPatientSpaceGeometry verifies the pixel-to-patient conversion
// against the recorded column frames
func TestToPatientSpaceGeometry(t *testing.T) {
	img := renderFixture(t)
	m, err := NewMapper(img.Transform)
	if err != nil {
		t.Fatalf("NewMapper failed: %v", err)
	}

	// The center row of any column is the column's centerline position.
	midRow := float64(img.Height-1) / 2
	for _, x := range []int{0, img.Width / 2, img.Width - 1} {
		p, ok := m.ToPatientSpace(float64(x), midRow)
		if !ok {
			t.Fatalf("column %d center reported out of bounds", x)
		}
		want := img.Transform.Columns[x].Position
		if p.DistanceTo(want) > 1e-9 {
			t.Errorf("column %d center = %+v, want %+v", x, p, want)
		}
	}

	// One spacing below center moves one lateral step along FrameRight.
	col := img.Transform.Columns[5]
	p, ok := m.ToPatientSpace(5, midRow+1)
	if !ok {
		t.Fatal("in-slab pixel reported out of bounds")
	}
	want := col.Position.Add(col.FrameRight.Scale(img.Transform.LateralSpacing))
	if p.DistanceTo(want) > 1e-9 {
		t.Errorf("lateral step = %+v, want %+v", p, want)
	}
}

// TestRoundTrip verifies toPatientSpace(toImageSpace(p)) == p for points
// on the reformation surface
func TestRoundTrip(t *testing.T) {
	img := renderFixture(t)
	m, err := NewMapper(img.Transform)
	if err != nil {
		t.Fatalf("NewMapper failed: %v", err)
	}

	for _, pixel := range [][2]float64{
		{2, 4},
		{10, float64(img.Height-1) / 2},
		{20, 15},
		{float64(img.Width - 1), float64(img.Height - 1)},
	} {
		p, ok := m.ToPatientSpace(pixel[0], pixel[1])
		if !ok {
			t.Fatalf("pixel %+v reported out of bounds", pixel)
		}

		px, py, ok := m.ToImageSpace(p)
		if !ok {
			t.Fatalf("round-trip of pixel %+v reported out of bounds", pixel)
		}
		if math.Abs(px-pixel[0]) > 1e-6 || math.Abs(py-pixel[1]) > 1e-6 {
			t.Errorf("round trip of %+v gave (%f, %f)", pixel, px, py)
		}

		back, ok := m.ToPatientSpace(px, py)
		if !ok || back.DistanceTo(p) > 1e-6 {
			t.Errorf("patient-space round trip drifted by %f mm", back.DistanceTo(p))
		}
	}
}

// TestOutOfBoundsReporting verifies that points beyond the sampled slab
// are flagged rather than clamped
func TestOutOfBoundsReporting(t *testing.T) {
	img := renderFixture(t)
	m, err := NewMapper(img.Transform)
	if err != nil {
		t.Fatalf("NewMapper failed: %v", err)
	}

	// Pixels beyond the image edge.
	if _, ok := m.ToPatientSpace(-3, 0); ok {
		t.Error("negative column accepted")
	}
	if _, ok := m.ToPatientSpace(float64(img.Width)+2, 0); ok {
		t.Error("column beyond the image accepted")
	}
	if _, ok := m.ToPatientSpace(0, float64(img.Height)+40); ok {
		t.Error("row far beyond the lateral extent accepted")
	}

	// A patient point far off the reformation surface.
	col := img.Transform.Columns[10]
	far := col.Position.Add(col.FrameUp.Scale(25))
	if _, _, ok := m.ToImageSpace(far); ok {
		t.Error("point far off the surface accepted")
	}

	// A patient point laterally beyond the sampled width.
	wide := col.Position.Add(col.FrameRight.Scale(col.HalfExtent * 3))
	if _, _, ok := m.ToImageSpace(wide); ok {
		t.Error("point beyond the lateral extent accepted")
	}
}

// TestMapperKeepsRecord verifies that the mapper stays bound to the record
// it was built from
func TestMapperKeepsRecord(t *testing.T) {
	img := renderFixture(t)
	m, err := NewMapper(img.Transform)
	if err != nil {
		t.Fatalf("NewMapper failed: %v", err)
	}
	if m.Record() != img.Transform {
		t.Error("mapper record does not match the image transform")
	}
}
