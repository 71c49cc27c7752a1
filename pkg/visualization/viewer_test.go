package visualization

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"taviplan/internal/models"
	"taviplan/pkg/centerline"
	"taviplan/pkg/geometry"
	"taviplan/pkg/reformation"
	"taviplan/pkg/volume"
)

// grayImage builds a reformation image directly from pixel values, one
// row tall.
func grayImage(pixels ...float64) *models.ReformationImage {
	return &models.ReformationImage{
		Pixels:   pixels,
		Width:    len(pixels),
		Height:   1,
		SpacingX: 1,
		SpacingY: 1,
	}
}

// TestRenderWindowLevel verifies the window/level gray mapping
func TestRenderWindowLevel(t *testing.T) {
	// Window 100 centered at level 50: 0 maps to black, 50 to mid-gray,
	// 100 to white.
	e := NewExporter(100, 50)
	img := e.Render(grayImage(0, 50, 100))

	if got := img.Gray16At(0, 0).Y; got != 0 {
		t.Errorf("low edge = %d, want 0", got)
	}
	if got := img.Gray16At(1, 0).Y; got < 32000 || got > 33500 {
		t.Errorf("level value = %d, want mid-gray", got)
	}
	if got := img.Gray16At(2, 0).Y; got != 65535 {
		t.Errorf("high edge = %d, want 65535", got)
	}
}

// TestRenderClampsOutOfWindow verifies values beyond the window clamp to
// the ramp ends
func TestRenderClampsOutOfWindow(t *testing.T) {
	e := NewExporter(100, 50)
	img := e.Render(grayImage(-500, 900))

	if got := img.Gray16At(0, 0).Y; got != 0 {
		t.Errorf("below-window value = %d, want 0", got)
	}
	if got := img.Gray16At(1, 0).Y; got != 65535 {
		t.Errorf("above-window value = %d, want 65535", got)
	}
}

// TestRenderOutsideSentinelIsBlack verifies that out-of-volume pixels are
// black regardless of the window
func TestRenderOutsideSentinelIsBlack(t *testing.T) {
	// A window spanning negative values would otherwise put the
	// sentinel's clamp somewhere visible.
	e := NewExporter(100, -200)
	img := e.Render(grayImage(math.Inf(-1), -200))

	if got := img.Gray16At(0, 0).Y; got != 0 {
		t.Errorf("sentinel pixel = %d, want 0", got)
	}
	if got := img.Gray16At(1, 0).Y; got < 32000 || got > 33500 {
		t.Errorf("in-window pixel = %d, want mid-gray", got)
	}
}

// TestSaveRotationSweep verifies the full-turn export sequence
func TestSaveRotationSweep(t *testing.T) {
	const n = 12
	data := make([]float64, n*n*n)
	for i := range data {
		data[i] = 100
	}
	grid, err := volume.NewGrid(data, n, n, n, [3]float64{1, 1, 1}, geometry.Vec3{})
	if err != nil {
		t.Fatalf("NewGrid failed: %v", err)
	}

	landmarks := []models.LandmarkPoint{
		{Position: geometry.Vec3{X: 6, Y: 6, Z: 2}, Role: models.RoleInflow},
		{Position: geometry.Vec3{X: 6, Y: 6, Z: 6}, Role: models.RoleValvePlane},
		{Position: geometry.Vec3{X: 6, Y: 6, Z: 10}, Role: models.RoleOutflow},
	}
	path, err := centerline.NewBuilder(&centerline.Params{SampleCount: 9}).Build(landmarks)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	params := reformation.Params{Width: 4, LateralSpacing: 0.5}
	dir := t.TempDir()
	e := NewExporter(200, 100)
	if err := e.SaveRotationSweep(context.Background(), grid, path, params, 4, dir); err != nil {
		t.Fatalf("SaveRotationSweep failed: %v", err)
	}

	for i := 0; i < 4; i++ {
		name := filepath.Join(dir, fmt.Sprintf("rotation_%03d.jpg", i))
		if _, err := os.Stat(name); err != nil {
			t.Errorf("missing sweep frame %s: %v", name, err)
		}
	}

	if err := e.SaveRotationSweep(context.Background(), grid, path, params, 0, dir); err == nil {
		t.Error("expected an error for zero sweep steps")
	}
}
