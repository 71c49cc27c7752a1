// Package visualization exports reformatted cross-sections as grayscale
// images for review. Display composition is the rendering layer's job; this
// package only maps scalar values to pixels the way a radiology viewer
// would, with a configurable window and level.
package visualization

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"taviplan/internal/models"
	"taviplan/pkg/reformation"
	"taviplan/pkg/volume"
)

// Exporter converts reformation images to displayable grayscale using a
// window/level mapping. Values at or below level-window/2 map to black,
// values at or above level+window/2 to white. The outside sentinel always
// maps to black.
type Exporter struct {
	// window is the full intensity range mapped onto the gray ramp
	window float64

	// level is the intensity at mid-gray
	level float64
}

// NewExporter creates an exporter with the given window and level. A
// non-positive window defaults to 1.
func NewExporter(window, level float64) *Exporter {
	if window <= 0 {
		window = 1
	}
	return &Exporter{window: window, level: level}
}

// Render converts a reformation image to a 16-bit grayscale image.
func (e *Exporter) Render(src *models.ReformationImage) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, src.Width, src.Height))
	lo := e.level - e.window/2

	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			v := src.At(x, y)
			if reformation.IsOutside(v) {
				img.SetGray16(x, y, color.Gray16{Y: 0})
				continue
			}
			scaled := (v - lo) / e.window
			value := uint16(math.Max(0, math.Min(65535, scaled*65535)))
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}
	return img
}

// SaveJPEG renders the reformation image and writes it as a JPEG file.
func (e *Exporter) SaveJPEG(src *models.ReformationImage, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, e.Render(src), &jpeg.Options{Quality: 90})
}

// SaveRotationSweep renders the path at evenly spaced rotations through a
// full turn and saves the sequence, one JPEG per rotation, for en-face
// review of the measurement plane.
func (e *Exporter) SaveRotationSweep(ctx context.Context, field volume.Field, path *models.CenterlinePath, params reformation.Params, steps int, outputDir string) error {
	if steps < 1 {
		return fmt.Errorf("rotation sweep requires at least 1 step, got %d", steps)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for i := 0; i < steps; i++ {
		params.Rotation = 2 * math.Pi * float64(i) / float64(steps)

		img, err := reformation.Render(ctx, field, path, params)
		if err != nil {
			return fmt.Errorf("rendering rotation %d: %w", i, err)
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("rotation_%03d.jpg", i))
		if err := e.SaveJPEG(img, filename); err != nil {
			return err
		}
	}

	return nil
}
