// Package reformation implements curved planar reformation (CPR): it
// resamples a volumetric scalar field along a centerline into flattened 2D
// cross-sectional images, records the per-column sampling transform the
// coordinate mapper depends on, and schedules long renders off the
// interactive path with supersession-based cancellation.
package reformation

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/google/uuid"

	"taviplan/internal/models"
	"taviplan/pkg/centerline"
	"taviplan/pkg/geometry"
	"taviplan/pkg/volume"
)

// OutsideValue is the sentinel written for positions falling outside the
// volume's bounds. Negative infinity is below any CT/MR intensity, so it
// stays distinguishable from real tissue downstream and fails loudly if it
// ever leaks into arithmetic.
var OutsideValue = math.Inf(-1)

// IsOutside reports whether a pixel value is the outside sentinel.
func IsOutside(v float64) bool {
	return math.IsInf(v, -1)
}

// EmptyCenterlineError reports a path with too few samples to reform.
type EmptyCenterlineError struct {
	// Samples is the number of path samples supplied; at least 2 are
	// required.
	Samples int
}

func (e *EmptyCenterlineError) Error() string {
	return fmt.Sprintf("reformation requires a centerline with at least 2 samples, got %d", e.Samples)
}

// DegenerateVolumeError reports a volume with a zero dimension.
type DegenerateVolumeError struct {
	// Dims are the offending voxel counts.
	Dims [3]int
}

func (e *DegenerateVolumeError) Error() string {
	return fmt.Sprintf("volume has a degenerate dimension: %dx%dx%d", e.Dims[0], e.Dims[1], e.Dims[2])
}

// Params configures one reformation render.
type Params struct {
	// Width is the full lateral extent of the image in mm.
	Width float64

	// Rotation is the rotation of the lateral sampling line about the
	// local tangent, in radians.
	Rotation float64

	// Projection selects how slab samples combine into one pixel.
	// ProjectionNone takes a single sample on the path surface.
	Projection models.ProjectionMode

	// SlabThickness is the full thickness integrated through, in mm.
	// Ignored for ProjectionNone.
	SlabThickness float64

	// SlabSamples is the number of samples taken across the slab.
	// Ignored for ProjectionNone; minimum 1.
	SlabSamples int

	// Layout selects stretched or straightened column spacing.
	Layout models.LayoutMode

	// LateralSpacing is the mm covered by one pixel along a column, and
	// by one column in the stretched layout. Defaults to 0.5.
	LateralSpacing float64

	// Workers is the number of goroutines rendering columns.
	// Defaults to runtime.NumCPU().
	Workers int
}

// withDefaults returns a copy of p with unset fields filled in.
func (p Params) withDefaults() Params {
	if p.Width <= 0 {
		p.Width = 40
	}
	if p.Projection == "" {
		p.Projection = models.ProjectionNone
	}
	if p.SlabSamples < 1 {
		p.SlabSamples = 1
	}
	if p.Layout == "" {
		p.Layout = models.LayoutStraightened
	}
	if p.LateralSpacing <= 0 {
		p.LateralSpacing = 0.5
	}
	if p.Workers < 1 {
		p.Workers = runtime.NumCPU()
	}
	return p
}

// Render resamples the field along the path into a reformation image. The
// image and its transform record are built together and returned as one
// unit; callers never observe a partially updated pair. Rendering honours
// ctx cancellation between columns.
//
// Returns an EmptyCenterlineError for paths with fewer than 2 samples and a
// DegenerateVolumeError for volumes with a zero dimension.
func Render(ctx context.Context, field volume.Field, path *models.CenterlinePath, params Params) (*models.ReformationImage, error) {
	if path == nil || len(path.Samples) < 2 {
		n := 0
		if path != nil {
			n = len(path.Samples)
		}
		return nil, &EmptyCenterlineError{Samples: n}
	}
	nx, ny, nz := field.Dims()
	if nx == 0 || ny == 0 || nz == 0 {
		return nil, &DegenerateVolumeError{Dims: [3]int{nx, ny, nz}}
	}

	params = params.withDefaults()
	columns := buildColumns(path, params)

	width := len(columns)
	height := int(params.Width/params.LateralSpacing) + 1

	record := &models.TransformRecord{
		ID:             uuid.NewString(),
		Columns:        columns,
		Layout:         params.Layout,
		Rotation:       params.Rotation,
		Width:          params.Width,
		Projection:     params.Projection,
		SlabThickness:  params.SlabThickness,
		SlabSamples:    params.SlabSamples,
		LateralSpacing: params.LateralSpacing,
		ImageWidth:     width,
		ImageHeight:    height,
	}

	img := &models.ReformationImage{
		Pixels:    make([]float64, width*height),
		Width:     width,
		Height:    height,
		SpacingX:  record.ColumnSpacing(),
		SpacingY:  params.LateralSpacing,
		Origin:    columns[0].Position,
		Transform: record,
	}

	if err := renderColumns(ctx, field, img, params); err != nil {
		return nil, err
	}
	return img, nil
}

// buildColumns lays out the image columns along the path.
//
// Straightened: one column per centerline sample, uniform in sample index.
// Stretched: columns spaced uniformly in true arc length at the lateral
// pixel spacing, so distances along the path read true on screen.
func buildColumns(path *models.CenterlinePath, params Params) []models.ColumnTransform {
	var columns []models.ColumnTransform

	switch params.Layout {
	case models.LayoutStretched:
		total := path.Length()
		count := int(total/params.LateralSpacing) + 1
		if count < 2 {
			count = 2
		}
		columns = make([]models.ColumnTransform, count)
		for x := 0; x < count; x++ {
			arc := total * float64(x) / float64(count-1)
			columns[x] = columnAtArc(path, arc, params)
		}
	default: // straightened
		columns = make([]models.ColumnTransform, len(path.Samples))
		for x, s := range path.Samples {
			columns[x] = columnFromSample(s, params)
		}
	}
	return columns
}

// columnAtArc builds a column transform at an arbitrary arc-length position,
// interpolating the position along the bracketing segment and taking the
// frame of the nearest sample.
func columnAtArc(path *models.CenterlinePath, arc float64, params Params) models.ColumnTransform {
	s := path.Samples[centerline.NearestSampleIndex(path, arc)]
	col := columnFromSample(s, params)
	col.ArcLength = arc
	col.Position = centerline.PointAt(path, arc)
	return col
}

// columnFromSample builds a column transform from a path sample, applying
// the frame rotation about the tangent.
func columnFromSample(s models.CenterlineSample, params Params) models.ColumnTransform {
	right := s.FrameRight
	up := s.FrameUp
	if params.Rotation != 0 {
		right = right.RotateAround(s.Tangent, params.Rotation)
		up = up.RotateAround(s.Tangent, params.Rotation)
	}
	return models.ColumnTransform{
		ArcLength:  s.ArcLength,
		Position:   s.Position,
		Tangent:    s.Tangent,
		FrameRight: right,
		FrameUp:    up,
		HalfExtent: params.Width / 2,
	}
}

// renderColumns fills the image pixels with a worker pool over columns.
func renderColumns(ctx context.Context, field volume.Field, img *models.ReformationImage, params Params) error {
	record := img.Transform

	var wg sync.WaitGroup
	jobs := make(chan int)
	errOnce := sync.Once{}
	var renderErr error

	for w := 0; w < params.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for x := range jobs {
				if err := ctx.Err(); err != nil {
					errOnce.Do(func() { renderErr = err })
					return
				}
				renderColumn(field, img, record.Columns[x], x, params)
			}
		}()
	}

feed:
	for x := 0; x < img.Width; x++ {
		select {
		case jobs <- x:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if renderErr != nil {
		return renderErr
	}
	return ctx.Err()
}

// renderColumn fills one image column. Each row samples the lateral line
// spanned by the column's rotated right vector; slab projection aggregates
// additional samples stepped along the tangent.
func renderColumn(field volume.Field, img *models.ReformationImage, col models.ColumnTransform, x int, params Params) {
	halfRows := float64(img.Height-1) / 2

	for y := 0; y < img.Height; y++ {
		lateral := (float64(y) - halfRows) * params.LateralSpacing
		base := col.Position.Add(col.FrameRight.Scale(lateral))

		var value float64
		if params.Projection == models.ProjectionNone {
			value = sampleOrSentinel(field, base)
		} else {
			value = projectSlab(field, base, col.Tangent, params)
		}
		img.Pixels[y*img.Width+x] = value
	}
}

// sampleOrSentinel samples the field at p, substituting the outside
// sentinel for positions beyond the volume bounds.
func sampleOrSentinel(field volume.Field, p geometry.Vec3) float64 {
	v, ok := volume.SampleTrilinear(field, p)
	if !ok {
		return OutsideValue
	}
	return v
}

// projectSlab aggregates SlabSamples trilinear samples taken at evenly
// spaced offsets along the tangent within [-SlabThickness/2, +SlabThickness/2].
// Outside samples are excluded from the aggregate; when every sample is
// outside the result is the outside sentinel.
func projectSlab(field volume.Field, base, tangent geometry.Vec3, params Params) float64 {
	n := params.SlabSamples
	half := params.SlabThickness / 2

	sum := 0.0
	count := 0
	best := 0.0

	for i := 0; i < n; i++ {
		offset := 0.0
		if n > 1 {
			offset = -half + params.SlabThickness*float64(i)/float64(n-1)
		}
		v, ok := volume.SampleTrilinear(field, base.Add(tangent.Scale(offset)))
		if !ok {
			continue
		}
		switch params.Projection {
		case models.ProjectionMax:
			if count == 0 || v > best {
				best = v
			}
		case models.ProjectionMin:
			if count == 0 || v < best {
				best = v
			}
		default: // average
			sum += v
		}
		count++
	}

	if count == 0 {
		return OutsideValue
	}
	if params.Projection == models.ProjectionAverage {
		return sum / float64(count)
	}
	return best
}
