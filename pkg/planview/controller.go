// Package planview positions the active cross-section view along a built
// centerline. It implements the workflow's ViewController: when a
// measurement step activates, the controller moves the view to the step's
// arc-length position relative to the annulus datum and schedules a
// reformation render there.
package planview

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"taviplan/internal/models"
	"taviplan/pkg/centerline"
	"taviplan/pkg/geometry"
	"taviplan/pkg/reformation"
	"taviplan/pkg/volume"
)

// Controller tracks the current view position on one centerline and drives
// the resample scheduler. The annulus datum is the zero point for all
// offsets; positive offsets move toward the outflow.
type Controller struct {
	field     volume.Field
	path      *models.CenterlinePath
	datumArc  float64
	scheduler *reformation.Scheduler
	params    reformation.Params
	logger    *zap.Logger

	mu      sync.Mutex
	arc     float64
	manual  bool
	results <-chan reformation.Result
}

// NewController creates a controller over a built centerline. The datum is
// derived from the landmarks the path was built from (valve-plane landmark,
// or the middle landmark when none carries the role).
func NewController(field volume.Field, path *models.CenterlinePath, landmarks []models.LandmarkPoint, scheduler *reformation.Scheduler, params reformation.Params, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		field:     field,
		path:      path,
		datumArc:  centerline.DatumArc(path, landmarks),
		scheduler: scheduler,
		params:    params,
		logger:    logger,
	}
}

// MoveToOffset repositions the view at the given offset in mm from the
// annulus datum, clamped to the path, and schedules a render. The previous
// in-flight render, if any, is superseded.
func (c *Controller) MoveToOffset(offsetMm float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	arc := c.datumArc + offsetMm
	if arc < 0 {
		arc = 0
	}
	if max := c.path.Length(); arc > max {
		arc = max
	}
	c.arc = arc
	c.manual = false

	c.results = c.scheduler.Submit(context.Background(), c.field, c.path, c.params)
	c.logger.Debug("view repositioned",
		zap.Float64("offsetMm", offsetMm),
		zap.Float64("arcMm", arc))
	return nil
}

// EnableFreeNavigation releases the view for manual positioning; the
// display layer moves it with NavigateTo until the next automatic step.
func (c *Controller) EnableFreeNavigation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manual = true
}

// NavigateTo moves a manually navigated view to an absolute arc position.
// Ignored while the view is under automatic control.
func (c *Controller) NavigateTo(arcMm float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.manual {
		return
	}
	if arcMm < 0 {
		arcMm = 0
	}
	if max := c.path.Length(); arcMm > max {
		arcMm = max
	}
	c.arc = arcMm
}

// CurrentArc returns the view's arc-length position on the path.
func (c *Controller) CurrentArc() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.arc
}

// CurrentPosition returns the view's patient-space position on the path.
func (c *Controller) CurrentPosition() geometry.Vec3 {
	c.mu.Lock()
	arc := c.arc
	c.mu.Unlock()
	return centerline.PointAt(c.path, arc)
}

// Results returns the channel of the most recently scheduled render, nil
// before the first MoveToOffset.
func (c *Controller) Results() <-chan reformation.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results
}
