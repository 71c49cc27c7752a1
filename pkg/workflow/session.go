package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taviplan/internal/models"
)

// ErrStepRequired is returned by Skip when the active step is required.
var ErrStepRequired = errors.New("cannot skip a required step")

// ErrNoActiveStep is returned by Complete and Skip before Start or after
// the last step has been passed.
var ErrNoActiveStep = errors.New("no active step")

// ViewController is how the session repositions the active cross-section
// view. The reformation side implements it; tests use a fake.
type ViewController interface {
	// MoveToOffset repositions the view at the given offset in mm from
	// the annulus datum along the centerline.
	MoveToOffset(offsetMm float64) error

	// EnableFreeNavigation releases the view for manual positioning
	// (manual and coronary-level steps).
	EnableFreeNavigation()
}

// Measurement is one recorded step result.
type Measurement struct {
	// StepID is the step the measurement belongs to.
	StepID string

	// Value is the measured quantity in the step's natural unit.
	Value float64

	// AnnotationRef identifies the annotation the value was derived
	// from.
	AnnotationRef string

	// RecordedAt is when the measurement was recorded.
	RecordedAt time.Time
}

// Session is the mutable state of one guided measurement workflow. It is
// owned by a single patient session, passed explicitly to the call sites
// that need it, and not safe for concurrent multi-writer access; mutation
// is serialized through the transition methods.
type Session struct {
	id       string
	def      *Definition
	view     ViewController
	logger   *zap.Logger
	formulas map[string]*Formula

	current     int
	started     bool
	completed   map[string]Measurement
	skipped     map[string]bool
	annulusArea float64
}

// NewSession creates a session over a validated workflow definition. The
// definition is validated again here so a session can never start from a
// malformed step list.
func NewSession(def *Definition, view ViewController, logger *zap.Logger) (*Session, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if view == nil {
		return nil, fmt.Errorf("workflow session requires a view controller")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	formulas := make(map[string]*Formula)
	for _, step := range def.Steps {
		if step.Level == LevelDynamicOffset {
			// Validate confirmed these parse.
			f, _ := ParseFormula(step.OffsetExpression)
			formulas[step.ID] = f
		}
	}

	return &Session{
		id:        uuid.NewString(),
		def:       def,
		view:      view,
		logger:    logger,
		formulas:  formulas,
		current:   -1,
		completed: make(map[string]Measurement),
		skipped:   make(map[string]bool),
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Start activates the first step.
func (s *Session) Start() error {
	s.started = true
	return s.ActivateStep(0)
}

// CurrentStep returns the active step. The flag is false when no step is
// active (before Start or after the sequence has been walked past its end).
func (s *Session) CurrentStep() (Step, bool) {
	if !s.started || s.current < 0 || s.current >= len(s.def.Steps) {
		return Step{}, false
	}
	return s.def.Steps[s.current], true
}

// ActivateStep makes step i the active step, clamping i to the valid range,
// and repositions the view at the step's anatomical level. Previously
// recorded measurements are kept; re-measuring a step overwrites only that
// step's value.
//
// For dynamic-offset steps a formula evaluation failure fails closed: the
// view is positioned at the annulus datum (offset 0) and the failure is
// returned to the caller.
func (s *Session) ActivateStep(i int) error {
	if i < 0 {
		i = 0
	}
	if i >= len(s.def.Steps) {
		i = len(s.def.Steps) - 1
	}
	s.started = true
	s.current = i
	step := s.def.Steps[i]

	offset, manual, err := s.resolveOffset(step)
	if manual {
		s.view.EnableFreeNavigation()
		s.logger.Info("step activated",
			zap.String("sessionId", s.id),
			zap.String("stepId", step.ID),
			zap.Bool("manualNavigation", true))
		return nil
	}
	if moveErr := s.view.MoveToOffset(offset); moveErr != nil && err == nil {
		err = moveErr
	}
	s.logger.Info("step activated",
		zap.String("sessionId", s.id),
		zap.String("stepId", step.ID),
		zap.Float64("offsetMm", offset))
	return err
}

// JumpToStep re-activates step i at any time. It is ActivateStep under the
// name the navigation surface uses.
func (s *Session) JumpToStep(i int) error {
	return s.ActivateStep(i)
}

// resolveOffset computes the target slice offset for a step. The second
// return value is true when the step leaves positioning to the user.
func (s *Session) resolveOffset(step Step) (float64, bool, error) {
	switch step.Level {
	case LevelAtAnnulus:
		return 0, false, nil
	case LevelRelativeOffset:
		return step.OffsetMm, false, nil
	case LevelDynamicOffset:
		f := s.formulas[step.ID]
		v, err := f.Eval(map[string]float64{"annulusArea": s.annulusArea})
		if err != nil {
			// Fail closed: annulus datum, error surfaced.
			return 0, false, fmt.Errorf("dynamic offset for step %q: %w", step.ID, err)
		}
		return v, false, nil
	default: // manualNavigation, atCoronaryLevel
		return 0, true, nil
	}
}

// Complete records a measurement for the active step, marks it completed,
// and advances to the next step (repositioning the view for it). The last
// step leaves the sequence with no active step.
func (s *Session) Complete(annotationRef string, value float64) error {
	step, ok := s.CurrentStep()
	if !ok {
		return ErrNoActiveStep
	}

	s.completed[step.ID] = Measurement{
		StepID:        step.ID,
		Value:         value,
		AnnotationRef: annotationRef,
		RecordedAt:    time.Now(),
	}
	delete(s.skipped, step.ID)

	if step.Level == LevelAtAnnulus {
		s.annulusArea = value
	}

	s.logger.Info("step completed",
		zap.String("sessionId", s.id),
		zap.String("stepId", step.ID),
		zap.Float64("value", value))

	return s.advance()
}

// CompleteContour records a contour-derived measurement for the active
// step, using the contour area as the step value. For the annulus step this
// is what binds the annulus area that dynamic offsets are evaluated
// against.
func (s *Session) CompleteContour(annotationRef string, m *models.ContourMeasurement) error {
	if m == nil {
		return fmt.Errorf("nil contour measurement")
	}
	return s.Complete(annotationRef, m.Area)
}

// Skip advances past the active step without recording a measurement.
// Required steps cannot be skipped.
func (s *Session) Skip() error {
	step, ok := s.CurrentStep()
	if !ok {
		return ErrNoActiveStep
	}
	if step.Required {
		return fmt.Errorf("step %q: %w", step.ID, ErrStepRequired)
	}

	s.skipped[step.ID] = true
	s.logger.Info("step skipped",
		zap.String("sessionId", s.id),
		zap.String("stepId", step.ID))

	return s.advance()
}

// advance activates the next step, or parks the session past the end when
// the active step was the last one.
func (s *Session) advance() error {
	if s.current+1 >= len(s.def.Steps) {
		s.current = len(s.def.Steps)
		return nil
	}
	return s.ActivateStep(s.current + 1)
}

// MeasuredValue returns the recorded measurement for a step.
func (s *Session) MeasuredValue(stepID string) (Measurement, bool) {
	m, ok := s.completed[stepID]
	return m, ok
}

// AnnulusArea returns the recorded annulus area, 0 before the annulus step
// has been completed.
func (s *Session) AnnulusArea() float64 { return s.annulusArea }

// IsComplete reports whether every required step has been completed.
func (s *Session) IsComplete() bool {
	for _, step := range s.def.Steps {
		if !step.Required {
			continue
		}
		if _, ok := s.completed[step.ID]; !ok {
			return false
		}
	}
	return true
}
