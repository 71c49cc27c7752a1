// Package workflow drives the guided measurement sequence of a TAVI
// planning session: it validates declarative step definitions, positions
// the active cross-section view at each step's anatomical level, and tracks
// completion of required and optional measurements.
package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GeometryType is the annotation geometry a step expects the user to draw.
type GeometryType string

const (
	GeometryPolygon GeometryType = "polygon"
	GeometryLine    GeometryType = "line"
	GeometrySpline  GeometryType = "spline"
)

// Section is the view a step is measured in.
type Section string

const (
	SectionAxial    Section = "axial"
	SectionLongAxis Section = "longAxis"
)

// Level describes how the target slice offset of a step is determined.
type Level string

const (
	// LevelAtAnnulus positions the view at the annulus datum (offset 0).
	LevelAtAnnulus Level = "atAnnulus"

	// LevelRelativeOffset positions the view at a fixed offset in mm
	// from the annulus.
	LevelRelativeOffset Level = "relativeOffset"

	// LevelDynamicOffset positions the view at an offset computed from
	// the annulus area by the step's formula.
	LevelDynamicOffset Level = "dynamicOffset"

	// LevelManualNavigation computes no offset; the user navigates
	// freely.
	LevelManualNavigation Level = "manualNavigation"

	// LevelAtCoronaryLevel computes no offset; the user navigates to the
	// coronary ostium being measured.
	LevelAtCoronaryLevel Level = "atCoronaryLevel"
)

// Step is one immutable measurement step of a workflow definition.
type Step struct {
	// ID uniquely identifies the step within its workflow.
	ID string `yaml:"id"`

	// DisplayName is shown in the step list.
	DisplayName string `yaml:"displayName"`

	// Geometry is the annotation type the step expects.
	Geometry GeometryType `yaml:"geometry"`

	// Section is the view the measurement is taken in.
	Section Section `yaml:"section"`

	// Level selects how the target slice offset is determined.
	Level Level `yaml:"level"`

	// OffsetMm is the fixed offset from the annulus for
	// LevelRelativeOffset, positive toward the outflow.
	OffsetMm float64 `yaml:"offsetMm,omitempty"`

	// OffsetExpression is the formula over annulusArea for
	// LevelDynamicOffset.
	OffsetExpression string `yaml:"offsetExpression,omitempty"`

	// Required marks steps that must be completed before the workflow
	// counts as complete.
	Required bool `yaml:"required"`

	// Label is the measurement label used in reports.
	Label string `yaml:"label"`
}

// Definition is a declarative ordered workflow step list. Definitions are
// external, versioned configuration; the engine validates structural
// well-formedness only.
type Definition struct {
	// Name identifies the workflow variant.
	Name string `yaml:"name"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`
}

// InvalidWorkflowDefinitionError reports a structurally malformed workflow
// definition.
type InvalidWorkflowDefinitionError struct {
	Reason string
}

func (e *InvalidWorkflowDefinitionError) Error() string {
	return fmt.Sprintf("invalid workflow definition: %s", e.Reason)
}

// LoadDefinition reads a workflow definition from a YAML file and validates
// it.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading workflow definition: %w", err)
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("error parsing workflow definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks structural well-formedness: at least one step, unique
// non-empty ids, valid enum values, and parsable dynamic-offset formulas.
func (d *Definition) Validate() error {
	if len(d.Steps) == 0 {
		return &InvalidWorkflowDefinitionError{Reason: "no steps defined"}
	}

	seen := make(map[string]bool, len(d.Steps))
	for i, step := range d.Steps {
		if step.ID == "" {
			return &InvalidWorkflowDefinitionError{Reason: fmt.Sprintf("step %d has an empty id", i)}
		}
		if seen[step.ID] {
			return &InvalidWorkflowDefinitionError{Reason: fmt.Sprintf("duplicate step id %q", step.ID)}
		}
		seen[step.ID] = true

		switch step.Geometry {
		case GeometryPolygon, GeometryLine, GeometrySpline:
		default:
			return &InvalidWorkflowDefinitionError{Reason: fmt.Sprintf("step %q has invalid geometry %q", step.ID, step.Geometry)}
		}

		switch step.Section {
		case SectionAxial, SectionLongAxis:
		default:
			return &InvalidWorkflowDefinitionError{Reason: fmt.Sprintf("step %q has invalid section %q", step.ID, step.Section)}
		}

		switch step.Level {
		case LevelAtAnnulus, LevelRelativeOffset, LevelManualNavigation, LevelAtCoronaryLevel:
		case LevelDynamicOffset:
			if step.OffsetExpression == "" {
				return &InvalidWorkflowDefinitionError{Reason: fmt.Sprintf("step %q uses dynamicOffset without an offsetExpression", step.ID)}
			}
			if _, err := ParseFormula(step.OffsetExpression); err != nil {
				return &InvalidWorkflowDefinitionError{Reason: fmt.Sprintf("step %q has a malformed offsetExpression: %v", step.ID, err)}
			}
		default:
			return &InvalidWorkflowDefinitionError{Reason: fmt.Sprintf("step %q has invalid level %q", step.ID, step.Level)}
		}
	}
	return nil
}

// DefaultTAVIDefinition returns the standard TAVI measurement sequence:
// annulus, LVOT, sinus of Valsalva, sinotubular junction, coronary ostium
// heights, and ascending aorta.
func DefaultTAVIDefinition() *Definition {
	return &Definition{
		Name: "tavi-standard",
		Steps: []Step{
			{
				ID:          "annulus",
				DisplayName: "Aortic annulus",
				Geometry:    GeometryPolygon,
				Section:     SectionAxial,
				Level:       LevelAtAnnulus,
				Required:    true,
				Label:       "Annulus area",
			},
			{
				ID:          "lvot",
				DisplayName: "Left ventricular outflow tract",
				Geometry:    GeometryPolygon,
				Section:     SectionAxial,
				Level:       LevelRelativeOffset,
				OffsetMm:    -5,
				Required:    true,
				Label:       "LVOT area",
			},
			{
				ID:          "sov",
				DisplayName: "Sinus of Valsalva",
				Geometry:    GeometryPolygon,
				Section:     SectionAxial,
				Level:       LevelDynamicOffset,
				// Wider annuli sit in taller roots; measure higher.
				OffsetExpression: "annulusArea < 400 ? 8 : 10",
				Required:         true,
				Label:            "SoV diameter",
			},
			{
				ID:          "stj",
				DisplayName: "Sinotubular junction",
				Geometry:    GeometryPolygon,
				Section:     SectionAxial,
				Level:       LevelRelativeOffset,
				OffsetMm:    20,
				Required:    false,
				Label:       "STJ diameter",
			},
			{
				ID:          "lca-height",
				DisplayName: "Left coronary ostium height",
				Geometry:    GeometryLine,
				Section:     SectionLongAxis,
				Level:       LevelAtCoronaryLevel,
				Required:    true,
				Label:       "LCA height",
			},
			{
				ID:          "rca-height",
				DisplayName: "Right coronary ostium height",
				Geometry:    GeometryLine,
				Section:     SectionLongAxis,
				Level:       LevelAtCoronaryLevel,
				Required:    false,
				Label:       "RCA height",
			},
			{
				ID:          "ascending-aorta",
				DisplayName: "Ascending aorta",
				Geometry:    GeometryPolygon,
				Section:     SectionAxial,
				Level:       LevelManualNavigation,
				Required:    false,
				Label:       "Ascending aorta diameter",
			},
		},
	}
}
