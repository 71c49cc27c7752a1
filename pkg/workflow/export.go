package workflow

import "time"

// PatientContext identifies the patient study a snapshot belongs to. It is
// supplied by the session layer; the engine never looks inside it.
type PatientContext struct {
	PatientID   string `json:"patientId" yaml:"patientId"`
	StudyID     string `json:"studyId" yaml:"studyId"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// StepResult is the reported outcome of one step.
type StepResult struct {
	ID            string  `json:"id" yaml:"id"`
	DisplayName   string  `json:"displayName" yaml:"displayName"`
	Label         string  `json:"label" yaml:"label"`
	Required      bool    `json:"required" yaml:"required"`
	Completed     bool    `json:"completed" yaml:"completed"`
	Skipped       bool    `json:"skipped" yaml:"skipped"`
	Value         float64 `json:"value,omitempty" yaml:"value,omitempty"`
	AnnotationRef string  `json:"annotationRef,omitempty" yaml:"annotationRef,omitempty"`
}

// Snapshot is a serializable view of a session for downstream reporting.
// Producing one has no side effects; formatting is the report layer's
// concern.
type Snapshot struct {
	SessionID   string         `json:"sessionId" yaml:"sessionId"`
	Workflow    string         `json:"workflow" yaml:"workflow"`
	Patient     PatientContext `json:"patient" yaml:"patient"`
	GeneratedAt time.Time      `json:"generatedAt" yaml:"generatedAt"`
	Steps       []StepResult   `json:"steps" yaml:"steps"`
	Complete    bool           `json:"complete" yaml:"complete"`
}

// Export produces a snapshot of the session's per-step measured values and
// completion status.
func (s *Session) Export(patient PatientContext) *Snapshot {
	snap := &Snapshot{
		SessionID:   s.id,
		Workflow:    s.def.Name,
		Patient:     patient,
		GeneratedAt: time.Now(),
		Steps:       make([]StepResult, len(s.def.Steps)),
		Complete:    s.IsComplete(),
	}
	for i, step := range s.def.Steps {
		result := StepResult{
			ID:          step.ID,
			DisplayName: step.DisplayName,
			Label:       step.Label,
			Required:    step.Required,
			Skipped:     s.skipped[step.ID],
		}
		if m, ok := s.completed[step.ID]; ok {
			result.Completed = true
			result.Value = m.Value
			result.AnnotationRef = m.AnnotationRef
		}
		snap.Steps[i] = result
	}
	return snap
}
