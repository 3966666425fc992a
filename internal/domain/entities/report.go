package entities

import "time"

// Stage names a pipeline step
type Stage string

// Pipeline stages in execution order
const (
	StageInspect   Stage = "Inspect"
	StageAcquire   Stage = "Acquire"
	StageExtract   Stage = "Extract"
	StageStrip     Stage = "Strip"
	StageRepackage Stage = "Repackage"
	StageShim      Stage = "Shim"
)

// Stages lists every stage in execution order
var Stages = []Stage{StageInspect, StageAcquire, StageExtract, StageStrip, StageRepackage, StageShim}

// StageStatus is the user-facing status of a stage
type StageStatus string

// Stage statuses
const (
	StatusAttempted StageStatus = "attempted"
	StatusSkipped   StageStatus = "skipped"
	StatusSucceeded StageStatus = "succeeded"
	StatusFailed    StageStatus = "failed"
)

// StageOutcome tells the orchestrator how to continue after a stage
type StageOutcome string

// Stage outcomes
const (
	OutcomeSuccess    StageOutcome = "success"
	OutcomeSkipToNext StageOutcome = "skipToNext"
	OutcomeFatal      StageOutcome = "fatal"
)

// StageResult is what one stage hands back to the orchestrator
type StageResult struct {
	Stage    Stage         `json:"stage"`
	Status   StageStatus   `json:"status"`
	Outcome  StageOutcome  `json:"outcome"`
	Kind     string        `json:"kind,omitempty"` // failure kind, e.g. notFound
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Label renders the status the way the summary prints it
func (r StageResult) Label() string {
	switch r.Status {
	case StatusSucceeded:
		return "ok"
	case StatusSkipped:
		if r.Detail != "" {
			return "skipped (" + r.Detail + ")"
		}
		return "skipped"
	case StatusFailed:
		if r.Kind != "" {
			return r.Kind
		}
		return "failed"
	default:
		return string(r.Status)
	}
}

// PipelineReport is the aggregate outcome of one repair run
type PipelineReport struct {
	RunID          string            `json:"run_id"`
	Target         LibraryTarget     `json:"target"`
	Stages         []StageResult     `json:"stages"`
	Attempts       []PatchAttempt    `json:"patch_attempts,omitempty"`
	Shim           *ShimInstallation `json:"shim,omitempty"`
	Warnings       []string          `json:"warnings,omitempty"`
	Remediated     bool              `json:"remediated"`
	Repackaged     bool              `json:"repackaged"`
	ContainerClean bool              `json:"container_clean"` // library never declared the dependency
	ManualFallback []string          `json:"manual_fallback,omitempty"`
	StartedAt      time.Time         `json:"started_at"`
	Duration       time.Duration     `json:"duration_ns"`
}

// StageResult returns the recorded result for a stage, if any
func (r *PipelineReport) StageResult(stage Stage) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s, true
		}
	}
	return StageResult{}, false
}

// Succeeded reports whether the given stage succeeded
func (r *PipelineReport) Succeeded(stage Stage) bool {
	s, ok := r.StageResult(stage)
	return ok && s.Status == StatusSucceeded
}
