// Package orchestrators coordinates complex workflows across multiple domain services.
package orchestrators

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ochairo/jnirepair/internal/domain/entities"
	"github.com/ochairo/jnirepair/internal/domain/failures"
	"github.com/ochairo/jnirepair/internal/domain/interfaces"
	"github.com/ochairo/jnirepair/internal/domain/interfaces/gateways"
	"github.com/ochairo/jnirepair/internal/domain/services"
)

// RepairOrchestrator runs the repair pipeline:
// Inspect → Acquire → Extract (only if Acquire failed) → Strip → Repackage → Shim.
// The shim stage is an independent safety net and runs whatever happened
// to the container.
type RepairOrchestrator struct {
	inspector   gateways.ContainerInspector
	acquirer    gateways.Acquirer
	extractor   gateways.Extractor
	stripper    gateways.DependencyStripper
	repackager  gateways.Repackager
	shim        gateways.ShimInstaller
	locker      gateways.Locker
	remediation *services.RemediationService
	config      RepairOrchestratorConfig
	logger      interfaces.Logger
}

// RepairOrchestratorConfig holds configuration for the orchestrator
type RepairOrchestratorConfig struct {
	AcquireEnabled bool
	ShimEnabled    bool
	StubDir        string
	// OnStage, when set, is called once per stage as soon as it finishes
	OnStage func(entities.StageResult)
}

// RepairRequest describes one repair run
type RepairRequest struct {
	Target  entities.LibraryTarget
	WorkDir string // scratch space; a temporary directory is used when empty
}

// NewRepairOrchestrator creates a new repair orchestrator. acquirer and
// locker may be nil.
func NewRepairOrchestrator(
	inspector gateways.ContainerInspector,
	acquirer gateways.Acquirer,
	extractor gateways.Extractor,
	stripper gateways.DependencyStripper,
	repackager gateways.Repackager,
	shim gateways.ShimInstaller,
	locker gateways.Locker,
	config RepairOrchestratorConfig,
	logger interfaces.Logger,
) *RepairOrchestrator {
	return &RepairOrchestrator{
		inspector:   inspector,
		acquirer:    acquirer,
		extractor:   extractor,
		stripper:    stripper,
		repackager:  repackager,
		shim:        shim,
		locker:      locker,
		remediation: services.NewRemediationService(config.StubDir),
		config:      config,
		logger:      interfaces.OrNoOp(logger),
	}
}

// run carries what earlier stages produced for later ones
type run struct {
	report  *entities.PipelineReport
	target  *entities.LibraryTarget
	workDir string

	halted    string // set by a fatal stage; container stages are skipped
	library   string // working copy being repaired
	acquired  bool
	stripped  *entities.StripResult
	shimReady bool
}

type step struct {
	stage entities.Stage
	fn    func(ctx context.Context, r *run) entities.StageResult
}

// Repair runs the pipeline. It never returns an error and never panics: every
// failure ends up in the report.
func (o *RepairOrchestrator) Repair(ctx context.Context, req RepairRequest) (report *entities.PipelineReport) {
	start := time.Now()
	report = &entities.PipelineReport{
		RunID:     uuid.NewString(),
		Target:    req.Target,
		StartedAt: start,
	}
	r := &run{report: report, target: &report.Target, workDir: req.WorkDir}

	steps := []step{
		{entities.StageInspect, o.inspect},
		{entities.StageAcquire, o.acquire},
		{entities.StageExtract, o.extract},
		{entities.StageStrip, o.strip},
		{entities.StageRepackage, o.repackage},
		{entities.StageShim, o.installShim},
	}
	next := 0

	defer func() {
		if p := recover(); p != nil && next < len(steps) {
			o.logger.Error("repair stage panicked", interfaces.F("stage", steps[next].stage), interfaces.F("panic", p))
			o.record(r, entities.StageResult{
				Stage:   steps[next].stage,
				Status:  entities.StatusFailed,
				Outcome: entities.OutcomeFatal,
				Kind:    string(failures.Internal),
				Detail:  fmt.Sprintf("panic: %v", p),
			})
			o.skipRemaining(r, steps[next+1:], "aborted")
		}
		o.finish(r, start)
	}()

	if o.locker != nil && req.Target.ContainerPath != "" {
		lock, err := o.locker.Lock(req.Target.ContainerPath + ".lock")
		switch {
		case failures.Is(err, failures.AlreadySatisfied):
			o.logger.Warn("repair lock held elsewhere", interfaces.F("container", req.Target.ContainerPath), interfaces.F("error", err))
			report.Warnings = append(report.Warnings, "another repair is running: "+err.Error())
			o.skipRemaining(r, steps, "another repair is running")
			next = len(steps)
			return report
		case err != nil:
			// e.g. the container's directory does not exist; later stages report that
			o.logger.Warn("repair lock unavailable", interfaces.F("container", req.Target.ContainerPath), interfaces.F("error", err))
		default:
			defer func() {
				if err := lock.Unlock(); err != nil {
					o.logger.Warn("failed to release repair lock", interfaces.F("error", err))
				}
			}()
		}
	}

	if r.workDir == "" {
		dir, err := os.MkdirTemp("", "jnirepair-*")
		if err != nil {
			report.Warnings = append(report.Warnings, "no work directory: "+err.Error())
			r.halted = "no work directory"
		} else {
			r.workDir = dir
			defer func() {
				_ = os.RemoveAll(dir)
			}()
		}
	}

	for ; next < len(steps); next++ {
		if err := ctx.Err(); err != nil {
			o.skipRemaining(r, steps[next:], "cancelled")
			next = len(steps)
			break
		}
		st := steps[next]
		began := time.Now()
		res := st.fn(ctx, r)
		res.Stage = st.stage
		res.Duration = time.Since(began)
		o.record(r, res)
	}
	return report
}

func (o *RepairOrchestrator) inspect(ctx context.Context, r *run) entities.StageResult {
	if r.halted != "" {
		return skipped(r.halted)
	}
	t := r.target
	if t.HasInternalPath() {
		if err := o.inspector.VerifyEntry(ctx, t.ContainerPath, t.InternalPath); err != nil {
			return failed(err, entities.OutcomeFatal)
		}
		return succeeded(t.InternalPath)
	}

	res, err := o.inspector.FindLibrary(ctx, t.ContainerPath, t.Name)
	if err != nil {
		return failed(err, entities.OutcomeFatal)
	}
	if res.Ambiguous() {
		msg := fmt.Sprintf("%d entries named %s (%v); using %s", len(res.Candidates), t.Name, res.Candidates, res.InternalPath)
		o.logger.Warn("ambiguous library entry", interfaces.F("candidates", res.Candidates), interfaces.F("selected", res.InternalPath))
		r.report.Warnings = append(r.report.Warnings, msg)
	}
	t.InternalPath = res.InternalPath
	return succeeded(res.InternalPath)
}

func (o *RepairOrchestrator) acquire(ctx context.Context, r *run) entities.StageResult {
	if r.halted != "" {
		return skipped(r.halted)
	}
	if !o.config.AcquireEnabled || o.acquirer == nil {
		return skipped("disabled")
	}

	lib, attempt, err := o.acquirer.Acquire(ctx, r.target, r.workDir)
	if err != nil {
		res := failed(err, entities.OutcomeSkipToNext)
		res.Kind = string(attempt.Outcome)
		if res.Kind == "" {
			res.Kind = string(failures.KindOf(err))
		}
		return res
	}
	r.library = lib.Path
	r.acquired = true
	return succeeded(lib.SourceURL)
}

func (o *RepairOrchestrator) extract(ctx context.Context, r *run) entities.StageResult {
	if r.halted != "" {
		return skipped(r.halted)
	}
	if r.acquired {
		return skipped("replacement acquired")
	}

	path, err := o.extractor.Extract(ctx, r.target.ContainerPath, r.target.InternalPath, r.workDir)
	if err != nil {
		return failed(err, entities.OutcomeFatal)
	}
	r.library = path
	return succeeded(path)
}

func (o *RepairOrchestrator) strip(ctx context.Context, r *run) entities.StageResult {
	if r.halted != "" {
		return skipped(r.halted)
	}

	res, err := o.stripper.Strip(ctx, r.library, r.target.Dependency)
	if res != nil {
		r.report.Attempts = append(r.report.Attempts, res.Attempts...)
	}
	if err != nil {
		return failed(err, entities.OutcomeSkipToNext)
	}
	r.stripped = res
	if res.AlreadyAbsent {
		return succeeded(r.target.Dependency + " already absent")
	}
	last := res.Attempts[len(res.Attempts)-1]
	return succeeded("removed by " + string(last.Strategy))
}

func (o *RepairOrchestrator) repackage(ctx context.Context, r *run) entities.StageResult {
	if r.halted != "" {
		return skipped(r.halted)
	}
	if !r.stripped.Clean() {
		return skipped("library still declares " + r.target.Dependency)
	}
	if r.stripped.AlreadyAbsent && !r.acquired {
		r.report.ContainerClean = true
		return skipped("container already clean")
	}

	if err := o.repackager.Repackage(ctx, r.target.ContainerPath, r.target.InternalPath, r.library); err != nil {
		return failed(err, entities.OutcomeFatal)
	}
	r.report.Repackaged = true
	return succeeded(r.target.InternalPath)
}

func (o *RepairOrchestrator) installShim(ctx context.Context, r *run) entities.StageResult {
	if !o.config.ShimEnabled || o.shim == nil {
		return skipped("disabled")
	}

	inst, err := o.shim.Install(ctx, gateways.ShimRequest{
		Dependency:     r.target.Dependency,
		ExecutablePath: r.target.ExecutablePath,
	})
	if inst != nil {
		r.report.Shim = inst
	}
	if err != nil {
		return failed(err, entities.OutcomeSkipToNext)
	}

	r.shimReady = inst.State == entities.Wrapped
	switch {
	case inst.AlreadyWrapped && inst.StubMethod == entities.StubExisting:
		return skipped("already wrapped")
	case inst.AlreadyWrapped:
		return succeeded("stub " + string(inst.StubMethod) + "; launcher already wrapped")
	case inst.State == entities.Unwrapped:
		return succeeded("stub " + string(inst.StubMethod) + "; no launcher to wrap")
	default:
		return succeeded("stub " + string(inst.StubMethod) + "; launcher wrapped")
	}
}

// record stores a stage result and applies its outcome
func (o *RepairOrchestrator) record(r *run, res entities.StageResult) {
	r.report.Stages = append(r.report.Stages, res)

	switch res.Outcome {
	case entities.OutcomeFatal:
		if r.halted == "" {
			r.halted = string(res.Stage) + " failed"
		}
	case entities.OutcomeSuccess, entities.OutcomeSkipToNext:
	}

	fields := []interfaces.Field{
		interfaces.F("stage", res.Stage),
		interfaces.F("status", res.Label()),
	}
	if res.Detail != "" {
		fields = append(fields, interfaces.F("detail", res.Detail))
	}
	if res.Status == entities.StatusFailed {
		o.logger.Warn("stage finished", fields...)
	} else {
		o.logger.Info("stage finished", fields...)
	}

	if o.config.OnStage != nil {
		o.config.OnStage(res)
	}
}

func (o *RepairOrchestrator) skipRemaining(r *run, steps []step, reason string) {
	for _, st := range steps {
		res := skipped(reason)
		res.Stage = st.stage
		o.record(r, res)
	}
}

func (o *RepairOrchestrator) finish(r *run, start time.Time) {
	rep := r.report
	rep.Remediated = rep.Repackaged || rep.ContainerClean || r.shimReady
	if !rep.Remediated {
		rep.ManualFallback = o.remediation.ManualFallback(rep)
	}
	rep.Duration = time.Since(start)

	o.logger.Info("repair finished",
		interfaces.F("run_id", rep.RunID),
		interfaces.F("remediated", rep.Remediated),
		interfaces.F("duration", rep.Duration))
}

func succeeded(detail string) entities.StageResult {
	return entities.StageResult{Status: entities.StatusSucceeded, Outcome: entities.OutcomeSuccess, Detail: detail}
}

func skipped(reason string) entities.StageResult {
	return entities.StageResult{Status: entities.StatusSkipped, Outcome: entities.OutcomeSkipToNext, Detail: reason}
}

func failed(err error, outcome entities.StageOutcome) entities.StageResult {
	return entities.StageResult{
		Status:  entities.StatusFailed,
		Outcome: outcome,
		Kind:    string(failures.KindOf(err)),
		Detail:  err.Error(),
	}
}
