package services

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/ochairo/jnirepair/internal/domain/entities"
)

// Verdict is the overall result of a repair run
type Verdict string

// Repair verdicts
const (
	VerdictRepackaged     Verdict = "repackaged"
	VerdictContainerClean Verdict = "container_clean"
	VerdictShimmed        Verdict = "shimmed"
	VerdictUnremediated   Verdict = "unremediated"
)

// manualWorkDir is where manual fallback commands stage the library
const manualWorkDir = "/tmp/jnirepair-manual"

// Remediation explains a report to a person
type Remediation struct {
	Verdict       Verdict
	ExpectedToRun bool
	ManualSteps   []string
}

// Message returns a one-line statement of the verdict
func (r *Remediation) Message(executable string) string {
	name := "the library"
	if executable != "" {
		name = filepath.Base(executable)
	}
	switch r.Verdict {
	case VerdictRepackaged:
		return fmt.Sprintf("remediated: container repackaged with a clean library; %s is expected to run", name)
	case VerdictContainerClean:
		return fmt.Sprintf("remediated: container library does not need the dependency; %s is expected to run", name)
	case VerdictShimmed:
		return fmt.Sprintf("remediated: launcher preloads a stand-in library; %s is expected to run", name)
	default:
		return fmt.Sprintf("NOT remediated: %s is not expected to run until the manual steps below succeed", name)
	}
}

// RemediationService interprets pipeline reports
type RemediationService struct {
	stubDir string
}

// NewRemediationService creates a new remediation service. stubDir is where
// manual instructions place a stand-in library.
func NewRemediationService(stubDir string) *RemediationService {
	return &RemediationService{stubDir: stubDir}
}

// Assess decides the verdict for a report and the manual steps to offer
func (s *RemediationService) Assess(report *entities.PipelineReport) *Remediation {
	r := &Remediation{Verdict: VerdictUnremediated}
	switch {
	case report.Repackaged:
		r.Verdict = VerdictRepackaged
	case report.ContainerClean:
		r.Verdict = VerdictContainerClean
	case shimInPlace(report):
		r.Verdict = VerdictShimmed
	}
	r.ExpectedToRun = r.Verdict != VerdictUnremediated
	if !r.ExpectedToRun {
		r.ManualSteps = s.ManualFallback(report)
	}
	return r
}

// ManualFallback lists shell commands that perform by hand whatever the
// pipeline could not finish
func (s *RemediationService) ManualFallback(report *entities.PipelineReport) []string {
	t := report.Target
	var steps []string

	if !report.Repackaged && !report.ContainerClean && t.InternalPath != "" && t.ContainerPath != "" {
		lib := path.Join(manualWorkDir, t.InternalPath)
		steps = append(steps,
			fmt.Sprintf("unzip -o %s %s -d %s", quote(t.ContainerPath), quote(t.InternalPath), manualWorkDir),
			fmt.Sprintf("patchelf --remove-needed %s %s", quote(t.Dependency), quote(lib)),
			fmt.Sprintf("(cd %s && zip %s %s)", manualWorkDir, quote(t.ContainerPath), quote(t.InternalPath)),
		)
	}

	if !shimInPlace(report) {
		stub := s.stubPath(report)
		steps = append(steps,
			fmt.Sprintf("printf 'void stub(void) {}\\n' > /tmp/stub.c && cc -shared -fPIC -nostdlib -Wl,-soname,%s -o %s /tmp/stub.c",
				quote(t.Dependency), quote(stub)))
		if t.ExecutablePath != "" {
			real := t.ExecutablePath + entities.RealSuffix
			steps = append(steps,
				fmt.Sprintf("mv %s %s", quote(t.ExecutablePath), quote(real)),
				fmt.Sprintf("printf '#!/bin/sh\\nLD_PRELOAD=%%s exec %%s \"$@\"\\n' %s %s > %s && chmod +x %s",
					quote(quote(stub)), quote(quote(real)), quote(t.ExecutablePath), quote(t.ExecutablePath)),
			)
		} else {
			steps = append(steps, fmt.Sprintf("export LD_PRELOAD=%s", quote(stub)))
		}
	}
	return steps
}

// Summarize renders the multi-line status block printed after a run
func (s *RemediationService) Summarize(report *entities.PipelineReport) string {
	var b strings.Builder
	t := report.Target

	fmt.Fprintf(&b, "Repair of %s", t.Name)
	if t.Version != "" {
		fmt.Fprintf(&b, " %s", t.Version)
	}
	if t.Architecture != entities.UnknownArch {
		fmt.Fprintf(&b, " (%s)", t.Architecture)
	}
	if report.RunID != "" {
		fmt.Fprintf(&b, " [run %s]", report.RunID)
	}
	b.WriteString("\n")

	for _, st := range report.Stages {
		fmt.Fprintf(&b, "  %-10s %s\n", st.Stage, st.Label())
	}

	if len(report.Warnings) > 0 {
		b.WriteString("Warnings:\n")
		for _, w := range report.Warnings {
			fmt.Fprintf(&b, "  - %s\n", w)
		}
	}

	r := s.Assess(report)
	fmt.Fprintf(&b, "Result: %s\n", r.Message(t.ExecutablePath))
	if report.Shim != nil && report.Shim.State == entities.Wrapped {
		fmt.Fprintf(&b, "Launcher %s preloads %s (original at %s)\n",
			report.Shim.WrapperPath, report.Shim.StubPath, report.Shim.RealBinaryPath)
	}
	if len(r.ManualSteps) > 0 {
		b.WriteString("Manual fallback:\n")
		for _, step := range r.ManualSteps {
			fmt.Fprintf(&b, "  %s\n", step)
		}
	}
	return b.String()
}

func (s *RemediationService) stubPath(report *entities.PipelineReport) string {
	if report.Shim != nil && report.Shim.StubPath != "" {
		return report.Shim.StubPath
	}
	dir := s.stubDir
	if dir == "" {
		dir = "/usr/local/lib"
	}
	return filepath.Join(dir, report.Target.Dependency)
}

func shimInPlace(report *entities.PipelineReport) bool {
	return report.Shim != nil && report.Shim.State == entities.Wrapped
}

func quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$`!*?[]{}()<>|&;#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
