package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	orchestrators "github.com/ochairo/jnirepair/internal/domain-orchestrators"
	"github.com/ochairo/jnirepair/internal/domain/entities"
	ifgateways "github.com/ochairo/jnirepair/internal/domain/interfaces/gateways"
	"github.com/ochairo/jnirepair/internal/domain/services"
	"github.com/ochairo/jnirepair/internal/external-adapters/lock"
)

type repairOptions struct {
	Target     targetOptions
	Timeouts   timeouts
	NoAcquire  bool
	NoShim     bool
	JSONOutput string
}

func newRepairCommand() *cobra.Command {
	opts := repairOptions{}
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Run the full repair pipeline",
		Long: `Run Inspect, Acquire, Extract, Strip, Repackage and Shim in order.

Exits 0 when the library is expected to load (container repackaged, already
clean, or launcher shimmed) and 1 otherwise, after printing manual steps.`,
		Example: `  jnirepair repair --lib-version 0.65.3
  jnirepair repair --container ./signal-cli/lib/libsignal-client-0.65.3.jar --executable ./signal-cli/bin/signal-cli
  jnirepair repair --profile custom --profiles-dir ./profiles --json-output report.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRepair(cmd, opts)
		},
	}
	addTargetFlags(cmd, &opts.Target)
	addTimeoutFlags(cmd, &opts.Timeouts)
	cmd.Flags().BoolVar(&opts.NoAcquire, "no-acquire", false, "Do not try to download a prebuilt replacement")
	cmd.Flags().BoolVar(&opts.NoShim, "no-shim", false, "Do not install the runtime shim")
	cmd.Flags().StringVar(&opts.JSONOutput, "json-output", "", "Optional JSON file for the detailed report")
	return cmd
}

func runRepair(cmd *cobra.Command, opts repairOptions) error {
	ctx := cmd.Context()
	logger := newLogger()

	profile, err := loadProfile(ctx, cmd, opts.Target)
	if err != nil {
		return err
	}
	opts.Timeouts.apply(cmd, profile)
	if resolveBool(cmd, opts.NoAcquire, "no_acquire", "no-acquire") {
		profile.Acquire.Enabled = false
	}
	if resolveBool(cmd, opts.NoShim, "no_shim", "no-shim") {
		profile.Shim.Enabled = false
	}
	logProfile(logger, profile)

	target, err := buildTarget(profile, resolveString(cmd, opts.Target.Entry, "entry", "entry"))
	if err != nil {
		return err
	}

	a, err := newAdapters(profile, logger)
	if err != nil {
		return err
	}
	var acquirer ifgateways.Acquirer
	if a.downloader != nil {
		acquirer = a.downloader
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nRepairing %s in %s\n", target.Name, target.ContainerPath)

	orchestrator := orchestrators.NewRepairOrchestrator(
		a.inspector, acquirer, a.extractor, a.stripper, a.repackager, a.shim,
		lock.NewFileLocker(),
		orchestrators.RepairOrchestratorConfig{
			AcquireEnabled: acquirer != nil,
			ShimEnabled:    profile.Shim.Enabled,
			StubDir:        profile.Shim.StubDir,
			OnStage: func(res entities.StageResult) {
				printStage(out, res)
			},
		},
		logger,
	)

	report := orchestrator.Repair(ctx, orchestrators.RepairRequest{Target: target, WorkDir: profile.WorkDir})

	fmt.Fprintln(out)
	fmt.Fprint(out, services.NewRemediationService(profile.Shim.StubDir).Summarize(report))

	if path := resolveString(cmd, opts.JSONOutput, "json_output", "json-output"); path != "" {
		if err := writeReport(path, report); err != nil {
			return err
		}
		fmt.Fprintf(out, "Report written to %s\n", path)
	}

	if !report.Remediated {
		return errNotRemediated
	}
	return nil
}

func printStage(out io.Writer, res entities.StageResult) {
	icon := "✅"
	switch res.Status {
	case entities.StatusSkipped:
		icon = "⏭️ "
	case entities.StatusFailed:
		icon = "❌"
	}
	line := fmt.Sprintf("  %s %s: %s", icon, res.Stage, res.Label())
	if res.Status != entities.StatusSkipped && res.Detail != "" {
		line += " - " + res.Detail
	}
	fmt.Fprintln(out, line)
}

func writeReport(path string, report *entities.PipelineReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}
