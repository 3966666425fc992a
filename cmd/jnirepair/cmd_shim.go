package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ochairo/jnirepair/internal/domain/entities"
	ifgateways "github.com/ochairo/jnirepair/internal/domain/interfaces/gateways"
)

type shimOptions struct {
	Dependency string
	Executable string
	StubDir    string
	Timeouts   timeouts
}

func newShimCommand() *cobra.Command {
	opts := shimOptions{}
	cmd := &cobra.Command{
		Use:   "shim",
		Short: "Provide a stand-in for the dependency and wrap the launcher to preload it",
		Example: `  jnirepair shim --executable $PREFIX/opt/signal-cli/bin/signal-cli
  jnirepair shim --stub-dir ~/.local/lib`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShim(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Dependency, "dependency", "", "Dependency to provide (default: profile)")
	cmd.Flags().StringVar(&opts.Executable, "executable", "", "Launcher to wrap (default: profile; empty installs only the stub)")
	cmd.Flags().StringVar(&opts.StubDir, "stub-dir", "", "Directory for the stand-in library (default: profile, then platform)")
	addTimeoutFlags(cmd, &opts.Timeouts)
	return cmd
}

func runShim(cmd *cobra.Command, opts shimOptions) error {
	ctx := cmd.Context()
	logger := newLogger()

	profile, err := loadProfile(ctx, cmd, targetOptions{Dependency: opts.Dependency, Executable: opts.Executable})
	if err != nil {
		return err
	}
	opts.Timeouts.apply(cmd, profile)
	profile.Shim.StubDir = override(profile.Shim.StubDir, resolveString(cmd, opts.StubDir, "stub_dir", "stub-dir"))
	profile.Acquire.Enabled = false

	a, err := newAdapters(profile, logger)
	if err != nil {
		return err
	}

	inst, err := a.shim.Install(ctx, ifgateways.ShimRequest{
		Dependency:     profile.Dependency,
		ExecutablePath: profile.Executable,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✅ stub %s (%s)\n", inst.StubPath, inst.StubMethod)
	switch {
	case inst.State != entities.Wrapped:
		fmt.Fprintf(out, "ℹ️  no launcher configured; export LD_PRELOAD=%s before starting the program\n", inst.StubPath)
	case inst.AlreadyWrapped:
		fmt.Fprintf(out, "✅ %s already preloads the stub\n", inst.WrapperPath)
	default:
		fmt.Fprintf(out, "✅ wrapped %s (original at %s)\n", inst.WrapperPath, inst.RealBinaryPath)
	}
	return nil
}
