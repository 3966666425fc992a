package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type stripOptions struct {
	Dependency string
	Strategies []string
	Timeouts   timeouts
}

func newStripCommand() *cobra.Command {
	opts := stripOptions{}
	cmd := &cobra.Command{
		Use:   "strip <library.so>",
		Short: "Remove the dependency from an extracted library in place",
		Example: `  jnirepair strip ./libsignal_jni.so
  jnirepair strip --dependency libgcc_s.so.1 --strategies builtin ./libsignal_jni.so`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStrip(cmd, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.Dependency, "dependency", "", "Dynamic dependency to remove (default: profile)")
	cmd.Flags().StringSliceVar(&opts.Strategies, "strategies", nil, "Strategies to try in order: patchelf, termux-elf-cleaner, builtin")
	addTimeoutFlags(cmd, &opts.Timeouts)
	return cmd
}

func runStrip(cmd *cobra.Command, opts stripOptions, libraryPath string) error {
	ctx := cmd.Context()
	logger := newLogger()

	profile, err := loadProfile(ctx, cmd, targetOptions{Dependency: opts.Dependency})
	if err != nil {
		return err
	}
	opts.Timeouts.apply(cmd, profile)
	if names := resolveStrings(cmd, opts.Strategies, "strategies", "strategies"); len(names) > 0 {
		strategies, err := parseStrategies(names)
		if err != nil {
			return err
		}
		profile.Strip.Strategies = strategies
	}
	profile.Acquire.Enabled = false

	a, err := newAdapters(profile, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	result, err := a.stripper.Strip(ctx, libraryPath, profile.Dependency)
	if result != nil {
		for _, attempt := range result.Attempts {
			status := "❌"
			if !attempt.DependencyPresentAfter {
				status = "✅"
			}
			fmt.Fprintf(out, "  %s %s: %s\n", status, attempt.Strategy, orNone(attempt.Detail))
		}
	}
	if err != nil {
		return err
	}

	if result.AlreadyAbsent {
		fmt.Fprintf(out, "✅ %s does not declare %s\n", libraryPath, profile.Dependency)
	} else {
		fmt.Fprintf(out, "✅ removed %s from %s\n", profile.Dependency, libraryPath)
	}
	return nil
}
