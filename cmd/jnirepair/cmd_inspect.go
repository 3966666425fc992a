package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newInspectCommand() *cobra.Command {
	opts := targetOptions{}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show where the library sits in its container and what it links against",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd, opts)
		},
	}
	addTargetFlags(cmd, &opts)
	return cmd
}

func runInspect(cmd *cobra.Command, opts targetOptions) error {
	ctx := cmd.Context()
	logger := newLogger()

	profile, err := loadProfile(ctx, cmd, opts)
	if err != nil {
		return err
	}
	target, err := buildTarget(profile, resolveString(cmd, opts.Entry, "entry", "entry"))
	if err != nil {
		return err
	}
	a, err := newAdapters(profile, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Container:  %s\n", target.ContainerPath)

	if target.HasInternalPath() {
		if err := a.inspector.VerifyEntry(ctx, target.ContainerPath, target.InternalPath); err != nil {
			return err
		}
	} else {
		res, err := a.inspector.FindLibrary(ctx, target.ContainerPath, target.Name)
		if err != nil {
			return err
		}
		target.InternalPath = res.InternalPath
		if res.Ambiguous() {
			fmt.Fprintf(out, "Candidates: %s\n", strings.Join(res.Candidates, ", "))
		}
	}
	fmt.Fprintf(out, "Entry:      %s\n", target.InternalPath)

	workDir, err := os.MkdirTemp("", "jnirepair-inspect-*")
	if err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(workDir)
	}()

	libPath, err := a.extractor.Extract(ctx, target.ContainerPath, target.InternalPath, workDir)
	if err != nil {
		return err
	}
	info, err := a.elf.Inspect(libPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Soname:     %s\n", orNone(info.Soname))
	fmt.Fprintf(out, "Machine:    %v (%v)\n", info.Machine, info.Class)
	fmt.Fprintf(out, "Needed:     %s\n", orNone(strings.Join(info.Needed, ", ")))
	if info.Declares(target.Dependency) {
		fmt.Fprintf(out, "⚠️  declares %s\n", target.Dependency)
	} else {
		fmt.Fprintf(out, "✅ does not declare %s\n", target.Dependency)
	}
	if want := target.Architecture.Machine(); info.Machine != want {
		fmt.Fprintf(out, "⚠️  built for %v, host profile expects %v\n", info.Machine, want)
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
