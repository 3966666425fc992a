package main

import (
	"context"
	"runtime"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ochairo/jnirepair/internal/domain/entities"
	"github.com/ochairo/jnirepair/internal/domain/interfaces"
	"github.com/ochairo/jnirepair/internal/domain/interfaces/repositories"
	"github.com/ochairo/jnirepair/internal/external-adapters/yaml"
)

// targetOptions are the flags shared by every command that works on a
// library: each one overrides the matching profile field when set
type targetOptions struct {
	Version      string
	Architecture string
	Container    string
	Entry        string
	Library      string
	Dependency   string
	Executable   string
	WorkDir      string
}

func addTargetFlags(cmd *cobra.Command, opts *targetOptions) {
	cmd.Flags().StringVar(&opts.Version, "lib-version", "", "Library version (fills {version} in the container path and URL templates)")
	cmd.Flags().StringVar(&opts.Architecture, "arch", "", "Target architecture (default: profile, then host)")
	cmd.Flags().StringVar(&opts.Container, "container", "", "Path to the JAR that bundles the library")
	cmd.Flags().StringVar(&opts.Entry, "entry", "", "Internal path of the library inside the container, if already known")
	cmd.Flags().StringVar(&opts.Library, "library", "", "Base name of the native library")
	cmd.Flags().StringVar(&opts.Dependency, "dependency", "", "Dynamic dependency to remove")
	cmd.Flags().StringVar(&opts.Executable, "executable", "", "Launcher to wrap with the runtime shim")
	cmd.Flags().StringVar(&opts.WorkDir, "work-dir", "", "Scratch directory (default: a temporary directory)")
}

// loadProfile reads the selected profile and applies flag, environment and
// config file overrides on top of it
func loadProfile(ctx context.Context, cmd *cobra.Command, opts targetOptions) (*entities.Profile, error) {
	profile, err := newProfileRepository().GetProfile(ctx, viper.GetString("profile"))
	if err != nil {
		return nil, err
	}

	profile.Version = override(profile.Version, resolveString(cmd, opts.Version, "version", "lib-version"))
	profile.Architecture = override(profile.Architecture, resolveString(cmd, opts.Architecture, "architecture", "arch"))
	profile.Container = override(profile.Container, resolveString(cmd, opts.Container, "container", "container"))
	profile.Library = override(profile.Library, resolveString(cmd, opts.Library, "library", "library"))
	profile.Dependency = override(profile.Dependency, resolveString(cmd, opts.Dependency, "dependency", "dependency"))
	profile.Executable = override(profile.Executable, resolveString(cmd, opts.Executable, "executable", "executable"))
	profile.WorkDir = override(profile.WorkDir, resolveString(cmd, opts.WorkDir, "work_dir", "work-dir"))
	return profile, nil
}

func newProfileRepository() repositories.ProfileRepository {
	return yaml.NewProfileRepository(viper.GetString("profiles_dir"), yaml.NewProfileParser(yaml.DetectPlatform()), newLogger())
}

func override(current, value string) string {
	if value != "" {
		return value
	}
	return current
}

// buildTarget turns a resolved profile into the library the pipeline repairs
func buildTarget(profile *entities.Profile, entry string) (entities.LibraryTarget, error) {
	arch := entities.ParseArchitecture(profile.Architecture)
	if profile.Architecture == "" {
		arch = entities.ParseArchitecture(runtime.GOARCH)
	}
	if arch == entities.UnknownArch {
		return entities.LibraryTarget{}, invalidArgument("unsupported architecture " + profile.Architecture)
	}

	container := profile.Container
	if strings.Contains(container, "{version}") {
		if profile.Version == "" {
			return entities.LibraryTarget{}, invalidArgument("container path " + container + " needs --lib-version")
		}
		container = strings.ReplaceAll(container, "{version}", profile.Version)
	}

	return entities.LibraryTarget{
		Name:           profile.Library,
		Version:        profile.Version,
		Architecture:   arch,
		ContainerPath:  container,
		InternalPath:   entry,
		Dependency:     profile.Dependency,
		ExecutablePath: profile.Executable,
	}, nil
}

func invalidArgument(msg string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(msg)
}

// timeouts are the command-line overrides for profile timeouts
type timeouts struct {
	Acquire time.Duration
	Tool    time.Duration
}

func addTimeoutFlags(cmd *cobra.Command, t *timeouts) {
	cmd.Flags().DurationVar(&t.Acquire, "acquire-timeout", 0, "Timeout for downloading a replacement (default: profile)")
	cmd.Flags().DurationVar(&t.Tool, "tool-timeout", 0, "Timeout for each external tool run (default: profile)")
}

func (t timeouts) apply(cmd *cobra.Command, profile *entities.Profile) {
	if d := resolveDuration(cmd, t.Acquire, "acquire_timeout", "acquire-timeout"); d > 0 {
		profile.Acquire.Timeout = d
	}
	if d := resolveDuration(cmd, t.Tool, "tool_timeout", "tool-timeout"); d > 0 {
		profile.Strip.Timeout = d
		profile.Shim.Timeout = d
	}
}

func logProfile(logger interfaces.Logger, profile *entities.Profile) {
	logger.Debug("using profile",
		interfaces.F("profile", profile.Name),
		interfaces.F("library", profile.Library),
		interfaces.F("dependency", profile.Dependency),
		interfaces.F("container", profile.Container))
}
