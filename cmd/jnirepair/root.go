package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ochairo/jnirepair/internal/domain/interfaces"
	zlog "github.com/ochairo/jnirepair/internal/external-adapters/zerolog"
)

// version is set at build time via ldflags.
var version = "dev"

const envPrefix = "JNIREPAIR"

// errNotRemediated makes a finished but unsuccessful repair exit with status 1
var errNotRemediated = errors.New("library not remediated")

type rootConfig struct {
	ConfigFile  string
	LogLevel    string
	LogFormat   string
	Profile     string
	ProfilesDir string
}

// Execute runs the CLI and exits with a status derived from the error
func Execute() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errNotRemediated) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(exitCodeForError(err))
	}
}

func newRootCommand() *cobra.Command {
	cfg := rootConfig{}
	cmd := &cobra.Command{
		Use:   "jnirepair",
		Short: "Repair native libraries bundled in Java archives that declare an unavailable dependency",
		Long: `jnirepair makes a JNI library shipped inside a JAR loadable on a host that lacks
one of its dynamic dependencies (e.g. libsignal_jni.so needing libgcc_s.so.1 on
Termux). It tries a prebuilt replacement, strips the dependency and repackages
the JAR, and installs a launcher that preloads a stand-in library as a safety net.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initConfig(cfg.ConfigFile); err != nil {
				return err
			}
			setupLogging(cmd.ErrOrStderr(), viper.GetString("log_level"), viper.GetString("log_format"))
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&cfg.ConfigFile, "config", "", "Config file path")
	cmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&cfg.LogFormat, "log-format", "console", "Log format (console, json)")
	cmd.PersistentFlags().StringVar(&cfg.Profile, "profile", "libsignal", "Repair profile name")
	cmd.PersistentFlags().StringVar(&cfg.ProfilesDir, "profiles-dir", "", "Directory with additional YAML profiles")
	_ = viper.BindPFlag("log_level", cmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", cmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("profile", cmd.PersistentFlags().Lookup("profile"))
	_ = viper.BindPFlag("profiles_dir", cmd.PersistentFlags().Lookup("profiles-dir"))

	cmd.AddCommand(newRepairCommand())
	cmd.AddCommand(newInspectCommand())
	cmd.AddCommand(newStripCommand())
	cmd.AddCommand(newShimCommand())
	cmd.AddCommand(newListCommand())
	return cmd
}

func initConfig(configFile string) error {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("failed to read config file").
				WithCause(err)
		}
		return nil
	}

	viper.SetConfigName("jnirepair")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/jnirepair")
	// a missing default config file is fine
	_ = viper.ReadInConfig()
	return nil
}

// appLogger is replaced once flags and config are resolved
var appLogger interfaces.Logger = zlog.New(os.Stderr, "info", true)

func setupLogging(out io.Writer, level, format string) {
	appLogger = zlog.New(out, level, format != "json")
}

// newLogger hands the configured logger to the domain layer
func newLogger() interfaces.Logger {
	return appLogger
}

func exitCodeForError(err error) int {
	if errors.Is(err, errNotRemediated) {
		return 1
	}
	switch codeOf(err) {
	case errbuilder.CodeInvalidArgument, errbuilder.CodeAlreadyExists:
		return 2
	case errbuilder.CodeNotFound:
		return 3
	case errbuilder.CodeFailedPrecondition:
		return 4
	case errbuilder.CodeInternal:
		return 5
	default:
		return 1
	}
}

// codeOf finds the coded error anywhere in err's tree, including behind
// classified failures that wrap several errors
func codeOf(err error) errbuilder.ErrCode {
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) {
		return errbuilder.CodeOf(builder)
	}
	return errbuilder.CodeOf(err)
}

func errorMessage(err error) string {
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) && strings.TrimSpace(builder.Msg) != "" {
		return builder.Msg
	}
	return err.Error()
}

func resolveString(cmd *cobra.Command, value string, key string, flagName string) string {
	if cmd == nil {
		if value != "" {
			return value
		}
		return viper.GetString(key)
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	if v := viper.GetString(key); v != "" {
		return v
	}
	return value
}

func resolveStrings(cmd *cobra.Command, values []string, key string, flagName string) []string {
	if cmd == nil {
		if len(values) > 0 {
			return values
		}
		return viper.GetStringSlice(key)
	}
	if flagChanged(cmd, flagName) {
		return values
	}
	if v := viper.GetStringSlice(key); len(v) > 0 {
		return v
	}
	return values
}

func resolveBool(cmd *cobra.Command, value bool, key string, flagName string) bool {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	if viper.IsSet(key) {
		return viper.GetBool(key)
	}
	return value
}

func resolveDuration(cmd *cobra.Command, value time.Duration, key string, flagName string) time.Duration {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	if viper.IsSet(key) {
		return viper.GetDuration(key)
	}
	return value
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil || strings.TrimSpace(name) == "" {
		return false
	}
	if flag := cmd.Flags().Lookup(name); flag != nil {
		return flag.Changed
	}
	if flag := cmd.PersistentFlags().Lookup(name); flag != nil {
		return flag.Changed
	}
	return false
}
