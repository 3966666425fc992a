package gateways

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ochairo/jnirepair/internal/domain/entities"
	"github.com/ochairo/jnirepair/internal/domain/failures"
	"github.com/ochairo/jnirepair/internal/domain/interfaces"
)

// StripperConfig configures the strategy chain
type StripperConfig struct {
	Strategies []entities.Strategy
	Timeout    time.Duration
}

// DependencyStripper removes one declared dynamic dependency from a library
// by running an ordered chain of strategies. After every strategy the
// library's dynamic section is re-read; that post-check decides success, not
// the tool's exit status.
type DependencyStripper struct {
	runner     *ToolRunner
	inspector  *ELFInspector
	strategies []entities.Strategy
	timeout    time.Duration
	logger     interfaces.Logger
}

// NewDependencyStripper creates a new dependency stripper
func NewDependencyStripper(runner *ToolRunner, inspector *ELFInspector, config StripperConfig, logger interfaces.Logger) *DependencyStripper {
	strategies := config.Strategies
	if len(strategies) == 0 {
		strategies = entities.DefaultStrategies
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = time.Minute
	}
	return &DependencyStripper{
		runner:     runner,
		inspector:  inspector,
		strategies: strategies,
		timeout:    timeout,
		logger:     interfaces.OrNoOp(logger),
	}
}

// Strip removes dependency from the library at libraryPath
func (s *DependencyStripper) Strip(ctx context.Context, libraryPath, dependency string) (*entities.StripResult, error) {
	result := &entities.StripResult{
		LibraryPath: libraryPath,
		Dependency:  dependency,
	}

	present, err := s.inspector.HasDependency(libraryPath, dependency)
	if err != nil {
		return result, failures.New(failures.Internal, "cannot read dynamic section of "+libraryPath, err)
	}
	if !present {
		result.AlreadyAbsent = true
		s.logger.Info("dependency already absent", interfaces.F("library", libraryPath), interfaces.F("dependency", dependency))
		return result, nil
	}

	var unavailable []string
	for _, strategy := range s.strategies {
		if err := ctx.Err(); err != nil {
			return result, failures.New(failures.Internal, "stripping cancelled", err)
		}

		attempt, ok := s.apply(ctx, strategy, libraryPath, dependency)
		if !ok {
			unavailable = append(unavailable, string(strategy))
			continue
		}
		attempt.DependencyPresentBefore = present

		after, err := s.inspector.HasDependency(libraryPath, dependency)
		if err != nil {
			// the tool may have left the file unreadable; keep going
			after = true
			attempt.Detail += "; post-check failed: " + err.Error()
		}
		attempt.DependencyPresentAfter = after
		result.Attempts = append(result.Attempts, attempt)

		s.logger.Info("strategy finished",
			interfaces.F("strategy", strategy),
			interfaces.F("applied", attempt.Applied),
			interfaces.F("dependency_present", after),
			interfaces.F("detail", attempt.Detail))

		if !after {
			result.Removed = true
			return result, nil
		}
		present = after
	}

	if len(result.Attempts) == 0 {
		return result, failures.New(failures.ToolUnavailable,
			fmt.Sprintf("no patching strategy available (tried %s)", strings.Join(unavailable, ", ")), nil)
	}
	return result, failures.New(failures.Internal,
		fmt.Sprintf("%s still declared after %d strategies", dependency, len(result.Attempts)), nil)
}

// apply runs one strategy. ok is false when the strategy cannot run on this
// system at all.
func (s *DependencyStripper) apply(ctx context.Context, strategy entities.Strategy, libraryPath, dependency string) (entities.PatchAttempt, bool) {
	attempt := entities.PatchAttempt{Strategy: strategy}

	var tool string
	var args []string
	switch strategy {
	case entities.StrategyBuiltin:
		if err := removeNeeded(libraryPath, dependency); err != nil {
			attempt.Detail = err.Error()
			return attempt, true
		}
		attempt.Applied = true
		attempt.Detail = "dynamic section rewritten"
		return attempt, true
	case entities.StrategyPatchelf:
		tool, args = "patchelf", []string{"--remove-needed", dependency, libraryPath}
	case entities.StrategyElfCleaner:
		tool, args = "termux-elf-cleaner", []string{libraryPath}
	default:
		s.logger.Warn("unknown strip strategy", interfaces.F("strategy", strategy))
		return attempt, false
	}

	path, found := s.runner.Lookup(tool)
	if !found {
		s.logger.Debug("strategy tool not installed", interfaces.F("tool", tool))
		return attempt, false
	}

	res := s.runner.Run(ctx, ToolInvocation{
		Tool:        path,
		Args:        args,
		Timeout:     s.timeout,
		Description: string(strategy),
	})
	attempt.Applied = res.Success
	attempt.Detail = res.Summary()
	return attempt, true
}
