package gateways

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ochairo/jnirepair/internal/domain/entities"
	"github.com/ochairo/jnirepair/internal/domain/failures"
	"github.com/ochairo/jnirepair/internal/domain/interfaces"
)

// DefaultCompilers are probed in order when building a stand-in library
var DefaultCompilers = []string{"clang", "gcc", "cc"}

// StubConfig configures stand-in library synthesis
type StubConfig struct {
	StubDir    string
	Compilers  []string
	SearchDirs []string
	Timeout    time.Duration
}

// Stub is a stand-in library ready to be preloaded
type Stub struct {
	Path   string
	Method entities.StubMethod
	Source string
}

// StubBuilder produces an empty shared object whose soname matches a missing
// dependency, so the dynamic loader is satisfied without the real library.
type StubBuilder struct {
	runner    *ToolRunner
	inspector *ELFInspector
	config    StubConfig
	logger    interfaces.Logger
}

// NewStubBuilder creates a new stub builder
func NewStubBuilder(runner *ToolRunner, inspector *ELFInspector, config StubConfig, logger interfaces.Logger) *StubBuilder {
	if len(config.Compilers) == 0 {
		config.Compilers = DefaultCompilers
	}
	if config.Timeout == 0 {
		config.Timeout = time.Minute
	}
	return &StubBuilder{
		runner:    runner,
		inspector: inspector,
		config:    config,
		logger:    interfaces.OrNoOp(logger),
	}
}

// Ensure returns a stand-in for dep, reusing one already in the stub
// directory, compiling one, or linking an identically named system library.
func (b *StubBuilder) Ensure(ctx context.Context, dep string) (*Stub, error) {
	if dep == "" || strings.ContainsRune(dep, os.PathSeparator) {
		return nil, failures.New(failures.Internal, fmt.Sprintf("invalid dependency name %q", dep), nil)
	}
	if b.config.StubDir == "" {
		return nil, failures.New(failures.Internal, "no stub directory configured", nil)
	}

	stubPath := filepath.Join(b.config.StubDir, dep)
	if b.usable(stubPath, dep) {
		return &Stub{Path: stubPath, Method: entities.StubExisting}, nil
	}
	if fileExists(stubPath) {
		b.logger.Warn("replacing unusable stub", interfaces.F("path", stubPath))
		if err := os.Remove(stubPath); err != nil {
			return nil, fmt.Errorf("failed to remove stale stub: %w", err)
		}
	}

	if err := os.MkdirAll(b.config.StubDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create stub directory: %w", err)
	}

	tried, err := b.compile(ctx, stubPath, dep)
	if err == nil {
		return &Stub{Path: stubPath, Method: entities.StubCompiled}, nil
	}
	b.logger.Debug("stub compilation unavailable", interfaces.F("reason", err))

	for _, dir := range b.config.SearchDirs {
		if !isDirectory(dir) {
			continue
		}
		candidate := filepath.Join(dir, dep)
		if filepath.Clean(candidate) == filepath.Clean(stubPath) {
			continue
		}
		info, statErr := os.Stat(candidate)
		if statErr != nil || !info.Mode().IsRegular() {
			continue
		}
		if err := os.Symlink(candidate, stubPath); err != nil {
			return nil, fmt.Errorf("failed to link %s: %w", candidate, err)
		}
		return &Stub{Path: stubPath, Method: entities.StubSymlinked, Source: candidate}, nil
	}

	return nil, failures.New(failures.ToolUnavailable,
		fmt.Sprintf("cannot provide %s: no working compiler (tried %s) and no copy in %s",
			dep, strings.Join(tried, ", "), strings.Join(b.config.SearchDirs, ", ")), err)
}

// usable reports whether path already serves as a stand-in for dep
func (b *StubBuilder) usable(path, dep string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	if info.Mode()&os.ModeSymlink != 0 {
		_, err := os.Stat(path)
		return err == nil
	}
	lib, err := b.inspector.Inspect(path)
	if err != nil {
		return false
	}
	return lib.Soname == dep
}

// compile builds an empty shared object with the first compiler that works
func (b *StubBuilder) compile(ctx context.Context, stubPath, dep string) ([]string, error) {
	srcDir, err := os.MkdirTemp("", "jnirepair-stub-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	//nolint:errcheck // Best-effort cleanup of scratch directory
	defer os.RemoveAll(srcDir)

	src := filepath.Join(srcDir, "stub.c")
	body := fmt.Sprintf("/* stand-in for %s */\nvoid jnirepair_stub(void) {}\n", dep)
	if err := os.WriteFile(src, []byte(body), 0600); err != nil {
		return nil, fmt.Errorf("failed to write stub source: %w", err)
	}

	var tried []string
	var lastErr error
	for _, cc := range b.config.Compilers {
		tried = append(tried, cc)
		ccPath, ok := b.runner.Lookup(cc)
		if !ok {
			lastErr = fmt.Errorf("%s not installed", cc)
			continue
		}

		res := b.runner.Run(ctx, ToolInvocation{
			Tool:        ccPath,
			Args:        []string{"-shared", "-fPIC", "-nostdlib", "-Wl,-soname," + dep, "-o", stubPath, src},
			Timeout:     b.config.Timeout,
			Description: "build stand-in " + dep,
		})
		if !res.Success {
			lastErr = fmt.Errorf("%s: %s", cc, res.Summary())
			_ = os.Remove(stubPath)
			continue
		}

		// trust the produced file, not the exit code
		lib, err := b.inspector.Inspect(stubPath)
		if err != nil || lib.Soname != dep {
			lastErr = fmt.Errorf("%s produced no library with soname %s", cc, dep)
			_ = os.Remove(stubPath)
			continue
		}

		b.logger.Info("compiled stand-in library", interfaces.F("compiler", cc), interfaces.F("path", stubPath))
		return tried, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no compilers configured")
	}
	return tried, lastErr
}
