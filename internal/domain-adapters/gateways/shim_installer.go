package gateways

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ochairo/jnirepair/internal/domain/entities"
	"github.com/ochairo/jnirepair/internal/domain/failures"
	"github.com/ochairo/jnirepair/internal/domain/interfaces"
	"github.com/ochairo/jnirepair/internal/domain/interfaces/gateways"
)

// DefaultShell interprets generated launchers when none is configured
const DefaultShell = "/bin/sh"

// ShimInstaller provides a stand-in library and wraps the launcher so the
// stand-in is preloaded. A launcher is wrapped iff "<exe>.real" exists.
type ShimInstaller struct {
	stubs  *StubBuilder
	shell  string
	logger interfaces.Logger
}

// NewShimInstaller creates a new shim installer
func NewShimInstaller(stubs *StubBuilder, shell string, logger interfaces.Logger) *ShimInstaller {
	if shell == "" {
		shell = DefaultShell
	}
	return &ShimInstaller{
		stubs:  stubs,
		shell:  shell,
		logger: interfaces.OrNoOp(logger),
	}
}

// Install ensures the stand-in exists, then wraps the launcher unless it is
// already wrapped. With no executable only the stand-in is provided.
func (s *ShimInstaller) Install(ctx context.Context, req gateways.ShimRequest) (*entities.ShimInstallation, error) {
	stub, err := s.stubs.Ensure(ctx, req.Dependency)
	if err != nil {
		return nil, err
	}

	inst := &entities.ShimInstallation{
		StubPath:   stub.Path,
		StubMethod: stub.Method,
		StubSource: stub.Source,
		State:      entities.Unwrapped,
	}
	if req.ExecutablePath == "" {
		return inst, nil
	}

	if err := s.Wrap(req.ExecutablePath, stub.Path, inst); err != nil {
		return inst, err
	}
	return inst, nil
}

// State reports whether exe has been wrapped
func (s *ShimInstaller) State(exe string) entities.WrapState {
	if fileExists(exe + entities.RealSuffix) {
		return entities.Wrapped
	}
	return entities.Unwrapped
}

// Wrap moves exe aside and writes a launcher in its place. Wrapping is one
// way; an already wrapped launcher is left untouched.
func (s *ShimInstaller) Wrap(exe, stubPath string, inst *entities.ShimInstallation) error {
	real := exe + entities.RealSuffix
	inst.WrapperPath = exe
	inst.RealBinaryPath = real

	if s.State(exe) == entities.Wrapped {
		inst.AlreadyWrapped = true
		inst.State = entities.Wrapped
		s.logger.Debug("launcher already wrapped", interfaces.F("path", exe))
		return nil
	}

	info, err := os.Stat(exe)
	if err != nil {
		if isNotExist(err) {
			return failures.New(failures.NotFound, "executable "+exe+" does not exist", err)
		}
		return fmt.Errorf("failed to stat executable: %w", err)
	}
	if info.IsDir() {
		return failures.New(failures.NotFound, exe+" is a directory", nil)
	}

	absStub, err := filepath.Abs(stubPath)
	if err != nil {
		return fmt.Errorf("failed to resolve stub path: %w", err)
	}
	absReal, err := filepath.Abs(real)
	if err != nil {
		return fmt.Errorf("failed to resolve launcher path: %w", err)
	}

	if err := os.Rename(exe, real); err != nil {
		return fmt.Errorf("failed to move launcher aside: %w", err)
	}

	if err := s.writeWrapper(exe, absStub, absReal, info.Mode().Perm()); err != nil {
		if rbErr := os.Rename(real, exe); rbErr != nil {
			s.logger.Error("failed to restore launcher", interfaces.F("path", exe), interfaces.F("error", rbErr))
		}
		return fmt.Errorf("failed to write launcher wrapper: %w", err)
	}

	inst.State = entities.Wrapped
	s.logger.Info("launcher wrapped", interfaces.F("path", exe), interfaces.F("preload", absStub))
	return nil
}

func (s *ShimInstaller) writeWrapper(path, stubPath, realPath string, perm os.FileMode) error {
	script := RenderWrapper(s.shell, stubPath, realPath)

	tmp := path + ".jnirepair-tmp"
	//nolint:gosec // G306: launcher must stay executable with the original mode
	if err := os.WriteFile(tmp, []byte(script), perm|0100); err != nil {
		return err
	}
	if err := os.Chmod(tmp, perm|0100); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// RenderWrapper returns the launcher script that preloads stubPath ahead of
// any existing LD_PRELOAD and runs realPath with the original arguments.
func RenderWrapper(shell, stubPath, realPath string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#!%s\n", shell)
	fmt.Fprintf(&b, "# generated by jnirepair; original launcher is %s\n", filepath.Base(realPath))
	fmt.Fprintf(&b, "LD_PRELOAD=%s\"${LD_PRELOAD:+:$LD_PRELOAD}\"\n", shellQuote(stubPath))
	b.WriteString("export LD_PRELOAD\n")
	fmt.Fprintf(&b, "exec %s \"$@\"\n", shellQuote(realPath))
	return b.String()
}

// shellQuote wraps s in single quotes for /bin/sh
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
