package gateways

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ochairo/jnirepair/internal/domain/interfaces"
)

// ToolRunner runs external utilities (patchelf, compilers) under a timeout
type ToolRunner struct {
	defaultTimeout time.Duration
	logger         interfaces.Logger
}

// NewToolRunner creates a new tool runner
func NewToolRunner(logger interfaces.Logger) *ToolRunner {
	return &ToolRunner{
		defaultTimeout: 2 * time.Minute,
		logger:         interfaces.OrNoOp(logger),
	}
}

// ToolInvocation describes one external command
type ToolInvocation struct {
	Tool        string
	Args        []string
	WorkingDir  string
	Env         map[string]string
	Timeout     time.Duration
	Description string
}

// ToolResult contains the result of a tool invocation
type ToolResult struct {
	Success  bool
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	TimedOut bool
	Error    error
}

// Lookup resolves tool on PATH and checks it is executable. A missing tool is
// not an error for callers: they degrade to the next strategy.
func (r *ToolRunner) Lookup(tool string) (string, bool) {
	path, err := exec.LookPath(tool)
	if err != nil {
		return "", false
	}
	if err := unix.Access(path, unix.X_OK); err != nil {
		r.logger.Warn("tool found but not executable", interfaces.F("tool", tool), interfaces.F("error", err))
		return "", false
	}
	return path, true
}

// Run executes the tool and captures its output
func (r *ToolRunner) Run(ctx context.Context, inv ToolInvocation) *ToolResult {
	startTime := time.Now()
	result := &ToolResult{}

	timeout := inv.Timeout
	if timeout == 0 {
		timeout = r.defaultTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	//nolint:gosec // G204: tools are resolved from a fixed, configured list
	cmd := exec.CommandContext(execCtx, inv.Tool, inv.Args...)
	cmd.WaitDelay = time.Second
	if inv.WorkingDir != "" {
		cmd.Dir = inv.WorkingDir
	}
	if len(inv.Env) > 0 {
		env := os.Environ()
		for key, value := range inv.Env {
			env = append(env, fmt.Sprintf("%s=%s", key, value))
		}
		cmd.Env = env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("running tool",
		interfaces.F("tool", inv.Tool),
		interfaces.F("args", inv.Args),
		interfaces.F("description", inv.Description))

	err := cmd.Run()
	result.Duration = time.Since(startTime)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err != nil {
		result.Error = err
		var exitErr *exec.ExitError
		switch {
		case errors.Is(execCtx.Err(), context.DeadlineExceeded):
			result.TimedOut = true
			result.Error = fmt.Errorf("%s timed out after %v", inv.Tool, timeout)
			result.ExitCode = -1
		case errors.As(err, &exitErr):
			result.ExitCode = exitErr.ExitCode()
		default:
			result.ExitCode = -1
		}
		return result
	}

	result.Success = true
	result.ExitCode = 0
	return result
}

// Summary is a one-line description of the result for reports
func (res *ToolResult) Summary() string {
	if res.Success {
		return "exit 0"
	}
	if res.TimedOut {
		return res.Error.Error()
	}
	msg := fmt.Sprintf("exit %d", res.ExitCode)
	if s := firstLine(res.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
