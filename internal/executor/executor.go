// Package executor provides the command-execution abstraction used for
// remediation commands, unit-manager queries, and maintenance procedures.
//
// # Security Model
//
// Commands are executed via "sh -c" to support shell features like pipes
// and variable expansion. Configuration files therefore have the same trust
// level as Makefiles - they can execute arbitrary code. Only use
// configuration files from trusted sources.
package executor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/streamops/sentinel/internal/constants"
)

// Result captures the outcome of one command invocation
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	// TimedOut is set when the command was killed by its deadline
	TimedOut bool
}

// Ok reports whether the command exited zero
func (r Result) Ok() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// Executor runs shell commands. Implementations must honor the context
// deadline: an expired deadline kills the command and returns a Result
// with TimedOut set rather than hanging.
type Executor interface {
	Run(ctx context.Context, cmd string, env map[string]string) (Result, error)
}

// ShellExecutor implements Executor using os/exec via "sh -c"
type ShellExecutor struct{}

// NewShellExecutor creates a new ShellExecutor
func NewShellExecutor() *ShellExecutor {
	return &ShellExecutor{}
}

// Run executes cmd, capturing stdout and stderr. The command inherits the
// process environment plus env. A non-zero exit code is reported in the
// Result, not as an error; err is reserved for failures to run at all.
func (e *ShellExecutor) Run(ctx context.Context, cmd string, env map[string]string) (Result, error) {
	start := time.Now()

	c := exec.CommandContext(ctx, "sh", "-c", cmd)

	c.Env = os.Environ()
	for k, v := range env {
		c.Env = append(c.Env, k+"="+v)
	}

	// Own process group so a timeout kill takes children with it
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		pgid, err := syscall.Getpgid(c.Process.Pid)
		if err != nil {
			return c.Process.Kill()
		}
		return syscall.Kill(-pgid, syscall.SIGKILL)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()

	result := Result{
		Stdout:   truncate(stdout.String()),
		Stderr:   truncate(stderr.String()),
		Duration: time.Since(start),
	}

	if ctx.Err() != nil {
		result.TimedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)
		result.ExitCode = -1
		return result, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		// Command could not be started (sh missing, fork failure)
		result.ExitCode = -1
		return result, err
	}

	return result, nil
}

func truncate(s string) string {
	if len(s) > constants.MaxCommandOutput {
		return s[:constants.MaxCommandOutput] + "..."
	}
	return s
}
