package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"juno-ai/internal/domain"
)

// Controller manages the background agent process through a pid file. Start
// spawns a detached `juno-ai daemon run`; Stop signals it; Running probes
// the recorded pid.
type Controller struct {
	pidFile string
	binary  string
	logger  *slog.Logger
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithBinary overrides the executable Start spawns (tests).
func WithBinary(path string) ControllerOption {
	return func(c *Controller) { c.binary = path }
}

// NewController creates a daemon controller around pidFile.
func NewController(pidFile string, logger *slog.Logger, opts ...ControllerOption) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{pidFile: pidFile, logger: logger}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start spawns the daemon process detached and records its pid. Starting an
// already-running daemon is an error surfaced to the user, not a crash.
func (c *Controller) Start(ctx context.Context) error {
	const op = "daemon.Controller.Start"

	if running, _ := c.Running(ctx); running {
		return domain.NewFlowError(op, domain.ErrValidation, "daemon is already running")
	}

	binary := c.binary
	if binary == "" {
		exe, err := os.Executable()
		if err != nil {
			return domain.WrapOp(op, fmt.Errorf("resolve executable: %w", err))
		}
		binary = exe
	}

	cmd := exec.Command(binary, "daemon", "run")
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return domain.NewFlowError(op, domain.ErrTransport, "failed to start daemon: "+err.Error())
	}

	if err := c.writePID(cmd.Process.Pid); err != nil {
		_ = cmd.Process.Kill()
		return domain.WrapOp(op, err)
	}
	// Reap the child when it exits so it doesn't linger as a zombie.
	go func() { _ = cmd.Wait() }()

	// Give it a moment to crash on startup problems.
	time.Sleep(300 * time.Millisecond)
	if running, _ := c.Running(ctx); !running {
		_ = os.Remove(c.pidFile)
		return domain.NewFlowError(op, domain.ErrTransport, "daemon exited immediately, check the logs")
	}

	c.logger.Info("daemon started", "pid", cmd.Process.Pid)
	return nil
}

// Stop sends SIGTERM to the recorded pid and removes the pid file. Stopping
// a stopped daemon is a no-op.
func (c *Controller) Stop(ctx context.Context) error {
	const op = "daemon.Controller.Stop"

	pid, err := c.readPID()
	if err != nil {
		return domain.WrapOp(op, err)
	}
	if pid == 0 {
		return nil
	}

	proc, err := os.FindProcess(pid)
	if err == nil {
		if err := proc.Signal(syscall.SIGTERM); err != nil && !strings.Contains(err.Error(), "already finished") {
			c.logger.Warn("signal daemon failed", "pid", pid, "error", err)
		}
	}

	// Wait briefly for a clean exit before declaring it stopped.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !pidAlive(pid) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	if err := os.Remove(c.pidFile); err != nil && !os.IsNotExist(err) {
		return domain.WrapOp(op, fmt.Errorf("remove pid file: %w", err))
	}
	c.logger.Info("daemon stopped", "pid", pid)
	return nil
}

// Running reports whether the recorded pid is alive. A stale pid file (dead
// process) is cleaned up on sight.
func (c *Controller) Running(ctx context.Context) (bool, error) {
	pid, err := c.readPID()
	if err != nil {
		return false, err
	}
	if pid == 0 {
		return false, nil
	}
	if !pidAlive(pid) {
		_ = os.Remove(c.pidFile)
		return false, nil
	}
	return true, nil
}

// PID returns the recorded daemon pid, 0 when none.
func (c *Controller) PID() int {
	pid, _ := c.readPID()
	return pid
}

// WritePID records the current process as the daemon. Called by the daemon
// run loop itself.
func (c *Controller) WritePID() error {
	return c.writePID(os.Getpid())
}

// ClearPID removes the pid file. Called by the daemon run loop on exit.
func (c *Controller) ClearPID() {
	_ = os.Remove(c.pidFile)
}

func (c *Controller) writePID(pid int) error {
	if err := os.MkdirAll(filepath.Dir(c.pidFile), 0700); err != nil {
		return fmt.Errorf("create pid dir: %w", err)
	}
	if err := os.WriteFile(c.pidFile, []byte(strconv.Itoa(pid)), 0600); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

func (c *Controller) readPID() (int, error) {
	data, err := os.ReadFile(c.pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		// Corrupt pid file, treat as not running.
		return 0, nil
	}
	return pid, nil
}

// pidAlive probes a pid with signal 0.
func pidAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

var _ domain.DaemonController = (*Controller)(nil)
