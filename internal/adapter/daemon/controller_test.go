package daemon

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"juno-ai/internal/domain"
)

func testPIDFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "daemon.pid")
}

// fakeDaemonBinary writes a script that ignores its arguments and sleeps,
// standing in for the real `juno-ai daemon run` child.
func fakeDaemonBinary(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-daemon")
	script := "#!/bin/sh\nsleep 60\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

// spawnAndReap runs a short-lived child and waits for it, returning its pid
// as a string. Once reaped the pid is dead and free to use as a stale entry.
func spawnAndReap(t *testing.T) string {
	t.Helper()
	cmd := exec.Command("true")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	require.NoError(t, cmd.Wait())
	return strconv.Itoa(pid)
}

func TestControllerRunningWithoutPIDFile(t *testing.T) {
	c := NewController(testPIDFile(t), nil)
	running, err := c.Running(context.Background())
	require.NoError(t, err)
	assert.False(t, running)
	assert.Equal(t, 0, c.PID())
}

func TestControllerWriteAndClearPID(t *testing.T) {
	pidFile := testPIDFile(t)
	c := NewController(pidFile, nil)

	// WritePID records the current process, which is certainly alive.
	require.NoError(t, c.WritePID())
	assert.Equal(t, os.Getpid(), c.PID())

	running, err := c.Running(context.Background())
	require.NoError(t, err)
	assert.True(t, running)

	c.ClearPID()
	running, err = c.Running(context.Background())
	require.NoError(t, err)
	assert.False(t, running)
	_, statErr := os.Stat(pidFile)
	assert.True(t, os.IsNotExist(statErr))
}

func TestControllerCleansStalePIDFile(t *testing.T) {
	pidFile := testPIDFile(t)
	// A pid from a process we know is gone: spawn and reap a child.
	cmdPID := spawnAndReap(t)
	require.NoError(t, os.WriteFile(pidFile, []byte(cmdPID), 0600))

	c := NewController(pidFile, nil)
	running, err := c.Running(context.Background())
	require.NoError(t, err)
	assert.False(t, running)

	_, statErr := os.Stat(pidFile)
	assert.True(t, os.IsNotExist(statErr), "stale pid file should be removed")
}

func TestControllerIgnoresCorruptPIDFile(t *testing.T) {
	pidFile := testPIDFile(t)
	require.NoError(t, os.WriteFile(pidFile, []byte("not-a-pid"), 0600))

	c := NewController(pidFile, nil)
	running, err := c.Running(context.Background())
	require.NoError(t, err)
	assert.False(t, running)
}

func TestControllerStartStop(t *testing.T) {
	pidFile := testPIDFile(t)
	c := NewController(pidFile, nil, WithBinary(fakeDaemonBinary(t)))
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	t.Cleanup(func() { _ = c.Stop(ctx) })

	running, err := c.Running(ctx)
	require.NoError(t, err)
	assert.True(t, running)
	assert.NotZero(t, c.PID())

	// Starting twice is a user-facing validation error.
	err = c.Start(ctx)
	assert.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, c.Stop(ctx))
	running, err = c.Running(ctx)
	require.NoError(t, err)
	assert.False(t, running)

	// Stopping a stopped daemon is a no-op.
	assert.NoError(t, c.Stop(ctx))
}

func TestControllerStartDetectsImmediateExit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crashing-daemon")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 1\n"), 0755))

	c := NewController(testPIDFile(t), nil, WithBinary(path))
	err := c.Start(context.Background())
	require.ErrorIs(t, err, domain.ErrTransport)

	running, rErr := c.Running(context.Background())
	require.NoError(t, rErr)
	assert.False(t, running)
}
