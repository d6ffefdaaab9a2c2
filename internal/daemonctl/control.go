// Package daemonctl starts, stops and inspects screensolved on behalf of the
// CLI.
package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"screensolve/internal/config"
	"screensolve/internal/ipc"
)

const pollInterval = 200 * time.Millisecond

// ErrDaemonNotRunning indicates daemon IPC is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	Diagnostic bool
	LogLevel   string
}

// StartState describes what EnsureStarted did.
type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	StopAcknowledged bool
	ForcedKill       bool
	PID              int
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// Launch spawns `<executable> daemon` in its own session and returns without
// waiting for it.
func Launch(executablePath string, opts LaunchOptions) error {
	exe := strings.TrimSpace(executablePath)
	if exe == "" {
		return errors.New("launch daemon: empty executable path")
	}
	proc := exec.Command(exe, opts.args()...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

func (o LaunchOptions) args() []string {
	args := []string{"daemon"}
	if v := strings.TrimSpace(o.ConfigPath); v != "" {
		args = append(args, "--config", v)
	}
	if v := strings.TrimSpace(o.LogLevel); v != "" {
		args = append(args, "--log-level", v)
	}
	if o.Diagnostic {
		args = append(args, "--diagnostic")
	}
	return args
}

// poll calls check every pollInterval until it reports done, returns an
// error, or timeout elapses. It reports whether check finished in time.
func poll(timeout time.Duration, check func() (bool, error)) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		done, err := check()
		if done || err != nil {
			return done, err
		}
		if time.Now().Add(pollInterval).After(deadline) {
			return false, nil
		}
		time.Sleep(pollInterval)
	}
}

// WaitForClient dials socketPath until the daemon answers or timeout elapses.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	var (
		client  *ipc.Client
		lastErr error
	)
	ok, _ := poll(timeout, func() (bool, error) {
		client, lastErr = ipc.Dial(socketPath)
		return lastErr == nil, nil
	})
	if ok {
		return client, nil
	}
	if lastErr == nil {
		lastErr = errors.New("timed out")
	}
	return nil, fmt.Errorf("daemon did not come up within %s: %w", timeout, lastErr)
}

// EnsureStarted launches the daemon unless one already answers on socketPath.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	result := StartResult{State: StartStateAlreadyRunning}
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if err := Launch(executablePath, opts); err != nil {
			return StartResult{}, err
		}
		if client, err = WaitForClient(socketPath, waitTimeout); err != nil {
			return StartResult{}, err
		}
		result.State = StartStateStarted
	}
	defer client.Close()

	status, err := client.Status()
	switch {
	case err != nil:
		return StartResult{}, err
	case !status.Running:
		return StartResult{}, errors.New("daemon answered but reports it is not running")
	}
	result.PID = status.PID
	return result, nil
}

// WaitForShutdown waits until nothing is listening on socketPath.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	gone, _ := poll(timeout, func() (bool, error) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			return isDaemonUnavailable(err), nil
		}
		_ = client.Close()
		return false, nil
	})
	if !gone {
		return fmt.Errorf("daemon still answering after %s", timeout)
	}
	return nil
}

// ProcessInfo reports whether the daemon answers on socketPath and, if so,
// its pid.
func ProcessInfo(socketPath string) (alive bool, pid int, err error) {
	client, err := ipc.Dial(socketPath)
	if isDaemonUnavailable(err) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	defer client.Close()
	status, err := client.Status()
	if err != nil {
		return true, 0, err
	}
	return true, status.PID, nil
}

// ReadPID returns the pid recorded in path, or zero when absent.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("read pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("pid file %s does not hold a pid", path)
	}
	return pid, nil
}

// ForceKillProcess terminates the daemon, escalating from SIGTERM to SIGKILL,
// and clears its pid, lock and socket files. fallbackPID is used when the pid
// file is missing.
func ForceKillProcess(cfg *config.Config, fallbackPID int) (int, error) {
	pid, err := ReadPID(cfg.PIDPath())
	if err != nil {
		return 0, err
	}
	if pid == 0 {
		pid = fallbackPID
	}
	switch {
	case pid <= 0:
		return 0, fmt.Errorf("no daemon pid known (checked %s)", cfg.PIDPath())
	case pid == os.Getpid():
		return 0, fmt.Errorf("pid %d is this process", pid)
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return 0, fmt.Errorf("signal daemon %d: %w", pid, err)
	}
	exited, _ := poll(time.Second, func() (bool, error) {
		return syscall.Kill(pid, 0) != nil, nil
	})
	if !exited {
		if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			return 0, fmt.Errorf("kill daemon %d: %w", pid, err)
		}
	}
	return pid, removeRuntimeFiles(cfg)
}

func removeRuntimeFiles(cfg *config.Config) error {
	var errs []error
	for _, path := range []string{cfg.PIDPath(), cfg.LockPath(), cfg.SocketPath()} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StopAndTerminate asks the daemon to stop and force-kills it if the socket
// is still answering after gracePeriod.
func StopAndTerminate(cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	client, err := ipc.Dial(cfg.SocketPath())
	if isDaemonUnavailable(err) {
		return StopResult{}, ErrDaemonNotRunning
	}
	if err != nil {
		return StopResult{}, err
	}

	var result StopResult
	if status, err := client.Status(); err == nil {
		result.PID = status.PID
	}
	resp, err := client.Stop()
	_ = client.Close()
	if err != nil {
		return result, err
	}
	result.StopAcknowledged = resp.Stopped

	if WaitForShutdown(cfg.SocketPath(), gracePeriod) == nil {
		return result, nil
	}
	pid, err := ForceKillProcess(cfg, result.PID)
	if err != nil {
		return result, fmt.Errorf("force stop: %w", err)
	}
	result.ForcedKill, result.PID = true, pid
	return result, nil
}

// Restart stops the daemon when it is running and then starts a fresh one.
func Restart(cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	var result RestartResult
	stop, err := StopAndTerminate(cfg, stopGracePeriod)
	switch {
	case err == nil:
		result.WasRunning, result.Stop = true, stop
	case !errors.Is(err, ErrDaemonNotRunning):
		return RestartResult{}, err
	}
	if result.Start, err = EnsureStarted(cfg.SocketPath(), executablePath, opts, startWaitTimeout); err != nil {
		return RestartResult{}, err
	}
	return result, nil
}

func isDaemonUnavailable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
