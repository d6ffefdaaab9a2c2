package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"screensolve/internal/config"
	"screensolve/internal/deps"
	"screensolve/internal/solveapi"
	"screensolve/internal/solver"
)

const checkTimeout = 5 * time.Second

// CheckSolver verifies that the solving endpoint answers its health route.
func CheckSolver(ctx context.Context, endpoint string) Result {
	const name = "Solver"

	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	client := solver.New(endpoint, solver.WithTimeout(checkTimeout))
	health, err := client.Health(ctx)
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	if !health.ModelConfigured {
		return Result{Name: name, Detail: fmt.Sprintf("%s reachable, model not configured", endpoint)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (status %s)", endpoint, health.Status)}
}

// CheckOllama verifies that the Ollama server is reachable. An empty host
// falls back to OLLAMA_HOST.
func CheckOllama(ctx context.Context, host string) Result {
	const name = "Ollama"

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	client, err := solveapi.OllamaClient(host)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if err := client.Heartbeat(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	version, err := client.Version(checkCtx)
	if err != nil || version == "" {
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable (v" + version + ")"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the desktop tools named by the capture config.
// Both the daemon and the CLI status command use this list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "Surface resolver",
			CommandLine: cfg.Capture.ActiveSurfaceCommand,
			Description: "Finds the active window",
		},
		{
			Name:        "Screen capture",
			CommandLine: cfg.Capture.Command,
			Description: "Captures the active window as PNG",
		},
	}
	return deps.CheckBinaries(requirements)
}

// summarizeError produces a human-readable summary for health check failures.
func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, solver.ErrTimeout) {
		return "health check timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (service unreachable)"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Sprintf("unreachable (%v)", opErr.Err)
	}
	return err.Error()
}
