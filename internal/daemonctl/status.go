package daemonctl

import (
	"context"
	"fmt"
	"time"

	"screensolve/internal/config"
	"screensolve/internal/deps"
	"screensolve/internal/ipc"
	"screensolve/internal/preflight"
)

// Severity levels used by status lines.
const (
	SeverityOK    = "ok"
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)

// StatusLine is one labelled row of `screensolve status`.
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

// DependencySummary aggregates dependency availability.
type DependencySummary struct {
	Total           int    `json:"total"`
	Available       int    `json:"available"`
	MissingRequired int    `json:"missing_required"`
	MissingOptional int    `json:"missing_optional"`
	Severity        string `json:"severity"`
	Detail          string `json:"detail"`
}

// Snapshot is everything `screensolve status` renders.
type Snapshot struct {
	Daemon            ipc.StatusResponse `json:"daemon"`
	SystemChecks      []StatusLine       `json:"system_checks"`
	DependencySummary DependencySummary  `json:"dependency_summary"`
}

// BuildStatusSnapshot collects daemon status over IPC and fills in
// dependency and solver checks locally when the daemon is down.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not available")
	}
	snap := &Snapshot{}
	if client, err := ipc.Dial(cfg.SocketPath()); err == nil {
		if resp, statusErr := client.Status(); statusErr == nil {
			snap.Daemon = *resp
		}
		_ = client.Close()
	}
	if len(snap.Daemon.Dependencies) == 0 {
		snap.Daemon.Dependencies = ResolveDependencies(cfg)
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	snap.SystemChecks = BuildSystemChecks(checkCtx, cfg, snap.Daemon)
	snap.DependencySummary = BuildDependencySummary(snap.Daemon.Dependencies)
	return snap, nil
}

// ResolveDependencies returns current dependency availability for status output.
func ResolveDependencies(cfg *config.Config) []ipc.DependencyStatus {
	checks := preflight.CheckSystemDeps(cfg)
	statuses := make([]ipc.DependencyStatus, 0, len(checks))
	for _, check := range checks {
		statuses = append(statuses, toDependencyStatus(check))
	}
	return statuses
}

func toDependencyStatus(s deps.Status) ipc.DependencyStatus {
	return ipc.DependencyStatus{
		Name:        s.Name,
		Command:     s.Command,
		Description: s.Description,
		Optional:    s.Optional,
		Available:   s.Available,
		Detail:      s.Detail,
	}
}

// DependencySeverity maps a dependency to a status severity.
func DependencySeverity(dep ipc.DependencyStatus) string {
	switch {
	case dep.Available:
		return SeverityOK
	case dep.Optional:
		return SeverityWarn
	default:
		return SeverityError
	}
}

// BuildSystemChecks resolves status lines that combine runtime state and
// config checks.
func BuildSystemChecks(ctx context.Context, cfg *config.Config, daemon ipc.StatusResponse) []StatusLine {
	lines := make([]StatusLine, 0, 5)
	if daemon.Running {
		detail := fmt.Sprintf("Running (pid %d)", daemon.PID)
		if daemon.Busy {
			detail += ", solving"
		}
		lines = append(lines, StatusLine{Label: "Daemon", Severity: SeverityOK, Detail: detail})
	} else {
		lines = append(lines, StatusLine{Label: "Daemon", Severity: SeverityWarn, Detail: "Not running (run `screensolve start`)"})
	}

	solverCheck := preflight.CheckSolver(ctx, cfg.Solver.URL)
	if solverCheck.Passed {
		lines = append(lines, StatusLine{Label: "Solver", Severity: SeverityOK, Detail: solverCheck.Detail})
	} else {
		lines = append(lines, StatusLine{Label: "Solver", Severity: SeverityError, Detail: solverCheck.Detail})
	}

	switch {
	case !daemon.Running:
		lines = append(lines, StatusLine{Label: "Device Trigger", Severity: SeverityInfo, Detail: "Inactive (daemon not running)"})
	case daemon.TriggerMonitor:
		lines = append(lines, StatusLine{Label: "Device Trigger", Severity: SeverityOK, Detail: "Udev monitoring active"})
	case cfg.Trigger.UdevSubsystem != "":
		lines = append(lines, StatusLine{Label: "Device Trigger", Severity: SeverityWarn, Detail: "Udev monitor unavailable (use `screensolve trigger`)"})
	default:
		lines = append(lines, StatusLine{Label: "Device Trigger", Severity: SeverityInfo, Detail: "Not configured"})
	}

	if daemon.ViewerAddress != "" {
		lines = append(lines, StatusLine{Label: "Viewer", Severity: SeverityOK, Detail: fmt.Sprintf("http://%s/overlay (%d connected)", daemon.ViewerAddress, daemon.ViewerClients)})
	} else if cfg.Overlay.ViewerEnabled && daemon.Running {
		lines = append(lines, StatusLine{Label: "Viewer", Severity: SeverityWarn, Detail: "Enabled but not listening"})
	}

	if cfg.Notifications.NtfyTopic != "" {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: SeverityOK, Detail: "Configured"})
	} else {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: SeverityInfo, Detail: "Not configured"})
	}
	return lines
}

// BuildDependencySummary computes aggregate dependency readiness.
func BuildDependencySummary(list []ipc.DependencyStatus) DependencySummary {
	if len(list) == 0 {
		return DependencySummary{Severity: SeverityInfo, Detail: "No dependency checks configured"}
	}
	summary := DependencySummary{Total: len(list)}
	for _, dep := range list {
		switch {
		case dep.Available:
			summary.Available++
		case dep.Optional:
			summary.MissingOptional++
		default:
			summary.MissingRequired++
		}
	}
	summary.Severity = SeverityOK
	switch {
	case summary.MissingRequired > 0:
		summary.Severity = SeverityError
	case summary.MissingOptional > 0:
		summary.Severity = SeverityWarn
	}
	summary.Detail = fmt.Sprintf("%d/%d available", summary.Available, summary.Total)
	if summary.Available < summary.Total {
		summary.Detail += fmt.Sprintf(" (missing: %d required, %d optional)", summary.MissingRequired, summary.MissingOptional)
	}
	return summary
}
