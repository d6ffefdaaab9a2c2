package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"screensolve/internal/daemonctl"
	"screensolve/internal/ipc"
)

const (
	startWaitTimeout = 10 * time.Second
	stopGracePeriod  = 5 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startDiagnostic bool
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the screensolve daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			cfg := ctx.configValue()
			result, err := daemonctl.EnsureStarted(cfg.SocketPath(), exe, daemonLaunchOptions(ctx, startDiagnostic), startWaitTimeout)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			}
			return nil
		},
	}
	startCmd.Flags().BoolVar(&startDiagnostic, "diagnostic", false, "Write a separate JSON debug log under log_dir/debug")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the screensolve daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.configValue(), stopGracePeriod)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Daemon did not exit in time; killed pid %d\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var restartDiagnostic bool
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the screensolve daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.Restart(ctx.configValue(), exe, daemonLaunchOptions(ctx, restartDiagnostic), stopGracePeriod, startWaitTimeout)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Daemon did not exit in time; killed pid %d\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			fmt.Fprintf(stdout, "Daemon restarted (pid %d)\n", result.Start.PID)
			return nil
		},
	}
	restartCmd.Flags().BoolVar(&restartDiagnostic, "diagnostic", false, "Write a separate JSON debug log under log_dir/debug")

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, overlay, and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.configValue())
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, snap)
			}
			renderStatus(cmd.OutOrStdout(), snap, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print status as JSON")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func renderStatus(out io.Writer, snap *daemonctl.Snapshot, colorize bool) {
	printSection(out, "System Status", colorize)
	for _, line := range snap.SystemChecks {
		fmt.Fprintln(out, renderStatusLine(line.Label, statusKindFromSeverity(line.Severity), line.Detail, colorize))
	}
	fmt.Fprintln(out)

	printSection(out, "Dependencies", colorize)
	for _, line := range dependencyLines(snap.Daemon.Dependencies, snap.DependencySummary, colorize) {
		fmt.Fprintln(out, line)
	}

	if !snap.Daemon.Running {
		return
	}
	fmt.Fprintln(out)
	printSection(out, "Worker", colorize)
	fmt.Fprintln(out, renderStatusLine("Renderer", statusInfo, fmt.Sprintf("%s (alive: %s)", titleCase(snap.Daemon.WorkerState), yesNo(snap.Daemon.WorkerAlive)), colorize))
	fmt.Fprintln(out)

	printSection(out, "Last Run", colorize)
	if run := snap.Daemon.LastRun; run != nil {
		fmt.Fprint(out, renderTable(
			[]string{"Run", "Surface", "Outcome", "Detail", "Duration"},
			[][]string{{shortID(run.ID), run.Surface, titleCase(run.Outcome), runDetail(run), (time.Duration(run.DurationMS) * time.Millisecond).String()}},
			5,
		))
		fmt.Fprintln(out)
	} else {
		fmt.Fprintln(out, "No runs yet")
	}
	fmt.Fprintln(out)

	printSection(out, "Overlays", colorize)
	if len(snap.Daemon.Overlays) == 0 {
		fmt.Fprintln(out, "No overlay agents installed")
		return
	}
	rows := make([][]string, 0, len(snap.Daemon.Overlays))
	for _, o := range snap.Daemon.Overlays {
		kind := o.Kind
		if kind == "" {
			kind = "-"
		}
		rows = append(rows, []string{string(o.Surface), titleCase(o.Phase), titleCase(kind)})
	}
	fmt.Fprint(out, renderTable([]string{"Surface", "Phase", "Content"}, rows))
	fmt.Fprintln(out)
}

func runDetail(run *ipc.RunSummary) string {
	switch run.Outcome {
	case "result":
		return fmt.Sprintf("%s (%d%%)", run.Answer, int(run.Confidence*100+0.5))
	case "failure":
		return run.Message
	default:
		return "-"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func printSection(out io.Writer, title string, colorize bool) {
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(out, line)
	}
}

func dependencyLines(list []ipc.DependencyStatus, summary daemonctl.DependencySummary, colorize bool) []string {
	lines := make([]string, 0, len(list)+2)
	lines = append(lines, renderStatusLine("Summary", statusKindFromSeverity(summary.Severity), summary.Detail, colorize))
	var missing []string
	for _, dep := range list {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		lines = append(lines, renderStatusLine(dep.Name, statusKindFromSeverity(daemonctl.DependencySeverity(dep)), detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(missing, ", ")+" (check the [capture] section)", colorize))
	}
	return lines
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, diagnostic bool) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{
		ConfigPath: ctx.configPath(),
		LogLevel:   strings.TrimSpace(ctx.logLevel),
		Diagnostic: diagnostic,
	}
}
