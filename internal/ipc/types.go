package ipc

import (
	"time"

	"screensolve/internal/daemon"
	"screensolve/internal/pipeline"
)

// ServiceName is the RPC service name.
const ServiceName = "ScreenSolve"

// TriggerRequest dispatches a command to the pipeline.
type TriggerRequest struct {
	// Command defaults to the configured trigger command.
	Command string `json:"command"`
	// Wait blocks until the run finishes and returns its summary.
	Wait bool `json:"wait"`
}

// RunSummary is the wire form of a finished run.
type RunSummary struct {
	ID            string    `json:"id"`
	Surface       string    `json:"surface"`
	Outcome       string    `json:"outcome"`
	Answer        string    `json:"answer,omitempty"`
	Confidence    float64   `json:"confidence"`
	Message       string    `json:"message,omitempty"`
	DeliveryError string    `json:"delivery_error,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	DurationMS    int64     `json:"duration_ms"`
}

// TriggerResponse reports whether the trigger was accepted.
type TriggerResponse struct {
	Accepted bool        `json:"accepted"`
	Busy     bool        `json:"busy"`
	Message  string      `json:"message"`
	Run      *RunSummary `json:"run,omitempty"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse mirrors daemon.Status.
type StatusResponse struct {
	Running        bool               `json:"running"`
	PID            int                `json:"pid"`
	LockPath       string             `json:"lock_path"`
	SocketPath     string             `json:"socket_path"`
	LogPath        string             `json:"log_path"`
	SolverURL      string             `json:"solver_url"`
	Command        string             `json:"command"`
	Busy           bool               `json:"busy"`
	WorkerState    string             `json:"worker_state"`
	WorkerAlive    bool               `json:"worker_alive"`
	Overlays       []OverlayStatus    `json:"overlays"`
	ViewerAddress  string             `json:"viewer_address"`
	ViewerClients  int                `json:"viewer_clients"`
	TriggerMonitor bool               `json:"trigger_monitor"`
	LastRun        *RunSummary        `json:"last_run"`
	Dependencies   []DependencyStatus `json:"dependencies"`
}

// OverlayStatus describes the widget on one surface.
type OverlayStatus = daemon.OverlayStatus

// DependencyStatus describes availability of an external tool.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail"`
}

// DismissRequest closes the widget on Surface, or on every surface when empty.
type DismissRequest struct {
	Surface string `json:"surface"`
}

// DismissResponse reports how many widgets were dismissed.
type DismissResponse struct {
	Dismissed int `json:"dismissed"`
}

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// TestNotificationRequest sends a test notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the result of a test notification.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

func fromRunSummary(s pipeline.RunSummary) *RunSummary {
	return &RunSummary{
		ID:            s.ID,
		Surface:       s.Surface.String(),
		Outcome:       string(s.Outcome),
		Answer:        s.Answer,
		Confidence:    s.Confidence,
		Message:       s.Message,
		DeliveryError: s.DeliveryError,
		StartedAt:     s.StartedAt,
		DurationMS:    s.Duration.Milliseconds(),
	}
}

// LogTailRequest reads from the daemon log.
type LogTailRequest struct {
	Offset     int64  `json:"offset"`
	Limit      int    `json:"limit"`
	Follow     bool   `json:"follow"`
	WaitMillis int    `json:"wait_millis"`
	Match      string `json:"match"`
}

// LogTailResponse carries log lines and the offset to resume from.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

func toStatusResponse(st daemon.Status) StatusResponse {
	resp := StatusResponse{
		Running:        st.Running,
		PID:            st.PID,
		LockPath:       st.LockFilePath,
		SocketPath:     st.SocketPath,
		LogPath:        st.LogPath,
		SolverURL:      st.SolverURL,
		Command:        st.Command,
		Busy:           st.Busy,
		WorkerState:    st.WorkerState,
		WorkerAlive:    st.WorkerAlive,
		Overlays:       append([]OverlayStatus(nil), st.Overlays...),
		ViewerAddress:  st.ViewerAddress,
		ViewerClients:  st.ViewerClients,
		TriggerMonitor: st.TriggerMonitor,
	}
	if st.LastRun != nil {
		resp.LastRun = fromRunSummary(*st.LastRun)
	}
	for _, dep := range st.Dependencies {
		resp.Dependencies = append(resp.Dependencies, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return resp
}
