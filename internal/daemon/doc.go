// Package daemon coordinates the long-running screensolve process.
//
// It owns the runtime bus, the rendering worker host, the overlay agents and
// the pipeline controller, and ties them into a single lifecycle with
// flock-based locking to prevent multiple instances. Triggers arrive over IPC
// or from the optional udev device monitor; the overlay viewer is served over
// HTTP when enabled.
//
// Keep orchestration logic here: pipeline semantics live in internal/pipeline
// and rendering in internal/overlay, while the daemon focuses on startup,
// shutdown, and wiring.
package daemon
