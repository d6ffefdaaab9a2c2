// Package pipeline orchestrates one capture-and-solve run per trigger command.
//
// A run resolves the active surface, announces itself to the overlay agent,
// captures the surface, transcodes the capture through the rendering worker,
// posts it to the remote solver, and delivers exactly one final notification.
// All error translation into user-facing messages happens here. Runs never
// overlap: a command arriving while a run is in flight is rejected with
// ErrRunInFlight.
package pipeline
