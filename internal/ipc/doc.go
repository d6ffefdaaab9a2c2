// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// The service is registered as "ScreenSolve" with four control methods
// (Trigger, Status, Dismiss, Stop) plus LogTail and TestNotification. Request and response
// DTOs live in types.go; reuse them when adding endpoints to keep the protocol
// stable for existing CLI builds.
package ipc
