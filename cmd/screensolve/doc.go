// Package main hosts the screensolve CLI.
//
// Most commands are thin IPC calls against screensolved: trigger a
// capture-solve run, dismiss the overlay, read status or logs. The exceptions
// run locally: `config` scaffolds and validates the TOML file, `solve` sends an
// image file straight to the solver endpoint, and `serve` runs the reference
// solve API in the foreground.
package main
