// Package notify defines the notifications the background controller sends to
// the overlay agent and their JSON wire form.
//
// Notification is a closed sum type: Started, Result, and Failure are the only
// implementations, and Match forces callers to handle every variant. The wire
// form is tagged by a "type" field ("loading", "result", "error").
package notify
