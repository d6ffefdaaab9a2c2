// Package bus provides the in-process execution contexts and the message
// routing between them.
//
// A Mailbox is one execution context: a single goroutine draining an inbox and
// running a handler for each message, so state owned by the handler needs no
// locking. Callers talk to a context only by Request (wait for the handler's
// reply) or Post (fire and forget). The Bus routes surface-addressed messages to
// the overlay agent mailboxes attached to it and carries runtime broadcasts such
// as the rendering worker's readiness signal.
package bus
