// Package overlay implements the per-surface overlay agent.
//
// An Agent owns a single widget for its surface and runs as its own mailbox
// context. Every notification replaces the widget content in place and
// restarts the auto-hide timer; once the timer elapses the widget fades and is
// removed. Timer expiry is posted back into the agent's mailbox, so widget
// state is only ever touched by the agent goroutine.
//
// Rendered frames are handed to Presenters: the websocket Viewer, the ntfy
// mirror, and a structured log sink.
package overlay
