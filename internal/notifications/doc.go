// Package notifications mirrors solve outcomes to ntfy.
//
// The default implementation publishes to the configured ntfy topic and
// degrades to a no-op when no topic is set. Events cover the outcomes a user
// away from the screen cares about; per-event toggles live in the
// [notifications] config section.
package notifications
