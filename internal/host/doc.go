// Package host declares the capability interfaces the background controller
// calls into: resolving the active surface, capturing it, delivering messages
// to the overlay agent living inside a surface, and installing that agent.
//
// Implementations live elsewhere (internal/desktop for real desktops, the
// daemon for agent installation, internal/bus for message routing). Keep this
// package free of behaviour so every consumer can be tested against stubs.
package host
