// Package router turns Bot API updates into handler calls: it queues
// updates in a bounded inbox, runs them on a worker pool serialized per
// chat, and dispatches each one to the command, callback, membership or
// message handlers registered by feature packages.
package router

import "errors"

// Sentinel errors for router operations.
var (
	// ErrInboxFull indicates the router's inbox is at capacity and the
	// update was dropped.
	ErrInboxFull = errors.New("router: inbox full, update dropped")

	// ErrRouterStopped indicates the router has been shut down and is
	// no longer accepting updates.
	ErrRouterStopped = errors.New("router: stopped")

	// ErrNoDispatcher indicates no dispatcher has been configured.
	ErrNoDispatcher = errors.New("router: no dispatcher configured")

	// ErrDuplicateCommand is returned when two handlers claim the same
	// command name.
	ErrDuplicateCommand = errors.New("router: duplicate command")
)
